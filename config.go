// Copyright 2025 Matthew Gall <me@matthewgall.dev>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	// Service
	URL   string `yaml:"url"`
	Model string `yaml:"model"`

	// Timeouts, e.g. "10s"
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`

	// Output
	Output    string `yaml:"output"`
	LocalTime bool   `yaml:"localtime"`
	Timezone  string `yaml:"timezone"`

	// Variables cache
	CachePath string        `yaml:"cache_path"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`

	// Debugging
	Debug bool `yaml:"debug"`

	location *time.Location
}

// DefaultConfig returns the configuration used when nothing overrides it
func DefaultConfig() *Config {
	return &Config{
		URL:            DefaultServiceURL,
		Model:          DefaultModel,
		ConnectTimeout: defaultConnectTimeout,
		ReadTimeout:    defaultReadTimeout,
		CachePath:      getDefaultCachePath(),
		CacheTTL:       defaultCacheTTL,
	}
}

// LoadConfig loads configuration from an optional YAML file, a .env file in
// the working directory and SURFACE_* environment variables, in that order
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &ConfigError{Field: "config", Message: "failed to read config file", Err: err}
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, &ConfigError{Field: "config", Message: "failed to parse config file", Err: err}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &ConfigError{Field: ".env", Message: "failed to load environment file", Err: err}
	}

	if err := config.applyEnvironmentVariables(); err != nil {
		return nil, err
	}

	return config, nil
}

// getDefaultCachePath returns the default cache directory
func getDefaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".surfacecsv"
	}
	return filepath.Join(home, ".config", "surfacecsv")
}

// applyEnvironmentVariables overrides config with environment variables
func (c *Config) applyEnvironmentVariables() error {
	if val := os.Getenv("SURFACE_URL"); val != "" {
		c.URL = val
	}
	if val := os.Getenv("SURFACE_MODEL"); val != "" {
		c.Model = val
	}
	if val := os.Getenv("SURFACE_OUTPUT"); val != "" {
		c.Output = val
	}
	if val := os.Getenv("SURFACE_LOCALTIME"); val == "true" || val == "1" {
		c.LocalTime = true
	}
	if val := os.Getenv("SURFACE_TIMEZONE"); val != "" {
		c.Timezone = val
	}
	if val := os.Getenv("SURFACE_CACHE_PATH"); val != "" {
		c.CachePath = val
	}
	if val := os.Getenv("SURFACE_DEBUG"); val == "true" || val == "1" {
		c.Debug = true
	}

	durations := []struct {
		env    string
		target *time.Duration
	}{
		{"SURFACE_CONNECT_TIMEOUT", &c.ConnectTimeout},
		{"SURFACE_READ_TIMEOUT", &c.ReadTimeout},
		{"SURFACE_CACHE_TTL", &c.CacheTTL},
	}
	for _, d := range durations {
		val := os.Getenv(d.env)
		if val == "" {
			continue
		}
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return &ConfigError{Field: d.env, Message: "invalid duration", Err: err}
		}
		*d.target = parsed
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var problems []string

	if c.URL == "" {
		problems = append(problems, "url is required")
	} else if u, err := url.Parse(c.URL); err != nil || u.Scheme == "" || u.Host == "" {
		problems = append(problems, fmt.Sprintf("url %q is not an absolute http(s) URL", c.URL))
	}

	if c.Model == "" {
		problems = append(problems, "model is required")
	}

	if c.ConnectTimeout <= 0 {
		problems = append(problems, "connect_timeout must be positive")
	}
	if c.ReadTimeout <= 0 {
		problems = append(problems, "read_timeout must be positive")
	}
	if c.CacheTTL < 0 {
		problems = append(problems, "cache_ttl must not be negative")
	}

	c.location = time.Local
	if c.Timezone != "" {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			problems = append(problems, fmt.Sprintf("timezone %q is unknown", c.Timezone))
		} else {
			c.location = loc
		}
	}

	if len(problems) > 0 {
		return &ConfigError{
			Field:   "config",
			Message: fmt.Sprintf("validation failed:\n  - %s", strings.Join(problems, "\n  - ")),
		}
	}

	return nil
}

// Location returns the zone local-time output is rendered in
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}
