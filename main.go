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
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := ParseOptions(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitCodeFor(err)
	}

	// Show version and exit
	if opts.ShowVersion {
		fmt.Fprintf(stdout, "surfacecsv %s\n", GetVersion())
		return 0
	}

	config, err := LoadConfig(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitCodeFor(err)
	}
	opts.ApplyTo(config)

	logger := NewLoggerTo(stderr, config.Debug)
	logger.Debug("Starting surfacecsv", "version", GetVersion())

	if err := config.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		return ExitCodeFor(err)
	}

	client := NewSurfaceClient(config.URL, config.ConnectTimeout, config.ReadTimeout, logger)
	catalog := NewVariableCatalog(client, openCache(config, logger), config.CacheTTL, logger)

	if opts.ListVariables {
		variables, err := catalog.List(ctx, opts.Refresh)
		if err != nil {
			return fail(logger, "Failed to list variables", err)
		}
		printVariables(stdout, variables)
		return 0
	}

	query, err := ResolveQuery(opts, config)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		opts.Usage()
		return ExitCodeFor(err)
	}

	checkVariable(catalog, query.Variable, logger)

	collector := NewCollector(client, config, stdout, logger)
	if _, err := collector.Collect(ctx, query, opts.Chart); err != nil {
		return fail(logger, "Failed to collect data", err)
	}

	return 0
}

// fail logs err with its kind and returns the matching exit code
func fail(logger *Logger, msg string, err error) int {
	kind := KindOf(err)
	logger.Error(msg, "kind", kind.String(), "error", err)
	return kind.ExitCode()
}

// openCache returns nil when caching is disabled or unavailable
func openCache(config *Config, logger *Logger) *Cache {
	if config.CachePath == "" || config.CacheTTL == 0 {
		return nil
	}

	cache, err := NewCache(config.CachePath, logger)
	if err != nil {
		logger.Warn("Variables cache disabled", "error", err)
		return nil
	}
	if err := cache.CleanExpired(); err != nil {
		logger.Warn("Failed to clean expired cache", "error", err)
	}
	return cache
}

// checkVariable warns about an unknown -var using only the cached listing
func checkVariable(catalog *VariableCatalog, name string, logger *Logger) {
	if name == "" {
		return
	}
	variables, ok := catalog.Cached()
	if !ok {
		return
	}
	for _, v := range variables {
		if v.Name == name {
			return
		}
	}
	logger.Warn("Variable not in the service's variable list, see --variables", "var", name)
}

func printVariables(w io.Writer, variables []Variable) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, v := range variables {
		fmt.Fprintf(tw, "%s\t%s\n", v.Name, v.Description)
	}
	tw.Flush()
}
