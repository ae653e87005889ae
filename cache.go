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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CacheEntry represents a single cached item with expiration
type CacheEntry struct {
	Data      json.RawMessage `json:"data"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// CacheStore holds all cache entries
type CacheStore struct {
	Entries map[string]*CacheEntry `json:"entries"`
}

// Cache provides simple JSON file-based caching of service metadata
type Cache struct {
	filePath string
	store    *CacheStore
	logger   *Logger
	now      func() time.Time
}

// NewCache creates a cache stored in basePath/cache.json
func NewCache(basePath string, logger *Logger) (*Cache, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, &StorageError{Operation: "create_directory", Path: basePath, Err: err}
	}

	cache := &Cache{
		filePath: filepath.Join(basePath, "cache.json"),
		store:    &CacheStore{Entries: make(map[string]*CacheEntry)},
		logger:   logger,
		now:      time.Now,
	}

	if err := cache.load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to load cache, starting fresh", "error", err)
		}
	}

	logger.Debug("Cache initialized", "path", cache.filePath, "entries", len(cache.store.Entries))
	return cache, nil
}

// Set stores a value in cache with TTL (time-to-live)
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) error {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	now := c.now()
	c.store.Entries[key] = &CacheEntry{
		Data:      valueJSON,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	if err := c.save(); err != nil {
		return err
	}

	c.logger.Debug("Cache set", "key", key, "ttl", ttl)
	return nil
}

// Get retrieves a value from cache if it exists and hasn't expired
func (c *Cache) Get(key string, target interface{}) (bool, error) {
	entry, exists := c.store.Entries[key]
	if !exists {
		c.logger.Debug("Cache miss", "key", key)
		return false, nil
	}

	if c.now().After(entry.ExpiresAt) {
		c.logger.Debug("Cache expired", "key", key)
		return false, nil
	}

	if err := json.Unmarshal(entry.Data, target); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}

	c.logger.Debug("Cache hit", "key", key, "expires_in", entry.ExpiresAt.Sub(c.now()).Round(time.Second))
	return true, nil
}

// CleanExpired removes all expired cache entries
func (c *Cache) CleanExpired() error {
	now := c.now()
	removed := 0

	for key, entry := range c.store.Entries {
		if now.After(entry.ExpiresAt) {
			delete(c.store.Entries, key)
			removed++
		}
	}

	if removed > 0 {
		c.logger.Debug("Cleaned expired cache entries", "count", removed)
		return c.save()
	}

	return nil
}

// load reads the cache from disk
func (c *Cache) load() error {
	data, err := os.ReadFile(c.filePath)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, c.store); err != nil {
		return fmt.Errorf("failed to unmarshal cache file: %w", err)
	}
	if c.store.Entries == nil {
		c.store.Entries = make(map[string]*CacheEntry)
	}

	return nil
}

// save writes the cache to disk
func (c *Cache) save() error {
	data, err := json.MarshalIndent(c.store, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	if err := os.WriteFile(c.filePath, data, 0644); err != nil {
		return &StorageError{Operation: "write_cache", Path: c.filePath, Err: err}
	}

	c.logger.LogStorageOperation("save_cache", c.filePath)
	return nil
}

// variablesCacheKey scopes a variable listing to one service
func variablesCacheKey(baseURL string) string {
	return "variables:" + baseURL
}

// VariableCatalog serves the variable listing from cache when it can
type VariableCatalog struct {
	client *SurfaceClient
	cache  *Cache
	ttl    time.Duration
	logger *Logger
}

// NewVariableCatalog wraps client with cache. A nil cache disables caching.
func NewVariableCatalog(client *SurfaceClient, cache *Cache, ttl time.Duration, logger *Logger) *VariableCatalog {
	return &VariableCatalog{
		client: client,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

// Cached returns the cached listing without contacting the service
func (v *VariableCatalog) Cached() ([]Variable, bool) {
	if v.cache == nil {
		return nil, false
	}

	var variables []Variable
	found, err := v.cache.Get(variablesCacheKey(v.client.BaseURL()), &variables)
	if err != nil {
		v.logger.Warn("Failed to load variables from cache", "error", err)
		return nil, false
	}
	return variables, found
}

// List returns the variable listing, from cache unless refresh is set
func (v *VariableCatalog) List(ctx context.Context, refresh bool) ([]Variable, error) {
	if !refresh {
		if variables, ok := v.Cached(); ok {
			v.logger.Debug("Loaded variables from cache", "count", len(variables))
			return variables, nil
		}
	}

	variables, err := v.client.ListVariables(ctx)
	if err != nil {
		return nil, err
	}

	if v.cache != nil && v.ttl > 0 {
		if err := v.cache.Set(variablesCacheKey(v.client.BaseURL()), variables, v.ttl); err != nil {
			v.logger.Warn("Failed to cache variables", "error", err)
		}
	}

	return variables, nil
}
