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
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCacheSetGet(t *testing.T) {
	cache, err := NewCache(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("NewCache returned error: %v", err)
	}

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	in := []Variable{{Name: "sfc_temp", Description: "Surface temperature"}}
	if err := cache.Set("key", in, time.Hour); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	var out []Variable
	found, err := cache.Get("key", &out)
	if err != nil || !found {
		t.Fatalf("Expected cache hit, got found=%v err=%v", found, err)
	}
	if len(out) != 1 || out[0].Name != "sfc_temp" {
		t.Errorf("Unexpected cached value %+v", out)
	}

	found, _ = cache.Get("other", &out)
	if found {
		t.Error("Expected miss for unknown key")
	}

	now = now.Add(2 * time.Hour)
	found, _ = cache.Get("key", &out)
	if found {
		t.Error("Expected expired entry to miss")
	}
}

func TestCachePersistsAndCleans(t *testing.T) {
	dir := t.TempDir()

	first, err := NewCache(dir, testLogger())
	if err != nil {
		t.Fatalf("NewCache returned error: %v", err)
	}
	if err := first.Set("keep", "value", time.Hour); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := first.Set("drop", "value", -time.Minute); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	second, err := NewCache(dir, testLogger())
	if err != nil {
		t.Fatalf("NewCache returned error: %v", err)
	}
	if len(second.store.Entries) != 2 {
		t.Fatalf("Expected 2 persisted entries, got %d", len(second.store.Entries))
	}

	if err := second.CleanExpired(); err != nil {
		t.Fatalf("CleanExpired returned error: %v", err)
	}
	if _, ok := second.store.Entries["drop"]; ok {
		t.Error("Expected expired entry to be removed")
	}

	var value string
	if found, _ := second.Get("keep", &value); !found || value != "value" {
		t.Errorf("Expected kept entry, got found=%v value=%q", found, value)
	}
}

func TestCacheCorruptFileStartsFresh(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "cache.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to seed cache: %v", err)
	}

	cache, err := NewCache(dir, testLogger())
	if err != nil {
		t.Fatalf("NewCache returned error: %v", err)
	}
	if len(cache.store.Entries) != 0 {
		t.Errorf("Expected empty cache, got %d entries", len(cache.store.Entries))
	}
}

func TestVariableCatalogCachesListing(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, `{"sfc_temp":"Surface temperature"}`)
	}))
	defer server.Close()

	cache, err := NewCache(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("NewCache returned error: %v", err)
	}
	catalog := NewVariableCatalog(newTestClient(server.URL), cache, time.Hour, testLogger())

	if _, ok := catalog.Cached(); ok {
		t.Error("Expected empty cache before first listing")
	}

	for i := 0; i < 2; i++ {
		variables, err := catalog.List(context.Background(), false)
		if err != nil {
			t.Fatalf("List returned error: %v", err)
		}
		if len(variables) != 1 {
			t.Fatalf("Expected 1 variable, got %d", len(variables))
		}
	}
	if requests != 1 {
		t.Errorf("Expected 1 request with caching, got %d", requests)
	}

	if _, err := catalog.List(context.Background(), true); err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if requests != 2 {
		t.Errorf("Expected refresh to hit the service, got %d requests", requests)
	}

	if variables, ok := catalog.Cached(); !ok || variables[0].Name != "sfc_temp" {
		t.Errorf("Expected cached listing, got %v %v", variables, ok)
	}
}

func TestVariableCatalogWithoutCache(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, `{"sfc_temp":"Surface temperature"}`)
	}))
	defer server.Close()

	catalog := NewVariableCatalog(newTestClient(server.URL), nil, time.Hour, testLogger())
	for i := 0; i < 2; i++ {
		if _, err := catalog.List(context.Background(), false); err != nil {
			t.Fatalf("List returned error: %v", err)
		}
	}
	if requests != 2 {
		t.Errorf("Expected every listing to hit the service, got %d requests", requests)
	}
}
