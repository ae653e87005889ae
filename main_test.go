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
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// fakeSurface records the forms it receives and answers with a fixed body
type fakeSurface struct {
	mu    sync.Mutex
	forms []map[string]string
	body  func(form map[string]string) string
}

func newFakeSurface(t *testing.T, body func(form map[string]string) string) (*fakeSurface, *httptest.Server) {
	t.Helper()

	fake := &fakeSurface{body: body}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		form := make(map[string]string)
		for key := range r.PostForm {
			form[key] = r.PostForm.Get(key)
		}
		form["path"] = r.URL.Path

		fake.mu.Lock()
		fake.forms = append(fake.forms, form)
		fake.mu.Unlock()

		fmt.Fprint(w, fake.body(form))
	}))
	t.Cleanup(server.Close)

	return fake, server
}

func (f *fakeSurface) requests() []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.forms...)
}

// runCLI runs the program with an isolated environment
func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()

	t.Setenv("SURFACE_CACHE_PATH", t.TempDir())
	t.Setenv("SURFACE_OUTPUT", "")
	t.Setenv("SURFACE_URL", "")
	t.Setenv("SURFACE_MODEL", "")
	t.Setenv("SURFACE_LOCALTIME", "")
	t.Setenv("SURFACE_TIMEZONE", "")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func hourlyRows(form map[string]string) string {
	return `[{"time":"2019-10-01T08:00:00Z","sfc_temp":12.9},{"time":"2019-10-01T09:00:00Z","sfc_temp":13.4}]
[{"time":"2019-10-01T10:00:00Z","sfc_temp":14.0}]`
}

func TestRunWithoutArguments(t *testing.T) {
	code, _, stderr := runCLI(t)
	if code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr, "Usage") {
		t.Errorf("Expected usage text, got %q", stderr)
	}
}

func TestRunVersion(t *testing.T) {
	code, stdout, _ := runCLI(t, "-version")
	if code != 0 || !strings.HasPrefix(stdout, "surfacecsv ") {
		t.Errorf("Unexpected version output %d %q", code, stdout)
	}
}

func TestRunUsageErrorSendsNoRequest(t *testing.T) {
	fake, server := newFakeSurface(t, hourlyRows)

	code, _, stderr := runCLI(t, "-url", server.URL, "-lon", "-122.43", "-lat", "48.0")
	if code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr, "start time is required") {
		t.Errorf("Expected explanation on stderr, got %q", stderr)
	}
	if n := len(fake.requests()); n != 0 {
		t.Errorf("Expected no requests, got %d", n)
	}
}

func TestRunToStdout(t *testing.T) {
	fake, server := newFakeSurface(t, hourlyRows)

	code, stdout, stderr := runCLI(t,
		"-url", server.URL,
		"-lon", "-122.43", "-lat", "48.0",
		"-start", "2019-10-01T08:00:00Z", "-end", "2019-10-01T10:00:00Z",
		"-var", "sfc_temp",
	)
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d: %s", code, stderr)
	}

	expected := "time,sfc_temp\n" +
		"2019-10-01T08:00:00Z,12.9\n" +
		"2019-10-01T09:00:00Z,13.4\n" +
		"2019-10-01T10:00:00Z,14.0\n"
	if stdout != expected {
		t.Errorf("Unexpected stdout:\n%s", stdout)
	}

	requests := fake.requests()
	if len(requests) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(requests))
	}
	if requests[0]["path"] != "/data" || requests[0]["lon-lat-bbox"] != "-122.430000, 48.000000" {
		t.Errorf("Unexpected request %v", requests[0])
	}
}

func TestRunResumesExistingOutput(t *testing.T) {
	fake, server := newFakeSurface(t, hourlyRows)

	path := filepath.Join(t.TempDir(), "out.csv")
	if err := os.WriteFile(path, []byte("time,sfc_temp\n2019-10-01T07:00:00Z,12.3\n"), 0644); err != nil {
		t.Fatalf("Failed to seed output: %v", err)
	}

	code, stdout, stderr := runCLI(t,
		"-url", server.URL,
		"-lon", "-122.43", "-lat", "48.0",
		"-start", "2019-10-01T06:00:00Z", "-end", "2019-10-01T10:00:00Z",
		"-var", "sfc_temp",
		"-output", path,
	)
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d: %s", code, stderr)
	}
	if stdout != "" {
		t.Errorf("Expected nothing on stdout, got %q", stdout)
	}

	requests := fake.requests()
	if len(requests) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(requests))
	}
	if got := requests[0]["start-time"]; got != "2019-10-01T08:00:00Z" {
		t.Errorf("Expected resumed start 2019-10-01T08:00:00Z, got %q", got)
	}
	if !strings.Contains(stderr, "2019-10-01T06:00:00Z") || !strings.Contains(stderr, "2019-10-01T08:00:00Z") {
		t.Errorf("Expected old and new start times on stderr, got %q", stderr)
	}

	data, _ := os.ReadFile(path)
	content := string(data)
	if strings.Count(content, "time,sfc_temp") != 1 {
		t.Errorf("Expected a single header, got:\n%s", content)
	}
	rows := readRows(t, path)
	if len(rows) != 4 {
		t.Fatalf("Expected 4 rows, got %d:\n%s", len(rows), content)
	}
	if v, _ := rows[0].Get("time"); v != "2019-10-01T07:00:00Z" {
		t.Errorf("Expected original row first, got %q", v)
	}
}

func TestRunAlreadyUpToDate(t *testing.T) {
	fake, server := newFakeSurface(t, hourlyRows)

	path := filepath.Join(t.TempDir(), "out.csv")
	original := "time,sfc_temp\n2019-10-01T10:00:00Z,14.0\n"
	os.WriteFile(path, []byte(original), 0644)

	code, _, stderr := runCLI(t,
		"-url", server.URL,
		"-lon", "-122.43", "-lat", "48.0",
		"-start", "2019-10-01T06:00:00Z", "-end", "2019-10-01T10:00:00Z",
		"-output", path,
	)
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d: %s", code, stderr)
	}
	if !strings.Contains(stderr, "up to date") {
		t.Errorf("Expected up to date message, got %q", stderr)
	}
	if n := len(fake.requests()); n != 0 {
		t.Errorf("Expected no requests, got %d", n)
	}
	if data, _ := os.ReadFile(path); string(data) != original {
		t.Errorf("Expected file untouched, got:\n%s", data)
	}
}

func TestRunServerError(t *testing.T) {
	_, server := newFakeSurface(t, func(map[string]string) string {
		return `{"error":"X","reason":"Y"}`
	})

	path := filepath.Join(t.TempDir(), "out.csv")
	code, _, stderr := runCLI(t,
		"-url", server.URL,
		"-lon", "-122.43", "-lat", "48.0",
		"-start", "2019-10-01T07:00:00Z",
		"-output", path,
	)
	if code != 4 {
		t.Errorf("Expected exit code 4, got %d", code)
	}
	if !strings.Contains(stderr, "X with reason Y") {
		t.Errorf("Expected error and reason on stderr, got %q", stderr)
	}

	data, _ := os.ReadFile(path)
	if len(data) != 0 {
		t.Errorf("Expected no rows written, got:\n%s", data)
	}
}

func TestRunMalformedOutputAppendsWithoutHeader(t *testing.T) {
	fake, server := newFakeSurface(t, hourlyRows)

	path := filepath.Join(t.TempDir(), "out.csv")
	original := "a,b\n1,x\"y\n"
	os.WriteFile(path, []byte(original), 0644)

	code, _, stderr := runCLI(t,
		"-url", server.URL,
		"-lon", "-122.43", "-lat", "48.0",
		"-start", "2019-10-01T08:00:00Z", "-end", "2019-10-01T10:00:00Z",
		"-output", path,
	)
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d: %s", code, stderr)
	}
	if !strings.Contains(stderr, "could not be parsed as CSV") {
		t.Errorf("Expected malformed warning, got %q", stderr)
	}
	if got := fake.requests()[0]["start-time"]; got != "2019-10-01T08:00:00Z" {
		t.Errorf("Expected unadjusted start, got %q", got)
	}

	data, _ := os.ReadFile(path)
	expected := original +
		"2019-10-01T08:00:00Z,12.9\n" +
		"2019-10-01T09:00:00Z,13.4\n" +
		"2019-10-01T10:00:00Z,14.0\n"
	if string(data) != expected {
		t.Errorf("Unexpected file content:\n%s", data)
	}
}

func TestRunLocalTime(t *testing.T) {
	_, server := newFakeSurface(t, func(map[string]string) string {
		return `[{"time":"2019-10-01T07:00:00Z","sfc_temp":12.3}]`
	})

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(configPath, []byte("timezone: UTC\n"), 0644)

	code, stdout, stderr := runCLI(t,
		"-config", configPath,
		"-url", server.URL,
		"-lon", "-122.43", "-lat", "48.0",
		"-start", "2019-10-01T07:00:00+00:00",
		"-localtime",
	)
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d: %s", code, stderr)
	}
	if !strings.Contains(stdout, "2019-10-01T07:00:00Z,12.3") {
		t.Errorf("Unexpected stdout %q", stdout)
	}
}

func TestRunListVariables(t *testing.T) {
	fake, server := newFakeSurface(t, func(map[string]string) string {
		return `{"wind":"10m wind speed","sfc_temp":"Surface temperature"}`
	})

	code, stdout, stderr := runCLI(t, "-url", server.URL, "-variables")
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d: %s", code, stderr)
	}

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "sfc_temp") || !strings.HasPrefix(lines[1], "wind") {
		t.Errorf("Unexpected listing:\n%s", stdout)
	}
	if fake.requests()[0]["path"] != "/variables" {
		t.Errorf("Expected /variables request, got %v", fake.requests()[0])
	}
}

func TestRunConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	code, _, _ := runCLI(t,
		"-url", url,
		"-lon", "-122.43", "-lat", "48.0",
		"-start", "2019-10-01T07:00:00Z",
	)
	if code != 2 {
		t.Errorf("Expected exit code 2, got %d", code)
	}
}

func TestRunChart(t *testing.T) {
	_, server := newFakeSurface(t, hourlyRows)

	chart := filepath.Join(t.TempDir(), "chart.svg")
	code, _, stderr := runCLI(t,
		"-url", server.URL,
		"-lon", "-122.43", "-lat", "48.0",
		"-start", "2019-10-01T08:00:00Z", "-end", "2019-10-01T10:00:00Z",
		"-chart", chart,
	)
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d: %s", code, stderr)
	}

	data, err := os.ReadFile(chart)
	if err != nil {
		t.Fatalf("Expected chart file: %v", err)
	}
	if !bytes.Contains(data, []byte("<svg")) {
		t.Error("Expected SVG chart")
	}
}

func TestRunResumesCutOffOutput(t *testing.T) {
	fake, server := newFakeSurface(t, hourlyRows)

	path := filepath.Join(t.TempDir(), "out.csv")
	original := "time,sfc_temp\n2019-10-01T07:00:00Z,12.3\n2019-10-01T08:0"
	os.WriteFile(path, []byte(original), 0644)

	code, _, stderr := runCLI(t,
		"-url", server.URL,
		"-lon", "-122.43", "-lat", "48.0",
		"-start", "2019-10-01T06:00:00Z", "-end", "2019-10-01T10:00:00Z",
		"-output", path,
	)
	if code != 0 {
		t.Fatalf("Expected exit code 0, got %d: %s", code, stderr)
	}
	if got := fake.requests()[0]["start-time"]; got != "2019-10-01T08:00:00Z" {
		t.Errorf("Expected resumed start 2019-10-01T08:00:00Z, got %q", got)
	}

	data, _ := os.ReadFile(path)
	expected := original + "\n" +
		"2019-10-01T08:00:00Z,12.9\n" +
		"2019-10-01T09:00:00Z,13.4\n" +
		"2019-10-01T10:00:00Z,14.0\n"
	if string(data) != expected {
		t.Errorf("Unexpected file content:\n%s", data)
	}
}
