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
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with domain-specific methods
type Logger struct {
	*slog.Logger
	out io.Writer
}

// NewLogger creates a text-formatted logger on stderr
func NewLogger(debug bool) *Logger {
	return NewLoggerTo(os.Stderr, debug)
}

// NewLoggerTo creates a text-formatted logger writing to w. User messages
// share the same writer so CSV on stdout is never interleaved with them.
func NewLoggerTo(w io.Writer, debug bool) *Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	handler := slog.NewTextHandler(w, opts)
	return &Logger{Logger: slog.New(handler), out: w}
}

// WithComponent adds a component field to the logger
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.With("component", component), out: l.out}
}

// LogAPIRequest logs an API request
func (l *Logger) LogAPIRequest(method, endpoint string) {
	l.Debug("API request",
		"method", method,
		"endpoint", endpoint,
	)
}

// LogAPIError logs an API error
func (l *Logger) LogAPIError(endpoint string, statusCode int, err error) {
	l.Error("API request failed",
		"endpoint", endpoint,
		"status_code", statusCode,
		"error", err,
	)
}

// LogChunk logs a decoded response chunk
func (l *Logger) LogChunk(index, rows int) {
	l.Debug("Chunk received",
		"chunk", index,
		"rows", rows,
	)
}

// LogResume logs the outcome of scanning an existing output file
func (l *Logger) LogResume(path string, rows int, requested, resolved time.Time) {
	l.Info("Resuming from existing output",
		"path", path,
		"rows", rows,
		"requested_start", requested.Format(time.RFC3339),
		"resolved_start", resolved.Format(time.RFC3339),
	)
}

// LogStorageOperation logs storage operations
func (l *Logger) LogStorageOperation(operation, path string) {
	l.Debug("Storage operation",
		"operation", operation,
		"path", path,
	)
}

// UserMessage prints a plain message for the person running the tool
func (l *Logger) UserMessage(format string, args ...interface{}) {
	fmt.Fprintf(l.out, format+"\n", args...)
}
