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
)

// ErrorKind classifies a failure so main can pick an exit code
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindUsage
	KindConnection
	KindProtocol
	KindServer
	KindLocalFile
)

func (k ErrorKind) String() string {
	switch k {
	case KindUsage:
		return "usage"
	case KindConnection:
		return "connection"
	case KindProtocol:
		return "protocol"
	case KindServer:
		return "server"
	case KindLocalFile:
		return "local_file"
	default:
		return "unknown"
	}
}

// ExitCode returns the process exit code for this kind of failure
func (k ErrorKind) ExitCode() int {
	switch k {
	case KindConnection:
		return 2
	case KindProtocol:
		return 3
	case KindServer:
		return 4
	case KindLocalFile:
		return 5
	default:
		return 1
	}
}

type kinded interface {
	Kind() ErrorKind
}

// KindOf returns the kind of the first classified error in err's chain
func KindOf(err error) ErrorKind {
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// ExitCodeFor maps an error returned by run to a process exit code
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	return KindOf(err).ExitCode()
}

// ValidationError represents a command-line or configuration validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("validation error for %s (%s): %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Kind() ErrorKind { return KindUsage }

// ConfigError represents a configuration file or environment error
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error for %s: %s: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func (e *ConfigError) Kind() ErrorKind { return KindUsage }

// NetworkError represents a failure to reach the data service
type NetworkError struct {
	Operation string
	Endpoint  string
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("error connecting to %s during %s: %v", e.Endpoint, e.Operation, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Kind() ErrorKind { return KindConnection }

// APIError represents a non-200 response from the data service
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
	Code       string
	Reason     string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error at %s (status %d): %s with reason %s", e.Endpoint, e.StatusCode, e.Code, e.Reason)
	}
	return fmt.Sprintf("API error at %s (status %d): %s", e.Endpoint, e.StatusCode, e.Message)
}

func (e *APIError) Kind() ErrorKind { return KindProtocol }

// DecodeError represents a response chunk that is not valid JSON or has an
// unexpected shape
type DecodeError struct {
	Endpoint string
	Content  string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("server returned bad JSON from %s %q: %v", e.Endpoint, e.Content, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Kind() ErrorKind { return KindProtocol }

// ServerError is an error object embedded in an otherwise successful response
type ServerError struct {
	Endpoint string
	Code     string
	Reason   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("error returned from %s: %s with reason %s", e.Endpoint, e.Code, e.Reason)
}

func (e *ServerError) Kind() ErrorKind { return KindServer }

// StorageError represents a local file operation error
type StorageError struct {
	Operation string
	Path      string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s at %s: %v", e.Operation, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Kind() ErrorKind { return KindLocalFile }
