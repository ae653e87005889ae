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
	"encoding/json"
	"fmt"
	"time"
)

// TimeMode selects whether a query ranges over valid time or model
// initialization time
type TimeMode int

const (
	ValidTime TimeMode = iota
	InitTime
)

// Column returns the timestamp column carried by rows in this mode
func (m TimeMode) Column() string {
	if m == InitTime {
		return initTimeColumn
	}
	return timeColumn
}

// Step returns how far past the last stored timestamp a resumed query starts
func (m TimeMode) Step() time.Duration {
	if m == InitTime {
		return initTimeStep
	}
	return validTimeStep
}

// PayloadKeys returns the start and end payload keys for this mode
func (m TimeMode) PayloadKeys() (string, string) {
	if m == InitTime {
		return payloadInitTimeStart, payloadInitTimeEnd
	}
	return payloadStartTime, payloadEndTime
}

func (m TimeMode) String() string {
	if m == InitTime {
		return "init_time"
	}
	return "valid_time"
}

// BBox is either a single point or two opposite corners of a region.
// Corner order is passed through as given.
type BBox struct {
	LonA, LatA float64
	LonB, LatB float64
	Region     bool
}

// Point returns a bbox holding a single point
func Point(lon, lat float64) BBox {
	return BBox{LonA: lon, LatA: lat}
}

// Region returns a bbox spanning two corners
func Region(lonA, latA, lonB, latB float64) BBox {
	return BBox{LonA: lonA, LatA: latA, LonB: lonB, LatB: latB, Region: true}
}

// String formats the bbox the way the service expects it
func (b BBox) String() string {
	if b.Region {
		return fmt.Sprintf("%f, %f, %f, %f", b.LonA, b.LatA, b.LonB, b.LatB)
	}
	return fmt.Sprintf("%f, %f", b.LonA, b.LatA)
}

// Query is a fully resolved data request
type Query struct {
	BBox     BBox
	Start    time.Time
	End      time.Time
	Mode     TimeMode
	Variable string
	Model    string
}

// Variable is one entry of the service's variable listing
type Variable struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Row is one record returned by the service. Columns keep the order in which
// they first appeared in the JSON object.
type Row struct {
	keys   []string
	values map[string]json.RawMessage
}

// NewRow builds a row from alternating column names and string values
func NewRow(pairs ...string) Row {
	var r Row
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Set(pairs[i], pairs[i+1])
	}
	return r
}

// Keys returns the columns of the row in order
func (r Row) Keys() []string {
	return r.keys
}

// Len returns the number of columns
func (r Row) Len() int {
	return len(r.keys)
}

// Has reports whether the row carries column key
func (r Row) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Get returns the CSV rendering of a column
func (r Row) Get(key string) (string, bool) {
	raw, ok := r.values[key]
	if !ok {
		return "", false
	}
	return renderValue(raw), true
}

// Set replaces or appends a string column
func (r *Row) Set(key, value string) {
	raw, _ := json.Marshal(value)
	r.setRaw(key, raw)
}

func (r *Row) setRaw(key string, raw json.RawMessage) {
	if r.values == nil {
		r.values = make(map[string]json.RawMessage)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = raw
}

// UnmarshalJSON decodes a JSON object while keeping its key order
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("row must be a JSON object, got %s", describeJSON(data))
	}

	*r = Row{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected object key %v", tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("failed to decode value of %q: %w", key, err)
		}
		r.setRaw(key, raw)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// renderValue turns a JSON scalar into its CSV field text
func renderValue(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	case 'n':
		if string(trimmed) == "null" {
			return ""
		}
	}
	return string(trimmed)
}

// describeJSON names the kind of a JSON value for error messages
func describeJSON(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return "empty input"
	}
	switch trimmed[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}
