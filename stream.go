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
	"errors"
	"fmt"
	"io"
)

// serverErrorPayload is the object the service sends instead of rows.
// Either field may hold any JSON value.
type serverErrorPayload struct {
	Error  json.RawMessage `json:"error"`
	Reason json.RawMessage `json:"reason"`
}

// present reports whether the object had an error key, even a null one
func (p serverErrorPayload) present() bool {
	return p.Error != nil
}

// ChunkDecoder reads a stream of JSON values, one batch of rows per value.
// Values may be split across network reads and may be separated by newlines
// or other whitespace.
type ChunkDecoder struct {
	dec      *json.Decoder
	endpoint string
	chunks   int
}

// NewChunkDecoder creates a decoder over a response body
func NewChunkDecoder(r io.Reader, endpoint string) *ChunkDecoder {
	return &ChunkDecoder{
		dec:      json.NewDecoder(r),
		endpoint: endpoint,
	}
}

// Next returns the next batch of rows. It returns io.EOF once the stream is
// exhausted, a *ServerError for an embedded error object and a *DecodeError
// for anything that is not an array of row objects.
func (d *ChunkDecoder) Next() ([]Row, error) {
	var raw json.RawMessage
	if err := d.dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, &DecodeError{
			Endpoint: d.endpoint,
			Content:  d.pending(),
			Err:      err,
		}
	}
	d.chunks++

	return decodeChunk(raw, d.endpoint)
}

// Chunks returns how many values have been read so far
func (d *ChunkDecoder) Chunks() int {
	return d.chunks
}

// pending returns a bounded prefix of the input the decoder choked on
func (d *ChunkDecoder) pending() string {
	buf, _ := io.ReadAll(io.LimitReader(d.dec.Buffered(), maxErrorContent))
	return string(buf)
}

// decodeChunk interprets one complete JSON value
func decodeChunk(raw json.RawMessage, endpoint string) ([]Row, error) {
	trimmed := bytes.TrimSpace(raw)

	if len(trimmed) > 0 && trimmed[0] == '{' {
		var payload serverErrorPayload
		if err := json.Unmarshal(trimmed, &payload); err == nil && payload.present() {
			return nil, &ServerError{
				Endpoint: endpoint,
				Code:     renderValue(payload.Error),
				Reason:   renderValue(payload.Reason),
			}
		}
		return nil, &DecodeError{
			Endpoint: endpoint,
			Content:  truncate(string(trimmed), maxErrorContent),
			Err:      fmt.Errorf("expected an array of rows, got an object"),
		}
	}

	var rows []Row
	if err := json.Unmarshal(trimmed, &rows); err != nil {
		return nil, &DecodeError{
			Endpoint: endpoint,
			Content:  truncate(string(trimmed), maxErrorContent),
			Err:      err,
		}
	}

	return rows, nil
}

// decodeServerError extracts error/reason from a non-200 response body
func decodeServerError(body []byte) (code, reason string, ok bool) {
	var payload serverErrorPayload
	if err := json.Unmarshal(body, &payload); err != nil || !payload.present() {
		return "", "", false
	}
	return renderValue(payload.Error), renderValue(payload.Reason), true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
