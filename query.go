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
	"net/url"
	"strings"
	"time"
)

// zonedLayouts carry their own offset or zone
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05MST",
}

// localLayouts are interpreted in the caller's location
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// ParseTimestamp parses an ISO-8601 timestamp. Values without a zone are
// taken to be in loc.
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("cannot parse %q as an RFC3339 timestamp", value)
}

// FormatTimestamp renders a timestamp the way it is sent to the service
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// BuildPayload translates a query into the service's flat form payload
func BuildPayload(q Query) url.Values {
	startKey, endKey := q.Mode.PayloadKeys()

	values := url.Values{}
	values.Set(payloadBBox, q.BBox.String())
	values.Set(startKey, FormatTimestamp(q.Start))
	values.Set(endKey, FormatTimestamp(q.End))
	if q.Variable != "" {
		values.Set(payloadVar, q.Variable)
	}
	if q.Model != "" {
		values.Set(payloadModel, q.Model)
	}

	return values
}
