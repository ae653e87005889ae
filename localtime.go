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

import "time"

// LocalTimeConverter rewrites a row's timestamp column in a target zone
type LocalTimeConverter struct {
	column string
	loc    *time.Location
	logger *Logger
}

// NewLocalTimeConverter creates a converter for column into loc
func NewLocalTimeConverter(column string, loc *time.Location, logger *Logger) *LocalTimeConverter {
	return &LocalTimeConverter{
		column: column,
		loc:    loc,
		logger: logger,
	}
}

// Convert rewrites the timestamp of every row in place. Values that are
// missing, unavailable or unparseable are left as they are.
func (c *LocalTimeConverter) Convert(rows []Row) {
	for i := range rows {
		value, ok := rows[i].Get(c.column)
		if !ok || value == "" || value == unavailableValue {
			continue
		}

		ts, err := ParseTimestamp(value, time.UTC)
		if err != nil {
			c.logger.Debug("Leaving timestamp unconverted", "value", value, "error", err)
			continue
		}

		rows[i].Set(c.column, ts.In(c.loc).Format(time.RFC3339))
	}
}
