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
	"encoding/csv"
	"errors"
	"io"
	"os"
	"time"
)

// ResumeResult describes what an existing output file already holds
type ResumeResult struct {
	Exists        bool
	HeaderWritten bool
	Header        []string
	Rows          int
	Skipped       int
	Malformed     bool
	FormatErr     error
	Requested     time.Time
	Start         time.Time
	Adjusted      bool
}

// ScanExisting reads an existing output file and returns the start time a
// query must use so that no row already in the file is fetched again.
// A missing or empty file is not an error. A file that is not valid CSV
// yields Malformed with no adjustment.
func ScanExisting(path string, mode TimeMode, start time.Time, loc *time.Location) (*ResumeResult, error) {
	result := &ResumeResult{Requested: start, Start: start}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return result, nil
		}
		return nil, &StorageError{Operation: "open_existing", Path: path, Err: err}
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, &StorageError{Operation: "stat_existing", Path: path, Err: err}
	}
	result.Exists = true
	if info.Size() == 0 {
		return result, nil
	}

	partialTail, err := endsWithoutNewline(file, info.Size())
	if err != nil {
		return nil, &StorageError{Operation: "read_existing", Path: path, Err: err}
	}

	if err := scanRows(file, mode, loc, partialTail, result); err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			result.Malformed = true
			result.FormatErr = err
			result.HeaderWritten = true
			result.Header = nil
			result.Start = start
			result.Adjusted = false
			return result, nil
		}
		return nil, &StorageError{Operation: "read_existing", Path: path, Err: err}
	}

	return result, nil
}

// endsWithoutNewline reports whether the last line of a file was cut short
func endsWithoutNewline(file *os.File, size int64) (bool, error) {
	last := make([]byte, 1)
	if _, err := file.ReadAt(last, size-1); err != nil {
		return false, err
	}
	return last[0] != '\n', nil
}

// scanRows walks every record; append order is not sorted so the whole
// file is read. Rows may have more or fewer fields than the header. When
// partialTail is set a last line that does not parse is skipped.
func scanRows(r io.Reader, mode TimeMode, loc *time.Location, partialTail bool, result *ResumeResult) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}
	result.Header = append([]string(nil), header...)
	result.HeaderWritten = true

	column := -1
	for i, name := range header {
		if name == mode.Column() {
			column = i
			break
		}
	}

	step := mode.Step()
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if partialTail && atEOF(reader) {
				result.Skipped++
				return nil
			}
			return err
		}
		result.Rows++

		if column < 0 || column >= len(record) {
			continue
		}
		value := record[column]
		if value == "" || value == unavailableValue {
			continue
		}

		ts, err := ParseTimestamp(value, loc)
		if err != nil {
			result.Skipped++
			continue
		}

		if !ts.Before(result.Requested) {
			next := ts.Add(step)
			if next.After(result.Start) {
				result.Start = next
				result.Adjusted = true
			}
		}
	}
}

// atEOF reports whether nothing follows the record that just failed
func atEOF(reader *csv.Reader) bool {
	_, err := reader.Read()
	return errors.Is(err, io.EOF)
}
