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
	"fmt"
	"io"
	"os"
)

// CSVSink writes row batches as CSV, emitting the header at most once
type CSVSink struct {
	writer        *csv.Writer
	path          string
	columns       []string
	headerWritten bool
	rows          int
	dropped       map[string]bool
	logger        *Logger
}

// NewCSVSink creates a sink over w. When headerWritten is set the output
// already starts with a header and columns, if known, are that header.
func NewCSVSink(w io.Writer, headerWritten bool, columns []string, logger *Logger) *CSVSink {
	return &CSVSink{
		writer:        csv.NewWriter(w),
		path:          "stdout",
		columns:       columns,
		headerWritten: headerWritten,
		dropped:       make(map[string]bool),
		logger:        logger,
	}
}

// Rows returns how many data rows have been written
func (s *CSVSink) Rows() int {
	return s.rows
}

// HeaderWritten reports whether the output already carries a header line
func (s *CSVSink) HeaderWritten() bool {
	return s.headerWritten
}

// Columns returns the column order rows are written in
func (s *CSVSink) Columns() []string {
	return s.columns
}

// WriteRows writes one batch and flushes it
func (s *CSVSink) WriteRows(rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	if s.columns == nil {
		s.columns = append([]string(nil), rows[0].Keys()...)
	}

	if !s.headerWritten {
		if err := s.writer.Write(s.columns); err != nil {
			return &StorageError{Operation: "write_header", Path: s.path, Err: err}
		}
		s.headerWritten = true
	}

	record := make([]string, len(s.columns))
	for _, row := range rows {
		s.noteDropped(row)
		for i, column := range s.columns {
			record[i], _ = row.Get(column)
		}
		if err := s.writer.Write(record); err != nil {
			return &StorageError{Operation: "write_row", Path: s.path, Err: err}
		}
		s.rows++
	}

	return s.Flush()
}

// Flush pushes buffered rows to the underlying writer
func (s *CSVSink) Flush() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return &StorageError{Operation: "flush", Path: s.path, Err: err}
	}
	return nil
}

// noteDropped warns once per column the header has no room for
func (s *CSVSink) noteDropped(row Row) {
	if row.Len() == len(s.columns) && sameKeys(row.Keys(), s.columns) {
		return
	}
	known := make(map[string]bool, len(s.columns))
	for _, column := range s.columns {
		known[column] = true
	}
	for _, key := range row.Keys() {
		if !known[key] && !s.dropped[key] {
			s.dropped[key] = true
			s.logger.Warn("Column not present in output header, dropping it",
				"column", key,
				"path", s.path,
			)
		}
	}
}

func sameKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// OutputFile is an output CSV opened for appending after a resume scan
type OutputFile struct {
	*CSVSink
	file   *os.File
	closed bool
}

// OpenOutputFile opens path for appending, creating it if needed. A file
// whose last line was cut short gets a line break so new rows start on a
// line of their own.
func OpenOutputFile(path string, resume *ResumeResult, logger *Logger) (*OutputFile, error) {
	logger.LogStorageOperation("open_append", path)

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, &StorageError{Operation: "open_output", Path: path, Err: err}
	}

	if err := terminateLastLine(file); err != nil {
		file.Close()
		return nil, &StorageError{Operation: "repair_output", Path: path, Err: err}
	}

	var headerWritten bool
	var columns []string
	if resume != nil {
		headerWritten = resume.HeaderWritten
		columns = resume.Header
	}

	sink := NewCSVSink(file, headerWritten, columns, logger)
	sink.path = path

	return &OutputFile{CSVSink: sink, file: file}, nil
}

// terminateLastLine appends a newline to a non-empty file that lacks one
func terminateLastLine(file *os.File) error {
	info, err := file.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}

	partial, err := endsWithoutNewline(file, info.Size())
	if err != nil || !partial {
		return err
	}

	_, err = file.Write([]byte("\n"))
	return err
}

// Size returns the current size of the output file
func (o *OutputFile) Size() (int64, error) {
	info, err := o.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat output: %w", err)
	}
	return info.Size(), nil
}

// Close flushes and closes the file. Closing twice is a no-op.
func (o *OutputFile) Close() error {
	if o.closed {
		return nil
	}
	o.closed = true

	flushErr := o.Flush()
	if err := o.file.Close(); err != nil {
		return &StorageError{Operation: "close_output", Path: o.file.Name(), Err: err}
	}
	return flushErr
}
