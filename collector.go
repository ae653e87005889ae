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
	"io"
	"time"

	"github.com/dustin/go-humanize"
)

// rowWriter is the part of a sink the collector needs
type rowWriter interface {
	WriteRows(rows []Row) error
	Rows() int
}

// CollectResult summarises one fetch
type CollectResult struct {
	Query    Query
	Resume   *ResumeResult
	Rows     int
	UpToDate bool
	Size     int64
}

// Collector runs resume, fetch, conversion and CSV writing for one query
type Collector struct {
	client *SurfaceClient
	config *Config
	stdout io.Writer
	logger *Logger
}

// NewCollector creates a new collector; rows go to stdout when the config
// has no output path
func NewCollector(client *SurfaceClient, config *Config, stdout io.Writer, logger *Logger) *Collector {
	return &Collector{
		client: client,
		config: config,
		stdout: stdout,
		logger: logger.WithComponent("collector"),
	}
}

// Collect fetches q and writes it out. chartPath, when set, also receives a
// line chart of the numeric columns.
func (c *Collector) Collect(ctx context.Context, q Query, chartPath string) (*CollectResult, error) {
	result := &CollectResult{Query: q}

	var sink rowWriter
	var output *OutputFile

	if c.config.Output != "" {
		resume, err := c.resume(q)
		if err != nil {
			return nil, err
		}
		result.Resume = resume
		q.Start = resume.Start
		result.Query = q

		if q.Start.After(q.End) {
			c.logger.UserMessage("%s is already up to date through %s", c.config.Output, FormatTimestamp(q.End))
			result.UpToDate = true
			return result, nil
		}

		output, err = OpenOutputFile(c.config.Output, resume, c.logger)
		if err != nil {
			return nil, err
		}
		defer output.Close()
		sink = output
	} else {
		sink = NewCSVSink(c.stdout, false, nil, c.logger)
	}

	var converter *LocalTimeConverter
	if c.config.LocalTime {
		converter = NewLocalTimeConverter(q.Mode.Column(), c.config.Location(), c.logger)
	}

	var recorder *ChartRecorder
	if chartPath != "" {
		recorder = NewChartRecorder(q.Mode.Column())
	}

	c.logger.Info("Fetching data",
		"bbox", q.BBox.String(),
		"mode", q.Mode.String(),
		"start", FormatTimestamp(q.Start),
		"end", FormatTimestamp(q.End),
		"var", q.Variable,
		"model", q.Model,
	)

	err := c.client.FetchData(ctx, q, func(rows []Row) error {
		if converter != nil {
			converter.Convert(rows)
		}
		if recorder != nil {
			recorder.Record(rows)
		}
		return sink.WriteRows(rows)
	})
	result.Rows = sink.Rows()
	if err != nil {
		return result, err
	}

	if output != nil {
		if size, err := output.Size(); err == nil {
			result.Size = size
		}
		if err := output.Close(); err != nil {
			return result, err
		}
	}

	c.logger.Info("Data written",
		"rows", humanize.Comma(int64(result.Rows)),
		"output", c.outputName(),
		"size", humanize.Bytes(uint64(result.Size)),
	)

	if recorder != nil {
		c.writeChart(recorder, chartPath, q)
	}

	return result, nil
}

// resume scans the existing output file and reports what it changed
func (c *Collector) resume(q Query) (*ResumeResult, error) {
	c.logger.LogStorageOperation("scan_existing", c.config.Output)

	resume, err := ScanExisting(c.config.Output, q.Mode, q.Start, c.config.Location())
	if err != nil {
		return nil, err
	}

	if resume.Malformed {
		c.logger.Warn("Existing output is not valid CSV, appending without resume",
			"path", c.config.Output,
			"error", resume.FormatErr,
		)
		c.logger.UserMessage("Warning: %s could not be parsed as CSV (%v); appending without resuming", c.config.Output, resume.FormatErr)
		return resume, nil
	}

	if resume.Skipped > 0 {
		c.logger.Warn("Ignored unparseable timestamps in existing output",
			"path", c.config.Output,
			"count", resume.Skipped,
		)
	}

	if resume.Adjusted {
		c.logger.LogResume(c.config.Output, resume.Rows, resume.Requested, resume.Start)
		c.logger.UserMessage("Existing data found in %s: start time moved from %s to %s",
			c.config.Output,
			resume.Requested.Format(time.RFC3339),
			resume.Start.Format(time.RFC3339),
		)
	}

	return resume, nil
}

func (c *Collector) writeChart(recorder *ChartRecorder, path string, q Query) {
	title := fmt.Sprintf("%s %s (%s)", q.Model, q.Variable, q.BBox.String())
	if err := recorder.WriteFile(path, title); err != nil {
		c.logger.Warn("Failed to write chart", "path", path, "error", err)
		return
	}
	c.logger.Info("Chart written",
		"path", path,
		"points", humanize.Comma(int64(recorder.Points())),
		"skipped", recorder.Skipped(),
	)
}

func (c *Collector) outputName() string {
	if c.config.Output == "" {
		return "stdout"
	}
	return c.config.Output
}
