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
	"os"
	"path/filepath"
	"strconv"
	"strings"

	charts "github.com/vicanso/go-charts/v2"
)

// coordinateColumns are never plotted
var coordinateColumns = map[string]bool{
	"lon":       true,
	"lat":       true,
	"longitude": true,
	"latitude":  true,
}

// ChartRecorder keeps the numeric series of a point query so they can be
// drawn once the stream is complete
type ChartRecorder struct {
	labelColumn string
	columns     []string
	labels      []string
	series      [][]float64
	skipped     int
	theme       string
}

// NewChartRecorder creates a recorder labelling points by labelColumn
func NewChartRecorder(labelColumn string) *ChartRecorder {
	return &ChartRecorder{
		labelColumn: labelColumn,
		theme:       "dark",
	}
}

// Record adds the numeric values of each row. The plotted columns are fixed
// by the first row that has any; rows lacking one of them are skipped.
func (cr *ChartRecorder) Record(rows []Row) {
	for _, row := range rows {
		if cr.columns == nil {
			cr.selectColumns(row)
			if cr.columns == nil {
				cr.skipped++
				continue
			}
		}

		values := make([]float64, len(cr.columns))
		ok := true
		for i, column := range cr.columns {
			value, found := numericValue(row, column)
			if !found {
				ok = false
				break
			}
			values[i] = value
		}
		if !ok {
			cr.skipped++
			continue
		}

		label, _ := row.Get(cr.labelColumn)
		cr.labels = append(cr.labels, label)
		for i := range values {
			cr.series[i] = append(cr.series[i], values[i])
		}
	}
}

// Points returns how many rows were recorded
func (cr *ChartRecorder) Points() int {
	return len(cr.labels)
}

// Skipped returns how many rows could not be plotted
func (cr *ChartRecorder) Skipped() int {
	return cr.skipped
}

func (cr *ChartRecorder) selectColumns(row Row) {
	for _, column := range row.Keys() {
		if column == cr.labelColumn || coordinateColumns[column] {
			continue
		}
		if _, ok := numericValue(row, column); ok {
			cr.columns = append(cr.columns, column)
		}
	}
	if cr.columns != nil {
		cr.series = make([][]float64, len(cr.columns))
	}
}

func numericValue(row Row, column string) (float64, bool) {
	text, ok := row.Get(column)
	if !ok || text == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// WriteFile renders the chart into path as SVG when it ends in .svg and
// PNG otherwise
func (cr *ChartRecorder) WriteFile(path, title string) error {
	typeOption := charts.PNGTypeOption()
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		typeOption = charts.SVGTypeOption()
	}

	buf, err := cr.render(title, typeOption)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, buf, 0644); err != nil {
		return &StorageError{Operation: "write_chart", Path: path, Err: err}
	}
	return nil
}

func (cr *ChartRecorder) render(title string, typeOption charts.OptionFunc) ([]byte, error) {
	if len(cr.labels) == 0 {
		return nil, fmt.Errorf("no numeric data to chart")
	}

	p, err := charts.LineRender(
		cr.series,
		typeOption,
		charts.TitleTextOptionFunc(title),
		charts.XAxisDataOptionFunc(cr.labels),
		charts.LegendLabelsOptionFunc(cr.columns, charts.PositionRight),
		charts.ThemeOptionFunc(cr.theme),
		charts.WidthOptionFunc(1200),
		charts.HeightOptionFunc(400),
		charts.PaddingOptionFunc(charts.Box{
			Top:    20,
			Right:  20,
			Bottom: 20,
			Left:   20,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate chart bytes: %w", err)
	}

	return buf, nil
}
