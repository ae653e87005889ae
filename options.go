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
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const programDescription = "For a single longitude and latitude point or a region, generate a CSV file from the EC surface archive across a span of time"

// Options holds the parsed command line
type Options struct {
	ConfigPath string

	Lon, Lat   float64
	Lon2, Lat2 float64

	Start, End         string
	InitStart, InitEnd string

	Var    string
	Model  string
	Output string
	URL    string
	Chart  string

	LocalTime     bool
	ListVariables bool
	Refresh       bool
	Debug         bool
	ShowVersion   bool

	set   map[string]bool
	flags *flag.FlagSet
}

// ParseOptions parses command-line arguments. Calling it with no arguments
// prints usage and fails.
func ParseOptions(args []string, stderr io.Writer) (*Options, error) {
	opts := &Options{set: make(map[string]bool)}

	fs := flag.NewFlagSet("surfacecsv", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "%s -- %s\n\nUsage of surfacecsv:\n", programDescription, GetVersion())
		fs.PrintDefaults()
	}
	opts.flags = fs

	fs.StringVar(&opts.ConfigPath, "config", "", "Path to YAML configuration file")
	fs.Float64Var(&opts.Lon, "lon", 0, "Longitude of point")
	fs.Float64Var(&opts.Lat, "lat", 0, "Latitude of point")
	fs.Float64Var(&opts.Lon2, "lon2", 0, "Longitude of other corner if one wants a region")
	fs.Float64Var(&opts.Lat2, "lat2", 0, "Latitude of other corner if one wants a region")
	fs.StringVar(&opts.Start, "start", "", "RFC3339 time stamp of starting date/time like 2019-10-01T07:00:00Z")
	fs.StringVar(&opts.End, "end", "", "RFC3339 time stamp of ending date/time like 2019-10-01T08:00:00Z (default: start)")
	fs.StringVar(&opts.InitStart, "initstart", "", "RFC3339 time stamp of the first model initialization time")
	fs.StringVar(&opts.InitEnd, "initend", "", "RFC3339 time stamp of the last model initialization time (default: initstart)")
	fs.StringVar(&opts.Var, "var", "", "Variable, e.g. sfc_temp, sfc_pres or wind (see --variables)")
	fs.StringVar(&opts.Model, "model", DefaultModel, `Model name, for GDPS use "glb"`)
	fs.StringVar(&opts.Output, "output", "", "Output CSV filename, appended to and resumed if it exists (default: stdout)")
	fs.StringVar(&opts.URL, "url", DefaultServiceURL, "Base URL of the surface data service")
	fs.StringVar(&opts.Chart, "chart", "", "Also write a line chart of the fetched series to this .png or .svg file")
	fs.BoolVar(&opts.LocalTime, "localtime", false, "Convert timestamps to local time")
	fs.BoolVar(&opts.ListVariables, "variables", false, "List available variables and exit")
	fs.BoolVar(&opts.Refresh, "refresh", false, "Ignore the cached variable list")
	fs.BoolVar(&opts.Debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&opts.ShowVersion, "version", false, "Show version and exit")

	if len(args) == 0 {
		fs.Usage()
		return nil, &ValidationError{Field: "arguments", Message: "no arguments given"}
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, &ValidationError{Field: "arguments", Message: err.Error()}
	}

	if fs.NArg() > 0 {
		fs.Usage()
		return nil, &ValidationError{
			Field:   "arguments",
			Value:   strings.Join(fs.Args(), " "),
			Message: "unexpected positional arguments",
		}
	}

	fs.Visit(func(f *flag.Flag) {
		opts.set[f.Name] = true
	})

	return opts, nil
}

// IsSet reports whether a flag was given explicitly
func (o *Options) IsSet(name string) bool {
	return o.set[name]
}

// Usage prints the flag summary
func (o *Options) Usage() {
	if o.flags != nil {
		o.flags.Usage()
	}
}

// ApplyTo overrides configuration values with explicitly given flags
func (o *Options) ApplyTo(config *Config) {
	if o.IsSet("url") {
		config.URL = o.URL
	}
	if o.IsSet("model") {
		config.Model = o.Model
	}
	if o.IsSet("output") {
		config.Output = o.Output
	}
	if o.LocalTime {
		config.LocalTime = true
	}
	if o.Debug {
		config.Debug = true
	}
}

// ResolveQuery validates the point, region and time range and builds the
// query. Every missing or inconsistent argument is a usage error.
func ResolveQuery(o *Options, config *Config) (Query, error) {
	q := Query{
		Variable: o.Var,
		Model:    config.Model,
	}

	if !o.IsSet("lon") || !o.IsSet("lat") {
		return Query{}, &ValidationError{Field: "lon/lat", Message: "a point is required, use -lon and -lat"}
	}
	if err := ValidateLocation(o.Lon, o.Lat); err != nil {
		return Query{}, err
	}

	hasLon2, hasLat2 := o.IsSet("lon2"), o.IsSet("lat2")
	switch {
	case hasLon2 && hasLat2:
		if err := ValidateLocation(o.Lon2, o.Lat2); err != nil {
			return Query{}, err
		}
		q.BBox = Region(o.Lon, o.Lat, o.Lon2, o.Lat2)
	case hasLon2 || hasLat2:
		return Query{}, &ValidationError{Field: "lon2/lat2", Message: "both corners of a region are required"}
	default:
		q.BBox = Point(o.Lon, o.Lat)
	}

	var startValue, endValue string
	switch {
	case o.Start != "" && o.InitStart != "":
		return Query{}, &ValidationError{Field: "start", Message: "use either -start or -initstart, not both"}
	case o.Start != "":
		if o.InitEnd != "" {
			return Query{}, &ValidationError{Field: "initend", Message: "-initend requires -initstart"}
		}
		q.Mode = ValidTime
		startValue, endValue = o.Start, o.End
	case o.InitStart != "":
		if o.End != "" {
			return Query{}, &ValidationError{Field: "end", Message: "-end requires -start"}
		}
		q.Mode = InitTime
		startValue, endValue = o.InitStart, o.InitEnd
	default:
		return Query{}, &ValidationError{Field: "start", Message: "a start time is required, use -start or -initstart"}
	}

	start, err := ParseTimestamp(startValue, config.Location())
	if err != nil {
		return Query{}, &ValidationError{Field: "start", Value: startValue, Message: err.Error()}
	}
	q.Start = start

	q.End = start
	if endValue != "" {
		end, err := ParseTimestamp(endValue, config.Location())
		if err != nil {
			return Query{}, &ValidationError{Field: "end", Value: endValue, Message: err.Error()}
		}
		q.End = end
	}
	if q.End.Before(q.Start) {
		return Query{}, &ValidationError{
			Field:   "end",
			Value:   q.End.Format(time.RFC3339),
			Message: "end is before start",
		}
	}

	if o.Chart != "" && q.BBox.Region {
		return Query{}, &ValidationError{Field: "chart", Value: o.Chart, Message: "charts are only drawn for point queries"}
	}

	return q, nil
}

// ValidateLocation validates that a coordinate pair is within range
func ValidateLocation(lon, lat float64) error {
	if lat < -90 || lat > 90 {
		return &ValidationError{
			Field:   "lat",
			Value:   strconv.FormatFloat(lat, 'f', -1, 64),
			Message: "latitude must be between -90 and 90",
		}
	}
	if lon < -180 || lon > 180 {
		return &ValidationError{
			Field:   "lon",
			Value:   strconv.FormatFloat(lon, 'f', -1, 64),
			Message: "longitude must be between -180 and 180",
		}
	}
	return nil
}
