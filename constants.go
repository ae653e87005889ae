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

const (
	// DefaultServiceURL is the base URL of the EC surface archive service
	DefaultServiceURL = "http://surface.canadarasp.com:8080"

	// DefaultModel is the HRDPS continental model; GDPS is "glb"
	DefaultModel = "hrdps_continental"

	dataEndpoint      = "data"
	variablesEndpoint = "variables"
)

// Payload keys understood by the service
const (
	payloadBBox          = "lon-lat-bbox"
	payloadStartTime     = "start-time"
	payloadEndTime       = "end-time"
	payloadInitTimeStart = "init-time-start"
	payloadInitTimeEnd   = "init-time-end"
	payloadVar           = "var"
	payloadModel         = "model"
)

const (
	// timeColumn holds the valid time of a row
	timeColumn = "time"

	// initTimeColumn holds the model initialization time of a row
	initTimeColumn = "inittime"

	// unavailableValue marks a timestamp the service could not resolve
	unavailableValue = "unavailable"

	validTimeStep = time.Hour
	initTimeStep  = 6 * time.Hour
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultReadTimeout    = 60 * time.Second
	defaultCacheTTL       = 24 * time.Hour

	// maxErrorContent bounds how much of a bad chunk is echoed back
	maxErrorContent = 512
)
