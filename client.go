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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync/atomic"
	"time"
)

// errReadTimeout marks a response body that stopped delivering data
var errReadTimeout = errors.New("read timeout")

// SurfaceClient handles communication with the surface archive service
type SurfaceClient struct {
	baseURL     string
	httpClient  *http.Client
	readTimeout time.Duration
	logger      *Logger
}

// NewSurfaceClient creates a client with explicit connect and read timeouts.
// readTimeout bounds the wait for response headers and every gap between body
// reads. There is no overall request timeout so long result streams are not
// cut off.
func NewSurfaceClient(baseURL string, connectTimeout, readTimeout time.Duration, logger *Logger) *SurfaceClient {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: readTimeout,
	}

	client := NewSurfaceClientWithHTTPClient(baseURL, &http.Client{Transport: transport}, logger)
	client.readTimeout = readTimeout
	return client
}

// NewSurfaceClientWithHTTPClient creates a client with a custom HTTP client.
// Body reads are bounded only by that client.
func NewSurfaceClientWithHTTPClient(baseURL string, httpClient *http.Client, logger *Logger) *SurfaceClient {
	return &SurfaceClient{
		baseURL:    normalizeBaseURL(baseURL),
		httpClient: httpClient,
		logger:     logger.WithComponent("client"),
	}
}

// normalizeBaseURL accepts both the bare service URL and the older form that
// already ends in /data
func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	baseURL = strings.TrimSuffix(baseURL, "/"+dataEndpoint)
	return baseURL
}

// BaseURL returns the service URL requests are sent to
func (c *SurfaceClient) BaseURL() string {
	return c.baseURL
}

func (c *SurfaceClient) endpoint(name string) string {
	return c.baseURL + "/" + name
}

// FetchData posts the query and hands every decoded chunk to handle before
// reading the next one. The first error from the transport, the decoder, the
// service or handle stops the stream.
func (c *SurfaceClient) FetchData(ctx context.Context, q Query, handle func([]Row) error) error {
	endpoint := c.endpoint(dataEndpoint)

	resp, err := c.post(ctx, endpoint, BuildPayload(q))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	decoder := NewChunkDecoder(resp.Body, endpoint)
	for {
		rows, err := decoder.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return readError(resp, endpoint, err)
		}

		c.logger.LogChunk(decoder.Chunks(), len(rows))
		if len(rows) == 0 {
			continue
		}
		if err := handle(rows); err != nil {
			return err
		}
	}

	c.logger.Debug("Response complete", "chunks", decoder.Chunks())
	return nil
}

// ListVariables returns the variables the service can serve, sorted by name
func (c *SurfaceClient) ListVariables(ctx context.Context) ([]Variable, error) {
	endpoint := c.endpoint(variablesEndpoint)

	resp, err := c.post(ctx, endpoint, url.Values{})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if timeoutErr := timeoutError(resp, endpoint); timeoutErr != nil {
			return nil, timeoutErr
		}
		return nil, &NetworkError{Operation: "read_response", Endpoint: endpoint, Err: err}
	}

	if code, reason, ok := decodeServerError(body); ok {
		return nil, &ServerError{Endpoint: endpoint, Code: code, Reason: reason}
	}

	var listing map[string]string
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, &DecodeError{
			Endpoint: endpoint,
			Content:  truncate(string(body), maxErrorContent),
			Err:      err,
		}
	}

	variables := make([]Variable, 0, len(listing))
	for name, description := range listing {
		variables = append(variables, Variable{Name: name, Description: description})
	}
	sort.Slice(variables, func(i, j int) bool {
		return variables[i].Name < variables[j].Name
	})

	return variables, nil
}

// post sends a form-encoded request and returns the response once it is
// known to be a 200. The body is cancelled if it stalls for longer than the
// read timeout.
func (c *SurfaceClient) post(ctx context.Context, endpoint string, form url.Values) (*http.Response, error) {
	cancel := context.CancelCauseFunc(func(error) {})
	if c.readTimeout > 0 {
		ctx, cancel = context.WithCancelCause(ctx)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		cancel(nil)
		return nil, &ValidationError{Field: "url", Value: endpoint, Message: err.Error()}
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", GetUserAgent())

	c.logger.LogAPIRequest(http.MethodPost, endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel(nil)
		return nil, &NetworkError{Operation: "request", Endpoint: endpoint, Err: err}
	}

	if c.readTimeout > 0 {
		resp.Body = newIdleBody(resp.Body, c.readTimeout, cancel)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorContent))

		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   endpoint,
			Message:    strings.TrimSpace(string(body)),
		}
		if code, reason, ok := decodeServerError(body); ok {
			apiErr.Code = code
			apiErr.Reason = reason
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}

		c.logger.LogAPIError(endpoint, resp.StatusCode, fmt.Errorf("%s", apiErr.Message))
		return nil, apiErr
	}

	return resp, nil
}

// readError classifies a failure while decoding a response body
func readError(resp *http.Response, endpoint string, err error) error {
	if timeoutErr := timeoutError(resp, endpoint); timeoutErr != nil {
		return timeoutErr
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &NetworkError{Operation: "read_response", Endpoint: endpoint, Err: err}
	}
	return err
}

// timeoutError returns a NetworkError when the body was cut off for going idle
func timeoutError(resp *http.Response, endpoint string) error {
	body, ok := resp.Body.(*idleBody)
	if !ok || !body.expired() {
		return nil
	}
	return &NetworkError{
		Operation: "read_response",
		Endpoint:  endpoint,
		Err:       fmt.Errorf("%w: no data for %s", errReadTimeout, body.timeout),
	}
}

// idleBody cancels its request when no data arrives within timeout. Every
// read that returns data restarts the clock.
type idleBody struct {
	io.ReadCloser
	timeout time.Duration
	timer   *time.Timer
	cancel  context.CancelCauseFunc
	fired   atomic.Bool
}

func newIdleBody(body io.ReadCloser, timeout time.Duration, cancel context.CancelCauseFunc) *idleBody {
	b := &idleBody{ReadCloser: body, timeout: timeout, cancel: cancel}
	b.timer = time.AfterFunc(timeout, func() {
		b.fired.Store(true)
		cancel(errReadTimeout)
	})
	return b
}

func (b *idleBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if n > 0 && !b.fired.Load() {
		b.timer.Reset(b.timeout)
	}
	return n, err
}

func (b *idleBody) Close() error {
	b.timer.Stop()
	err := b.ReadCloser.Close()
	b.cancel(nil)
	return err
}

func (b *idleBody) expired() bool {
	return b.fired.Load()
}
