// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	dlerr "github.com/driftline-dev/driftline/pkg/errors"
)

// defaultHTTPClient is the package-level HTTP client used by engine commands.
// Overridden in tests via httptest.
var defaultHTTPClient = &http.Client{
	Timeout: 5 * time.Second,
}

// engineClient provides HTTP access to a running driftline engine.
type engineClient struct {
	baseURL string
	http    *http.Client
}

// newEngineClient creates a client targeting the given host:port address.
func newEngineClient(addr string) *engineClient {
	return &engineClient{
		baseURL: "http://" + addr,
		http:    defaultHTTPClient,
	}
}

// getJSON performs a GET request and decodes the JSON response into dest.
func (c *engineClient) getJSON(path string, dest any) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return dlerr.Wrap(err, dlerr.CodeCLIRequestFailure, "building request")
	}
	return c.do(req, dest)
}

// postJSON performs a POST request with a JSON body and decodes the JSON
// response into dest. body may be nil.
func (c *engineClient) postJSON(path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return dlerr.Wrap(err, dlerr.CodeCLIRequestFailure, "encoding request body")
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return dlerr.Wrap(err, dlerr.CodeCLIRequestFailure, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dest)
}

func (c *engineClient) do(req *http.Request, dest any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		if isDialError(err) {
			return dlerr.New(dlerr.CodeCLIEngineNotRunning, "engine is not running (connection refused)")
		}
		return dlerr.Wrap(err, dlerr.CodeCLIRequestFailure, "request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return dlerr.Errorf(dlerr.CodeCLIRequestFailure, "engine returned status %d: %s", resp.StatusCode, string(body))
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return dlerr.Wrap(err, dlerr.CodeCLIResponseInvalid, "invalid response")
	}
	return nil
}

// isDialError returns true if err is a net dial error (connection refused, etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
