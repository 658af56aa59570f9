// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

// Package backend is the HTTP client for the remote driftline service:
// it delivers signal batches and fetches catalog definitions. The sync
// endpoint is idempotent per signal id, so retries and re-sent batches
// are always safe.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/driftline-dev/driftline/internal/catalog"
	"github.com/driftline-dev/driftline/internal/queue"
	"github.com/driftline-dev/driftline/internal/store"
	dlerr "github.com/driftline-dev/driftline/pkg/errors"
	"github.com/driftline-dev/driftline/pkg/health"
)

// Compile-time interface check.
var _ queue.Backend = (*Client)(nil)

const (
	defaultTimeout    = 15 * time.Second
	defaultMaxRetries = 2
	retryBaseDelay    = 500 * time.Millisecond
)

// Config holds backend connection settings.
type Config struct {
	BaseURL  string
	APIToken string
	// Timeout bounds each HTTP attempt so no sync call blocks forever.
	Timeout time.Duration
	// MaxRetries is the number of additional attempts on transient
	// (network / 5xx) failures within a single SyncSignals call.
	MaxRetries uint64
	// Cooldown configures the health tracker.
	Cooldown time.Duration
}

// Client talks to the remote backend over JSON/HTTP.
type Client struct {
	httpClient *http.Client
	cfg        Config
	health     *health.Tracker
	logger     *slog.Logger
}

// New creates a backend client. Returns an error if the base URL is missing.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, dlerr.New(dlerr.CodeBackendRequestInvalid, "backend: missing base_url in config")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		health:     health.NewTracker(cfg.Cooldown),
		logger:     logger,
	}, nil
}

// Health returns a snapshot of backend availability.
func (c *Client) Health() health.Metrics {
	return c.health.Snapshot()
}

// signalPayload is the wire form of one signal.
type signalPayload struct {
	ID         string    `json:"id"`
	CapturedAt time.Time `json:"captured_at"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Payload    string    `json:"payload"`
	SpaceID    string    `json:"space_id,omitempty"`
	SubspaceID string    `json:"subspace_id,omitempty"`
	Confidence float64   `json:"confidence"`
}

type syncRequest struct {
	Signals []signalPayload `json:"signals"`
}

// SyncSignals posts one batch to the backend. Transient failures are
// retried with exponential backoff inside the call; an exhausted retry
// budget surfaces as an error, which the queue counts as an ordinary
// batch failure.
func (c *Client) SyncSignals(ctx context.Context, batch []*store.Signal) (*queue.SyncResult, error) {
	if len(batch) == 0 {
		return &queue.SyncResult{Success: true}, nil
	}

	req := syncRequest{Signals: make([]signalPayload, len(batch))}
	for i, sig := range batch {
		req.Signals[i] = signalPayload{
			ID:         sig.ID,
			CapturedAt: sig.CapturedAt,
			URL:        sig.URL,
			Title:      sig.Title,
			Payload:    sig.Payload,
			SpaceID:    sig.SpaceID,
			SubspaceID: sig.SubspaceID,
			Confidence: sig.Confidence,
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, dlerr.Wrap(err, dlerr.CodeBackendRequestInvalid, "encoding sync batch")
	}

	var result queue.SyncResult
	err = c.doWithRetry(ctx, http.MethodPost, "/v1/signals:sync", body, &result)
	if err != nil {
		c.health.RecordFailure()
		return nil, err
	}

	c.health.RecordSuccess()
	return &result, nil
}

// FetchCatalog retrieves the backend's space/subspace definitions,
// including current evidence scores.
func (c *Client) FetchCatalog(ctx context.Context) (*catalog.Catalog, error) {
	var cat catalog.Catalog
	if err := c.doWithRetry(ctx, http.MethodGet, "/v1/catalog", nil, &cat); err != nil {
		c.health.RecordFailure()
		return nil, err
	}

	c.health.RecordSuccess()
	return &cat, nil
}

// doWithRetry performs one JSON round trip, retrying network errors and
// 5xx responses with exponential backoff. 4xx responses are permanent.
func (c *Client) doWithRetry(ctx context.Context, method, path string, body []byte, out any) error {
	backoff := retry.WithMaxRetries(c.cfg.MaxRetries, retry.NewExponential(retryBaseDelay))
	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + path

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return dlerr.Wrap(err, dlerr.CodeBackendRequestInvalid, "building backend request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if c.cfg.APIToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Timeouts and connection failures are transient.
			return retry.RetryableError(dlerr.Wrapf(err, dlerr.CodeBackendUpstreamFailure,
				"%s %s", method, path))
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode >= 500:
			return retry.RetryableError(dlerr.Errorf(dlerr.CodeBackendUpstreamFailure,
				"%s %s: backend returned %d", method, path, resp.StatusCode))
		case resp.StatusCode >= 400:
			return dlerr.Errorf(dlerr.CodeBackendUpstreamFailure,
				"%s %s: backend rejected request with %d", method, path, resp.StatusCode)
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return dlerr.Wrap(err, dlerr.CodeBackendResponseInvalid,
				fmt.Sprintf("decoding %s %s response", method, path))
		}
		return nil
	})
}
