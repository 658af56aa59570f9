// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/driftline-dev/driftline/internal/catalog"
	"github.com/driftline-dev/driftline/internal/classify"
	"github.com/driftline-dev/driftline/internal/queue"
	"github.com/driftline-dev/driftline/internal/state"
	"github.com/driftline-dev/driftline/internal/store"
	dlerr "github.com/driftline-dev/driftline/pkg/errors"
	"github.com/driftline-dev/driftline/pkg/health"
)

// HealthReporter reports backend availability. Optional: nil means no
// remote backend is configured.
type HealthReporter interface {
	Health() health.Metrics
}

// Services are the dependencies the REST routes operate on.
type Services struct {
	Pipeline *classify.Pipeline
	Signals  store.SignalStore
	Queue    *queue.Queue
	Catalog  catalog.Source
	Bands    state.Bands
	Backend  HealthReporter
}

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "capture-signal",
		Method:      http.MethodPost,
		Path:        "/v1/signals",
		Summary:     "Capture and classify a page signal",
		Tags:        []string{"signals"},
	}, s.handleCaptureSignal)

	huma.Register(s.api, huma.Operation{
		OperationID: "recent-signals",
		Method:      http.MethodGet,
		Path:        "/v1/signals/recent",
		Summary:     "List recently captured signals",
		Tags:        []string{"signals"},
	}, s.handleRecentSignals)

	huma.Register(s.api, huma.Operation{
		OperationID: "queue-status",
		Method:      http.MethodGet,
		Path:        "/v1/queue/status",
		Summary:     "Sync queue and store status",
		Tags:        []string{"queue"},
	}, s.handleQueueStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "queue-sync",
		Method:      http.MethodPost,
		Path:        "/v1/queue/sync",
		Summary:     "Force an immediate sync drain",
		Tags:        []string{"queue"},
	}, s.handleQueueSync)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-spaces",
		Method:      http.MethodGet,
		Path:        "/v1/spaces",
		Summary:     "List spaces with derived subspace states",
		Tags:        []string{"catalog"},
	}, s.handleListSpaces)
}

// --- Request/Response types for huma ---

// SignalView is the wire form of a stored signal.
type SignalView struct {
	ID         string    `json:"id"`
	CapturedAt time.Time `json:"captured_at"`
	URL        string    `json:"url"`
	Title      string    `json:"title,omitempty"`
	SpaceID    string    `json:"space_id,omitempty"`
	SubspaceID string    `json:"subspace_id,omitempty"`
	Confidence float64   `json:"confidence"`
	Synced     bool      `json:"synced"`
}

func signalView(sig *store.Signal) SignalView {
	return SignalView{
		ID:         sig.ID,
		CapturedAt: sig.CapturedAt,
		URL:        sig.URL,
		Title:      sig.Title,
		SpaceID:    sig.SpaceID,
		SubspaceID: sig.SubspaceID,
		Confidence: sig.Confidence,
		Synced:     sig.Synced,
	}
}

type captureSignalInput struct {
	Body struct {
		URL        string     `json:"url" minLength:"1" doc:"Page URL"`
		Title      string     `json:"title,omitempty" doc:"Page title"`
		Text       string     `json:"text" minLength:"1" doc:"Extracted page text"`
		CapturedAt *time.Time `json:"captured_at,omitempty" doc:"Capture time, defaults to now"`
	}
}
type captureSignalOutput struct {
	Body struct {
		Stored bool        `json:"stored" doc:"Whether the capture was persisted"`
		Signal *SignalView `json:"signal,omitempty"`
	}
}

type recentSignalsInput struct {
	Limit int `query:"limit" default:"20" minimum:"1" maximum:"200" doc:"Max signals to return"`
}
type recentSignalsOutput struct {
	Body struct {
		Signals []SignalView `json:"signals"`
	}
}

type queueStatusOutput struct {
	Body struct {
		Syncing        bool               `json:"syncing"`
		NextSyncInSecs *float64           `json:"next_sync_in_seconds,omitempty" doc:"Seconds until the pending drain"`
		Stats          *store.SignalStats `json:"stats"`
		Backend        *health.Metrics    `json:"backend,omitempty" doc:"Backend health, absent when offline-only"`
	}
}

type queueSyncOutput struct {
	Body queue.Result
}

// SubspaceView is a catalog subspace with its derived state.
type SubspaceView struct {
	ID       string  `json:"id"`
	Name     string  `json:"name,omitempty"`
	Evidence float64 `json:"evidence"`
	State    string  `json:"state" enum:"latent,discovered,engaged,saturated"`
}

// SpaceView is a catalog space with derived subspace states.
type SpaceView struct {
	ID        string         `json:"id"`
	Name      string         `json:"name,omitempty"`
	Subspaces []SubspaceView `json:"subspaces"`
}

type listSpacesOutput struct {
	Body struct {
		Spaces []SpaceView `json:"spaces"`
	}
}

// --- Handlers ---

func (s *Server) handleCaptureSignal(ctx context.Context, input *captureSignalInput) (*captureSignalOutput, error) {
	cap := classify.Capture{
		URL:   input.Body.URL,
		Title: input.Body.Title,
		Text:  input.Body.Text,
	}
	if input.Body.CapturedAt != nil {
		cap.CapturedAt = *input.Body.CapturedAt
	}

	sig, err := s.services.Pipeline.Classify(ctx, cap)
	if err != nil {
		if dlerr.IsInvalidInput(err) {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		return nil, huma.Error500InternalServerError("classifying capture", err)
	}

	out := &captureSignalOutput{}
	if sig == nil {
		return out, nil
	}

	// A stored signal means new pending work: debounce a drain.
	s.services.Queue.Schedule(0)

	out.Body.Stored = true
	v := signalView(sig)
	out.Body.Signal = &v
	return out, nil
}

func (s *Server) handleRecentSignals(ctx context.Context, input *recentSignalsInput) (*recentSignalsOutput, error) {
	sigs, err := s.services.Signals.GetRecent(ctx, input.Limit)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing recent signals", err)
	}

	out := &recentSignalsOutput{}
	out.Body.Signals = make([]SignalView, len(sigs))
	for i, sig := range sigs {
		out.Body.Signals[i] = signalView(sig)
	}
	return out, nil
}

func (s *Server) handleQueueStatus(ctx context.Context, _ *struct{}) (*queueStatusOutput, error) {
	stats, err := s.services.Signals.Stats(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("reading store stats", err)
	}

	st := s.services.Queue.Status()

	out := &queueStatusOutput{}
	out.Body.Syncing = st.Syncing
	if st.NextSyncIn != nil {
		secs := st.NextSyncIn.Seconds()
		out.Body.NextSyncInSecs = &secs
	}
	out.Body.Stats = stats
	if s.services.Backend != nil {
		m := s.services.Backend.Health()
		out.Body.Backend = &m
	}
	return out, nil
}

func (s *Server) handleQueueSync(ctx context.Context, _ *struct{}) (*queueSyncOutput, error) {
	res := s.services.Queue.Force(ctx)
	if res.Aborted && res.Err != nil {
		return nil, huma.Error502BadGateway("sync drain aborted: " + res.Err.Error())
	}
	return &queueSyncOutput{Body: res}, nil
}

func (s *Server) handleListSpaces(_ context.Context, _ *struct{}) (*listSpacesOutput, error) {
	cat := s.services.Catalog.Snapshot()

	out := &listSpacesOutput{}
	out.Body.Spaces = make([]SpaceView, len(cat.Spaces))
	for i, sp := range cat.Spaces {
		view := SpaceView{
			ID:        sp.ID,
			Name:      sp.Name,
			Subspaces: make([]SubspaceView, len(sp.Subspaces)),
		}
		for j, sub := range sp.Subspaces {
			view.Subspaces[j] = SubspaceView{
				ID:       sub.ID,
				Name:     sub.Name,
				Evidence: sub.Evidence,
				State:    sub.State(s.services.Bands).String(),
			}
		}
		out.Body.Spaces[i] = view
	}
	return out, nil
}
