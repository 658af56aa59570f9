// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

// Package classify turns raw page text into classified signals. Stage 1
// is literal marker matching, stage 2 is centroid cosine similarity; a
// page is attributed to at most one subspace. Both stages are cheap by
// design — no model, no network, milliseconds per page.
package classify

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/driftline-dev/driftline/internal/catalog"
	"github.com/driftline-dev/driftline/internal/store"
	dlerr "github.com/driftline-dev/driftline/pkg/errors"
)

// DefaultThreshold is the stage-2 relevance floor when config does not
// override it.
const DefaultThreshold = 0.15

// maxPayloadBytes caps the page-text excerpt persisted with a signal.
const maxPayloadBytes = 4096

// Capture is one page observation handed in by the extension host.
type Capture struct {
	URL        string
	Title      string
	Text       string
	CapturedAt time.Time
}

// Options tunes the pipeline.
type Options struct {
	// Threshold is the inclusive stage-2 relevance floor. Zero falls back
	// to DefaultThreshold.
	Threshold float64
	// StoreUnclassified persists captures that match nothing, with empty
	// space/subspace ids. When false such captures are dropped.
	StoreUnclassified bool
}

// Pipeline classifies captures against the catalog and persists the
// resulting signals.
type Pipeline struct {
	source catalog.Source
	store  store.SignalStore
	opts   Options
	logger *slog.Logger
}

// NewPipeline wires a pipeline. logger may be nil.
func NewPipeline(source catalog.Source, signals store.SignalStore, opts Options, logger *slog.Logger) *Pipeline {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{source: source, store: signals, opts: opts, logger: logger}
}

// Classify runs both stages over the capture and stores the resulting
// signal. Returns the stored signal, or (nil, nil) when the capture
// matched nothing and unclassified storage is disabled — a miss is not
// an error. A store failure surfaces to the caller with nothing
// persisted, so the host can retry the whole capture later.
func (p *Pipeline) Classify(ctx context.Context, cap Capture) (*store.Signal, error) {
	if strings.TrimSpace(cap.Text) == "" {
		return nil, dlerr.New(dlerr.CodeClassifyInputInvalid, "capture has no text")
	}

	cat := p.source.Snapshot()

	sig := &store.Signal{
		URL:        cap.URL,
		Title:      cap.Title,
		Payload:    truncate(cap.Text, maxPayloadBytes),
		CapturedAt: cap.CapturedAt,
	}

	if best, ok := bestMatch(cap.Text, cat, p.opts.Threshold); ok {
		sig.SpaceID = best.SpaceID
		sig.SubspaceID = best.SubspaceID
		sig.Confidence = best.Similarity
	} else if !p.opts.StoreUnclassified {
		p.logger.Debug("capture matched no subspace, dropping", "url", cap.URL)
		return nil, nil
	}

	if err := p.store.SaveSignal(ctx, sig); err != nil {
		return nil, dlerr.Wrap(err, dlerr.CodeStoreSignalSaveFailure, "storing classified signal",
			dlerr.Field("url", cap.URL),
			dlerr.FieldSubspaceID(sig.SubspaceID),
		)
	}

	p.logger.Debug("signal stored",
		"signal_id", sig.ID,
		"subspace_id", sig.SubspaceID,
		"confidence", sig.Confidence,
	)
	return sig, nil
}

// Details returns the full per-subspace score list for a capture,
// without storing anything.
func (p *Pipeline) Details(text string) []Score {
	return RelevanceDetails(text, p.source.Snapshot())
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	// Walk back over a partial UTF-8 sequence.
	for len(cut) > 0 && cut[len(cut)-1]&0xC0 == 0x80 {
		cut = cut[:len(cut)-1]
	}
	return cut
}
