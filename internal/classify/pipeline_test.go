// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftline Contributors

package classify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/driftline-dev/driftline/internal/catalog"
	"github.com/driftline-dev/driftline/internal/classify"
	"github.com/driftline-dev/driftline/internal/store"
	dlerr "github.com/driftline-dev/driftline/pkg/errors"
	"github.com/driftline-dev/driftline/pkg/vector"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticSource serves a fixed catalog.
type staticSource struct{ cat *catalog.Catalog }

func (s *staticSource) Snapshot() *catalog.Catalog { return s.cat }

// fakeStore is an in-memory SignalStore for pipeline tests.
type fakeStore struct {
	saved     []*store.Signal
	errOnSave error
}

func (f *fakeStore) SaveSignal(_ context.Context, sig *store.Signal) error {
	if f.errOnSave != nil {
		return f.errOnSave
	}
	if sig.ID == "" {
		sig.ID = uuid.NewString()
	}
	f.saved = append(f.saved, sig)
	return nil
}

func (f *fakeStore) GetSignal(context.Context, string) (*store.Signal, error) {
	return nil, store.ErrNotFound
}
func (f *fakeStore) GetUnsynced(context.Context) ([]*store.Signal, error) { return nil, nil }
func (f *fakeStore) GetRecent(context.Context, int) ([]*store.Signal, error) {
	return f.saved, nil
}
func (f *fakeStore) MarkSynced(context.Context, []string) error { return nil }
func (f *fakeStore) CleanupOldSignals(context.Context, time.Duration) (int64, error) {
	return 0, nil
}
func (f *fakeStore) Stats(context.Context) (*store.SignalStats, error) { return nil, nil }
func (f *fakeStore) Close() error                                      { return nil }

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{Spaces: []*catalog.Space{
		{
			ID:   "space-prog",
			Name: "Programming",
			Subspaces: []*catalog.Subspace{
				{
					ID:       "sub-go",
					Markers:  []string{"golang", "goroutine"},
					Centroid: vector.Vector{"golang": 1, "goroutine": 1, "channel": 1},
				},
				{
					ID:       "sub-rust",
					Markers:  []string{"rust"},
					Centroid: vector.Vector{"rust": 1, "ownership": 1},
				},
			},
		},
		{
			ID:   "space-cook",
			Name: "Cooking",
			Subspaces: []*catalog.Subspace{
				{
					ID:       "sub-bread",
					Markers:  []string{"sourdough"},
					Centroid: vector.Vector{"sourdough": 1, "starter": 1},
				},
			},
		},
	}}
}

func newTestPipeline(t *testing.T, fs *fakeStore, opts classify.Options) *classify.Pipeline {
	t.Helper()
	return classify.NewPipeline(&staticSource{cat: testCatalog()}, fs, opts, nil)
}

func TestClassify_MatchesBestSubspace(t *testing.T) {
	fs := &fakeStore{}
	p := newTestPipeline(t, fs, classify.Options{})

	sig, err := p.Classify(context.Background(), classify.Capture{
		URL:   "https://example.com/concurrency",
		Title: "Concurrency patterns",
		Text:  "golang goroutine channel patterns explained",
	})
	require.NoError(t, err)
	require.NotNil(t, sig)

	assert.Equal(t, "space-prog", sig.SpaceID)
	assert.Equal(t, "sub-go", sig.SubspaceID)
	assert.Greater(t, sig.Confidence, 0.5)
	assert.True(t, sig.Classified())
	require.Len(t, fs.saved, 1)
	assert.NotEmpty(t, fs.saved[0].ID)
}

func TestClassify_Stage1ShortCircuits(t *testing.T) {
	fs := &fakeStore{}
	p := newTestPipeline(t, fs, classify.Options{})

	// Mentions rust concepts without any literal marker: stage 1 excludes
	// everything, so no match even though the vectors would overlap.
	sig, err := p.Classify(context.Background(), classify.Capture{
		Text: "ownership and borrowing semantics",
	})
	require.NoError(t, err)
	assert.Nil(t, sig)
	assert.Empty(t, fs.saved)
}

func TestClassify_ThresholdIsInclusive(t *testing.T) {
	cat := &catalog.Catalog{Spaces: []*catalog.Space{{
		ID: "s1",
		Subspaces: []*catalog.Subspace{{
			ID:       "sub-1",
			Markers:  []string{"golang"},
			Centroid: vector.Vector{"golang": 1},
		}},
	}}}

	// Four tokens, one matching: similarity is exactly 0.5.
	text := "golang rustlang ziglang dlang"

	fs := &fakeStore{}
	p := classify.NewPipeline(&staticSource{cat: cat}, fs, classify.Options{Threshold: 0.5}, nil)
	sig, err := p.Classify(context.Background(), classify.Capture{Text: text})
	require.NoError(t, err)
	require.NotNil(t, sig, "similarity equal to threshold must match")
	assert.InDelta(t, 0.5, sig.Confidence, 1e-9)

	fs = &fakeStore{}
	p = classify.NewPipeline(&staticSource{cat: cat}, fs, classify.Options{Threshold: 0.51}, nil)
	sig, err = p.Classify(context.Background(), classify.Capture{Text: text})
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestClassify_TieBreaksToLowestSubspaceID(t *testing.T) {
	// Two subspaces with identical markers and centroids; the one with
	// the lexicographically lower id must win regardless of catalog order.
	cat := &catalog.Catalog{Spaces: []*catalog.Space{{
		ID: "s1",
		Subspaces: []*catalog.Subspace{
			{ID: "sub-b", Markers: []string{"golang"}, Centroid: vector.Vector{"golang": 1}},
			{ID: "sub-a", Markers: []string{"golang"}, Centroid: vector.Vector{"golang": 1}},
		},
	}}}

	fs := &fakeStore{}
	p := classify.NewPipeline(&staticSource{cat: cat}, fs, classify.Options{}, nil)

	sig, err := p.Classify(context.Background(), classify.Capture{Text: "golang tips"})
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, "sub-a", sig.SubspaceID)
}

func TestClassify_StoreUnclassified(t *testing.T) {
	fs := &fakeStore{}
	p := newTestPipeline(t, fs, classify.Options{StoreUnclassified: true})

	sig, err := p.Classify(context.Background(), classify.Capture{
		URL:  "https://example.com/nothing",
		Text: "completely unrelated content here",
	})
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.False(t, sig.Classified())
	assert.Empty(t, sig.SpaceID)
	assert.Zero(t, sig.Confidence)
	assert.Len(t, fs.saved, 1)
}

func TestClassify_EmptyTextRejected(t *testing.T) {
	p := newTestPipeline(t, &fakeStore{}, classify.Options{})
	_, err := p.Classify(context.Background(), classify.Capture{Text: "   "})
	require.Error(t, err)
	assert.True(t, dlerr.IsInvalidInput(err))
}

func TestClassify_StoreFailureSurfaces(t *testing.T) {
	boom := errors.New("disk full")
	fs := &fakeStore{errOnSave: boom}
	p := newTestPipeline(t, fs, classify.Options{})

	_, err := p.Classify(context.Background(), classify.Capture{Text: "golang goroutine"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, fs.saved, "no partial signal may be persisted")
}

func TestDetails_DiagnosticOnly(t *testing.T) {
	fs := &fakeStore{}
	p := newTestPipeline(t, fs, classify.Options{})

	scores := p.Details("golang goroutine channel patterns")
	require.Len(t, scores, 3, "every subspace appears, including stage-1 misses")

	assert.Equal(t, "sub-go", scores[0].SubspaceID)
	assert.True(t, scores[0].MarkerHit)
	assert.Greater(t, scores[0].Similarity, 0.0)

	// Stage-1 misses carry zero similarity.
	for _, s := range scores[1:] {
		if !s.MarkerHit {
			assert.Zero(t, s.Similarity)
		}
	}

	// Diagnostics never store anything.
	assert.Empty(t, fs.saved)
}
