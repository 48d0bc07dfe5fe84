package crawl

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperharbor/acquisition-service/internal/domain"
	"github.com/paperharbor/acquisition-service/internal/observability"
	"github.com/paperharbor/acquisition-service/internal/store"
)

func testMetrics() *observability.Metrics {
	return observability.NewMetrics(prometheus.NewRegistry())
}

// recordingPublisher captures published papers; optionally fails.
type recordingPublisher struct {
	mu     sync.Mutex
	papers []*domain.Paper
	err    error
}

func (p *recordingPublisher) PaperSaved(_ context.Context, paper *domain.Paper) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.papers = append(p.papers, paper)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.papers)
}

func newTestRun(target int, filters Filters, st store.PaperStore, pub *recordingPublisher) *Run {
	if pub == nil {
		pub = &recordingPublisher{}
	}
	return NewRun(target, filters, DefaultRetryPolicy(), st, pub, testMetrics(), zerolog.Nop())
}

func paperWithKey(key, title string) *domain.Paper {
	return &domain.Paper{NaturalKey: key, Title: title, Source: domain.SourceTypePubMed}
}

func TestRunOfferSavesAndPublishes(t *testing.T) {
	st := store.NewMemory()
	pub := &recordingPublisher{}
	run := newTestRun(10, Filters{}, st, pub)

	saved, err := run.Offer(context.Background(), "pubmed", paperWithKey("doi:10.1/a", "Paper A"))
	require.NoError(t, err)
	assert.True(t, saved)
	assert.Equal(t, 1, run.Saved())
	assert.Equal(t, 1, pub.published())
}

func TestRunOfferRejectsInvalid(t *testing.T) {
	st := store.NewMemory()
	run := newTestRun(10, Filters{}, st, nil)

	saved, err := run.Offer(context.Background(), "pubmed", &domain.Paper{Title: "no identity"})
	require.NoError(t, err)
	assert.False(t, saved)
	assert.Equal(t, 0, run.Saved())
}

func TestRunOfferDedupsWithinRun(t *testing.T) {
	st := store.NewMemory()
	run := newTestRun(10, Filters{}, st, nil)
	ctx := context.Background()

	first, err := run.Offer(ctx, "pubmed", paperWithKey("doi:10.1/a", "Paper A"))
	require.NoError(t, err)
	assert.True(t, first)

	second, err := run.Offer(ctx, "biorxiv", paperWithKey("doi:10.1/a", "Paper A mirrored"))
	require.NoError(t, err)
	assert.False(t, second, "same identity from a second source must not save twice")
	assert.Equal(t, 1, run.Saved())
	assert.Equal(t, 1, st.Len())
}

func TestRunOfferSkipsKnownPapers(t *testing.T) {
	st := store.NewMemory()
	_, err := st.Save(context.Background(), paperWithKey("doi:10.1/a", "Paper A"))
	require.NoError(t, err)

	// A fresh run against a populated store: idempotent re-crawl.
	run := newTestRun(10, Filters{}, st, nil)
	saved, err := run.Offer(context.Background(), "pubmed", paperWithKey("doi:10.1/a", "Paper A"))
	require.NoError(t, err)
	assert.False(t, saved)
	assert.Equal(t, 0, run.Saved())
	assert.Equal(t, 1, st.Len())
}

func TestRunOfferAppliesFilters(t *testing.T) {
	st := store.NewMemory()
	run := newTestRun(10, Filters{Keywords: []string{"machine learning"}}, st, nil)
	ctx := context.Background()

	matching := &domain.Paper{
		NaturalKey: "doi:10.1/ml",
		Title:      "Machine Learning for Docking",
		Source:     domain.SourceTypePubMed,
	}
	nonMatching := &domain.Paper{
		NaturalKey: "doi:10.1/synbio",
		Title:      "A Synthetic Biology Toolkit",
		Source:     domain.SourceTypePubMed,
	}

	saved, err := run.Offer(ctx, "pubmed", matching)
	require.NoError(t, err)
	assert.True(t, saved)

	saved, err = run.Offer(ctx, "pubmed", nonMatching)
	require.NoError(t, err)
	assert.False(t, saved)
	assert.Equal(t, 1, st.Len())
}

func TestRunPublishFailureDoesNotFailOffer(t *testing.T) {
	st := store.NewMemory()
	pub := &recordingPublisher{err: errors.New("broker down")}
	run := newTestRun(10, Filters{}, st, pub)

	saved, err := run.Offer(context.Background(), "pubmed", paperWithKey("doi:10.1/a", "Paper A"))
	require.NoError(t, err)
	assert.True(t, saved, "persistence succeeds even when publishing fails")
	assert.Equal(t, 1, st.Len())
}

func TestRunTargetAccounting(t *testing.T) {
	st := store.NewMemory()
	run := newTestRun(2, Filters{}, st, nil)
	ctx := context.Background()

	assert.Equal(t, 2, run.Remaining())
	assert.False(t, run.TargetReached())

	_, err := run.Offer(ctx, "pubmed", paperWithKey("doi:10.1/a", "A"))
	require.NoError(t, err)
	_, err = run.Offer(ctx, "pubmed", paperWithKey("doi:10.1/b", "B"))
	require.NoError(t, err)

	assert.True(t, run.TargetReached())
	assert.True(t, run.Done())
	assert.Equal(t, 0, run.Remaining())
}

func TestRunStop(t *testing.T) {
	run := newTestRun(10, Filters{}, store.NewMemory(), nil)

	assert.False(t, run.Stopping())
	run.Stop()
	assert.True(t, run.Stopping())
	assert.True(t, run.Done())
}

func TestRunNoTarget(t *testing.T) {
	run := newTestRun(0, Filters{}, store.NewMemory(), nil)

	assert.Equal(t, -1, run.Remaining())
	assert.False(t, run.TargetReached())
}
