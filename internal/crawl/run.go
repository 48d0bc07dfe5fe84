package crawl

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/paperharbor/acquisition-service/internal/domain"
	"github.com/paperharbor/acquisition-service/internal/events"
	"github.com/paperharbor/acquisition-service/internal/observability"
	"github.com/paperharbor/acquisition-service/internal/store"
)

// Run holds the shared state of one crawl: target accounting, the stop flag,
// the in-run dedup set, and the filter/persist/publish pipeline every
// candidate paper goes through. Sources call Offer for each item they find.
type Run struct {
	Target  int
	Filters Filters
	Retry   RetryPolicy

	store     store.PaperStore
	publisher events.Publisher
	dedup     *DedupSet
	metrics   *observability.Metrics
	logger    zerolog.Logger

	saved   atomic.Int64
	stopped atomic.Bool
}

// NewRun assembles the state for a single crawl run.
func NewRun(target int, filters Filters, retry RetryPolicy, st store.PaperStore, pub events.Publisher, metrics *observability.Metrics, logger zerolog.Logger) *Run {
	return &Run{
		Target:    target,
		Filters:   filters,
		Retry:     retry,
		store:     st,
		publisher: pub,
		dedup:     NewDedupSet(),
		metrics:   metrics,
		logger:    logger,
	}
}

// Stop requests cooperative termination. Sources observe it between pages
// and between items.
func (r *Run) Stop() {
	r.stopped.Store(true)
}

// Stopping reports whether a stop has been requested.
func (r *Run) Stopping() bool {
	return r.stopped.Load()
}

// Saved returns the number of papers persisted so far in this run.
func (r *Run) Saved() int {
	return int(r.saved.Load())
}

// TargetReached reports whether the run has persisted its target count.
func (r *Run) TargetReached() bool {
	return r.Target > 0 && r.Saved() >= r.Target
}

// Remaining returns how many more papers the run wants, or -1 when the run
// has no target.
func (r *Run) Remaining() int {
	if r.Target <= 0 {
		return -1
	}
	left := r.Target - r.Saved()
	if left < 0 {
		return 0
	}
	return left
}

// Done reports whether the source should stop offering papers.
func (r *Run) Done() bool {
	return r.Stopping() || r.TargetReached()
}

// Offer runs one candidate through the pipeline: validity, in-run dedup,
// store lookup, filters, persist, publish. It returns true when the paper
// was persisted. A non-nil error indicates a store failure; duplicates and
// filter rejections are not errors.
func (r *Run) Offer(ctx context.Context, source string, paper *domain.Paper) (bool, error) {
	return r.offer(ctx, source, paper, r.Filters)
}

// OfferPermissive is Offer with related-term keyword expansion enabled. Feed
// sources use it because their entries carry sparse metadata that rarely
// repeats the exact query terms.
func (r *Run) OfferPermissive(ctx context.Context, source string, paper *domain.Paper) (bool, error) {
	filters := r.Filters
	filters.Permissive = true
	return r.offer(ctx, source, paper, filters)
}

func (r *Run) offer(ctx context.Context, source string, paper *domain.Paper, filters Filters) (bool, error) {
	if !paper.Valid() {
		r.metrics.PapersDiscarded.WithLabelValues(source).Inc()
		r.logger.Debug().Str("source", source).Str("title", paper.Title).
			Msg("discarding item without usable title or identity")
		return false, nil
	}

	if r.dedup.Contains(paper.NaturalKey) {
		r.metrics.PapersDuplicate.WithLabelValues(source).Inc()
		return false, nil
	}

	if _, err := r.store.FindByIdentity(ctx, paper.NaturalKey); err == nil {
		r.dedup.Add(paper.NaturalKey)
		r.metrics.PapersDuplicate.WithLabelValues(source).Inc()
		return false, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}

	if !filters.Accept(paper) {
		r.metrics.PapersFiltered.WithLabelValues(source).Inc()
		return false, nil
	}

	saved, err := r.store.Save(ctx, paper)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			r.dedup.Add(paper.NaturalKey)
			r.metrics.PapersDuplicate.WithLabelValues(source).Inc()
			return false, nil
		}
		return false, err
	}

	r.dedup.Add(saved.NaturalKey)
	r.saved.Add(1)
	r.metrics.PapersSaved.WithLabelValues(source).Inc()
	r.logger.Info().Str("source", source).
		Str("natural_key", saved.NaturalKey).
		Str("title", saved.Title).
		Int("saved", r.Saved()).
		Msg("paper saved")

	if err := r.publisher.PaperSaved(ctx, saved); err != nil {
		// Publishing is best effort; the paper is already persisted.
		r.metrics.EventsPublished.WithLabelValues("error").Inc()
		r.logger.Warn().Err(err).Str("natural_key", saved.NaturalKey).
			Msg("failed to publish saved-paper event")
	} else {
		r.metrics.EventsPublished.WithLabelValues("ok").Inc()
	}

	return true, nil
}
