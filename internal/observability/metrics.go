package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the acquisition pipeline.
// All collectors are registered via promauto against the provided registerer.
type Metrics struct {
	// CrawlsStarted counts crawl runs initiated.
	CrawlsStarted prometheus.Counter

	// CrawlsCompleted counts crawl runs that ran to completion.
	CrawlsCompleted prometheus.Counter

	// CrawlsStopped counts crawl runs ended by a cooperative stop request.
	CrawlsStopped prometheus.Counter

	// PagesCrawled counts result pages processed, labeled by source.
	PagesCrawled *prometheus.CounterVec

	// PageDuration observes per-page processing duration in seconds, labeled by source.
	PageDuration *prometheus.HistogramVec

	// PapersSaved counts papers accepted and persisted, labeled by source.
	PapersSaved *prometheus.CounterVec

	// PapersDuplicate counts candidates rejected as already known, labeled by source.
	PapersDuplicate *prometheus.CounterVec

	// PapersFiltered counts candidates rejected by configured filters, labeled by source.
	PapersFiltered *prometheus.CounterVec

	// PapersDiscarded counts items dropped for a missing title or identity, labeled by source.
	PapersDiscarded *prometheus.CounterVec

	// DetailFetches counts secondary navigations to item detail pages, labeled by source.
	DetailFetches *prometheus.CounterVec

	// FeedFetches counts feed fetch attempts, labeled by outcome (ok, error).
	FeedFetches *prometheus.CounterVec

	// BrowserRestarts counts automation session reinitializations after a disconnect.
	BrowserRestarts prometheus.Counter

	// PageRetries counts page-processing retry attempts, labeled by source.
	PageRetries *prometheus.CounterVec

	// EventsPublished counts saved-paper events published downstream, labeled by outcome.
	EventsPublished *prometheus.CounterVec
}

// NewMetrics creates and registers all pipeline metrics with reg.
// Pass prometheus.DefaultRegisterer in production; tests use a fresh registry
// to avoid duplicate registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CrawlsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "acquisition_crawls_started_total",
			Help: "Total crawl runs initiated.",
		}),
		CrawlsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "acquisition_crawls_completed_total",
			Help: "Total crawl runs that ran to completion.",
		}),
		CrawlsStopped: factory.NewCounter(prometheus.CounterOpts{
			Name: "acquisition_crawls_stopped_total",
			Help: "Total crawl runs ended by a stop request.",
		}),
		PagesCrawled: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "acquisition_pages_crawled_total",
			Help: "Result pages processed per source.",
		}, []string{"source"}),
		PageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "acquisition_page_duration_seconds",
			Help:    "Per-page processing duration.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"source"}),
		PapersSaved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "acquisition_papers_saved_total",
			Help: "Papers accepted and persisted per source.",
		}, []string{"source"}),
		PapersDuplicate: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "acquisition_papers_duplicate_total",
			Help: "Candidates rejected as already known per source.",
		}, []string{"source"}),
		PapersFiltered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "acquisition_papers_filtered_total",
			Help: "Candidates rejected by configured filters per source.",
		}, []string{"source"}),
		PapersDiscarded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "acquisition_papers_discarded_total",
			Help: "Items dropped for a missing title or identity per source.",
		}, []string{"source"}),
		DetailFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "acquisition_detail_fetches_total",
			Help: "Secondary item-page navigations per source.",
		}, []string{"source"}),
		FeedFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "acquisition_feed_fetches_total",
			Help: "Feed fetch attempts by outcome.",
		}, []string{"outcome"}),
		BrowserRestarts: factory.NewCounter(prometheus.CounterOpts{
			Name: "acquisition_browser_restarts_total",
			Help: "Automation session reinitializations after a disconnect.",
		}),
		PageRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "acquisition_page_retries_total",
			Help: "Page-processing retry attempts per source.",
		}, []string{"source"}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "acquisition_events_published_total",
			Help: "Saved-paper events published downstream by outcome.",
		}, []string{"outcome"}),
	}
}
