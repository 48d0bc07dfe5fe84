package crawl

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/paperharbor/acquisition-service/internal/domain"
	"github.com/paperharbor/acquisition-service/internal/events"
	"github.com/paperharbor/acquisition-service/internal/feeds"
	"github.com/paperharbor/acquisition-service/internal/observability"
	"github.com/paperharbor/acquisition-service/internal/store"
)

// ManagerConfig carries the run defaults the manager applies to requests.
type ManagerConfig struct {
	DefaultTarget int
	Retry         RetryPolicy
}

// Snapshot is the aggregate view of the current or most recent crawl.
type Snapshot struct {
	Running       bool     `json:"isRunning"`
	CurrentSource string   `json:"currentSource,omitempty"`
	Target        int      `json:"target"`
	PapersFound   int      `json:"papersFound"`
	LastError     string   `json:"lastError,omitempty"`
	Sources       []Status `json:"sources"`
}

// Manager owns the crawl lifecycle: at most one run at a time, sources driven
// sequentially in descending confidence order, cooperative stop. It also
// fronts the feed list for the management surface.
type Manager struct {
	cfg       ManagerConfig
	registry  *Registry
	store     store.PaperStore
	publisher events.Publisher
	feeds     *feeds.List
	metrics   *observability.Metrics
	logger    zerolog.Logger

	mu      sync.Mutex
	run     *Run
	sources []Source
	running bool
	current string
	lastErr string
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager wires the crawl manager.
func NewManager(cfg ManagerConfig, registry *Registry, st store.PaperStore, pub events.Publisher, feedList *feeds.List, metrics *observability.Metrics, logger zerolog.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		registry:  registry,
		store:     st,
		publisher: pub,
		feeds:     feedList,
		metrics:   metrics,
		logger:    logger.With().Str("component", "crawl-manager").Logger(),
	}
}

// Start launches a crawl in the background and returns the initial snapshot.
// It returns domain.ErrCrawlActive when a run is already in progress and
// domain.ErrInvalidInput when the request names an unknown source.
func (m *Manager) Start(req Request) (Snapshot, error) {
	sources, err := m.registry.Resolve(req.Sources)
	if err != nil {
		return Snapshot{}, err
	}

	target := req.Target
	if target <= 0 {
		target = m.cfg.DefaultTarget
	}
	filters := Filters{
		Keywords:   req.Keywords,
		Categories: req.Categories,
		DateFrom:   req.DateFrom,
		DateTo:     req.DateTo,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return Snapshot{}, domain.ErrCrawlActive
	}

	run := NewRun(target, filters, m.cfg.Retry, m.store, m.publisher, m.metrics, m.logger)
	ctx, cancel := context.WithCancel(context.Background())

	m.run = run
	m.sources = sources
	m.running = true
	m.current = ""
	m.lastErr = ""
	m.cancel = cancel

	m.metrics.CrawlsStarted.Inc()
	m.logger.Info().Int("target", target).
		Int("sources", len(sources)).
		Strs("keywords", req.Keywords).
		Msg("crawl started")

	m.wg.Add(1)
	go m.execute(ctx, run, sources)

	snap := Snapshot{Running: true, Target: target, Sources: make([]Status, 0, len(sources))}
	for _, src := range sources {
		snap.Sources = append(snap.Sources, src.Status())
	}
	return snap, nil
}

// execute drives one source at a time until the run is done or every source
// is exhausted. A source failure is recorded and the run moves on.
func (m *Manager) execute(ctx context.Context, run *Run, sources []Source) {
	defer m.wg.Done()

	for _, src := range sources {
		if run.Done() || ctx.Err() != nil {
			break
		}

		m.mu.Lock()
		m.current = src.Name()
		m.mu.Unlock()

		logger := m.logger.With().Str("source", src.Name()).Logger()
		logger.Info().Int("confidence", src.Confidence()).Msg("source starting")

		if err := src.Initialize(ctx); err != nil {
			logger.Error().Err(err).Msg("source initialization failed")
			m.recordError(err.Error())
			continue
		}
		if err := src.Crawl(ctx, run); err != nil {
			logger.Error().Err(err).Msg("source crawl failed")
			m.recordError(err.Error())
		}
		src.Cleanup()
		logger.Info().Int("saved", run.Saved()).Msg("source finished")
	}

	m.mu.Lock()
	m.running = false
	m.current = ""
	m.mu.Unlock()

	if run.Stopping() {
		m.metrics.CrawlsStopped.Inc()
	} else {
		m.metrics.CrawlsCompleted.Inc()
	}
	m.logger.Info().Int("saved", run.Saved()).Bool("stopped", run.Stopping()).
		Msg("crawl finished")
}

func (m *Manager) recordError(msg string) {
	m.mu.Lock()
	m.lastErr = msg
	m.mu.Unlock()
}

// Stop requests cooperative termination of the active run and returns the
// state at the moment of the request. The run winds down asynchronously.
func (m *Manager) Stop() (Snapshot, error) {
	m.mu.Lock()
	if !m.running || m.run == nil {
		m.mu.Unlock()
		return Snapshot{}, domain.ErrNoCrawl
	}
	run := m.run
	m.mu.Unlock()

	run.Stop()
	m.logger.Info().Int("saved", run.Saved()).Msg("stop requested")
	return m.Status(), nil
}

// Status returns the aggregate state of the current or most recent crawl.
func (m *Manager) Status() Snapshot {
	m.mu.Lock()
	run := m.run
	sources := m.sources
	snap := Snapshot{
		Running:       m.running,
		CurrentSource: m.current,
		LastError:     m.lastErr,
	}
	m.mu.Unlock()

	if run != nil {
		snap.Target = run.Target
		snap.PapersFound = run.Saved()
	}
	snap.Sources = make([]Status, 0, len(sources))
	for _, src := range sources {
		snap.Sources = append(snap.Sources, src.Status())
	}
	return snap
}

// AddFeed registers a feed endpoint for the RSS source.
func (m *Manager) AddFeed(feedURL, name string) error {
	return m.feeds.Add(feedURL, name)
}

// RemoveFeed deletes a feed endpoint.
func (m *Manager) RemoveFeed(feedURL string) error {
	return m.feeds.Remove(feedURL)
}

// ListFeeds returns a snapshot of the configured feeds.
func (m *Manager) ListFeeds() []feeds.Feed {
	return m.feeds.All()
}

// Close stops any active run and waits for it to wind down.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.run != nil {
		m.run.Stop()
	}
	cancel := m.cancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}
