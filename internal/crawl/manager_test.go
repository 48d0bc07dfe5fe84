package crawl

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperharbor/acquisition-service/internal/domain"
	"github.com/paperharbor/acquisition-service/internal/feeds"
	"github.com/paperharbor/acquisition-service/internal/store"
)

// fakeSource offers a fixed batch of papers when crawled.
type fakeSource struct {
	name       string
	confidence int
	papers     []*domain.Paper
	initErr    error
	crawlErr   error
	tracker    *Tracker
	crawled    atomic.Bool
}

func newFakeSource(name string, confidence int, count int) *fakeSource {
	s := &fakeSource{name: name, confidence: confidence, tracker: NewTracker(name)}
	for i := 0; i < count; i++ {
		s.papers = append(s.papers, &domain.Paper{
			NaturalKey: fmt.Sprintf("doi:10.1/%s-%d", name, i),
			Title:      fmt.Sprintf("%s paper %d", name, i),
			Source:     domain.SourceTypePubMed,
		})
	}
	return s
}

func (s *fakeSource) Name() string    { return s.name }
func (s *fakeSource) Confidence() int { return s.confidence }
func (s *fakeSource) Status() Status  { return s.tracker.Snapshot() }
func (s *fakeSource) Cleanup()        {}

func (s *fakeSource) Initialize(context.Context) error { return s.initErr }

func (s *fakeSource) Crawl(ctx context.Context, run *Run) error {
	s.crawled.Store(true)
	if s.crawlErr != nil {
		return s.crawlErr
	}
	s.tracker.Begin(1)
	defer s.tracker.End()
	for _, paper := range s.papers {
		if run.Done() {
			return nil
		}
		saved, err := run.Offer(ctx, s.name, paper)
		if err != nil {
			return err
		}
		if saved {
			s.tracker.AddFound(1)
		}
	}
	return nil
}

func newTestManager(t *testing.T, st store.PaperStore, sources ...Source) *Manager {
	t.Helper()
	registry := NewRegistry()
	for _, src := range sources {
		registry.Register(src)
	}
	cfg := ManagerConfig{
		DefaultTarget: 10,
		Retry:         RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond},
	}
	m := NewManager(cfg, registry, st, &recordingPublisher{}, feeds.NewList(), testMetrics(), zerolog.Nop())
	t.Cleanup(m.Close)
	return m
}

func waitForIdle(t *testing.T, m *Manager) Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if snap := m.Status(); !snap.Running {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("crawl did not finish in time")
	return Snapshot{}
}

func TestManagerRunsSourcesByConfidence(t *testing.T) {
	st := store.NewMemory()
	high := newFakeSource("alpha", 90, 3)
	low := newFakeSource("beta", 50, 3)
	m := newTestManager(t, st, low, high)

	_, err := m.Start(Request{Target: 10})
	require.NoError(t, err)
	snap := waitForIdle(t, m)

	assert.Equal(t, 6, snap.PapersFound)
	assert.Equal(t, 6, st.Len())
	assert.False(t, snap.Running)
}

func TestManagerStopsIssuingSourcesAtTarget(t *testing.T) {
	st := store.NewMemory()
	first := newFakeSource("alpha", 90, 5)
	second := newFakeSource("beta", 50, 5)
	m := newTestManager(t, st, first, second)

	_, err := m.Start(Request{Target: 3})
	require.NoError(t, err)
	snap := waitForIdle(t, m)

	assert.Equal(t, 3, snap.PapersFound, "progress must stop at the target")
	assert.True(t, first.crawled.Load())
	assert.False(t, second.crawled.Load(), "target was met before the second source")
}

func TestManagerRejectsConcurrentCrawl(t *testing.T) {
	release := make(chan struct{})
	m := newTestManager(t, store.NewMemory(), &slowSource{release: release})

	_, err := m.Start(Request{Target: 5})
	require.NoError(t, err)

	_, err = m.Start(Request{Target: 5})
	assert.True(t, errors.Is(err, domain.ErrCrawlActive))

	close(release)
	waitForIdle(t, m)

	// A finished crawl frees the slot.
	_, err = m.Start(Request{Target: 5})
	assert.NoError(t, err)
}

// slowSource blocks in Crawl until released.
type slowSource struct {
	release chan struct{}
}

func (s *slowSource) Name() string                       { return "slow" }
func (s *slowSource) Confidence() int                    { return 10 }
func (s *slowSource) Status() Status                     { return Status{Source: "slow"} }
func (s *slowSource) Cleanup()                           {}
func (s *slowSource) Initialize(context.Context) error   { return nil }
func (s *slowSource) Crawl(ctx context.Context, _ *Run) error {
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	return nil
}

func TestManagerContinuesPastFailingSource(t *testing.T) {
	st := store.NewMemory()
	broken := newFakeSource("alpha", 90, 0)
	broken.initErr = errors.New("browser missing")
	healthy := newFakeSource("beta", 50, 2)
	m := newTestManager(t, st, broken, healthy)

	_, err := m.Start(Request{Target: 10})
	require.NoError(t, err)
	snap := waitForIdle(t, m)

	assert.Equal(t, 2, snap.PapersFound)
	assert.Contains(t, snap.LastError, "browser missing")
	assert.True(t, healthy.crawled.Load())
}

func TestManagerStopWithNoCrawl(t *testing.T) {
	m := newTestManager(t, store.NewMemory(), newFakeSource("alpha", 90, 1))

	_, err := m.Stop()
	assert.True(t, errors.Is(err, domain.ErrNoCrawl))
}

func TestManagerStopEndsRun(t *testing.T) {
	release := make(chan struct{})
	m := newTestManager(t, store.NewMemory(), &slowSource{release: release})

	_, err := m.Start(Request{Target: 5})
	require.NoError(t, err)

	// The stop flag is observed by sources; unblock so the loop can exit.
	go func() { close(release) }()
	_, err = m.Stop()
	require.NoError(t, err)

	final := waitForIdle(t, m)
	assert.False(t, final.Running)
}

func TestManagerRejectsUnknownSource(t *testing.T) {
	m := newTestManager(t, store.NewMemory(), newFakeSource("alpha", 90, 1))

	_, err := m.Start(Request{Target: 5, Sources: []string{"scopus"}})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestManagerFeedDelegation(t *testing.T) {
	m := newTestManager(t, store.NewMemory(), newFakeSource("alpha", 90, 1))

	require.NoError(t, m.AddFeed("https://example.org/feed.xml", "Example"))
	assert.Len(t, m.ListFeeds(), 1)

	err := m.AddFeed("https://example.org/feed.xml", "Example")
	assert.True(t, errors.Is(err, domain.ErrAlreadyExists))

	require.NoError(t, m.RemoveFeed("https://example.org/feed.xml"))
	assert.Empty(t, m.ListFeeds())
}
