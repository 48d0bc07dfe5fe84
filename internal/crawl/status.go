// Package crawl implements the acquisition pipeline: the source-strategy
// contract, the per-run crawl state, cross-source deduplication and
// filtering, and the orchestrator that drives registered sources.
package crawl

import (
	"sync"
	"time"
)

// Status is a snapshot of one source strategy's crawl progress.
// PapersFound is monotonically non-decreasing within a run; Running is never
// left true after the crawl call returns.
type Status struct {
	Source      string    `json:"source"`
	Running     bool      `json:"isRunning"`
	Page        int       `json:"currentPage"`
	PapersFound int       `json:"papersFound"`
	TotalPages  int       `json:"totalPages"`
	LastError   string    `json:"lastError,omitempty"`
	StartedAt   time.Time `json:"startedAt,omitempty"`
	FinishedAt  time.Time `json:"finishedAt,omitempty"`
}

// Tracker holds a strategy's mutable status. Readers always receive a copy,
// so a concurrent status query cannot corrupt in-flight counters.
type Tracker struct {
	mu     sync.RWMutex
	status Status
}

// NewTracker creates a tracker for the named source.
func NewTracker(source string) *Tracker {
	return &Tracker{status: Status{Source: source}}
}

// Begin resets the status for a new run.
func (t *Tracker) Begin(totalPages int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = Status{
		Source:     t.status.Source,
		Running:    true,
		Page:       1,
		TotalPages: totalPages,
		StartedAt:  time.Now().UTC(),
	}
}

// SetPage records the current page index.
func (t *Tracker) SetPage(page int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Page = page
}

// AddFound increments the papers-found counter. Negative deltas are ignored
// to preserve monotonicity.
func (t *Tracker) AddFound(delta int) {
	if delta <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.PapersFound += delta
}

// SetError records the most recent error message.
func (t *Tracker) SetError(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.LastError = message
}

// End marks the run finished, whether completed, stopped, or failed.
func (t *Tracker) End() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Running = false
	t.status.FinishedAt = time.Now().UTC()
}

// Snapshot returns an immutable copy of the current status.
func (t *Tracker) Snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}
