package crawl

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerLifecycle(t *testing.T) {
	tr := NewTracker("pubmed")

	snap := tr.Snapshot()
	assert.Equal(t, "pubmed", snap.Source)
	assert.False(t, snap.Running)

	tr.Begin(10)
	snap = tr.Snapshot()
	assert.True(t, snap.Running)
	assert.Equal(t, 1, snap.Page)
	assert.Equal(t, 10, snap.TotalPages)
	assert.False(t, snap.StartedAt.IsZero())

	tr.SetPage(3)
	tr.AddFound(2)
	tr.AddFound(1)
	tr.SetError("transient")

	snap = tr.Snapshot()
	assert.Equal(t, 3, snap.Page)
	assert.Equal(t, 3, snap.PapersFound)
	assert.Equal(t, "transient", snap.LastError)

	tr.End()
	snap = tr.Snapshot()
	assert.False(t, snap.Running)
	assert.False(t, snap.FinishedAt.IsZero())
}

func TestTrackerMonotonicFoundCount(t *testing.T) {
	tr := NewTracker("pubmed")
	tr.Begin(1)
	tr.AddFound(2)
	tr.AddFound(-5)
	tr.AddFound(0)

	assert.Equal(t, 2, tr.Snapshot().PapersFound)
}

func TestTrackerBeginResetsPreviousRun(t *testing.T) {
	tr := NewTracker("pubmed")
	tr.Begin(5)
	tr.AddFound(4)
	tr.SetError("old failure")
	tr.End()

	tr.Begin(7)
	snap := tr.Snapshot()
	assert.Zero(t, snap.PapersFound)
	assert.Empty(t, snap.LastError)
	assert.Equal(t, 7, snap.TotalPages)
}

func TestTrackerConcurrentReads(t *testing.T) {
	tr := NewTracker("pubmed")
	tr.Begin(100)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.AddFound(1)
				_ = tr.Snapshot()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, tr.Snapshot().PapersFound)
}

func TestDedupSet(t *testing.T) {
	d := NewDedupSet()

	assert.False(t, d.Contains("doi:10.1/a"))
	d.Add("doi:10.1/a")
	d.Add("doi:10.1/a")
	assert.True(t, d.Contains("doi:10.1/a"))
	assert.Equal(t, 1, d.Len())
}
