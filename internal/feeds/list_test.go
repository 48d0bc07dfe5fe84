package feeds

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperharbor/acquisition-service/internal/domain"
)

func TestListAddRemove(t *testing.T) {
	l := NewList()

	require.NoError(t, l.Add("https://example.org/a.rss", "Journal A"))
	require.NoError(t, l.Add("https://example.org/b.rss", "Journal B"))

	err := l.Add("https://example.org/a.rss", "Duplicate")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	all := l.All()
	require.Len(t, all, 2)
	assert.Equal(t, "Journal A", all[0].Name)
	assert.Equal(t, FeedStatusPending, all[0].Status)

	require.NoError(t, l.Remove("https://example.org/a.rss"))
	assert.ErrorIs(t, l.Remove("https://example.org/a.rss"), domain.ErrNotFound)

	all = l.All()
	require.Len(t, all, 1)
	assert.Equal(t, "Journal B", all[0].Name)

	// Remaining entries still addressable after the index reshuffle.
	l.MarkOK("https://example.org/b.rss")
	assert.Equal(t, FeedStatusOK, l.All()[0].Status)
}

func TestListHealth(t *testing.T) {
	l := NewList()
	require.NoError(t, l.Add("https://example.org/bad.rss", "Broken Journal"))

	l.MarkError("https://example.org/bad.rss", "parse failure: unexpected EOF")

	all := l.All()
	require.Len(t, all, 1)
	assert.Equal(t, FeedStatusError, all[0].Status)
	assert.Equal(t, "Broken Journal", all[0].Name)
	assert.Equal(t, "https://example.org/bad.rss", all[0].URL)
	assert.Contains(t, all[0].LastError, "parse failure")
	assert.False(t, all[0].LastFetched.IsZero())
}

func TestListSnapshotIsolated(t *testing.T) {
	l := NewList()
	require.NoError(t, l.Add("https://example.org/a.rss", "Journal A"))

	snap := l.All()
	snap[0].Name = "mutated"
	assert.Equal(t, "Journal A", l.All()[0].Name)
}
