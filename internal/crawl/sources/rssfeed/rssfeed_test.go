package rssfeed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperharbor/acquisition-service/internal/crawl"
	"github.com/paperharbor/acquisition-service/internal/domain"
	"github.com/paperharbor/acquisition-service/internal/events"
	"github.com/paperharbor/acquisition-service/internal/feeds"
	"github.com/paperharbor/acquisition-service/internal/observability"
	"github.com/paperharbor/acquisition-service/internal/store"
)

func rssBody(feedTitle string, items ...string) string {
	body := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>%s</title>`, feedTitle)
	for _, item := range items {
		body += item
	}
	return body + `</channel></rss>`
}

func rssItem(guid, title, description string) string {
	return fmt.Sprintf(`<item>
<guid>%s</guid>
<title>%s</title>
<link>https://example.org/%s</link>
<description>%s</description>
<pubDate>Mon, 04 Mar 2024 10:00:00 GMT</pubDate>
</item>`, guid, title, guid, description)
}

func serveFeed(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestStrategy(t *testing.T, list *feeds.List) (*Strategy, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	reader := feeds.NewReader(feeds.ReaderConfig{Timeout: 5 * time.Second})
	return New(Config{RatePerMinute: 10000}, reader, list, metrics, zerolog.Nop()), metrics
}

func newFeedRun(target int, filters crawl.Filters, st store.PaperStore, metrics *observability.Metrics) *crawl.Run {
	retry := crawl.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond}
	return crawl.NewRun(target, filters, retry, st, events.Nop{}, metrics, zerolog.Nop())
}

func TestCrawlConvertsEntries(t *testing.T) {
	srv := serveFeed(t, rssBody("Nature Weekly",
		rssItem("item-1", "CRISPR Screens at Scale",
			"Pooled &lt;i&gt;CRISPR&lt;/i&gt; screening in CO&lt;sub&gt;2&lt;/sub&gt; rich media."),
	))

	list := feeds.NewList()
	require.NoError(t, list.Add(srv.URL, "Nature Weekly"))
	strategy, metrics := newTestStrategy(t, list)
	st := store.NewMemory()
	run := newFeedRun(10, crawl.Filters{}, st, metrics)

	require.NoError(t, strategy.Crawl(context.Background(), run))
	require.Equal(t, 1, st.Len())

	saved := st.All()[0]
	assert.Equal(t, domain.HashKey("feed", "item-1"), saved.NaturalKey)
	assert.Equal(t, "CRISPR Screens at Scale", saved.Title)
	assert.Equal(t, "Pooled CRISPR screening in CO₂ rich media.", saved.Abstract)
	assert.Equal(t, "Nature Weekly", saved.Venue)
	assert.Equal(t, domain.SourceTypeRSS, saved.Source)
	assert.Contains(t, saved.Keywords, "crispr")
	require.NotNil(t, saved.PublishedAt)
	assert.Equal(t, 2024, saved.PublishedAt.Year())
	assert.Equal(t, []string{"Unknown (rss)"}, saved.Authors)
}

func TestCrawlMarksFeedHealth(t *testing.T) {
	good := serveFeed(t, rssBody("Good Feed", rssItem("g-1", "A Finding", "desc")))
	broken := serveFeed(t, "this is not XML {{{")
	alsoGood := serveFeed(t, rssBody("Also Good", rssItem("a-1", "Another Finding", "desc")))

	list := feeds.NewList()
	require.NoError(t, list.Add(good.URL, "Good Feed"))
	require.NoError(t, list.Add(broken.URL, "Broken Feed"))
	require.NoError(t, list.Add(alsoGood.URL, "Also Good"))

	strategy, metrics := newTestStrategy(t, list)
	st := store.NewMemory()
	run := newFeedRun(10, crawl.Filters{}, st, metrics)

	require.NoError(t, strategy.Crawl(context.Background(), run),
		"one unusable feed never fails the source")
	assert.Equal(t, 2, st.Len(), "entries from the healthy feeds still land")

	byName := map[string]feeds.Feed{}
	for _, f := range list.All() {
		byName[f.Name] = f
	}
	assert.Equal(t, feeds.FeedStatusOK, byName["Good Feed"].Status)
	assert.Equal(t, feeds.FeedStatusOK, byName["Also Good"].Status)

	failed := byName["Broken Feed"]
	assert.Equal(t, feeds.FeedStatusError, failed.Status)
	assert.NotEmpty(t, failed.LastError)
	assert.Equal(t, "Broken Feed", failed.Name, "identity survives the failure")
	assert.Equal(t, broken.URL, failed.URL)
}

func TestCrawlPermissiveKeywordFilter(t *testing.T) {
	srv := serveFeed(t, rssBody("Journal Feed",
		rssItem("m-1", "Transformer Models in Genomics", "A deep learning approach."),
		rssItem("m-2", "Wetland Bird Observations", "Seasonal counts of waders."),
	))

	list := feeds.NewList()
	require.NoError(t, list.Add(srv.URL, "Journal Feed"))
	strategy, metrics := newTestStrategy(t, list)
	st := store.NewMemory()
	run := newFeedRun(10, crawl.Filters{Keywords: []string{"machine learning"}}, st, metrics)

	require.NoError(t, strategy.Crawl(context.Background(), run))
	require.Equal(t, 1, st.Len(), "related-term expansion matches the first entry only")
	assert.Equal(t, "Transformer Models in Genomics", st.All()[0].Title)
}

func TestCrawlRespectsTarget(t *testing.T) {
	srv := serveFeed(t, rssBody("Journal Feed",
		rssItem("t-1", "Entry One", "desc"),
		rssItem("t-2", "Entry Two", "desc"),
		rssItem("t-3", "Entry Three", "desc"),
	))

	list := feeds.NewList()
	require.NoError(t, list.Add(srv.URL, "Journal Feed"))
	strategy, metrics := newTestStrategy(t, list)
	st := store.NewMemory()
	run := newFeedRun(2, crawl.Filters{}, st, metrics)

	require.NoError(t, strategy.Crawl(context.Background(), run))
	assert.Equal(t, 2, st.Len())
	assert.True(t, run.TargetReached())
}

func TestCrawlLinkIdentityFallback(t *testing.T) {
	body := rssBody("No GUIDs", `<item>
<title>GUID-less Entry</title>
<link>https://example.org/guidless</link>
<description>desc</description>
</item>`)
	srv := serveFeed(t, body)

	list := feeds.NewList()
	require.NoError(t, list.Add(srv.URL, "No GUIDs"))
	strategy, metrics := newTestStrategy(t, list)
	st := store.NewMemory()
	run := newFeedRun(10, crawl.Filters{}, st, metrics)

	require.NoError(t, strategy.Crawl(context.Background(), run))
	require.Equal(t, 1, st.Len())
	assert.Equal(t, domain.HashKey("feed", "https://example.org/guidless"), st.All()[0].NaturalKey)
}
