// Package feeds provides RSS/Atom fetching, entry sanitization, and the
// managed feed list with per-feed health.
package feeds

import (
	"context"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/paperharbor/acquisition-service/internal/domain"
)

const defaultUserAgent = "paperharbor-acquisition/1.0 (+https://github.com/paperharbor/acquisition-service)"

// ReaderConfig configures the feed reader.
type ReaderConfig struct {
	// Timeout bounds one feed fetch.
	Timeout time.Duration

	// UserAgent is sent with every fetch.
	UserAgent string
}

// Reader fetches and parses RSS/Atom resources. Malformed or partially
// populated feeds surface as a domain.FeedError for that feed only.
type Reader struct {
	parser *gofeed.Parser
}

// NewReader creates a feed reader.
func NewReader(cfg ReaderConfig) *Reader {
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	parser := gofeed.NewParser()
	parser.UserAgent = cfg.UserAgent
	parser.Client = &http.Client{Timeout: cfg.Timeout}
	return &Reader{parser: parser}
}

// Fetch retrieves and parses one feed.
func (r *Reader) Fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, &domain.FeedError{URL: feedURL, Cause: err}
	}
	return feed, nil
}
