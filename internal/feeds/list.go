package feeds

import (
	"strings"
	"sync"
	"time"

	"github.com/paperharbor/acquisition-service/internal/domain"
)

// FeedStatus is the operational health of one configured feed.
type FeedStatus string

const (
	FeedStatusPending FeedStatus = "pending"
	FeedStatusOK      FeedStatus = "ok"
	FeedStatusError   FeedStatus = "error"
)

// Feed is one configured feed endpoint with its health snapshot.
type Feed struct {
	URL         string     `json:"url"`
	Name        string     `json:"name"`
	Status      FeedStatus `json:"status"`
	LastError   string     `json:"lastError,omitempty"`
	LastFetched time.Time  `json:"lastFetched,omitempty"`
}

// List is the managed feed collection shared between the RSS strategy and the
// feed-management surface. It is constructed by the host and passed in; it is
// safe for concurrent use.
type List struct {
	mu    sync.RWMutex
	feeds []Feed
	index map[string]int
}

// NewList creates an empty feed list.
func NewList() *List {
	return &List{index: make(map[string]int)}
}

// Add registers a feed endpoint. Returns domain.ErrAlreadyExists when the URL
// is already registered.
func (l *List) Add(feedURL, name string) error {
	feedURL = strings.TrimSpace(feedURL)
	name = strings.TrimSpace(name)
	if feedURL == "" {
		return domain.ErrInvalidInput
	}
	if name == "" {
		name = feedURL
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.index[feedURL]; ok {
		return &domain.AlreadyExistsError{NaturalKey: feedURL}
	}
	l.index[feedURL] = len(l.feeds)
	l.feeds = append(l.feeds, Feed{URL: feedURL, Name: name, Status: FeedStatusPending})
	return nil
}

// Remove deletes a feed endpoint. Returns domain.ErrNotFound when the URL is
// not registered.
func (l *List) Remove(feedURL string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.index[feedURL]
	if !ok {
		return &domain.NotFoundError{Entity: "feed", Key: feedURL}
	}
	l.feeds = append(l.feeds[:i], l.feeds[i+1:]...)
	delete(l.index, feedURL)
	for j := i; j < len(l.feeds); j++ {
		l.index[l.feeds[j].URL] = j
	}
	return nil
}

// All returns a snapshot of every configured feed in registration order.
func (l *List) All() []Feed {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Feed, len(l.feeds))
	copy(out, l.feeds)
	return out
}

// MarkOK records a successful fetch of the feed.
func (l *List) MarkOK(feedURL string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i, ok := l.index[feedURL]; ok {
		l.feeds[i].Status = FeedStatusOK
		l.feeds[i].LastError = ""
		l.feeds[i].LastFetched = time.Now().UTC()
	}
}

// MarkError records a failed fetch; the feed's name and URL stay intact so the
// failure remains attributable.
func (l *List) MarkError(feedURL, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i, ok := l.index[feedURL]; ok {
		l.feeds[i].Status = FeedStatusError
		l.feeds[i].LastError = message
		l.feeds[i].LastFetched = time.Now().UTC()
	}
}
