package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions. Typed errors below unwrap to these
// so call sites can branch with errors.Is.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a natural-key collision. During a crawl this
	// means "already ingested" and is never treated as a failure.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEnvironment indicates that the browser automation session could not
	// start. Fatal to the current source; the run continues with the rest.
	ErrEnvironment = errors.New("automation environment unavailable")

	// ErrSessionLost indicates that an automation session died mid-run and
	// must be reinitialized before the page can be retried.
	ErrSessionLost = errors.New("automation session lost")

	// ErrNavigation indicates a page load failure.
	ErrNavigation = errors.New("navigation failed")

	// ErrTimeout indicates a page load or selector wait that timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrExtraction indicates that DOM extraction failed for a page or item.
	ErrExtraction = errors.New("extraction failed")

	// ErrFeed indicates that a single feed could not be fetched or parsed.
	ErrFeed = errors.New("feed unusable")

	// ErrCrawlActive indicates that a crawl was requested while one is
	// already running. At most one crawl runs at a time.
	ErrCrawlActive = errors.New("crawl already active")

	// ErrNoCrawl indicates a stop request with no crawl in progress.
	ErrNoCrawl = errors.New("no crawl in progress")
)

// NavigationError reports a failed page load.
type NavigationError struct {
	URL   string
	Cause error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate %s: %v", e.URL, e.Cause)
}

func (e *NavigationError) Unwrap() error { return ErrNavigation }

// TimeoutError reports a page load or selector wait that exceeded its budget.
type TimeoutError struct {
	Op       string
	Selector string
}

func (e *TimeoutError) Error() string {
	if e.Selector != "" {
		return fmt.Sprintf("%s timed out waiting for %q", e.Op, e.Selector)
	}
	return fmt.Sprintf("%s timed out", e.Op)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// ExtractionError reports a failed DOM extraction. Sibling items on the same
// page are unaffected.
type ExtractionError struct {
	Source string
	Cause  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract from %s: %v", e.Source, e.Cause)
}

func (e *ExtractionError) Unwrap() error { return ErrExtraction }

// FeedError reports one unusable feed. The remaining feeds still process.
type FeedError struct {
	URL   string
	Cause error
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("feed %s: %v", e.URL, e.Cause)
}

func (e *FeedError) Unwrap() error { return ErrFeed }

// AlreadyExistsError reports a natural-key collision on save.
type AlreadyExistsError struct {
	NaturalKey string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("paper already exists: %s", e.NaturalKey)
}

func (e *AlreadyExistsError) Unwrap() error { return ErrAlreadyExists }

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }
