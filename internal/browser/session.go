// Package browser provides the browser automation adapter used by HTML
// source strategies. Strategies depend only on the Session interface; the
// single concrete implementation drives a headless Chrome via the DevTools
// protocol.
package browser

import (
	"context"
	"time"
)

// PageOptions configures the page opened by Setup.
type PageOptions struct {
	// Headers are extra HTTP headers applied to every request.
	Headers map[string]string

	// AllowedAssetHosts is a narrow allow-list of hosts whose stylesheet and
	// image requests are permitted. All other non-document, non-script,
	// non-XHR/fetch traffic is aborted to keep page loads fast.
	AllowedAssetHosts []string
}

// SelectorMap declares how to extract raw item records from a result page.
// All selectors are CSS; empty selectors yield empty fields.
type SelectorMap struct {
	// Container matches one element per result item.
	Container string

	// Title, Link, Identifier, Snippet, Authors and Date are evaluated
	// relative to each container element.
	Title      string
	Link       string
	Identifier string
	Snippet    string
	Authors    string
	Date       string
}

// RawItem is one unnormalized record extracted from a result page.
type RawItem struct {
	Title      string `json:"title"`
	Link       string `json:"link"`
	Identifier string `json:"identifier"`
	Snippet    string `json:"snippet"`
	Authors    string `json:"authors"`
	Date       string `json:"date"`
}

// Session is the capability abstraction over one headless-browser session.
// Implementations never retry; retry policy belongs to the caller.
type Session interface {
	// Initialize starts the browser process. Fails with domain.ErrEnvironment
	// when the browser cannot launch.
	Initialize(ctx context.Context) error

	// Setup opens a page, applies headers and viewport, and installs the
	// resource-filtering policy. Must be called after Initialize and before
	// the first Navigate.
	Setup(ctx context.Context, opts PageOptions) error

	// Navigate loads a URL, waits for the document to become ready, and then
	// applies the fixed settle delay for client-rendered content.
	Navigate(ctx context.Context, url string) error

	// WaitForSelector blocks until the selector is visible or the timeout elapses.
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error

	// Extract evaluates the selector map against the DOM and returns zero or
	// more raw item records. A page with no matching containers is not an error.
	Extract(ctx context.Context, sel SelectorMap) ([]RawItem, error)

	// EvaluateSelector returns one attribute ("text" for text content) of the
	// first element matching the selector, or "" when absent.
	EvaluateSelector(ctx context.Context, selector, attribute string) (string, error)

	// NextPageURL resolves the pagination link's href, or "" when there is no
	// next page.
	NextPageURL(ctx context.Context, selector string) (string, error)

	// Alive reports whether the session is still usable.
	Alive() bool

	// Cleanup releases the page and browser unconditionally. Safe to call
	// multiple times.
	Cleanup()
}
