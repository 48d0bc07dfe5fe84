package crawl

import (
	"context"
	"time"
)

// Source is a paper acquisition strategy. The manager drives one source at a
// time: Initialize, Crawl until the run stops or the source is exhausted,
// then Cleanup. Status may be called concurrently from the HTTP surface.
type Source interface {
	// Name is the stable identifier used in requests and status output.
	Name() string

	// Confidence ranks sources for scheduling. Higher runs first.
	Confidence() int

	// Initialize prepares the source for a run, acquiring any sessions or
	// connections it needs.
	Initialize(ctx context.Context) error

	// Crawl acquires papers and offers them to the run until the target is
	// reached, the run is stopped, or the source has nothing left.
	Crawl(ctx context.Context, run *Run) error

	// Status reports the source's current progress.
	Status() Status

	// Cleanup releases resources acquired by Initialize.
	Cleanup()
}

// Request describes a crawl submitted by a client.
type Request struct {
	Target     int        `json:"target" validate:"omitempty,gt=0"`
	Sources    []string   `json:"sources" validate:"omitempty,dive,required"`
	Keywords   []string   `json:"keywords"`
	Categories []string   `json:"categories"`
	DateFrom   *time.Time `json:"dateFrom"`
	DateTo     *time.Time `json:"dateTo"`
}
