// Package store provides the paper store contract consumed by the crawl core
// and its in-memory and PostgreSQL implementations.
package store

import (
	"context"

	"github.com/paperharbor/acquisition-service/internal/domain"
)

// PaperStore persists canonical paper records and answers identity lookups.
// A record is owned by the store once saved; the crawl core only holds a
// transient, unsaved instance while building it.
type PaperStore interface {
	// FindByIdentity retrieves a paper by its natural key.
	// Returns domain.ErrNotFound when no matching paper exists.
	FindByIdentity(ctx context.Context, naturalKey string) (*domain.Paper, error)

	// Save persists a new paper and returns it with store-assigned fields
	// populated. A natural-key collision returns domain.ErrAlreadyExists;
	// callers treat that as "already ingested", never as a failure.
	// Returns domain.ErrInvalidInput when the record lacks a usable natural
	// key or title.
	Save(ctx context.Context, paper *domain.Paper) (*domain.Paper, error)

	// Clear removes all stored papers.
	Clear(ctx context.Context) error
}
