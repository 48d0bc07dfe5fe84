package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/paperharbor/acquisition-service/internal/domain"
)

// Querier is the subset of pgxpool.Pool the store uses. Tests substitute a
// pgxmock pool.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres is the PostgreSQL-backed PaperStore.
type Postgres struct {
	db     Querier
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// Compile-time check that Postgres implements PaperStore.
var _ PaperStore = (*Postgres)(nil)

// NewPostgres connects a pool and verifies connectivity.
func NewPostgres(ctx context.Context, dsn string, logger zerolog.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{
		db:     pool,
		pool:   pool,
		logger: logger.With().Str("component", "paper-store").Logger(),
	}, nil
}

// NewPostgresWithDB creates a store over an existing querier. Used by tests.
func NewPostgresWithDB(db Querier, logger zerolog.Logger) *Postgres {
	return &Postgres{db: db, logger: logger}
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

const insertPaperSQL = `INSERT INTO papers
	(id, natural_key, title, abstract, authors, url, published_at, keywords, categories, venue, source, processed, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
ON CONFLICT (natural_key) DO NOTHING
RETURNING created_at`

// Save persists a new paper. A natural-key collision surfaces as
// domain.ErrAlreadyExists.
func (p *Postgres) Save(ctx context.Context, paper *domain.Paper) (*domain.Paper, error) {
	if !paper.Valid() {
		return nil, domain.ErrInvalidInput
	}

	saved := *paper
	if saved.ID == uuid.Nil {
		saved.ID = uuid.New()
	}
	now := time.Now().UTC()

	var createdAt time.Time
	err := p.db.QueryRow(ctx, insertPaperSQL,
		saved.ID, saved.NaturalKey, saved.Title, saved.Abstract, saved.Authors,
		saved.URL, saved.PublishedAt, saved.Keywords, saved.Categories,
		saved.Venue, string(saved.Source), saved.Processed, now,
	).Scan(&createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.AlreadyExistsError{NaturalKey: saved.NaturalKey}
		}
		return nil, fmt.Errorf("insert paper: %w", err)
	}

	saved.CreatedAt = createdAt
	saved.UpdatedAt = createdAt
	return &saved, nil
}

const findPaperSQL = `SELECT id, natural_key, title, abstract, authors, url, published_at, keywords, categories, venue, source, processed, created_at, updated_at
FROM papers WHERE natural_key = $1`

// FindByIdentity retrieves a paper by its natural key.
func (p *Postgres) FindByIdentity(ctx context.Context, naturalKey string) (*domain.Paper, error) {
	var (
		paper  domain.Paper
		source string
	)
	err := p.db.QueryRow(ctx, findPaperSQL, naturalKey).Scan(
		&paper.ID, &paper.NaturalKey, &paper.Title, &paper.Abstract,
		&paper.Authors, &paper.URL, &paper.PublishedAt, &paper.Keywords,
		&paper.Categories, &paper.Venue, &source, &paper.Processed,
		&paper.CreatedAt, &paper.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &domain.NotFoundError{Entity: "paper", Key: naturalKey}
		}
		return nil, fmt.Errorf("find paper: %w", err)
	}
	paper.Source = domain.SourceType(source)
	return &paper, nil
}

// Clear removes all stored papers.
func (p *Postgres) Clear(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM papers`); err != nil {
		return fmt.Errorf("clear papers: %w", err)
	}
	return nil
}
