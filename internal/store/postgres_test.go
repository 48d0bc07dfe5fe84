package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperharbor/acquisition-service/internal/domain"
)

func sampleUUID(t *testing.T) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse("7f9c24e8-3b12-4fef-91d0-18c8ba12a5e4")
	require.NoError(t, err)
	return id
}

// anyInsertArgs matches the 13 placeholder arguments of insertPaperSQL
// without asserting their values; pgxmock requires the argument count of an
// expectation to match the call.
func anyInsertArgs() []any {
	args := make([]any, 13)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func newMockStore(t *testing.T) (*Postgres, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithDB(mock, zerolog.Nop()), mock
}

func TestPostgresSave(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("INSERT INTO papers").
		WithArgs(anyInsertArgs()...).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))

	saved, err := s.Save(context.Background(), samplePaper("doi:10.1000/xyz"))
	require.NoError(t, err)
	assert.Equal(t, now, saved.CreatedAt)
	assert.Equal(t, now, saved.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveConflict(t *testing.T) {
	s, mock := newMockStore(t)

	// ON CONFLICT DO NOTHING yields no row for an existing natural key.
	mock.ExpectQuery("INSERT INTO papers").
		WithArgs(anyInsertArgs()...).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}))

	_, err := s.Save(context.Background(), samplePaper("doi:10.1000/xyz"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAlreadyExists))

	var aeErr *domain.AlreadyExistsError
	require.True(t, errors.As(err, &aeErr))
	assert.Equal(t, "doi:10.1000/xyz", aeErr.NaturalKey)
}

func TestPostgresSaveInvalid(t *testing.T) {
	s, _ := newMockStore(t)

	_, err := s.Save(context.Background(), &domain.Paper{Title: "no key"})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestPostgresFindByIdentity(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()
	published := now.Add(-24 * time.Hour)

	rows := pgxmock.NewRows([]string{
		"id", "natural_key", "title", "abstract", "authors", "url",
		"published_at", "keywords", "categories", "venue", "source",
		"processed", "created_at", "updated_at",
	}).AddRow(
		sampleUUID(t), "doi:10.1000/xyz", "Attention Is All You Need",
		"We propose a new network architecture.", []string{"Vaswani, A."},
		"https://example.org/paper", &published, []string{"transformers"},
		[]string{"cs.CL"}, "NeurIPS", "pubmed", false, now, now,
	)
	mock.ExpectQuery("SELECT (.+) FROM papers WHERE natural_key").
		WithArgs("doi:10.1000/xyz").
		WillReturnRows(rows)

	paper, err := s.FindByIdentity(context.Background(), "doi:10.1000/xyz")
	require.NoError(t, err)
	assert.Equal(t, "Attention Is All You Need", paper.Title)
	assert.Equal(t, domain.SourceTypePubMed, paper.Source)
	require.NotNil(t, paper.PublishedAt)
	assert.Equal(t, published, *paper.PublishedAt)
}

func TestPostgresFindMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM papers WHERE natural_key").
		WithArgs("doi:10.1/missing").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err := s.FindByIdentity(context.Background(), "doi:10.1/missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestPostgresClear(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM papers").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	require.NoError(t, s.Clear(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
