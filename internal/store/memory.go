package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paperharbor/acquisition-service/internal/domain"
)

// Memory is an in-memory PaperStore used for development and tests.
// It is safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	papers map[string]domain.Paper
}

// Compile-time check that Memory implements PaperStore.
var _ PaperStore = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{papers: make(map[string]domain.Paper)}
}

// FindByIdentity retrieves a paper by its natural key.
func (m *Memory) FindByIdentity(ctx context.Context, naturalKey string) (*domain.Paper, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	paper, ok := m.papers[naturalKey]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "paper", Key: naturalKey}
	}
	copied := paper
	return &copied, nil
}

// Save persists a new paper.
func (m *Memory) Save(ctx context.Context, paper *domain.Paper) (*domain.Paper, error) {
	if !paper.Valid() {
		return nil, domain.ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.papers[paper.NaturalKey]; ok {
		return nil, &domain.AlreadyExistsError{NaturalKey: paper.NaturalKey}
	}

	saved := *paper
	if saved.ID == uuid.Nil {
		saved.ID = uuid.New()
	}
	now := time.Now().UTC()
	saved.CreatedAt = now
	saved.UpdatedAt = now

	m.papers[saved.NaturalKey] = saved
	copied := saved
	return &copied, nil
}

// Clear removes all stored papers.
func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.papers = make(map[string]domain.Paper)
	return nil
}

// Len returns the number of stored papers.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.papers)
}

// All returns a snapshot of every stored paper, in no particular order.
func (m *Memory) All() []domain.Paper {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Paper, 0, len(m.papers))
	for _, p := range m.papers {
		out = append(out, p)
	}
	return out
}
