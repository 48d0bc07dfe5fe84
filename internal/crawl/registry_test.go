package crawl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperharbor/acquisition-service/internal/domain"
)

func TestRegistryResolveAllByConfidence(t *testing.T) {
	r := NewRegistry()
	r.Register(newFakeSource("beta", 50, 0))
	r.Register(newFakeSource("alpha", 90, 0))
	r.Register(newFakeSource("gamma", 70, 0))

	resolved, err := r.Resolve(nil)
	require.NoError(t, err)
	require.Len(t, resolved, 3)
	assert.Equal(t, "alpha", resolved[0].Name())
	assert.Equal(t, "gamma", resolved[1].Name())
	assert.Equal(t, "beta", resolved[2].Name())
}

func TestRegistryResolveSubset(t *testing.T) {
	r := NewRegistry()
	r.Register(newFakeSource("alpha", 90, 0))
	r.Register(newFakeSource("beta", 50, 0))

	resolved, err := r.Resolve([]string{"beta", "beta"})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "beta", resolved[0].Name())
}

func TestRegistryResolveUnknown(t *testing.T) {
	r := NewRegistry()
	r.Register(newFakeSource("alpha", 90, 0))

	_, err := r.Resolve([]string{"scopus"})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry()
	r.Register(newFakeSource("beta", 50, 0))
	r.Register(newFakeSource("alpha", 90, 0))

	assert.Equal(t, []string{"alpha", "beta"}, r.Names())
}

func TestRegistryDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(newFakeSource("alpha", 90, 0))

	assert.Panics(t, func() { r.Register(newFakeSource("alpha", 10, 0)) })
}
