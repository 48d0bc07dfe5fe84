package crawl

import (
	"fmt"
	"sort"

	"github.com/paperharbor/acquisition-service/internal/domain"
)

// Registry holds the configured acquisition sources by name.
type Registry struct {
	sources map[string]Source
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register adds a source. Registering the same name twice is a programming
// error and panics during wiring.
func (r *Registry) Register(s Source) {
	name := s.Name()
	if _, ok := r.sources[name]; ok {
		panic(fmt.Sprintf("source %q registered twice", name))
	}
	r.sources[name] = s
}

// Names returns the registered source names sorted alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the requested sources ordered by descending confidence.
// An empty request selects every registered source. Unknown names are
// rejected with domain.ErrInvalidInput.
func (r *Registry) Resolve(names []string) ([]Source, error) {
	var selected []Source
	if len(names) == 0 {
		for _, s := range r.sources {
			selected = append(selected, s)
		}
	} else {
		seen := make(map[string]struct{}, len(names))
		for _, name := range names {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			s, ok := r.sources[name]
			if !ok {
				return nil, fmt.Errorf("%w: unknown source %q", domain.ErrInvalidInput, name)
			}
			selected = append(selected, s)
		}
	}

	sort.SliceStable(selected, func(i, j int) bool {
		if selected[i].Confidence() != selected[j].Confidence() {
			return selected[i].Confidence() > selected[j].Confidence()
		}
		return selected[i].Name() < selected[j].Name()
	})
	return selected, nil
}
