// Package source defines the adapter contract every information source
// satisfies and the registry strategies resolve names against. New sources
// are added by implementing Source and registering a name; routing code
// never changes.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/askroute/backend/internal/models"
)

var ErrUnknownSource = errors.New("unknown source")

// Source is the contract between the routing core and one information
// provider. Query must honor ctx cancellation and fail fast on internal
// error rather than fabricate a low-confidence result, so callers can tell
// "answered with low confidence" from "source errored".
type Source interface {
	Name() string
	Query(ctx context.Context, q models.Query) (*models.SourceResult, error)
	CanHandle(q models.Query) bool
	AverageLatency() time.Duration
	Cost() float64
}

type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

func (r *Registry) Register(s Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if _, exists := r.sources[name]; exists {
		return fmt.Errorf("source %q already registered", name)
	}
	r.sources[name] = s
	return nil
}

func (r *Registry) Get(name string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	return s, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve maps configured names to adapters, erroring on the first unknown
// name. Strategies call this once per run so a mid-run registry change
// cannot produce a partially resolved set.
func (r *Registry) Resolve(names []string) ([]Source, error) {
	resolved := make([]Source, 0, len(names))
	for _, name := range names {
		s, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, s)
	}
	return resolved, nil
}
