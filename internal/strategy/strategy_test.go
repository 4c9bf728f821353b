package strategy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/askroute/backend/internal/models"
	"github.com/askroute/backend/internal/source"
	"github.com/askroute/backend/pkg/config"
)

// fakeSource is a scriptable adapter for strategy tests: fixed confidence,
// optional error, optional delay, call counting.
type fakeSource struct {
	name       string
	confidence int
	answer     string
	err        error
	delay      time.Duration
	handles    bool

	mu    sync.Mutex
	calls int
}

func newFakeSource(name string, confidence int) *fakeSource {
	return &fakeSource{
		name:       name,
		confidence: confidence,
		answer:     name + " answer",
		handles:    true,
	}
}

func (f *fakeSource) Name() string                  { return f.name }
func (f *fakeSource) CanHandle(models.Query) bool   { return f.handles }
func (f *fakeSource) AverageLatency() time.Duration { return time.Millisecond }
func (f *fakeSource) Cost() float64                 { return 0 }

func (f *fakeSource) Query(ctx context.Context, q models.Query) (*models.SourceResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if f.err != nil {
		return nil, f.err
	}

	return &models.SourceResult{
		Source:     f.name,
		Answer:     f.answer,
		Confidence: f.confidence,
	}, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func buildRegistry(sources ...*fakeSource) *source.Registry {
	registry := source.NewRegistry()
	for _, s := range sources {
		if err := registry.Register(s); err != nil {
			panic(err)
		}
	}
	return registry
}

func steps(pairs ...config.SequentialStep) []config.SequentialStep {
	return pairs
}

var errSourceDown = errors.New("source down")
