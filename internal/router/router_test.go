package router

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askroute/backend/internal/classify"
	"github.com/askroute/backend/internal/metrics"
	"github.com/askroute/backend/internal/models"
	"github.com/askroute/backend/internal/source"
	"github.com/askroute/backend/internal/strategy"
	"github.com/askroute/backend/pkg/config"
)

type fakeSource struct {
	name       string
	confidence int

	mu    sync.Mutex
	calls int
}

func (f *fakeSource) Name() string                  { return f.name }
func (f *fakeSource) CanHandle(models.Query) bool   { return true }
func (f *fakeSource) AverageLatency() time.Duration { return time.Millisecond }
func (f *fakeSource) Cost() float64                 { return 0 }

func (f *fakeSource) Query(ctx context.Context, q models.Query) (*models.SourceResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	return &models.SourceResult{
		Source:     f.name,
		Answer:     f.name + " answer",
		Confidence: f.confidence,
	}, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]*models.Response
	ttls    map[string]time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		entries: map[string]*models.Response{},
		ttls:    map[string]time.Duration{},
	}
}

func (c *fakeCache) Get(ctx context.Context, queryText string) (*models.Response, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, ok := c.entries[queryText]
	if !ok {
		return nil, false, nil
	}
	copied := *resp
	return &copied, true, nil
}

func (c *fakeCache) Set(ctx context.Context, queryText string, response *models.Response, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[queryText] = response
	c.ttls[queryText] = ttl
	return nil
}

type fakeHistory struct {
	mu       sync.Mutex
	records  []models.RouteRecord
	sources  [][]models.RouteSource
	accuracy map[string]float64
}

func (h *fakeHistory) Record(record models.RouteRecord, sources []models.RouteSource) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, record)
	h.sources = append(h.sources, sources)
}

func (h *fakeHistory) SourceAccuracy() map[string]float64 {
	if h.accuracy == nil {
		return map[string]float64{}
	}
	return h.accuracy
}

func (h *fakeHistory) Performance(models.QueryType) map[string]models.SourcePerformance {
	return map[string]models.SourcePerformance{}
}

func (h *fakeHistory) recorded() []models.RouteRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]models.RouteRecord{}, h.records...)
}

func routingConfig() config.RoutingConfig {
	return config.RoutingConfig{
		RaceThreshold:      80,
		RaceGraceMS:        100,
		DominanceThreshold: 0.8,
		DefaultAccuracy:    1.0,
		ConflictThreshold:  0.5,
		CombineThreshold:   0.7,
		Sequential: map[string][]config.SequentialStep{
			"default": {{Source: "knowledge_base", Threshold: 85, TimeoutMS: 1000}},
			"fast":    {{Source: "knowledge_base", Threshold: 85, TimeoutMS: 1000}},
		},
		Parallel: config.ParallelConfig{
			Sources:   []string{"knowledge_base"},
			TimeoutMS: 1000,
		},
		TieBreaker: config.TieBreakerWeights{Recency: 0.3, Authority: 0.4, Specificity: 0.3},
		Authority:  map[string]int{"knowledge_base": 80},
	}
}

func newTestRouter(t *testing.T, src *fakeSource, cache Cache, hist History) *Router {
	t.Helper()

	registry := source.NewRegistry()
	require.NoError(t, registry.Register(src))

	classifier := classify.New(config.ClassifierConfig{})
	selector := strategy.NewSelector(registry, hist)

	return New(registry, classifier, selector, cache, hist, routingConfig())
}

func TestRouteEndToEnd(t *testing.T) {
	src := &fakeSource{name: "knowledge_base", confidence: 92}
	cache := newFakeCache()
	hist := &fakeHistory{}
	r := newTestRouter(t, src, cache, hist)

	resp, err := r.Route(context.Background(), models.Query{Text: "what time is it", UserID: "u1"}, Options{})
	require.NoError(t, err)

	assert.Equal(t, 92, resp.Confidence)
	assert.Equal(t, "knowledge_base", resp.Source)
	assert.Equal(t, "sequential-fast", resp.Strategy)
	assert.False(t, resp.CacheHit)
	assert.NotEmpty(t, resp.ID)

	// High confidence earns the longest cache tier.
	assert.Equal(t, 24*time.Hour, cache.ttls["what time is it"])

	records := hist.recorded()
	require.Len(t, records, 1)
	assert.Equal(t, "sequential-fast", records[0].Strategy)
	assert.Equal(t, "u1", records[0].UserID)
	require.Len(t, hist.sources[0], 1)
	assert.Equal(t, "knowledge_base", hist.sources[0][0].Source)
}

func TestRouteCacheShortCircuit(t *testing.T) {
	src := &fakeSource{name: "knowledge_base", confidence: 92}
	cache := newFakeCache()
	hist := &fakeHistory{}
	r := newTestRouter(t, src, cache, hist)

	cache.entries["what time is it"] = &models.Response{
		Query:      "what time is it",
		Answer:     "cached answer",
		Confidence: 88,
		Source:     "knowledge_base",
	}

	resp, err := r.Route(context.Background(), models.Query{Text: "what time is it"}, Options{})
	require.NoError(t, err)

	assert.True(t, resp.CacheHit)
	assert.Equal(t, "cached answer", resp.Answer)
	assert.Equal(t, 0, src.callCount())

	records := hist.recorded()
	require.Len(t, records, 1)
	assert.True(t, records[0].CacheHit)
	assert.Equal(t, "cache", records[0].Strategy)
}

func TestRouteBypassCache(t *testing.T) {
	src := &fakeSource{name: "knowledge_base", confidence: 92}
	cache := newFakeCache()
	r := newTestRouter(t, src, cache, &fakeHistory{})

	cache.entries["what time is it"] = &models.Response{Answer: "stale", Confidence: 88}

	resp, err := r.Route(context.Background(), models.Query{Text: "what time is it"}, Options{BypassCache: true})
	require.NoError(t, err)

	assert.Equal(t, 1, src.callCount())
	assert.Equal(t, "knowledge_base answer", resp.Answer)
	assert.False(t, resp.CacheHit)
}

func TestRouteCacheMissCounting(t *testing.T) {
	src := &fakeSource{name: "knowledge_base", confidence: 92}
	cache := newFakeCache()
	r := newTestRouter(t, src, cache, &fakeHistory{})

	misses := testutil.ToFloat64(metrics.CacheMisses)

	// Bypass never consults the cache, so it is not a miss.
	_, err := r.Route(context.Background(), models.Query{Text: "what time is it"}, Options{BypassCache: true})
	require.NoError(t, err)
	assert.Equal(t, misses, testutil.ToFloat64(metrics.CacheMisses))

	// The bypassed response was cached above, so a plain route is a hit.
	_, err = r.Route(context.Background(), models.Query{Text: "what time is it"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, misses, testutil.ToFloat64(metrics.CacheMisses))

	// An unseen query is the one real miss.
	_, err = r.Route(context.Background(), models.Query{Text: "what day is it"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, misses+1, testutil.ToFloat64(metrics.CacheMisses))
}

func TestRouteNoResultsIsNotAnError(t *testing.T) {
	src := &fakeSource{name: "knowledge_base", confidence: 0}
	cache := newFakeCache()
	r := newTestRouter(t, src, cache, &fakeHistory{})

	resp, err := r.Route(context.Background(), models.Query{Text: "what time is it"}, Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, resp.Confidence)
	assert.NotEmpty(t, resp.Warning)
	// Nothing usable, nothing cached.
	assert.Empty(t, cache.entries)
}

func TestRouteAppliesHistoricalAccuracy(t *testing.T) {
	src := &fakeSource{name: "knowledge_base", confidence: 80}
	hist := &fakeHistory{accuracy: map[string]float64{"knowledge_base": 0.5}}
	r := newTestRouter(t, src, newFakeCache(), hist)

	resp, err := r.Route(context.Background(), models.Query{Text: "what time is it"}, Options{})
	require.NoError(t, err)

	assert.Equal(t, 40, resp.Confidence)
	assert.Contains(t, resp.Warning, "low confidence")
}

func TestRouteCanceledContext(t *testing.T) {
	src := &fakeSource{name: "knowledge_base", confidence: 92}
	cache := newFakeCache()
	r := newTestRouter(t, src, cache, &fakeHistory{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Route(ctx, models.Query{Text: "what time is it"}, Options{})
	assert.Error(t, err)
	assert.Empty(t, cache.entries)
}

func TestUpdateConfigSwapsSnapshot(t *testing.T) {
	src := &fakeSource{name: "knowledge_base", confidence: 92}
	r := newTestRouter(t, src, newFakeCache(), &fakeHistory{})

	cfg := routingConfig()
	cfg.DefaultAccuracy = 0.5
	r.UpdateConfig(cfg)

	resp, err := r.Route(context.Background(), models.Query{Text: "what time is it"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 46, resp.Confidence)
}
