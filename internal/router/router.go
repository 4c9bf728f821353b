// Package router is the façade over the routing core: cache check, classify,
// select strategy, execute, normalize, aggregate, cache, record. Structured
// logs at each stage stand in for the progress events the pipeline would
// otherwise emit.
package router

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/askroute/backend/internal/aggregate"
	"github.com/askroute/backend/internal/classify"
	"github.com/askroute/backend/internal/metrics"
	"github.com/askroute/backend/internal/models"
	"github.com/askroute/backend/internal/normalize"
	"github.com/askroute/backend/internal/source"
	"github.com/askroute/backend/internal/strategy"
	"github.com/askroute/backend/pkg/config"
	"github.com/askroute/backend/pkg/logger"
)

// Cache is the slice of the cache layer the router needs; the Redis
// implementation satisfies it, fakes satisfy it in tests.
type Cache interface {
	Get(ctx context.Context, queryText string) (*models.Response, bool, error)
	Set(ctx context.Context, queryText string, response *models.Response, ttl time.Duration) error
}

// History is the metrics/history store surface the router consumes.
type History interface {
	Record(record models.RouteRecord, sources []models.RouteSource)
	SourceAccuracy() map[string]float64
	Performance(queryType models.QueryType) map[string]models.SourcePerformance
}

type Options struct {
	BypassCache bool
}

type Router struct {
	registry   *source.Registry
	classifier *classify.Classifier
	selector   *strategy.Selector
	cache      Cache
	history    History

	mu  sync.RWMutex
	cfg config.RoutingConfig
}

func New(registry *source.Registry, classifier *classify.Classifier, selector *strategy.Selector, cache Cache, history History, cfg config.RoutingConfig) *Router {
	return &Router{
		registry:   registry,
		classifier: classifier,
		selector:   selector,
		cache:      cache,
		history:    history,
		cfg:        cfg,
	}
}

// UpdateConfig swaps in a hot-reloaded routing configuration. Requests
// already in flight keep the snapshot they started with.
func (r *Router) UpdateConfig(cfg config.RoutingConfig) {
	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
	logger.Info("Routing configuration reloaded")
}

func (r *Router) snapshot() config.RoutingConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// Route is the sole entry point. Business-level insufficiency (no results,
// low confidence, conflict) comes back as a well-formed Response; the error
// return is reserved for cancellation and configuration/programming faults.
func (r *Router) Route(ctx context.Context, q models.Query, opts Options) (*models.Response, error) {
	start := time.Now()
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	if q.SubmittedAt.IsZero() {
		q.SubmittedAt = time.Now()
	}

	cfg := r.snapshot()

	if !opts.BypassCache && r.cache != nil {
		if cached := r.cacheLookup(ctx, q, start); cached != nil {
			return cached, nil
		}
		metrics.CacheMisses.Inc()
	}

	classification := r.classifier.Classify(q)
	logger.Info("Query classified",
		zap.String("query_id", q.ID),
		zap.String("urgency", string(classification.Urgency)),
		zap.Int("complexity", classification.Complexity),
		zap.String("domain", classification.Domain),
		zap.String("query_type", string(classification.Type)),
	)

	strat := r.selector.Select(classification, cfg)
	metrics.StrategySelected.WithLabelValues(strat.Name()).Inc()
	logger.Info("Strategy selected",
		zap.String("query_id", q.ID),
		zap.String("strategy", strat.Name()),
	)

	run, err := strat.Execute(ctx, q)
	if err != nil {
		return nil, err
	}

	for _, failure := range run.Failures {
		metrics.SourceErrors.WithLabelValues(failure.Source).Inc()
		logger.Warn("Source excluded from aggregation",
			zap.String("query_id", q.ID),
			zap.String("source", failure.Source),
			zap.Error(failure.Err),
		)
	}

	normalized := normalize.Results(run.Results, r.accuracySnapshot(cfg))
	for _, result := range normalized {
		metrics.SourceConfidence.WithLabelValues(result.Source).Observe(float64(result.Confidence))
	}

	response := aggregate.New(cfg).Aggregate(q, normalized)
	response.ID = q.ID
	response.Strategy = run.Strategy
	response.LatencyMS = time.Since(start).Milliseconds()

	metrics.RouteDuration.WithLabelValues(run.Strategy).Observe(time.Since(start).Seconds())
	metrics.ResponseConfidence.Observe(float64(response.Confidence))
	if response.Conflict {
		metrics.ConflictsTotal.Inc()
	}
	if response.Confidence == 0 {
		metrics.RouteTotal.WithLabelValues("no_results").Inc()
	} else {
		metrics.RouteTotal.WithLabelValues("ok").Inc()
	}

	// A canceled caller gets nothing and, more importantly, leaves nothing
	// behind: no partial Response may enter the cache or the history.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if r.cache != nil && response.Confidence > 0 {
		ttl := aggregate.TTL(response.Confidence)
		if err := r.cache.Set(ctx, q.Text, response, ttl); err != nil {
			logger.Warn("Failed to cache response", zap.String("query_id", q.ID), zap.Error(err))
		}
	}

	r.record(q, classification, run, normalized, response)

	logger.Info("Query routed",
		zap.String("query_id", q.ID),
		zap.String("strategy", run.Strategy),
		zap.String("source", response.Source),
		zap.Int("confidence", response.Confidence),
		zap.Bool("conflict", response.Conflict),
		zap.Int64("latency_ms", response.LatencyMS),
	)

	return response, nil
}

func (r *Router) cacheLookup(ctx context.Context, q models.Query, start time.Time) *models.Response {
	cached, ok, err := r.cache.Get(ctx, q.Text)
	if err != nil {
		logger.Warn("Cache lookup failed", zap.String("query_id", q.ID), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	metrics.CacheHits.Inc()
	cached.CacheHit = true
	cached.LatencyMS = time.Since(start).Milliseconds()

	if r.history != nil {
		r.history.Record(models.RouteRecord{
			ID:         uuid.New().String(),
			UserID:     q.UserID,
			QueryText:  q.Text,
			Strategy:   "cache",
			Answer:     cached.Answer,
			Confidence: cached.Confidence,
			CacheHit:   true,
			LatencyMS:  cached.LatencyMS,
			CreatedAt:  time.Now(),
		}, nil)
	}

	logger.Info("Cache short-circuit",
		zap.String("query_id", q.ID),
		zap.Int("confidence", cached.Confidence),
	)
	return cached
}

// accuracySnapshot merges recorded accuracy over the configured default so
// sources without feedback still normalize consistently.
func (r *Router) accuracySnapshot(cfg config.RoutingConfig) map[string]float64 {
	snapshot := make(map[string]float64)
	for _, name := range r.registry.Names() {
		snapshot[name] = cfg.DefaultAccuracy
	}
	if r.history != nil {
		for name, ratio := range r.history.SourceAccuracy() {
			snapshot[name] = ratio
		}
	}
	return snapshot
}

func (r *Router) record(q models.Query, classification models.Classification, run *strategy.Run, normalized []models.NormalizedResult, response *models.Response) {
	if r.history == nil {
		return
	}

	sources := make([]models.RouteSource, 0, len(normalized)+len(run.Failures))
	for _, result := range normalized {
		sources = append(sources, models.RouteSource{
			Source:             result.Source,
			Confidence:         result.Confidence,
			OriginalConfidence: result.OriginalConfidence,
			LatencyMS:          result.LatencyMS,
		})
	}
	for _, failure := range run.Failures {
		sources = append(sources, models.RouteSource{
			Source: failure.Source,
			Failed: true,
		})
	}

	r.history.Record(models.RouteRecord{
		ID:         q.ID,
		UserID:     q.UserID,
		QueryText:  q.Text,
		QueryType:  classification.Type,
		Strategy:   run.Strategy,
		Answer:     response.Answer,
		Confidence: response.Confidence,
		Conflict:   response.Conflict,
		LatencyMS:  response.LatencyMS,
		CreatedAt:  time.Now(),
	}, sources)
}
