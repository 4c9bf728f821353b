package strategy

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/askroute/backend/internal/models"
	"github.com/askroute/backend/internal/source"
	"github.com/askroute/backend/pkg/config"
	"github.com/askroute/backend/pkg/logger"
)

// PerformanceReader exposes the history store's aggregates to the adaptive
// policy without letting it reach into shared state directly.
type PerformanceReader interface {
	Performance(queryType models.QueryType) map[string]models.SourcePerformance
}

// Adaptive is a policy layered on the two base behaviors, not a third
// execution engine: when one source historically dominates the query's type
// it runs the sequential cascade reordered and biased toward that source;
// otherwise it fans out with parallel aggregate.
type Adaptive struct {
	registry       *source.Registry
	cfg            config.RoutingConfig
	perf           PerformanceReader
	classification models.Classification
}

func NewAdaptive(registry *source.Registry, cfg config.RoutingConfig, perf PerformanceReader, classification models.Classification) *Adaptive {
	return &Adaptive{
		registry:       registry,
		cfg:            cfg,
		perf:           perf,
		classification: classification,
	}
}

func (a *Adaptive) Name() string {
	return "adaptive"
}

func (a *Adaptive) Execute(ctx context.Context, q models.Query) (*Run, error) {
	dominant, rate := a.dominantSource()

	var delegate Strategy
	if dominant != "" {
		logger.Debug("Adaptive policy found dominant source",
			zap.String("source", dominant),
			zap.Float64("success_rate", rate),
			zap.String("query_type", string(a.classification.Type)),
		)
		delegate = NewSequential(a.registry, a.biasedSteps(dominant), "adaptive")
	} else {
		delegate = NewParallelAggregate(
			a.registry,
			a.cfg.Parallel.Sources,
			time.Duration(a.cfg.Parallel.TimeoutMS)*time.Millisecond,
		)
	}

	run, err := delegate.Execute(ctx, q)
	if run != nil {
		run.Strategy = a.Name()
	}
	return run, err
}

func (a *Adaptive) dominantSource() (string, float64) {
	if a.perf == nil {
		return "", 0
	}

	perf := a.perf.Performance(a.classification.Type)
	best := ""
	bestRate := 0.0
	for _, name := range a.cfg.Parallel.Sources {
		p, ok := perf[name]
		if !ok {
			continue
		}
		if p.SuccessRate > bestRate {
			best = name
			bestRate = p.SuccessRate
		}
	}

	if bestRate < a.cfg.DominanceThreshold {
		return "", bestRate
	}
	return best, bestRate
}

// biasedSteps reorders the default cascade so the dominant source leads and
// lowers its threshold so it short-circuits more readily.
func (a *Adaptive) biasedSteps(dominant string) []config.SequentialStep {
	base := a.cfg.Sequential["default"]
	steps := make([]config.SequentialStep, 0, len(base))

	for _, step := range base {
		if step.Source == dominant {
			step.Threshold = int(math.Round(float64(step.Threshold) * 0.9))
			steps = append([]config.SequentialStep{step}, steps...)
			continue
		}
		steps = append(steps, step)
	}
	return steps
}
