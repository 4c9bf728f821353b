package strategy

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/askroute/backend/internal/models"
	"github.com/askroute/backend/internal/source"
	"github.com/askroute/backend/pkg/config"
	"github.com/askroute/backend/pkg/logger"
)

// Sequential walks the configured cascade in order and short-circuits as
// soon as a source meets its configured threshold. The last step usually
// carries threshold 0 so the cascade always halts on something.
type Sequential struct {
	registry *source.Registry
	steps    []config.SequentialStep
	profile  string
}

func NewSequential(registry *source.Registry, steps []config.SequentialStep, profile string) *Sequential {
	return &Sequential{registry: registry, steps: steps, profile: profile}
}

func (s *Sequential) Name() string {
	return "sequential-" + s.profile
}

func (s *Sequential) Execute(ctx context.Context, q models.Query) (*Run, error) {
	run := &Run{Strategy: s.Name()}

	for _, step := range s.steps {
		if err := ctx.Err(); err != nil {
			return run, err
		}

		src, err := s.registry.Get(step.Source)
		if err != nil {
			return nil, err
		}

		if !src.CanHandle(q) {
			logger.Debug("Source skipped",
				zap.String("source", step.Source),
				zap.String("strategy", s.Name()),
			)
			continue
		}

		result, err := querySource(ctx, src, q, time.Duration(step.TimeoutMS)*time.Millisecond)
		if err != nil {
			logger.Warn("Source failed, continuing cascade",
				zap.String("source", step.Source),
				zap.Error(err),
			)
			run.fail(step.Source, err)
			continue
		}

		run.Results = append(run.Results, *result)

		if result.Confidence >= step.Threshold {
			logger.Debug("Cascade short-circuited",
				zap.String("source", step.Source),
				zap.Int("confidence", result.Confidence),
				zap.Int("threshold", step.Threshold),
			)
			break
		}
	}

	return run, nil
}

// querySource bounds one adapter call by its per-step timeout and reports
// the wall-clock latency the adapter may not have filled in.
func querySource(ctx context.Context, src source.Source, q models.Query, timeout time.Duration) (*models.SourceResult, error) {
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result, err := src.Query(queryCtx, q)
	if err != nil {
		return nil, err
	}

	if result.LatencyMS == 0 {
		result.LatencyMS = time.Since(start).Milliseconds()
	}
	if result.RetrievedAt.IsZero() {
		result.RetrievedAt = time.Now()
	}
	return result, nil
}
