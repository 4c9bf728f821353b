package strategy

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/askroute/backend/internal/models"
	"github.com/askroute/backend/internal/source"
	"github.com/askroute/backend/pkg/logger"
)

// ParallelAggregate fans out to every applicable source under one shared
// timeout and waits for all of them to settle. One source failing never
// aborts the others; whatever succeeded feeds the aggregator.
type ParallelAggregate struct {
	registry *source.Registry
	sources  []string
	timeout  time.Duration
}

func NewParallelAggregate(registry *source.Registry, sources []string, timeout time.Duration) *ParallelAggregate {
	return &ParallelAggregate{registry: registry, sources: sources, timeout: timeout}
}

func (p *ParallelAggregate) Name() string {
	return "parallel-aggregate"
}

func (p *ParallelAggregate) Execute(ctx context.Context, q models.Query) (*Run, error) {
	run := &Run{Strategy: p.Name()}

	applicable, err := applicableSources(p.registry, p.sources, q)
	if err != nil {
		return nil, err
	}
	if len(applicable) == 0 {
		return run, nil
	}

	groupCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	outcomes := launch(groupCtx, applicable, q)

	// Settle-all: drain one outcome per launched source.
	for i := 0; i < len(applicable); i++ {
		o := <-outcomes
		if o.err != nil {
			run.fail(o.source, o.err)
			continue
		}
		run.Results = append(run.Results, *o.result)
	}

	logger.Debug("Parallel aggregate settled",
		zap.Int("launched", len(applicable)),
		zap.Int("results", len(run.Results)),
		zap.Int("failures", len(run.Failures)),
	)

	return run, nil
}

// ParallelRace fans out like ParallelAggregate but stops as soon as one
// result reaches the race threshold, cancels the stragglers, and spends a
// short grace window harvesting whatever was already in flight so it can be
// offered as alternatives. Results landing after the grace window are
// discarded, not merged.
type ParallelRace struct {
	registry  *source.Registry
	sources   []string
	timeout   time.Duration
	threshold int
	grace     time.Duration
}

func NewParallelRace(registry *source.Registry, sources []string, timeout time.Duration, threshold int, grace time.Duration) *ParallelRace {
	return &ParallelRace{
		registry:  registry,
		sources:   sources,
		timeout:   timeout,
		threshold: threshold,
		grace:     grace,
	}
}

func (p *ParallelRace) Name() string {
	return "parallel-race"
}

func (p *ParallelRace) Execute(ctx context.Context, q models.Query) (*Run, error) {
	run := &Run{Strategy: p.Name()}

	applicable, err := applicableSources(p.registry, p.sources, q)
	if err != nil {
		return nil, err
	}
	if len(applicable) == 0 {
		return run, nil
	}

	raceCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	outcomes := launch(raceCtx, applicable, q)

	pending := len(applicable)
	var graceExpiry <-chan time.Time

	for pending > 0 {
		select {
		case o := <-outcomes:
			pending--
			if o.err != nil {
				run.fail(o.source, o.err)
				break
			}
			run.Results = append(run.Results, *o.result)
			if graceExpiry == nil && o.result.Confidence >= p.threshold {
				logger.Debug("Race won, opening grace window",
					zap.String("source", o.source),
					zap.Int("confidence", o.result.Confidence),
					zap.Duration("grace", p.grace),
				)
				graceExpiry = time.After(p.grace)
			}
		case <-graceExpiry:
			cancel()
			return run, nil
		case <-raceCtx.Done():
			return run, nil
		}
	}

	return run, nil
}

type outcome struct {
	source string
	result *models.SourceResult
	err    error
}

// launch starts one goroutine per source and returns a channel buffered to
// hold every outcome, so abandoned senders never leak after a race cancel.
func launch(ctx context.Context, sources []source.Source, q models.Query) <-chan outcome {
	outcomes := make(chan outcome, len(sources))
	for _, src := range sources {
		go func(src source.Source) {
			start := time.Now()
			result, err := src.Query(ctx, q)
			if err != nil {
				outcomes <- outcome{source: src.Name(), err: err}
				return
			}
			if result.LatencyMS == 0 {
				result.LatencyMS = time.Since(start).Milliseconds()
			}
			if result.RetrievedAt.IsZero() {
				result.RetrievedAt = time.Now()
			}
			outcomes <- outcome{source: src.Name(), result: result}
		}(src)
	}
	return outcomes
}

func applicableSources(registry *source.Registry, names []string, q models.Query) ([]source.Source, error) {
	resolved, err := registry.Resolve(names)
	if err != nil {
		return nil, err
	}

	applicable := make([]source.Source, 0, len(resolved))
	for _, src := range resolved {
		if src.CanHandle(q) {
			applicable = append(applicable, src)
		}
	}
	return applicable, nil
}
