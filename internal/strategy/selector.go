package strategy

import (
	"time"

	"github.com/askroute/backend/internal/models"
	"github.com/askroute/backend/internal/source"
	"github.com/askroute/backend/pkg/config"
)

// Selector maps a classification to a concrete strategy instance. The rules
// are ordered and total: every classification yields a strategy.
type Selector struct {
	registry *source.Registry
	perf     PerformanceReader
}

func NewSelector(registry *source.Registry, perf PerformanceReader) *Selector {
	return &Selector{registry: registry, perf: perf}
}

func (s *Selector) Select(c models.Classification, cfg config.RoutingConfig) Strategy {
	parallelTimeout := time.Duration(cfg.Parallel.TimeoutMS) * time.Millisecond

	switch {
	case c.Urgency == models.UrgencyCritical:
		return NewParallelAggregate(s.registry, cfg.Parallel.Sources, parallelTimeout)
	case c.Complexity < 5:
		return NewSequential(s.registry, cfg.Sequential["fast"], "fast")
	case c.Complexity > 7:
		return NewParallelRace(
			s.registry,
			cfg.Parallel.Sources,
			parallelTimeout,
			cfg.RaceThreshold,
			time.Duration(cfg.RaceGraceMS)*time.Millisecond,
		)
	case cfg.AdaptiveEnabled && s.perf != nil:
		return NewAdaptive(s.registry, cfg, s.perf, c)
	default:
		return NewSequential(s.registry, cfg.Sequential["default"], "default")
	}
}
