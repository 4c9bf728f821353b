package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askroute/backend/internal/models"
	"github.com/askroute/backend/pkg/config"
)

type stubPerf struct {
	perf map[string]models.SourcePerformance
}

func (s stubPerf) Performance(models.QueryType) map[string]models.SourcePerformance {
	return s.perf
}

func selectorConfig() config.RoutingConfig {
	return config.RoutingConfig{
		RaceThreshold:      80,
		RaceGraceMS:        500,
		DominanceThreshold: 0.8,
		Sequential: map[string][]config.SequentialStep{
			"default": {
				{Source: "knowledge_base", Threshold: 85, TimeoutMS: 2000},
				{Source: "llm", Threshold: 75, TimeoutMS: 8000},
			},
			"fast": {
				{Source: "knowledge_base", Threshold: 80, TimeoutMS: 1500},
			},
		},
		Parallel: config.ParallelConfig{
			Sources:   []string{"knowledge_base", "llm"},
			TimeoutMS: 5000,
		},
	}
}

func TestSelectorRules(t *testing.T) {
	registry := buildRegistry(newFakeSource("knowledge_base", 80), newFakeSource("llm", 70))
	selector := NewSelector(registry, nil)
	cfg := selectorConfig()

	tests := []struct {
		name           string
		classification models.Classification
		want           string
	}{
		{
			name:           "critical urgency fans out",
			classification: models.Classification{Urgency: models.UrgencyCritical, Complexity: 5},
			want:           "parallel-aggregate",
		},
		{
			name:           "simple query takes the fast cascade",
			classification: models.Classification{Urgency: models.UrgencyNormal, Complexity: 3},
			want:           "sequential-fast",
		},
		{
			name:           "complex query races",
			classification: models.Classification{Urgency: models.UrgencyNormal, Complexity: 8},
			want:           "parallel-race",
		},
		{
			name:           "everything else uses the default cascade",
			classification: models.Classification{Urgency: models.UrgencyNormal, Complexity: 6},
			want:           "sequential-default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, selector.Select(tt.classification, cfg).Name())
		})
	}
}

func TestSelectorCriticalBeatsComplexity(t *testing.T) {
	registry := buildRegistry(newFakeSource("knowledge_base", 80))
	selector := NewSelector(registry, nil)

	got := selector.Select(models.Classification{
		Urgency:    models.UrgencyCritical,
		Complexity: 2,
	}, selectorConfig())

	assert.Equal(t, "parallel-aggregate", got.Name())
}

func TestSelectorAdaptiveWhenEnabled(t *testing.T) {
	registry := buildRegistry(newFakeSource("knowledge_base", 80))
	perf := stubPerf{perf: map[string]models.SourcePerformance{}}
	selector := NewSelector(registry, perf)

	cfg := selectorConfig()
	cfg.AdaptiveEnabled = true

	got := selector.Select(models.Classification{
		Urgency:    models.UrgencyNormal,
		Complexity: 6,
	}, cfg)

	assert.Equal(t, "adaptive", got.Name())
}

func TestAdaptiveBiasesTowardDominantSource(t *testing.T) {
	kb := newFakeSource("knowledge_base", 60)
	llm := newFakeSource("llm", 80)
	registry := buildRegistry(kb, llm)

	cfg := selectorConfig()
	perf := stubPerf{perf: map[string]models.SourcePerformance{
		"llm": {Source: "llm", SuccessRate: 0.9},
	}}

	a := NewAdaptive(registry, cfg, perf, models.Classification{Type: models.QueryTypeFactual})

	run, err := a.Execute(context.Background(), models.Query{Text: "q"})
	require.NoError(t, err)

	assert.Equal(t, "adaptive", run.Strategy)
	// The dominant source leads the cascade with a lowered threshold
	// (75 * 0.9 rounds to 68), so its 80 short-circuits immediately.
	require.Len(t, run.Results, 1)
	assert.Equal(t, "llm", run.Results[0].Source)
	assert.Equal(t, 0, kb.callCount())
}

func TestAdaptiveFallsBackToParallel(t *testing.T) {
	kb := newFakeSource("knowledge_base", 70)
	llm := newFakeSource("llm", 65)
	registry := buildRegistry(kb, llm)

	cfg := selectorConfig()
	perf := stubPerf{perf: map[string]models.SourcePerformance{
		"llm": {Source: "llm", SuccessRate: 0.4},
	}}

	a := NewAdaptive(registry, cfg, perf, models.Classification{Type: models.QueryTypeFactual})

	run, err := a.Execute(context.Background(), models.Query{Text: "q"})
	require.NoError(t, err)

	assert.Equal(t, "adaptive", run.Strategy)
	// No dominant source, so both are consulted in parallel.
	assert.Len(t, run.Results, 2)
}
