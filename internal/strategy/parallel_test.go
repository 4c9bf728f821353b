package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askroute/backend/internal/models"
)

func TestParallelAggregateSettlesAll(t *testing.T) {
	kb := newFakeSource("knowledge_base", 88)
	llm := newFakeSource("llm", 75)
	web := newFakeSource("web", 0)
	web.err = errSourceDown
	registry := buildRegistry(kb, llm, web)

	p := NewParallelAggregate(registry, []string{"knowledge_base", "llm", "web"}, time.Second)

	run, err := p.Execute(context.Background(), models.Query{Text: "q"})
	require.NoError(t, err)

	assert.Len(t, run.Results, 2)
	require.Len(t, run.Failures, 1)
	assert.Equal(t, "web", run.Failures[0].Source)
	assert.Equal(t, "parallel-aggregate", run.Strategy)
}

func TestParallelAggregateSkipsInapplicable(t *testing.T) {
	docs := newFakeSource("docs", 90)
	docs.handles = false
	llm := newFakeSource("llm", 70)
	registry := buildRegistry(docs, llm)

	p := NewParallelAggregate(registry, []string{"docs", "llm"}, time.Second)

	run, err := p.Execute(context.Background(), models.Query{Text: "q"})
	require.NoError(t, err)

	assert.Equal(t, 0, docs.callCount())
	require.Len(t, run.Results, 1)
	assert.Equal(t, "llm", run.Results[0].Source)
}

func TestParallelRaceStopsEarly(t *testing.T) {
	fast := newFakeSource("knowledge_base", 90)
	slow := newFakeSource("llm", 95)
	slow.delay = 2 * time.Second
	registry := buildRegistry(fast, slow)

	p := NewParallelRace(registry, []string{"knowledge_base", "llm"}, 5*time.Second, 80, 50*time.Millisecond)

	start := time.Now()
	run, err := p.Execute(context.Background(), models.Query{Text: "q"})
	require.NoError(t, err)

	// The slow source must not be waited for once the threshold is met and
	// the grace window has elapsed.
	assert.Less(t, time.Since(start), time.Second)
	require.Len(t, run.Results, 1)
	assert.Equal(t, "knowledge_base", run.Results[0].Source)
	assert.Equal(t, "parallel-race", run.Strategy)
}

func TestParallelRaceGraceWindowCollectsAlternatives(t *testing.T) {
	winner := newFakeSource("knowledge_base", 90)
	runnerUp := newFakeSource("llm", 72)
	runnerUp.delay = 20 * time.Millisecond
	registry := buildRegistry(winner, runnerUp)

	p := NewParallelRace(registry, []string{"knowledge_base", "llm"}, 5*time.Second, 80, 300*time.Millisecond)

	run, err := p.Execute(context.Background(), models.Query{Text: "q"})
	require.NoError(t, err)

	// The runner-up lands inside the grace window and rides along.
	assert.Len(t, run.Results, 2)
}

func TestParallelRaceNoWinnerWaitsForAll(t *testing.T) {
	a := newFakeSource("knowledge_base", 60)
	b := newFakeSource("llm", 55)
	registry := buildRegistry(a, b)

	p := NewParallelRace(registry, []string{"knowledge_base", "llm"}, time.Second, 80, 50*time.Millisecond)

	run, err := p.Execute(context.Background(), models.Query{Text: "q"})
	require.NoError(t, err)

	assert.Len(t, run.Results, 2)
}

func TestParallelRaceTimeoutReturnsPartial(t *testing.T) {
	fast := newFakeSource("knowledge_base", 60)
	stuck := newFakeSource("llm", 90)
	stuck.delay = 5 * time.Second
	registry := buildRegistry(fast, stuck)

	p := NewParallelRace(registry, []string{"knowledge_base", "llm"}, 100*time.Millisecond, 80, 50*time.Millisecond)

	run, err := p.Execute(context.Background(), models.Query{Text: "q"})
	require.NoError(t, err)

	require.Len(t, run.Results, 1)
	assert.Equal(t, "knowledge_base", run.Results[0].Source)
}
