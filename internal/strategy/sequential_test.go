package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askroute/backend/internal/models"
	"github.com/askroute/backend/pkg/config"
)

func TestSequentialShortCircuit(t *testing.T) {
	kb := newFakeSource("knowledge_base", 60)
	llm := newFakeSource("llm", 78)
	web := newFakeSource("web", 50)
	registry := buildRegistry(kb, llm, web)

	s := NewSequential(registry, steps(
		config.SequentialStep{Source: "knowledge_base", Threshold: 85, TimeoutMS: 1000},
		config.SequentialStep{Source: "llm", Threshold: 75, TimeoutMS: 1000},
		config.SequentialStep{Source: "web", Threshold: 0, TimeoutMS: 1000},
	), "default")

	run, err := s.Execute(context.Background(), models.Query{Text: "q"})
	require.NoError(t, err)

	// The cascade keeps the below-threshold result and stops at the first
	// source that clears its bar; later steps never run.
	require.Len(t, run.Results, 2)
	assert.Equal(t, "knowledge_base", run.Results[0].Source)
	assert.Equal(t, "llm", run.Results[1].Source)
	assert.Equal(t, 0, web.callCount())
	assert.Equal(t, "sequential-default", run.Strategy)
}

func TestSequentialStopsAtFirstStep(t *testing.T) {
	kb := newFakeSource("knowledge_base", 90)
	llm := newFakeSource("llm", 78)
	registry := buildRegistry(kb, llm)

	s := NewSequential(registry, steps(
		config.SequentialStep{Source: "knowledge_base", Threshold: 85, TimeoutMS: 1000},
		config.SequentialStep{Source: "llm", Threshold: 75, TimeoutMS: 1000},
	), "default")

	run, err := s.Execute(context.Background(), models.Query{Text: "q"})
	require.NoError(t, err)

	require.Len(t, run.Results, 1)
	assert.Equal(t, "knowledge_base", run.Results[0].Source)
	assert.Equal(t, 0, llm.callCount())
}

func TestSequentialSkipsInapplicableSource(t *testing.T) {
	docs := newFakeSource("docs", 95)
	docs.handles = false
	web := newFakeSource("web", 55)
	registry := buildRegistry(docs, web)

	s := NewSequential(registry, steps(
		config.SequentialStep{Source: "docs", Threshold: 70, TimeoutMS: 1000},
		config.SequentialStep{Source: "web", Threshold: 0, TimeoutMS: 1000},
	), "fast")

	run, err := s.Execute(context.Background(), models.Query{Text: "q"})
	require.NoError(t, err)

	assert.Equal(t, 0, docs.callCount())
	require.Len(t, run.Results, 1)
	assert.Equal(t, "web", run.Results[0].Source)
	assert.Empty(t, run.Failures)
}

func TestSequentialContinuesPastFailure(t *testing.T) {
	kb := newFakeSource("knowledge_base", 0)
	kb.err = errSourceDown
	llm := newFakeSource("llm", 80)
	registry := buildRegistry(kb, llm)

	s := NewSequential(registry, steps(
		config.SequentialStep{Source: "knowledge_base", Threshold: 85, TimeoutMS: 1000},
		config.SequentialStep{Source: "llm", Threshold: 75, TimeoutMS: 1000},
	), "default")

	run, err := s.Execute(context.Background(), models.Query{Text: "q"})
	require.NoError(t, err)

	require.Len(t, run.Failures, 1)
	assert.Equal(t, "knowledge_base", run.Failures[0].Source)
	require.Len(t, run.Results, 1)
	assert.Equal(t, "llm", run.Results[0].Source)
}

func TestSequentialUnknownSourceFails(t *testing.T) {
	registry := buildRegistry(newFakeSource("llm", 80))

	s := NewSequential(registry, steps(
		config.SequentialStep{Source: "nonexistent", Threshold: 50, TimeoutMS: 1000},
	), "default")

	_, err := s.Execute(context.Background(), models.Query{Text: "q"})
	assert.Error(t, err)
}

func TestSequentialFillsLatency(t *testing.T) {
	kb := newFakeSource("knowledge_base", 90)
	registry := buildRegistry(kb)

	s := NewSequential(registry, steps(
		config.SequentialStep{Source: "knowledge_base", Threshold: 85, TimeoutMS: 1000},
	), "default")

	run, err := s.Execute(context.Background(), models.Query{Text: "q"})
	require.NoError(t, err)
	require.Len(t, run.Results, 1)
	assert.False(t, run.Results[0].RetrievedAt.IsZero())
}
