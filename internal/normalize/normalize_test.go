package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/askroute/backend/internal/models"
)

func TestResult(t *testing.T) {
	tests := []struct {
		name     string
		result   models.SourceResult
		accuracy map[string]float64
		want     int
	}{
		{
			name:     "scales by recorded accuracy",
			result:   models.SourceResult{Source: "llm", Confidence: 70},
			accuracy: map[string]float64{"llm": 0.8},
			want:     56,
		},
		{
			name:     "rounds half up",
			result:   models.SourceResult{Source: "llm", Confidence: 85},
			accuracy: map[string]float64{"llm": 0.75},
			want:     64,
		},
		{
			name:     "unknown source uses the default",
			result:   models.SourceResult{Source: "web", Confidence: 50},
			accuracy: map[string]float64{"llm": 0.5},
			want:     40,
		},
		{
			name:     "perfect accuracy leaves confidence alone",
			result:   models.SourceResult{Source: "docs", Confidence: 88},
			accuracy: map[string]float64{"docs": 1.0},
			want:     88,
		},
		{
			name:     "zero accuracy falls back to the default",
			result:   models.SourceResult{Source: "web", Confidence: 50},
			accuracy: map[string]float64{"web": 0},
			want:     40,
		},
		{
			name:     "result clamps at 100",
			result:   models.SourceResult{Source: "docs", Confidence: 95},
			accuracy: map[string]float64{"docs": 1.5},
			want:     100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Result(tt.result, tt.accuracy)
			assert.Equal(t, tt.want, got.Confidence)
			assert.Equal(t, tt.result.Confidence, got.OriginalConfidence)
		})
	}
}

func TestResultsPreservesOrder(t *testing.T) {
	results := []models.SourceResult{
		{Source: "knowledge_base", Confidence: 90},
		{Source: "llm", Confidence: 80},
	}
	accuracy := map[string]float64{"knowledge_base": 0.9, "llm": 0.5}

	normalized := Results(results, accuracy)

	assert.Len(t, normalized, 2)
	assert.Equal(t, "knowledge_base", normalized[0].Source)
	assert.Equal(t, 81, normalized[0].Confidence)
	assert.Equal(t, "llm", normalized[1].Source)
	assert.Equal(t, 40, normalized[1].Confidence)
}

func TestRenormalizeIsIdempotent(t *testing.T) {
	accuracy := map[string]float64{"llm": 0.8}
	raw := models.SourceResult{Source: "llm", Confidence: 70}

	once := Result(raw, accuracy)
	twice := Renormalize(once, accuracy)

	assert.Equal(t, once, twice)

	// A new snapshot applies to the raw value, not the already scaled one.
	updated := Renormalize(once, map[string]float64{"llm": 0.5})
	assert.Equal(t, 35, updated.Confidence)
	assert.Equal(t, 70, updated.OriginalConfidence)
}
