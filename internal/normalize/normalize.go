// Package normalize rescales raw source confidences by per-source historical
// accuracy so that "70 from the LLM" and "70 from the docs search" carry
// comparable meaning.
package normalize

import (
	"math"

	"github.com/askroute/backend/internal/models"
)

// DefaultAccuracy applies to sources with no recorded feedback yet.
const DefaultAccuracy = 0.8

// Result recalibrates one source result against the accuracy snapshot. Pure
// function; the raw confidence is retained for audit and to keep repeated
// normalization idempotent.
func Result(r models.SourceResult, accuracy map[string]float64) models.NormalizedResult {
	factor, ok := accuracy[r.Source]
	if !ok || factor <= 0 {
		factor = DefaultAccuracy
	}

	normalized := models.NormalizedResult{
		SourceResult:       r,
		OriginalConfidence: r.Confidence,
	}
	normalized.Confidence = clamp(int(math.Round(float64(r.Confidence) * factor)))
	return normalized
}

// Results normalizes a whole strategy run against one accuracy snapshot.
func Results(results []models.SourceResult, accuracy map[string]float64) []models.NormalizedResult {
	normalized := make([]models.NormalizedResult, 0, len(results))
	for _, r := range results {
		normalized = append(normalized, Result(r, accuracy))
	}
	return normalized
}

// Renormalize recomputes an already-normalized result from its retained raw
// confidence, so applying a snapshot twice yields the same value.
func Renormalize(r models.NormalizedResult, accuracy map[string]float64) models.NormalizedResult {
	raw := r.SourceResult
	raw.Confidence = r.OriginalConfidence
	return Result(raw, accuracy)
}

func clamp(confidence int) int {
	if confidence < 0 {
		return 0
	}
	if confidence > 100 {
		return 100
	}
	return confidence
}
