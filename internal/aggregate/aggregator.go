// Package aggregate turns the set of normalized results a strategy produced
// into the single Response the caller sees: a clear winner, a combined
// answer, or a flagged conflict.
package aggregate

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/askroute/backend/internal/models"
	"github.com/askroute/backend/pkg/config"
	"github.com/askroute/backend/pkg/logger"
)

const (
	// Below this the best answer ships with a warning instead of silently.
	lowConfidence = 70
	// Top-two results this close are treated as a tie.
	tieMargin = 5
	// Both sides of a conflict must clear this bar.
	conflictFloor = 70
	// Penalty applied to a conflict winner's confidence.
	conflictPenalty = 0.9
	maxAlternatives = 2
)

type Aggregator struct {
	weights           config.TieBreakerWeights
	authority         map[string]int
	combineThreshold  float64
	conflictThreshold float64
}

func New(cfg config.RoutingConfig) *Aggregator {
	return &Aggregator{
		weights:           cfg.TieBreaker,
		authority:         cfg.Authority,
		combineThreshold:  cfg.CombineThreshold,
		conflictThreshold: cfg.ConflictThreshold,
	}
}

// Aggregate never returns an error: insufficient evidence becomes a
// well-formed Response with a warning, so callers always get something they
// can render.
func (a *Aggregator) Aggregate(q models.Query, results []models.NormalizedResult) *models.Response {
	usable := make([]models.NormalizedResult, 0, len(results))
	for _, r := range results {
		if r.Confidence > 0 {
			usable = append(usable, r)
		}
	}

	if len(usable) == 0 {
		return &models.Response{
			Query:      q.Text,
			Confidence: 0,
			Warning:    "no sources produced a usable answer",
			Sources:    []string{},
			CreatedAt:  time.Now(),
		}
	}

	sort.SliceStable(usable, func(i, j int) bool {
		if usable[i].Confidence == usable[j].Confidence {
			return usable[i].Source < usable[j].Source
		}
		return usable[i].Confidence > usable[j].Confidence
	})

	top := usable[0]

	if top.Confidence < lowConfidence {
		resp := a.primaryResponse(q, usable)
		resp.Warning = "low confidence: no source was sure of this answer"
		return resp
	}

	if len(usable) > 1 && top.Confidence-usable[1].Confidence <= tieMargin {
		second := usable[1]
		similarity := Similarity(top.Answer, second.Answer)
		if similarity > a.combineThreshold {
			return a.combinedResponse(q, usable)
		}
		// A dissimilar pair that is merely close but not both confident is a
		// disambiguation case; a dissimilar pair that is both confident is a
		// real conflict and goes through the tie-break below.
		if similarity >= a.conflictThreshold || second.Confidence <= conflictFloor {
			resp := a.primaryResponse(q, usable)
			resp.Warning = "multiple high-confidence answers disagree; alternatives included for disambiguation"
			return resp
		}
	}

	if winner, losers, ok := a.detectConflict(usable); ok {
		return a.conflictResponse(q, winner, losers, usable)
	}

	return a.primaryResponse(q, usable)
}

func (a *Aggregator) primaryResponse(q models.Query, ranked []models.NormalizedResult) *models.Response {
	top := ranked[0]
	return &models.Response{
		Query:        q.Text,
		Answer:       top.Answer,
		Confidence:   top.Confidence,
		Source:       top.Source,
		Sources:      []string{top.Source},
		Alternatives: alternatives(ranked[1:], maxAlternatives),
		CreatedAt:    time.Now(),
	}
}

// combinedResponse merges two near-tied, mutually corroborating answers into
// one result carrying both sources and a confidence-weighted score.
func (a *Aggregator) combinedResponse(q models.Query, ranked []models.NormalizedResult) *models.Response {
	first, second := ranked[0], ranked[1]

	weightSum := float64(first.Confidence + second.Confidence)
	combined := (float64(first.Confidence)*float64(first.Confidence) +
		float64(second.Confidence)*float64(second.Confidence)) / weightSum

	logger.Debug("Combining corroborating answers",
		zap.String("primary", first.Source),
		zap.String("secondary", second.Source),
	)

	return &models.Response{
		Query:        q.Text,
		Answer:       first.Answer,
		Confidence:   int(math.Round(combined)),
		Source:       first.Source + "+" + second.Source,
		Sources:      []string{first.Source, second.Source},
		Combined:     true,
		Alternatives: alternatives(ranked[2:], maxAlternatives),
		CreatedAt:    time.Now(),
	}
}

// detectConflict looks for two results among the top three that are both
// confident and lexically dissimilar. The winner comes from the weighted
// tie-break, not from raw confidence alone.
func (a *Aggregator) detectConflict(ranked []models.NormalizedResult) (models.NormalizedResult, []models.NormalizedResult, bool) {
	top := ranked
	if len(top) > 3 {
		top = top[:3]
	}

	conflicting := map[int]bool{}
	for i := 0; i < len(top); i++ {
		for j := i + 1; j < len(top); j++ {
			if top[i].Confidence > conflictFloor && top[j].Confidence > conflictFloor &&
				Similarity(top[i].Answer, top[j].Answer) < a.conflictThreshold {
				conflicting[i] = true
				conflicting[j] = true
			}
		}
	}
	if len(conflicting) == 0 {
		return models.NormalizedResult{}, nil, false
	}

	candidates := make([]models.NormalizedResult, 0, len(conflicting))
	for i := range top {
		if conflicting[i] {
			candidates = append(candidates, top[i])
		}
	}

	winnerIdx := 0
	bestScore := -1.0
	for i, candidate := range candidates {
		score := a.tieBreakScore(candidate, candidates)
		if score > bestScore {
			bestScore = score
			winnerIdx = i
		}
	}

	winner := candidates[winnerIdx]
	losers := make([]models.NormalizedResult, 0, len(candidates)-1)
	for i, candidate := range candidates {
		if i != winnerIdx {
			losers = append(losers, candidate)
		}
	}
	return winner, losers, true
}

func (a *Aggregator) conflictResponse(q models.Query, winner models.NormalizedResult, losers, ranked []models.NormalizedResult) *models.Response {
	alts := make([]models.Alternative, 0, len(losers))
	for _, loser := range losers {
		alts = append(alts, models.Alternative{
			Answer:     loser.Answer,
			Source:     loser.Source,
			Confidence: loser.Confidence,
		})
	}

	logger.Info("Conflict resolved by tie-break",
		zap.String("winner", winner.Source),
		zap.Int("losers", len(losers)),
	)

	return &models.Response{
		Query:      q.Text,
		Answer:     winner.Answer,
		Confidence: int(math.Round(float64(winner.Confidence) * conflictPenalty)),
		Source:     winner.Source,
		Sources:    []string{winner.Source},
		Conflict:   true,
		Warning:    "high-confidence sources disagree; the winning answer carries reduced confidence",
		Alternatives: alts,
		CreatedAt:  time.Now(),
	}
}

// tieBreakScore weighs recency, source authority and answer specificity,
// each normalized against the other conflict candidates.
func (a *Aggregator) tieBreakScore(candidate models.NormalizedResult, candidates []models.NormalizedResult) float64 {
	var newest, oldest time.Time
	maxAuthority := 1
	maxLength := 1
	for _, c := range candidates {
		if newest.IsZero() || c.RetrievedAt.After(newest) {
			newest = c.RetrievedAt
		}
		if oldest.IsZero() || c.RetrievedAt.Before(oldest) {
			oldest = c.RetrievedAt
		}
		if auth := a.authority[c.Source]; auth > maxAuthority {
			maxAuthority = auth
		}
		if len(c.Answer) > maxLength {
			maxLength = len(c.Answer)
		}
	}

	recency := 1.0
	if span := newest.Sub(oldest); span > 0 {
		recency = float64(candidate.RetrievedAt.Sub(oldest)) / float64(span)
	}

	authority := float64(a.authority[candidate.Source]) / float64(maxAuthority)
	specificity := float64(len(candidate.Answer)) / float64(maxLength)

	return a.weights.Recency*recency + a.weights.Authority*authority + a.weights.Specificity*specificity
}

func alternatives(ranked []models.NormalizedResult, limit int) []models.Alternative {
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	alts := make([]models.Alternative, 0, len(ranked))
	for _, r := range ranked {
		alts = append(alts, models.Alternative{
			Answer:     r.Answer,
			Source:     r.Source,
			Confidence: r.Confidence,
		})
	}
	return alts
}
