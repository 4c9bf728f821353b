package source

import (
	"context"
	"fmt"
	"time"

	"github.com/askroute/backend/internal/models"
	"github.com/askroute/backend/internal/search/web"
)

const NameWeb = "web"

// Web is the general search fallback. It handles everything and caps its
// confidence well below the curated sources, so a cascade that reaches it
// halts rather than trusts it.
type Web struct {
	client *web.Client
}

func NewWeb(client *web.Client) *Web {
	return &Web{client: client}
}

func (w *Web) Name() string { return NameWeb }

func (w *Web) CanHandle(models.Query) bool { return true }

func (w *Web) AverageLatency() time.Duration { return 2500 * time.Millisecond }

func (w *Web) Cost() float64 { return 0.001 }

func (w *Web) Query(ctx context.Context, q models.Query) (*models.SourceResult, error) {
	results, err := w.client.Search(ctx, q.Text)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return &models.SourceResult{
			Source:      NameWeb,
			Confidence:  0,
			Reasoning:   "web search returned nothing",
			RetrievedAt: time.Now(),
		}, nil
	}

	top := results[0]
	answer := top.Snippet
	if answer == "" {
		answer = top.Title
	}
	answer = answer + "\n\nSource: " + top.URL

	confidence := 40 + 8*len(results)
	if confidence > 75 {
		confidence = 75
	}

	return &models.SourceResult{
		Source:        NameWeb,
		Answer:        answer,
		Confidence:    confidence,
		Reasoning:     fmt.Sprintf("found %d web results", len(results)),
		DocumentCount: len(results),
		RetrievedAt:   time.Now(),
	}, nil
}
