package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/askroute/backend/internal/models"
	"github.com/askroute/backend/internal/search/docs"
)

const NameDocs = "docs"

// Docs searches official documentation. It carries the highest configured
// authority in conflict tie-breaks.
type Docs struct {
	client *docs.Client
}

func NewDocs(client *docs.Client) *Docs {
	return &Docs{client: client}
}

func (d *Docs) Name() string { return NameDocs }

// CanHandle filters out queries too short to make a meaningful site-scoped
// search ("hi", "thanks").
func (d *Docs) CanHandle(q models.Query) bool {
	return len(strings.Fields(q.Text)) >= 3
}

func (d *Docs) AverageLatency() time.Duration { return 2 * time.Second }

func (d *Docs) Cost() float64 { return 0 }

func (d *Docs) Query(ctx context.Context, q models.Query) (*models.SourceResult, error) {
	results, err := d.client.Search(ctx, q.Text)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return &models.SourceResult{
			Source:      NameDocs,
			Confidence:  0,
			Reasoning:   "no documentation pages matched",
			RetrievedAt: time.Now(),
		}, nil
	}

	top := results[0]
	answer := top.Content
	if answer == "" {
		answer = top.Snippet
	}
	if len(answer) > 600 {
		answer = answer[:600]
	}
	answer = answer + "\n\nSource: " + top.URL

	return &models.SourceResult{
		Source:        NameDocs,
		Answer:        answer,
		Confidence:    docsConfidence(q.Text, results),
		Reasoning:     fmt.Sprintf("found %d documentation pages", len(results)),
		DocumentCount: len(results),
		RetrievedAt:   time.Now(),
	}, nil
}

func docsConfidence(queryText string, results []docs.Result) int {
	count := len(results)
	if count > 3 {
		count = 3
	}
	confidence := 45 + 12*count

	topTitle := strings.ToLower(results[0].Title)
	for _, word := range strings.Fields(strings.ToLower(queryText)) {
		if len(word) > 3 && strings.Contains(topTitle, word) {
			confidence += 9
			break
		}
	}

	if confidence > 90 {
		confidence = 90
	}
	return confidence
}
