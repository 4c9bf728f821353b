package source

import (
	"context"
	"time"

	"github.com/askroute/backend/internal/llm"
	"github.com/askroute/backend/internal/models"
)

const NameLLM = "llm"

// LLM wraps the chat-completion client. Confidence is the model's own
// self-assessment, which is exactly why normalization exists.
type LLM struct {
	client *llm.Client
}

func NewLLM(client *llm.Client) *LLM {
	return &LLM{client: client}
}

func (l *LLM) Name() string { return NameLLM }

func (l *LLM) CanHandle(models.Query) bool { return true }

func (l *LLM) AverageLatency() time.Duration { return 3 * time.Second }

func (l *LLM) Cost() float64 { return 0.02 }

func (l *LLM) Query(ctx context.Context, q models.Query) (*models.SourceResult, error) {
	result, err := l.client.Answer(ctx, q.Text, q.Context)
	if err != nil {
		return nil, err
	}

	return &models.SourceResult{
		Source:      NameLLM,
		Answer:      result.Answer,
		Confidence:  result.Confidence,
		Reasoning:   result.Reasoning,
		TokenCount:  result.Tokens,
		RetrievedAt: time.Now(),
	}, nil
}
