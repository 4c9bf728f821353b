package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/askroute/backend/pkg/circuitbreaker"
	"github.com/askroute/backend/pkg/logger"
	"github.com/askroute/backend/pkg/retry"
)

type Client struct {
	client         *openai.Client
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
	timeout        time.Duration
	breaker        *circuitbreaker.Breaker
	retryPolicy    retry.Policy
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

type CompletionResponse struct {
	Content     string
	TotalTokens int
}

// AnswerResult is the model's answer with its self-assessed confidence.
type AnswerResult struct {
	Answer     string
	Confidence int
	Reasoning  string
	Tokens     int
}

func NewClient(apiKey, model, embeddingModel string, temperature float32, maxTokens, timeoutSec int) *Client {
	breaker := circuitbreaker.New("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryPolicy := retry.Policy{
		Attempts:  3,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  5 * time.Second,
		Factor:    2.0,
		Jitter:    0.1,
		Logger:    logger.GetLogger(),
	}

	logger.Info("LLM client initialized",
		zap.String("model", model),
		zap.String("embedding_model", embeddingModel),
	)

	return &Client{
		client:         openai.NewClient(apiKey),
		model:          model,
		embeddingModel: embeddingModel,
		temperature:    temperature,
		maxTokens:      maxTokens,
		timeout:        time.Duration(timeoutSec) * time.Second,
		breaker:        breaker,
		retryPolicy:    retryPolicy,
	}
}

const answerSystemPrompt = `You are a careful technical assistant. Answer the user's question.
Rate how confident you are that your answer is correct on a 0-100 scale.
Return ONLY JSON: {"answer":"...","confidence":0-100,"reasoning":"one short sentence"}.`

// Answer asks the model for an answer plus a self-assessed confidence. The
// model is the only source whose confidence is self-reported free-form, so
// a malformed reply is an error, not a fabricated low-confidence result.
func (c *Client) Answer(ctx context.Context, question string, priorTurns []string) (*AnswerResult, error) {
	userPrompt := question
	if len(priorTurns) > 0 {
		userPrompt = fmt.Sprintf("Conversation so far:\n%s\n\nQuestion: %s",
			strings.Join(priorTurns, "\n"), question)
	}

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: answerSystemPrompt,
		UserPrompt:   userPrompt,
	})
	if err != nil {
		return nil, err
	}

	result, err := parseAnswer(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("llm returned unparseable answer: %w", err)
	}
	result.Tokens = resp.TotalTokens
	return result, nil
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
	}

	var result *CompletionResponse

	err := c.breaker.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryPolicy, func() error {
			resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:       c.model,
				Messages:    messages,
				Temperature: temperature,
				MaxTokens:   maxTokens,
			})
			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}

			logger.Debug("LLM completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			result = &CompletionResponse{
				Content:     resp.Choices[0].Message.Content,
				TotalTokens: resp.Usage.TotalTokens,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var embedding []float32

	err := c.breaker.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryPolicy, func() error {
			resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Input: []string{text},
				Model: openai.EmbeddingModel(c.embeddingModel),
			})
			if err != nil {
				return fmt.Errorf("failed to generate embedding: %w", err)
			}

			embedding = make([]float32, len(resp.Data[0].Embedding))
			copy(embedding, resp.Data[0].Embedding)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return embedding, nil
}

func parseAnswer(content string) (*AnswerResult, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var parsed struct {
		Answer     string `json:"answer"`
		Confidence int    `json:"confidence"`
		Reasoning  string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, err
	}
	if parsed.Answer == "" {
		return nil, fmt.Errorf("missing answer")
	}
	if parsed.Confidence < 0 || parsed.Confidence > 100 {
		return nil, fmt.Errorf("confidence %d outside [0,100]", parsed.Confidence)
	}

	return &AnswerResult{
		Answer:     parsed.Answer,
		Confidence: parsed.Confidence,
		Reasoning:  parsed.Reasoning,
	}, nil
}
