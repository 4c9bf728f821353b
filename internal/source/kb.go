package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/askroute/backend/internal/models"
	"github.com/askroute/backend/internal/storage/sqlite"
	"github.com/askroute/backend/internal/vector/milvus"
	"github.com/askroute/backend/pkg/logger"
)

const NameKnowledgeBase = "knowledge_base"

// Embedder turns query text into a vector for the optional semantic lookup.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// KnowledgeBase answers from the local knowledge table via FTS, optionally
// fused with vector-search hits when a Milvus collection is configured. It
// is the cheapest and fastest source, so cascades try it first.
type KnowledgeBase struct {
	db         *sqlite.Client
	vectors    *milvus.Client
	embedder   Embedder
	maxResults int
}

func NewKnowledgeBase(db *sqlite.Client, vectors *milvus.Client, embedder Embedder, maxResults int) *KnowledgeBase {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &KnowledgeBase{db: db, vectors: vectors, embedder: embedder, maxResults: maxResults}
}

func (k *KnowledgeBase) Name() string { return NameKnowledgeBase }

func (k *KnowledgeBase) CanHandle(q models.Query) bool {
	return strings.TrimSpace(q.Text) != ""
}

func (k *KnowledgeBase) AverageLatency() time.Duration { return 50 * time.Millisecond }

func (k *KnowledgeBase) Cost() float64 { return 0 }

func (k *KnowledgeBase) Query(ctx context.Context, q models.Query) (*models.SourceResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := k.db.SearchKnowledge(q.Text, k.maxResults)
	if err != nil {
		return nil, fmt.Errorf("knowledge search failed: %w", err)
	}

	vectorHits := 0
	if k.vectors != nil && k.embedder != nil {
		if hits, err := k.vectorSearch(ctx, q); err != nil {
			logger.Warn("Vector lookup failed, using FTS only", zap.Error(err))
		} else {
			vectorHits = len(hits)
			entries = fuse(entries, hits, k.maxResults)
		}
	}

	if len(entries) == 0 {
		return &models.SourceResult{
			Source:      NameKnowledgeBase,
			Confidence:  0,
			Reasoning:   "no knowledge entries matched",
			RetrievedAt: time.Now(),
		}, nil
	}

	top := entries[0]
	return &models.SourceResult{
		Source:        NameKnowledgeBase,
		Answer:        answerText(top),
		Confidence:    k.confidence(q.Text, entries, vectorHits),
		Reasoning:     fmt.Sprintf("matched %d knowledge entries", len(entries)),
		DocumentCount: len(entries),
		RetrievedAt:   time.Now(),
	}, nil
}

func (k *KnowledgeBase) vectorSearch(ctx context.Context, q models.Query) ([]milvus.SearchResult, error) {
	embedding, err := k.embedder.GenerateEmbedding(ctx, q.Text)
	if err != nil {
		return nil, err
	}
	return k.vectors.Search(ctx, embedding, k.maxResults, q.Domain)
}

// confidence grows with match count, a title hit, and vector corroboration;
// it never reaches the certainty a curated answer would claim.
func (k *KnowledgeBase) confidence(queryText string, entries []sqlite.KnowledgeEntry, vectorHits int) int {
	matches := len(entries)
	if matches > 3 {
		matches = 3
	}
	confidence := 35 + 15*matches

	lowerQuery := strings.ToLower(queryText)
	if strings.Contains(lowerQuery, strings.ToLower(entries[0].Title)) ||
		strings.Contains(strings.ToLower(entries[0].Title), firstWords(lowerQuery, 3)) {
		confidence += 10
	}
	if vectorHits > 0 {
		confidence += 5
	}

	if confidence > 95 {
		confidence = 95
	}
	return confidence
}

func answerText(entry sqlite.KnowledgeEntry) string {
	body := entry.Body
	if len(body) > 600 {
		body = body[:600]
	}
	return body
}

func firstWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

// fuse appends vector hits not already present as FTS matches, keeping FTS
// rank order in front.
func fuse(entries []sqlite.KnowledgeEntry, hits []milvus.SearchResult, limit int) []sqlite.KnowledgeEntry {
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		seen[e.ID] = true
	}
	for _, hit := range hits {
		if len(entries) >= limit {
			break
		}
		if seen[hit.ChunkID] {
			continue
		}
		entries = append(entries, sqlite.KnowledgeEntry{
			ID:        hit.ChunkID,
			Title:     hit.Title,
			Body:      hit.Text,
			Domain:    hit.Domain,
			SourceURL: hit.SourceURL,
		})
	}
	return entries
}
