package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/askroute/backend/internal/source"
	"github.com/askroute/backend/internal/storage/sqlite"
	"github.com/askroute/backend/internal/vector/milvus"
	"github.com/askroute/backend/pkg/logger"
)

// CacheInvalidator lets the handler drop cached answers that new knowledge
// may have made stale.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

type KnowledgeHandler struct {
	db       *sqlite.Client
	vectors  *milvus.Client
	embedder source.Embedder
	cache    CacheInvalidator
}

func NewKnowledgeHandler(db *sqlite.Client, vectors *milvus.Client, embedder source.Embedder, cache CacheInvalidator) *KnowledgeHandler {
	return &KnowledgeHandler{
		db:       db,
		vectors:  vectors,
		embedder: embedder,
		cache:    cache,
	}
}

func (h *KnowledgeHandler) UploadEntry(c *fiber.Ctx) error {
	var req struct {
		Title     string `json:"title"`
		Body      string `json:"body"`
		Domain    string `json:"domain"`
		SourceURL string `json:"source_url"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Title == "" || req.Body == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "title and body are required",
		})
	}

	entry := sqlite.KnowledgeEntry{
		ID:        uuid.New().String(),
		Title:     req.Title,
		Body:      req.Body,
		Domain:    req.Domain,
		SourceURL: req.SourceURL,
	}

	if err := h.db.InsertKnowledgeEntry(&entry); err != nil {
		logger.Error("Failed to store knowledge entry", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store entry",
		})
	}

	// Vector indexing is best effort: FTS already serves the entry, so a
	// Milvus hiccup downgrades search quality instead of failing the upload.
	if h.vectors != nil && h.embedder != nil {
		if err := h.indexVector(c, entry); err != nil {
			logger.Warn("Failed to index knowledge entry vector",
				zap.String("entry_id", entry.ID),
				zap.Error(err),
			)
		}
	}

	// Cached answers predating this entry may now be wrong.
	if h.cache != nil {
		if err := h.cache.Invalidate(c.Context(), "*"); err != nil {
			logger.Warn("Failed to invalidate response cache", zap.Error(err))
		}
	}

	logger.Info("Knowledge entry stored",
		zap.String("entry_id", entry.ID),
		zap.String("title", entry.Title),
	)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":     entry.ID,
		"status": "stored",
	})
}

func (h *KnowledgeHandler) indexVector(c *fiber.Ctx, entry sqlite.KnowledgeEntry) error {
	embedding, err := h.embedder.GenerateEmbedding(c.Context(), entry.Title+"\n"+entry.Body)
	if err != nil {
		return err
	}

	return h.vectors.Insert(c.Context(), []milvus.KnowledgeChunk{{
		ID:        entry.ID,
		Embedding: embedding,
		Text:      entry.Body,
		Title:     entry.Title,
		SourceURL: entry.SourceURL,
		Domain:    entry.Domain,
		Timestamp: time.Now(),
	}})
}
