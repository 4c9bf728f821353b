package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/askroute/backend/internal/history"
	"github.com/askroute/backend/internal/models"
	"github.com/askroute/backend/internal/router"
	"github.com/askroute/backend/pkg/logger"
)

type QueryHandler struct {
	router  *router.Router
	history *history.Store
}

func NewQueryHandler(r *router.Router, h *history.Store) *QueryHandler {
	return &QueryHandler{
		router:  r,
		history: h,
	}
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var req struct {
		Query       string   `json:"query"`
		UserID      string   `json:"user_id"`
		Urgency     string   `json:"urgency"`
		Domain      string   `json:"domain"`
		Context     []string `json:"context"`
		BypassCache bool     `json:"bypass_cache"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}

	urgency, ok := parseUrgency(req.Urgency)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Urgency must be one of low, normal, high, critical",
		})
	}

	q := models.Query{
		Text:        req.Query,
		UserID:      req.UserID,
		Context:     req.Context,
		Urgency:     urgency,
		Domain:      req.Domain,
		SubmittedAt: time.Now(),
	}

	response, err := h.router.Route(c.Context(), q, router.Options{BypassCache: req.BypassCache})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
				"error": "Query timed out",
			})
		}
		logger.Error("Failed to route query", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process query",
		})
	}

	return c.JSON(response)
}

func (h *QueryHandler) GetQueryHistory(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 200 {
		limit = 20
	}

	records, err := h.history.History(userID, limit)
	if err != nil {
		logger.Error("Failed to load query history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load history",
		})
	}

	items := make([]fiber.Map, 0, len(records))
	for _, record := range records {
		items = append(items, fiber.Map{
			"id":         record.ID,
			"query":      record.QueryText,
			"answer":     record.Answer,
			"strategy":   record.Strategy,
			"confidence": record.Confidence,
			"cache_hit":  record.CacheHit,
			"conflict":   record.Conflict,
			"latency_ms": record.LatencyMS,
			"created_at": record.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{
		"history": items,
	})
}

func (h *QueryHandler) HandleFeedback(c *fiber.Ctx) error {
	var req struct {
		RouteID string `json:"route_id"`
		Helpful *bool  `json:"helpful"`
		Comment string `json:"comment"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.RouteID == "" || req.Helpful == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "route_id and helpful are required",
		})
	}

	fb := models.Feedback{
		RouteID:   req.RouteID,
		Helpful:   *req.Helpful,
		Comment:   req.Comment,
		CreatedAt: time.Now(),
	}

	if err := h.history.Feedback(fb); err != nil {
		logger.Error("Failed to store feedback", zap.String("route_id", req.RouteID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store feedback",
		})
	}

	return c.JSON(fiber.Map{
		"status": "recorded",
	})
}

func parseUrgency(raw string) (models.Urgency, bool) {
	switch models.Urgency(raw) {
	case "":
		return models.UrgencyNormal, true
	case models.UrgencyLow, models.UrgencyNormal, models.UrgencyHigh, models.UrgencyCritical:
		return models.Urgency(raw), true
	default:
		return "", false
	}
}
