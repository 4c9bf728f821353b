package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/askroute/backend/internal/models"
	"github.com/askroute/backend/internal/router"
	"github.com/askroute/backend/pkg/logger"
)

type WebSocketHandler struct {
	router *router.Router
}

func NewWebSocketHandler(r *router.Router) *WebSocketHandler {
	return &WebSocketHandler{
		router: r,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type        string `json:"type"`
			Content     string `json:"content"`
			UserID      string `json:"user_id"`
			Urgency     string `json:"urgency"`
			BypassCache bool   `json:"bypass_cache"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Error("Failed to read WebSocket message", zap.Error(err))
			break
		}

		if msg.Type != "query" || msg.Content == "" {
			continue
		}

		urgency, ok := parseUrgency(msg.Urgency)
		if !ok {
			h.sendError(c, "Invalid urgency")
			continue
		}

		logger.Info("Processing WebSocket query", zap.String("query", msg.Content))

		q := models.Query{
			Text:    msg.Content,
			UserID:  msg.UserID,
			Urgency: urgency,
		}

		err = h.streamResponse(c, q, msg.BypassCache)
		if err != nil {
			logger.Error("Failed to stream response", zap.Error(err))
			h.sendError(c, "Failed to process query")
		}
	}
}

func (h *WebSocketHandler) streamResponse(c *websocket.Conn, q models.Query, bypassCache bool) error {
	ctx := context.Background()

	h.sendChunk(c, "status", "Routing query...")

	response, err := h.router.Route(ctx, q, router.Options{BypassCache: bypassCache})
	if err != nil {
		return err
	}

	words := splitIntoWords(response.Answer)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}

		err := h.sendChunk(c, "chunk", chunk)
		if err != nil {
			return err
		}
	}

	return h.sendComplete(c, response)
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	msg := map[string]interface{}{
		"type":    msgType,
		"content": content,
	}

	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, response *models.Response) error {
	msg := map[string]interface{}{
		"type":         "complete",
		"message_id":   response.ID,
		"source":       response.Source,
		"sources":      response.Sources,
		"confidence":   response.Confidence,
		"strategy":     response.Strategy,
		"conflict":     response.Conflict,
		"cache_hit":    response.CacheHit,
		"latency_ms":   response.LatencyMS,
		"alternatives": response.Alternatives,
	}
	if response.Warning != "" {
		msg["warning"] = response.Warning
	}

	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	msg := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	c.WriteJSON(msg)
}

func splitIntoWords(text string) []string {
	words := []string{}
	currentWord := ""

	for _, char := range text {
		if char == ' ' || char == '\n' {
			if currentWord != "" {
				words = append(words, currentWord)
				currentWord = ""
			}
			if char == '\n' {
				words = append(words, "\n")
			}
		} else {
			currentWord += string(char)
		}
	}

	if currentWord != "" {
		words = append(words, currentWord)
	}

	return words
}
