package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"tutorly/internal/service"

	"github.com/gin-gonic/gin"
)

// RoomWebhookHandler receives video room provider events.
type RoomWebhookHandler struct {
	webhooks *service.WebhookService
	secret   string
	log      *slog.Logger
}

func NewRoomWebhookHandler(webhooks *service.WebhookService, secret string, log *slog.Logger) *RoomWebhookHandler {
	return &RoomWebhookHandler{webhooks: webhooks, secret: secret, log: log.With("component", "room_webhook_handler")}
}

// Handle acknowledges every well-formed event, including ones it ignores, so
// the provider does not retry forever.
func (h *RoomWebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if !verifySignature(h.secret, body, c.GetHeader("X-Webhook-Signature")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}
	var ev service.RoomEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	outcome, err := h.webhooks.HandleRoomEvent(c.Request.Context(), ev)
	if err != nil {
		h.log.ErrorContext(c.Request.Context(), "room event", "event", ev.Event, "room", ev.Room.Name, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": outcome})
}
