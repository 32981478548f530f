package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"tutorly/internal/domain"
	"tutorly/internal/service"
	"tutorly/pkg/payment"

	"github.com/gin-gonic/gin"
)

// B2CCallback is the webhook payload from M-Pesa B2C.
type B2CCallback struct {
	Amount            string `json:"amount"`
	ConversationID    string `json:"conversation_id"`
	MerchantOrderID   string `json:"merchant_order_id"`
	OrderID           string `json:"order_id"`
	ReceiptNumber     string `json:"receipt_number"`
	ReferenceOrderID  string `json:"reference_order_id"`
	Status            string `json:"status"`
	StatusCode        string `json:"status_code"`
	StatusDescription string `json:"status_description"`
	TransactionUUID   string `json:"transaction_uuid"`
}

type PayoutWebhookHandler struct {
	payouts *service.PayoutService
	secret  string
	log     *slog.Logger
}

// NewPayoutWebhookHandler takes the secret the gateway's callback URLs were signed with.
func NewPayoutWebhookHandler(payouts *service.PayoutService, callbackSecret string, log *slog.Logger) *PayoutWebhookHandler {
	return &PayoutWebhookHandler{payouts: payouts, secret: callbackSecret, log: log.With("component", "payout_webhook")}
}

// Handle processes the B2C callback. COMPLETED settles the reservation; any
// other final status releases it back to the tutor.
func (h *PayoutWebhookHandler) Handle(c *gin.Context) {
	var payload B2CCallback
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	orderID := payload.MerchantOrderID
	if orderID == "" {
		orderID = payload.OrderID
	}
	if orderID == "" {
		orderID = payload.ReferenceOrderID
	}
	if !payment.VerifyCallbackToken(h.secret, orderID, c.Query("token")) {
		h.log.WarnContext(c.Request.Context(), "payout callback rejected", "order_id", orderID, "ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid callback token"})
		return
	}
	if payload.Status == payment.StatusPending {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	ref := payload.ReceiptNumber
	if ref == "" {
		ref = payload.TransactionUUID
	}
	p, err := h.payouts.HandleResult(c.Request.Context(), orderID, payload.Status == payment.StatusCompleted, ref, payload.StatusDescription)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		h.log.WarnContext(c.Request.Context(), "payout callback for unknown order", "order_id", orderID)
		c.JSON(http.StatusOK, gin.H{"received": true})
	case err != nil:
		h.log.ErrorContext(c.Request.Context(), "payout callback", "order_id", orderID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
	default:
		h.log.InfoContext(c.Request.Context(), "payout callback", "payout_id", p.ID, "status", p.Status)
		c.JSON(http.StatusOK, gin.H{"received": true, "status": p.Status})
	}
}
