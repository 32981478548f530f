package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"tutorly/config"
	"tutorly/internal/service"
	"tutorly/pkg/payment"

	"github.com/gin-gonic/gin"
)

// verifySignature checks a hex HMAC-SHA256 of body. An unset secret refuses everything.
func verifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected))
}

// LiberecMpesaCallback is the webhook payload from TheLiberec after an STK push.
type LiberecMpesaCallback struct {
	Amount            string `json:"amount"`
	CheckoutRequestID string `json:"checkout_request_id"`
	Currency          string `json:"currency"`
	MerchantOrderID   string `json:"merchant_order_id"`
	OrderID           string `json:"order_id"`
	ReceiptNumber     string `json:"receipt_number"`
	ReferenceOrderID  string `json:"reference_order_id"`
	Status            string `json:"status"`
	StatusCode        string `json:"status_code"`
	StatusDescription string `json:"status_description"`
	TransactionUUID   string `json:"transaction_uuid"`
}

func (p LiberecMpesaCallback) orderID() string {
	switch {
	case p.MerchantOrderID != "":
		return p.MerchantOrderID
	case p.OrderID != "":
		return p.OrderID
	}
	return p.ReferenceOrderID
}

// MidtransNotification is Midtrans' HTTP notification body.
type MidtransNotification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
}

// PaymentWebhookHandler confirms gateway captures. Every variant acknowledges
// unknown references with 200 so gateways stop retrying; only storage
// failures return 5xx.
type PaymentWebhookHandler struct {
	payments *service.PaymentService
	cfg      *config.Config
	log      *slog.Logger
}

func NewPaymentWebhookHandler(payments *service.PaymentService, cfg *config.Config, log *slog.Logger) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{payments: payments, cfg: cfg, log: log.With("component", "payment_webhook")}
}

func (h *PaymentWebhookHandler) confirm(c *gin.Context, gateway, reference string, success bool) {
	b, err := h.payments.ConfirmCapture(c.Request.Context(), gateway, reference, success)
	if err != nil {
		h.log.ErrorContext(c.Request.Context(), "confirm capture", "gateway", gateway, "reference", reference, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}
	resp := gin.H{"received": true}
	if b != nil {
		resp["booking_id"] = b.ID
		resp["status"] = b.Status
	}
	c.JSON(http.StatusOK, resp)
}

// Handle is the generic webhook: { "gateway": "...", "reference": "...", "status": "COMPLETED" }
// signed with X-Webhook-Signature.
func (h *PaymentWebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if !verifySignature(h.cfg.Payment.WebhookSecret, body, c.GetHeader("X-Webhook-Signature")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}
	var payload struct {
		Gateway   string `json:"gateway"`
		Reference string `json:"reference"`
		Status    string `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if payload.Reference == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reference required"})
		return
	}
	switch strings.ToUpper(payload.Status) {
	case payment.StatusCompleted:
		h.confirm(c, payload.Gateway, payload.Reference, true)
	case payment.StatusFailed, "CANCELLED", "EXPIRED":
		h.confirm(c, payload.Gateway, payload.Reference, false)
	default:
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

// Mpesa handles TheLiberec STK callbacks keyed by our order id. The API
// offers no status lookup, so the callback must carry the token minted into
// its URL for that order.
func (h *PaymentWebhookHandler) Mpesa(c *gin.Context) {
	var payload LiberecMpesaCallback
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	orderID := payload.orderID()
	if !payment.VerifyCallbackToken(h.cfg.Payment.CallbackSecret, orderID, c.Query("token")) {
		h.log.WarnContext(c.Request.Context(), "mpesa callback rejected", "order_id", orderID, "ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid callback token"})
		return
	}
	h.log.InfoContext(c.Request.Context(), "mpesa callback", "order_id", orderID, "status", payload.Status, "status_code", payload.StatusCode)
	h.confirm(c, "mpesa", orderID, payload.Status == payment.StatusCompleted)
}

// Midtrans handles Midtrans notifications. The signature key is checked
// against the server key; pending statuses are acknowledged without effect.
func (h *PaymentWebhookHandler) Midtrans(c *gin.Context) {
	var n MidtransNotification
	if err := c.ShouldBindJSON(&n); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	expected := payment.MidtransSignature(n.OrderID, n.StatusCode, n.GrossAmount, h.cfg.Midtrans.ServerKey)
	if h.cfg.Midtrans.ServerKey == "" || !hmac.Equal([]byte(n.SignatureKey), []byte(expected)) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}
	switch {
	case payment.MidtransSettled(n.TransactionStatus, n.FraudStatus):
		h.confirm(c, "midtrans", n.OrderID, true)
	case payment.MidtransFailed(n.TransactionStatus):
		h.confirm(c, "midtrans", n.OrderID, false)
	default:
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}
