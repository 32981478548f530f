package handler

import (
	"log/slog"
	"net/http"

	"tutorly/internal/service"

	"github.com/gin-gonic/gin"
)

type PayoutHandler struct {
	payouts *service.PayoutService
	log     *slog.Logger
}

func NewPayoutHandler(payouts *service.PayoutService, log *slog.Logger) *PayoutHandler {
	return &PayoutHandler{payouts: payouts, log: log.With("component", "payout_handler")}
}

// AddMethod handles POST /me/payout-methods. Tutor only.
func (h *PayoutHandler) AddMethod(c *gin.Context) {
	var req service.MethodInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := h.payouts.AddMethod(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *PayoutHandler) ListMethods(c *gin.Context) {
	list, err := h.payouts.Methods(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

// Create handles POST /me/payouts. The amount is reserved immediately; money
// leaves only after an admin approves.
func (h *PayoutHandler) Create(c *gin.Context) {
	var req service.PayoutInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.payouts.Request(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *PayoutHandler) List(c *gin.Context) {
	page, limit := parsePagination(c)
	list, total, err := h.payouts.ListForUser(c.Request.Context(), actorFrom(c), page, limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total, "page": page, "limit": limit})
}

// Cancel handles POST /me/payouts/:id/cancel.
func (h *PayoutHandler) Cancel(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	p, err := h.payouts.Cancel(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Approve handles POST /admin/payouts/:id/approve.
func (h *PayoutHandler) Approve(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	p, err := h.payouts.Approve(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Reject handles POST /admin/payouts/:id/reject.
func (h *PayoutHandler) Reject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)
	p, err := h.payouts.Reject(c.Request.Context(), actorFrom(c), id, req.Reason)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// VerifyMethod handles POST /admin/payout-methods/:id/verify.
func (h *PayoutHandler) VerifyMethod(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.payouts.VerifyMethod(c.Request.Context(), actorFrom(c), id); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
