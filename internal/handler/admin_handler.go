package handler

import (
	"log/slog"
	"net/http"

	"tutorly/internal/service"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	admin    *service.AdminService
	disputes *service.DisputeService
	sweeps   *service.SweepService
	log      *slog.Logger
}

func NewAdminHandler(eng *service.Engine, log *slog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:    eng.Admin,
		disputes: eng.Disputes,
		sweeps:   eng.Sweeps,
		log:      log.With("component", "admin_handler"),
	}
}

// Dashboard handles GET /admin/dashboard.
func (h *AdminHandler) Dashboard(c *gin.Context) {
	stats, err := h.admin.Dashboard(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListBookings handles GET /admin/bookings?status=.
func (h *AdminHandler) ListBookings(c *gin.Context) {
	page, limit := parsePagination(c)
	list, total, err := h.admin.ListBookings(c.Request.Context(), c.Query("status"), page, limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total, "page": page, "limit": limit})
}

// ListLedger handles GET /admin/ledger?type=.
func (h *AdminHandler) ListLedger(c *gin.Context) {
	page, limit := parsePagination(c)
	list, total, err := h.admin.ListLedger(c.Request.Context(), c.Query("type"), page, limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total, "page": page, "limit": limit})
}

// ListPayouts handles GET /admin/payouts?status=.
func (h *AdminHandler) ListPayouts(c *gin.Context) {
	page, limit := parsePagination(c)
	list, total, err := h.admin.ListPayouts(c.Request.Context(), c.Query("status"), page, limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total, "page": page, "limit": limit})
}

// GetWallet handles GET /admin/wallets/:user_id. It reports drift between the
// stored balance and the one derived from completed entries.
func (h *AdminHandler) GetWallet(c *gin.Context) {
	userID, ok := parseID(c, "user_id")
	if !ok {
		return
	}
	w, derived, err := h.admin.Wallet(c.Request.Context(), userID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallet": w, "derived_balance_cents": derived, "consistent": derived == w.BalanceCents})
}

// Adjust handles POST /admin/adjustments.
func (h *AdminHandler) Adjust(c *gin.Context) {
	var req service.AdjustmentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	e, err := h.admin.Adjust(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

// GetSettings handles GET /admin/settings.
func (h *AdminHandler) GetSettings(c *gin.Context) {
	settings, err := h.admin.Settings(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": settings})
}

// UpdateSetting handles PUT /admin/settings/:key.
func (h *AdminHandler) UpdateSetting(c *gin.Context) {
	var req struct {
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.admin.UpdateSetting(c.Request.Context(), actorFrom(c), c.Param("key"), req.Value); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "key": c.Param("key"), "value": req.Value})
}

// ResolveDispute handles POST /admin/bookings/:id/resolve.
func (h *AdminHandler) ResolveDispute(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req service.Resolution
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b, err := h.disputes.Resolve(c.Request.Context(), id, actorFrom(c), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// ReverseSettlement handles POST /admin/bookings/:id/reverse.
func (h *AdminHandler) ReverseSettlement(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		AmountCents int64  `json:"amount_cents" binding:"required"`
		Reason      string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b, err := h.disputes.ReverseSettlement(c.Request.Context(), id, actorFrom(c), req.AmountCents, req.Reason)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// AuditTrail handles GET /admin/bookings/:id/audit.
func (h *AdminHandler) AuditTrail(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	list, err := h.admin.AuditTrail(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

// RunSweep handles POST /admin/sweep. It runs one pass in-request, bypassing
// the schedule.
func (h *AdminHandler) RunSweep(c *gin.Context) {
	c.JSON(http.StatusOK, h.sweeps.Run(c.Request.Context()))
}
