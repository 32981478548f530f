package handler

import (
	"log/slog"
	"net/http"
	"time"

	"tutorly/internal/domain"
	"tutorly/internal/models"
	"tutorly/internal/service"

	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	bookings    *service.BookingService
	payments    *service.PaymentService
	attendance  *service.AttendanceService
	disputes    *service.DisputeService
	reschedules *service.RescheduleService
	now         func() time.Time
	log         *slog.Logger
}

func NewBookingHandler(eng *service.Engine, log *slog.Logger) *BookingHandler {
	return &BookingHandler{
		bookings:    eng.Bookings,
		payments:    eng.Payments,
		attendance:  eng.Attendance,
		disputes:    eng.Disputes,
		reschedules: eng.Reschedules,
		now:         time.Now,
		log:         log.With("component", "booking_handler"),
	}
}

type bookingResponse struct {
	*models.Booking
	DisplayStatus string `json:"display_status"`
}

func (h *BookingHandler) view(b *models.Booking) bookingResponse {
	return bookingResponse{Booking: b, DisplayStatus: b.DisplayStatus(h.now())}
}

// Create handles POST /bookings. The payer is the authenticated user.
func (h *BookingHandler) Create(c *gin.Context) {
	var req service.CreateBookingInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	list, err := h.bookings.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	out := make([]bookingResponse, len(list))
	for i := range list {
		out[i] = h.view(&list[i])
	}
	c.JSON(http.StatusCreated, gin.H{"data": out})
}

// List handles GET /me/bookings?status=&include_archived=.
func (h *BookingHandler) List(c *gin.Context) {
	page, limit := parsePagination(c)
	list, total, err := h.bookings.ListForUser(c.Request.Context(), actorFrom(c), c.Query("status"), c.Query("include_archived") == "true", page, limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	out := make([]bookingResponse, len(list))
	for i := range list {
		out[i] = h.view(&list[i])
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "total": total, "page": page, "limit": limit})
}

func (h *BookingHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	b, err := h.bookings.Get(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, h.view(b))
}

// Pay handles POST /bookings/:id/pay.
func (h *BookingHandler) Pay(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req service.PayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.payments.Pay(c.Request.Context(), id, actorFrom(c), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	status := http.StatusOK
	if res.Booking.Status == domain.BookingPending {
		status = http.StatusAccepted
	}
	c.JSON(status, gin.H{
		"booking":           h.view(res.Booking),
		"payment_reference": res.Reference,
		"checkout_url":      res.CheckoutURL,
		"status":            res.Status,
	})
}

// Event returns the handler for POST /bookings/:id/<event>. Cancelling needs a reason.
func (h *BookingHandler) Event(event domain.Event) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		var req struct {
			Reason string `json:"reason"`
		}
		_ = c.ShouldBindJSON(&req)
		if event == domain.EventCancel && req.Reason == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "reason required"})
			return
		}
		b, err := h.bookings.Transition(c.Request.Context(), id, event, actorFrom(c), service.Payload{Reason: req.Reason})
		if err != nil {
			writeError(c, h.log, err)
			return
		}
		c.JSON(http.StatusOK, h.view(b))
	}
}

// Archive handles PUT /bookings/:id/archive.
func (h *BookingHandler) Archive(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Archived bool `json:"archived"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.bookings.Archive(c.Request.Context(), id, actorFrom(c), req.Archived); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "archived": req.Archived})
}

// Attendance handles GET /bookings/:id/attendance.
func (h *BookingHandler) Attendance(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	rows, err := h.attendance.History(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

// RaiseDispute handles POST /bookings/:id/dispute.
func (h *BookingHandler) RaiseDispute(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b, err := h.disputes.Raise(c.Request.Context(), id, actorFrom(c), req.Reason)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, h.view(b))
}

// RequestReschedule handles POST /bookings/:id/reschedule.
func (h *BookingHandler) RequestReschedule(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req service.RescheduleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	r, err := h.reschedules.Request(c.Request.Context(), id, actorFrom(c), req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// ListReschedules handles GET /bookings/:id/reschedules.
func (h *BookingHandler) ListReschedules(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	list, err := h.reschedules.ListForBooking(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

// RespondReschedule handles POST /reschedules/:id/approve and /reject.
func (h *BookingHandler) RespondReschedule(approve bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseID(c, "id")
		if !ok {
			return
		}
		respond := h.reschedules.Reject
		if approve {
			respond = h.reschedules.Approve
		}
		r, err := respond(c.Request.Context(), id, actorFrom(c))
		if err != nil {
			writeError(c, h.log, err)
			return
		}
		c.JSON(http.StatusOK, r)
	}
}
