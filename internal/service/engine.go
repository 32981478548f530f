package service

import (
	"log/slog"
	"time"

	"tutorly/config"
	"tutorly/internal/repository"
	"tutorly/pkg/payment"
)

// Engine wires every service over one Store.
type Engine struct {
	Store       *repository.Store
	Ledger      *LedgerService
	Bookings    *BookingService
	Payments    *PaymentService
	Attendance  *AttendanceService
	Disputes    *DisputeService
	Reschedules *RescheduleService
	Payouts     *PayoutService
	Webhooks    *WebhookService
	Sweeps      *SweepService
	Admin       *AdminService
}

type Deps struct {
	Store     *repository.Store
	Config    *config.Config
	Gateways  payment.Registry
	Payouts   payment.PayoutRouter
	Publisher EventPublisher
	Logger    *slog.Logger
	// Now overrides the clock of every service. Nil means time.Now.
	Now func() time.Time
}

func New(d Deps) *Engine {
	cfg := d.Config
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	ledger := NewLedgerService(cfg.Escrow.PlatformUserID, cfg.Payment.Currency, log)
	bookings := NewBookingService(d.Store, ledger, cfg.Escrow, d.Publisher, log)
	payments := NewPaymentService(d.Store, ledger, bookings, d.Gateways, cfg.Payment.DefaultGateway, cfg.Payment.PaymentExpiry, log)
	attendance := NewAttendanceService(d.Store, cfg.Escrow.EarlyJoinGrace, log)
	reschedules := NewRescheduleService(d.Store, bookings, cfg.Escrow.RescheduleExpiry, log)
	payouts := NewPayoutService(d.Store, ledger, d.Payouts, cfg.Payout, d.Publisher, log)
	e := &Engine{
		Store:       d.Store,
		Ledger:      ledger,
		Bookings:    bookings,
		Payments:    payments,
		Attendance:  attendance,
		Disputes:    NewDisputeService(d.Store, ledger, bookings, log),
		Reschedules: reschedules,
		Payouts:     payouts,
		Webhooks:    NewWebhookService(d.Store, bookings, attendance, log),
		Sweeps:      NewSweepService(bookings, payments, reschedules, payouts, cfg.Escrow.LateGrace, cfg.Payment.PaymentExpiry, log),
		Admin:       NewAdminService(d.Store, ledger, log),
	}
	if d.Now != nil {
		e.setClock(d.Now)
	}
	return e
}

func (e *Engine) setClock(now func() time.Time) {
	e.Ledger.now = now
	e.Bookings.now = now
	e.Payments.now = now
	e.Attendance.now = now
	e.Disputes.now = now
	e.Reschedules.now = now
	e.Payouts.now = now
	e.Webhooks.now = now
	e.Sweeps.now = now
	e.Admin.now = now
}
