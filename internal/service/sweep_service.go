package service

import (
	"context"
	"log/slog"
	"time"

	"tutorly/internal/domain"
)

const sweepBatch = 100

// SweepService reconciles what webhooks never delivered. Every step goes
// through the same locked transitions as live events, so a late webhook and
// the sweep cannot both settle a booking.
type SweepService struct {
	bookings    *BookingService
	payments    *PaymentService
	reschedules *RescheduleService
	payouts     *PayoutService
	lateGrace   time.Duration
	payExpiry   time.Duration
	now         func() time.Time
	log         *slog.Logger
}

func NewSweepService(bookings *BookingService, payments *PaymentService, reschedules *RescheduleService, payouts *PayoutService,
	lateGrace, payExpiry time.Duration, log *slog.Logger) *SweepService {
	return &SweepService{
		bookings:    bookings,
		payments:    payments,
		reschedules: reschedules,
		payouts:     payouts,
		lateGrace:   lateGrace,
		payExpiry:   payExpiry,
		now:         time.Now,
		log:         log.With("component", "sweep"),
	}
}

// SweepReport counts what one run changed.
type SweepReport struct {
	ExpiredReschedules int `json:"expired_reschedules"`
	SettledSessions    int `json:"settled_sessions"`
	ReconciledCaptures int `json:"reconciled_captures"`
	CancelledUnpaid    int `json:"cancelled_unpaid"`
	RetriedPayouts     int `json:"retried_payouts"`
}

// Run performs one reconciliation pass. Steps continue past individual failures.
func (s *SweepService) Run(ctx context.Context) SweepReport {
	ctx, span := tracer.Start(ctx, "sweep.run")
	defer span.End()

	var r SweepReport
	var err error
	if r.ExpiredReschedules, err = s.reschedules.ExpireDue(ctx, sweepBatch); err != nil {
		s.log.ErrorContext(ctx, "expire reschedules", "err", err)
	}
	if r.SettledSessions, err = s.settleEnded(ctx); err != nil {
		s.log.ErrorContext(ctx, "settle ended sessions", "err", err)
	}
	if r.ReconciledCaptures, err = s.payments.ReconcileCaptures(ctx, sweepBatch); err != nil {
		s.log.ErrorContext(ctx, "reconcile captures", "err", err)
	}
	if r.CancelledUnpaid, err = s.cancelUnpaid(ctx); err != nil {
		s.log.ErrorContext(ctx, "cancel unpaid bookings", "err", err)
	}
	if r.RetriedPayouts, err = s.payouts.RetrySubmissions(ctx, sweepBatch); err != nil {
		s.log.ErrorContext(ctx, "retry payouts", "err", err)
	}
	s.log.InfoContext(ctx, "sweep finished", "report", r)
	return r
}

func (s *SweepService) settleEnded(ctx context.Context) (int, error) {
	ids, err := s.bookings.store.WithContext(ctx).Bookings.ListEndedUnsettled(s.now().Add(-s.lateGrace), sweepBatch)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if _, err := s.bookings.Transition(ctx, id, domain.EventSessionEnded, SystemActor(), Payload{}); err != nil {
			if !IsIgnorable(err) {
				s.log.WarnContext(ctx, "settle booking failed", "booking_id", id, "err", err)
			}
			continue
		}
		n++
	}
	return n, nil
}

func (s *SweepService) cancelUnpaid(ctx context.Context) (int, error) {
	ids, err := s.bookings.store.WithContext(ctx).Bookings.ListStalePending(s.now().Add(-s.payExpiry), sweepBatch)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		_, err := s.bookings.Transition(ctx, id, domain.EventCancel, SystemActor(), Payload{Reason: "payment not received in time"})
		if err != nil {
			if !IsIgnorable(err) {
				s.log.WarnContext(ctx, "cancel unpaid booking failed", "booking_id", id, "err", err)
			}
			continue
		}
		n++
	}
	return n, nil
}
