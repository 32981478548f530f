package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tutorly/config"
	"tutorly/internal/domain"
	"tutorly/internal/escrow"
	"tutorly/internal/models"
	"tutorly/internal/repository"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MaxSeriesLength bounds repeat_weekly.
const MaxSeriesLength = 12

// BookingService owns the booking state machine. A booking row is only ever
// written through apply, inside the caller's transaction.
type BookingService struct {
	store  *repository.Store
	ledger *LedgerService
	policy escrow.Policy
	cfg    config.EscrowConfig
	pub    EventPublisher
	now    func() time.Time
	log    *slog.Logger
}

func NewBookingService(store *repository.Store, ledger *LedgerService, cfg config.EscrowConfig, pub EventPublisher, log *slog.Logger) *BookingService {
	return &BookingService{
		store:  store,
		ledger: ledger,
		policy: escrow.Policy{
			MinAttendanceRatio:     cfg.MinAttendanceRatio,
			ReleaseOnStudentNoShow: cfg.ReleaseOnStudentNoShow,
		},
		cfg: cfg,
		pub: pub,
		now: time.Now,
		log: log.With("component", "booking"),
	}
}

// Payload carries event arguments.
type Payload struct {
	Reason   string
	Source   string // pay: wallet or gateway name
	Outcome  string // resolve_dispute
	Ratio    decimal.Decimal
	NewStart time.Time // apply_reschedule
	NewEnd   time.Time
}

type CreateBookingInput struct {
	TutorID         uint      `json:"tutor_id" binding:"required"`
	SubjectID       uint      `json:"subject_id" binding:"required"`
	StartTime       time.Time `json:"start_time" binding:"required"`
	EndTime         time.Time `json:"end_time" binding:"required"`
	TotalPriceCents int64     `json:"total_price_cents" binding:"required"`
	// RepeatWeekly adds that many weekly sessions after the first, linked to it.
	RepeatWeekly int `json:"repeat_weekly"`
}

// Create books a session (or a weekly series) in pending. The current global
// commission rate is captured on every booking created.
func (s *BookingService) Create(ctx context.Context, actor Actor, in CreateBookingInput) ([]models.Booking, error) {
	now := s.now()
	switch {
	case !in.EndTime.After(in.StartTime):
		return nil, domain.Invalid("end_time must be after start_time")
	case !in.StartTime.After(now):
		return nil, domain.Invalid("start_time must be in the future")
	case in.TotalPriceCents <= 0:
		return nil, domain.Invalid("total_price_cents must be positive")
	case in.RepeatWeekly < 0 || in.RepeatWeekly > MaxSeriesLength:
		return nil, domain.Invalid("repeat_weekly must be between 0 and %d", MaxSeriesLength)
	case actor.UserID == in.TutorID:
		return nil, domain.Invalid("cannot book yourself")
	}

	fallback, err := decimal.NewFromString(s.cfg.DefaultCommissionRate)
	if err != nil {
		return nil, fmt.Errorf("default commission rate: %w", err)
	}

	var out []models.Booking
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		tutor, err := tx.Users.GetByID(in.TutorID)
		if err != nil {
			return err
		}
		if !tutor.IsTutor() {
			return domain.Invalid("user %d is not a tutor", in.TutorID)
		}
		rate, err := tx.Settings.CommissionRate(fallback)
		if err != nil {
			return err
		}
		if err := escrow.ValidateRate(rate); err != nil {
			return err
		}
		var parentID *uint
		for i := 0; i <= in.RepeatWeekly; i++ {
			shift := time.Duration(i) * 7 * 24 * time.Hour
			start, end := in.StartTime.Add(shift), in.EndTime.Add(shift)
			busy, err := tx.Bookings.HasOverlap(in.TutorID, start, end, 0)
			if err != nil {
				return err
			}
			if busy {
				return fmt.Errorf("%w: %s", domain.ErrSlotUnavailable, start.Format(time.RFC3339))
			}
			b := models.Booking{
				ParentBookingID:  parentID,
				PayerID:          actor.UserID,
				TutorID:          in.TutorID,
				SubjectID:        in.SubjectID,
				StartTime:        start.UTC(),
				EndTime:          end.UTC(),
				Status:           domain.BookingPending,
				PaymentStatus:    domain.PaymentPending,
				RequiresApproval: tutor.RequiresApproval,
				TotalPriceCents:  in.TotalPriceCents,
				Currency:         s.ledger.currency,
				CommissionRate:   rate,
			}
			if err := tx.Bookings.Create(&b); err != nil {
				return err
			}
			if parentID == nil {
				id := b.ID
				parentID = &id
			}
			out = append(out, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i := range out {
		s.announce(ctx, &out[i], "create")
	}
	return out, nil
}

// Get returns a booking visible to actor.
func (s *BookingService) Get(ctx context.Context, id uint, actor Actor) (*models.Booking, error) {
	b, err := s.store.WithContext(ctx).Bookings.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !b.IsParty(actor.UserID) && !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return b, nil
}

// Transition applies event to a booking under a row lock.
func (s *BookingService) Transition(ctx context.Context, id uint, event domain.Event, actor Actor, p Payload) (*models.Booking, error) {
	return s.transition(ctx, id, event, actor, p, nil)
}

// transition runs apply and then after in the same transaction.
func (s *BookingService) transition(ctx context.Context, id uint, event domain.Event, actor Actor, p Payload,
	after func(tx *repository.Store, b *models.Booking) error) (*models.Booking, error) {
	ctx, span := tracer.Start(ctx, "booking.transition", trace.WithAttributes(
		attribute.Int64("booking.id", int64(id)),
		attribute.String("booking.event", string(event)),
	))
	defer span.End()

	var out *models.Booking
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		b, err := s.TransitionIn(ctx, tx, id, event, actor, p)
		if err != nil {
			return err
		}
		if after != nil {
			if err := after(tx, b); err != nil {
				return err
			}
		}
		out = b
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.announce(ctx, out, event)
	return out, nil
}

// TransitionIn is Transition inside a transaction the caller owns. The caller
// must announce the result after commit.
func (s *BookingService) TransitionIn(ctx context.Context, tx *repository.Store, id uint, event domain.Event, actor Actor, p Payload) (*models.Booking, error) {
	b, err := tx.Bookings.GetForUpdate(id)
	if err != nil {
		return nil, err
	}
	if err := authorize(b, event, actor); err != nil {
		return nil, err
	}
	if err := s.apply(ctx, tx, b, event, actor, p); err != nil {
		return nil, err
	}
	return b, nil
}

func authorize(b *models.Booking, event domain.Event, a Actor) error {
	party := b.IsParty(a.UserID)
	var ok bool
	switch event {
	case domain.EventPay:
		ok = a.UserID == b.PayerID || a.IsAdmin() || a.IsSystem()
	case domain.EventApprove, domain.EventConfirm:
		ok = a.UserID == b.TutorID || a.IsAdmin() || a.IsSystem()
	case domain.EventRaiseDispute:
		ok = party || a.IsAdmin()
	case domain.EventResolveDispute:
		ok = a.IsAdmin()
	case domain.EventSessionStarted, domain.EventSessionEnded, domain.EventExpireReschedule:
		ok = a.IsSystem() || a.IsAdmin()
	default:
		ok = party || a.IsAdmin() || a.IsSystem()
	}
	if !ok {
		return fmt.Errorf("%w: user %d may not %s booking %d", domain.ErrForbidden, a.UserID, event, b.ID)
	}
	return nil
}

// apply validates event against the transition table, runs its side effects
// and saves the booking. b must be locked by tx.
func (s *BookingService) apply(ctx context.Context, tx *repository.Store, b *models.Booking, event domain.Event, actor Actor, p Payload) error {
	want := domain.BookingStatus("")
	switch event {
	case domain.EventPay:
		if b.RequiresApproval {
			want = domain.BookingAwaitingApproval
		} else {
			want = domain.BookingConfirmed
		}
	case domain.EventResolveDispute:
		if p.Outcome == domain.DisputeRefundFull {
			want = domain.BookingCancelled
		} else {
			want = domain.BookingCompleted
		}
	}
	next, err := domain.NextStatus(b.Status, event, want)
	if err != nil {
		return err
	}

	now := s.now()
	switch event {
	case domain.EventPay:
		if p.Source != "" {
			b.PaymentSource = p.Source
		}
		if b.PaymentSource == "" {
			b.PaymentSource = domain.PaymentSourceWallet
		}
		if err := s.ledger.Hold(ctx, tx, b); err != nil {
			return err
		}

	case domain.EventCancel:
		if p.Reason == "" {
			return domain.Invalid("cancellation reason required")
		}
		if b.PaymentStatus == domain.PaymentHeld {
			plan := escrow.RefundAll(b.UnsettledCents(), "booking cancelled: "+p.Reason)
			if err := s.ledger.ApplyPlan(ctx, tx, b, plan, "cancel"); err != nil {
				return err
			}
		}
		if b.Status == domain.BookingRescheduling {
			if err := closePendingReschedule(tx, b.ID, domain.RescheduleStatusRejected, actor, now); err != nil {
				return err
			}
		}
		b.CancellationReason = p.Reason
		b.CancelledAt = &now
		if actor.UserID != 0 {
			by := actor.UserID
			b.CancelledBy = &by
		}

	case domain.EventSessionStarted:
		if b.SessionStartedAt == nil {
			b.SessionStartedAt = &now
		}

	case domain.EventSessionEnded:
		att, err := s.recordAttendance(tx, b, now)
		if err != nil {
			return err
		}
		if b.Status == domain.BookingDisputed {
			s.log.InfoContext(ctx, "session ended during dispute, settlement frozen", "booking_id", b.ID)
			break
		}
		plan := s.policy.Settle(b.UnsettledCents(), b.CommissionRate, b.Duration(), att)
		b.NoShow = plan.NoShow
		if err := s.ledger.ApplyPlan(ctx, tx, b, plan, "settlement"); err != nil {
			return err
		}

	case domain.EventRaiseDispute:
		if b.PaymentStatus != domain.PaymentHeld {
			return fmt.Errorf("%w: escrow is %s", &domain.TransitionError{From: b.Status, Event: event}, b.PaymentStatus)
		}
		if now.After(b.EndTime.Add(s.cfg.DisputeClaimWindow)) {
			return domain.Invalid("dispute window closed at %s", b.EndTime.Add(s.cfg.DisputeClaimWindow).Format(time.RFC3339))
		}
		if p.Reason == "" {
			return domain.Invalid("dispute reason required")
		}
		by := actor.UserID
		b.DisputeRaisedAt = &now
		b.DisputeRaisedBy = &by
		b.DisputeReason = p.Reason

	case domain.EventResolveDispute:
		plan, err := s.resolutionPlan(b, p)
		if err != nil {
			return err
		}
		if err := s.ledger.ApplyPlan(ctx, tx, b, plan, "dispute"); err != nil {
			return err
		}
		by := actor.UserID
		b.DisputeResolvedAt = &now
		b.DisputeResolution = p.Outcome
		b.DisputeResolvedBy = &by
		if next == domain.BookingCancelled {
			b.CancelledAt = &now
			b.CancellationReason = "dispute refunded"
		}

	case domain.EventApplyReschedule:
		if !p.NewEnd.After(p.NewStart) {
			return domain.Invalid("reschedule window is empty")
		}
		b.StartTime = p.NewStart.UTC()
		b.EndTime = p.NewEnd.UTC()
	}

	b.Status = next
	return tx.Bookings.Save(b)
}

func (s *BookingService) resolutionPlan(b *models.Booking, p Payload) (escrow.Plan, error) {
	total := b.UnsettledCents()
	switch p.Outcome {
	case domain.DisputeReleaseFull:
		return escrow.ReleaseAll(total, b.CommissionRate, "dispute resolved for tutor"), nil
	case domain.DisputeRefundFull:
		return escrow.RefundAll(total, "dispute resolved for payer"), nil
	case domain.DisputeSplit:
		if p.Ratio.IsNegative() || p.Ratio.GreaterThan(decimal.NewFromInt(1)) {
			return escrow.Plan{}, domain.Invalid("ratio %s outside 0..1", p.Ratio)
		}
		return escrow.Split(total, b.CommissionRate, p.Ratio, "dispute split "+p.Ratio.String()), nil
	}
	return escrow.Plan{}, domain.Invalid("unknown dispute outcome %q", p.Outcome)
}

// recordAttendance closes open intervals and stores what each party attended.
func (s *BookingService) recordAttendance(tx *repository.Store, b *models.Booking, now time.Time) (escrow.Attendance, error) {
	rows, err := tx.Attendance.ListForBooking(b.ID)
	if err != nil {
		return escrow.Attendance{}, err
	}
	closeAt := b.EndTime
	if now.Before(closeAt) {
		closeAt = now
	}
	var tutor, student, all []escrow.Interval
	for i := range rows {
		a := &rows[i]
		if a.LeftAt == nil {
			left := closeAt
			if left.Before(a.JoinedAt) {
				left = a.JoinedAt
			}
			a.LeftAt = &left
			a.DurationSeconds = int64(left.Sub(a.JoinedAt) / time.Second)
			if err := tx.Attendance.Save(a); err != nil {
				return escrow.Attendance{}, err
			}
		}
		iv := escrow.Interval{Start: a.JoinedAt, End: *a.LeftAt}
		switch a.UserID {
		case b.TutorID:
			tutor = append(tutor, iv)
		case b.PayerID:
			student = append(student, iv)
		}
		all = append(all, iv)
	}
	att := escrow.Attendance{
		TutorSeconds:   escrow.AttendedSeconds(tutor, b.StartTime, b.EndTime),
		StudentSeconds: escrow.AttendedSeconds(student, b.StartTime, b.EndTime),
	}
	session := b.Duration()
	b.TeacherAttended = s.policy.Present(att.TutorSeconds, session)
	b.StudentAttended = s.policy.Present(att.StudentSeconds, session)
	b.ActualDurationMinutes = int(escrow.AttendedSeconds(all, b.StartTime, b.EndTime) / 60)
	b.SessionEndedAt = &now
	return att, nil
}

// closePendingReschedule resolves the booking's pending request, if any.
func closePendingReschedule(tx *repository.Store, bookingID uint, status string, actor Actor, now time.Time) error {
	req, err := tx.Reschedules.PendingForBooking(bookingID)
	if err != nil || req == nil {
		return err
	}
	req.Status = status
	req.PendingBookingID = nil
	req.RespondedAt = &now
	if actor.UserID != 0 {
		by := actor.UserID
		req.RespondedBy = &by
	}
	return tx.Reschedules.Save(req)
}

// ListForUser returns the actor's bookings.
func (s *BookingService) ListForUser(ctx context.Context, actor Actor, status string, includeArchived bool, page, limit int) ([]models.Booking, int64, error) {
	return s.store.WithContext(ctx).Bookings.ListForUser(actor.UserID, status, includeArchived, page, limit)
}

// Archive hides a finished booking from default listings. Its financial rows are kept.
func (s *BookingService) Archive(ctx context.Context, id uint, actor Actor, archived bool) error {
	b, err := s.Get(ctx, id, actor)
	if err != nil {
		return err
	}
	if b.Status != domain.BookingCompleted && b.Status != domain.BookingCancelled {
		return &domain.TransitionError{From: b.Status, Event: "archive"}
	}
	return s.store.WithContext(ctx).Bookings.SetArchived(id, archived)
}

// announce publishes the booking's new state.
func (s *BookingService) announce(ctx context.Context, b *models.Booking, event domain.Event) {
	key := TopicBookingUpdated
	if b.PaymentStatus.Settled() && (event == domain.EventSessionEnded || event == domain.EventResolveDispute || event == domain.EventCancel) {
		key = TopicBookingSettled
	}
	publish(ctx, s.pub, s.log, key, BookingEvent{
		BookingID:     b.ID,
		Event:         event,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		ReleasedCents: b.AmountReleasedCents,
		RefundedCents: b.AmountRefundedCents,
		NoShow:        b.NoShow,
	})
}

// IsIgnorable reports errors a webhook should acknowledge without retrying.
func IsIgnorable(err error) bool {
	return errors.Is(err, domain.ErrInvalidStateTransition)
}
