package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"tutorly/internal/domain"
	"tutorly/internal/escrow"
	"tutorly/internal/models"
	"tutorly/internal/repository"
)

// DisputeService raises and resolves disputes over held escrow and runs the
// administrative reversal of money that was already settled.
type DisputeService struct {
	store    *repository.Store
	ledger   *LedgerService
	bookings *BookingService
	now      func() time.Time
	log      *slog.Logger
}

func NewDisputeService(store *repository.Store, ledger *LedgerService, bookings *BookingService, log *slog.Logger) *DisputeService {
	return &DisputeService{store: store, ledger: ledger, bookings: bookings, now: time.Now, log: log.With("component", "dispute")}
}

// Raise freezes automatic settlement of a booking whose escrow is still held.
func (s *DisputeService) Raise(ctx context.Context, bookingID uint, actor Actor, reason string) (*models.Booking, error) {
	return s.bookings.transition(ctx, bookingID, domain.EventRaiseDispute, actor, Payload{Reason: reason},
		func(tx *repository.Store, b *models.Booking) error {
			return audit(tx, actor, "dispute.raised", b.ID, map[string]any{"reason": reason})
		})
}

type Resolution struct {
	Outcome string `json:"outcome" binding:"required"`
	// Ratio is the tutor's share for split outcomes, e.g. "0.5".
	Ratio string `json:"ratio"`
	Note  string `json:"note"`
}

// Resolve settles a disputed booking. Admin only.
func (s *DisputeService) Resolve(ctx context.Context, bookingID uint, actor Actor, r Resolution) (*models.Booking, error) {
	p := Payload{Outcome: r.Outcome}
	if r.Outcome == domain.DisputeSplit {
		ratio, err := escrow.ParseRatio(r.Ratio)
		if err != nil {
			return nil, err
		}
		p.Ratio = ratio
	}
	return s.bookings.transition(ctx, bookingID, domain.EventResolveDispute, actor, p,
		func(tx *repository.Store, b *models.Booking) error {
			return audit(tx, actor, "dispute.resolved", b.ID, map[string]any{
				"outcome":        r.Outcome,
				"ratio":          r.Ratio,
				"note":           r.Note,
				"released_cents": b.AmountReleasedCents,
				"refunded_cents": b.AmountRefundedCents,
			})
		})
}

// ReverseSettlement moves amount of an already released booking back to the
// payer: the tutor is debited the net share and the platform its commission
// share. It fails with ErrInsufficientFunds when the tutor has withdrawn the money.
func (s *DisputeService) ReverseSettlement(ctx context.Context, bookingID uint, actor Actor, amount int64, reason string) (*models.Booking, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if reason == "" {
		return nil, domain.Invalid("reason required")
	}
	var out *models.Booking
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		b, err := tx.Bookings.GetForUpdate(bookingID)
		if err != nil {
			return err
		}
		if !b.PaymentStatus.Settled() {
			return fmt.Errorf("%w: escrow is %s, resolve the dispute instead",
				&domain.TransitionError{From: b.Status, Event: "reverse_settlement"}, b.PaymentStatus)
		}
		if amount <= 0 || amount > b.AmountReleasedCents {
			return domain.Invalid("amount must be between 1 and %d", b.AmountReleasedCents)
		}

		earning, err := tx.Earnings.FindByBooking(b.ID)
		if err != nil {
			return err
		}
		var commission int64
		if earning != nil {
			commission = escrow.Commission(amount, earning.Rate)
			if left := earning.CommissionCents - earning.ReversedCents; commission > left {
				commission = left
			}
		}
		tutorShare := amount - commission

		entry := &models.AuditLog{
			UserID:     &actor.UserID,
			Action:     "settlement.reversed",
			Resource:   "booking",
			ResourceID: strconv.FormatUint(uint64(b.ID), 10),
			Metadata:   metaString(map[string]any{"amount_cents": amount, "commission_cents": commission, "reason": reason}),
		}
		if err := tx.Audit.Create(entry); err != nil {
			return err
		}
		ref := domain.Ref{Kind: domain.RefAdjustment, ID: entry.ID}
		cause := strconv.FormatUint(uint64(entry.ID), 10)

		if tutorShare > 0 {
			if _, err := s.ledger.Debit(ctx, tx, Posting{
				UserID: b.TutorID, AmountCents: tutorShare, Ref: ref, Reason: reason,
				Reference: domain.IdempotencyKey(b.Ref(), "reverse", "tutor", cause),
			}); err != nil {
				return err
			}
		}
		if commission > 0 {
			if _, err := s.ledger.Debit(ctx, tx, Posting{
				UserID: s.ledger.platformUserID, AmountCents: commission, Ref: ref, Reason: reason,
				Reference: domain.IdempotencyKey(b.Ref(), "reverse", "commission", cause),
			}); err != nil {
				return err
			}
			earning.ReversedCents += commission
			if err := tx.Earnings.Save(earning); err != nil {
				return err
			}
		}
		if _, err := s.ledger.Credit(ctx, tx, Posting{
			UserID: b.PayerID, Type: domain.EntryRefund, AmountCents: amount, Ref: ref, Reason: reason,
			Reference: domain.IdempotencyKey(b.Ref(), "reverse", "refund", cause),
		}); err != nil {
			return err
		}

		now := s.now()
		b.AmountReleasedCents -= amount
		b.AmountRefundedCents += amount
		b.FundsRefundedAt = &now
		b.PaymentStatus = settledStatus(b)
		out = b
		return tx.Bookings.Save(b)
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "settlement reversed", "booking_id", bookingID, "amount_cents", amount, "admin", actor.UserID)
	s.bookings.announce(ctx, out, "reverse_settlement")
	return out, nil
}

func audit(tx *repository.Store, actor Actor, action string, bookingID uint, meta map[string]any) error {
	var uid *uint
	if actor.UserID != 0 {
		id := actor.UserID
		uid = &id
	}
	return tx.Audit.Create(&models.AuditLog{
		UserID:     uid,
		Action:     action,
		Resource:   "booking",
		ResourceID: strconv.FormatUint(uint64(bookingID), 10),
		Metadata:   metaString(meta),
	})
}

func metaString(m map[string]any) string {
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}
