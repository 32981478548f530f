package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"tutorly/internal/domain"
	"tutorly/internal/escrow"
	"tutorly/internal/models"
	"tutorly/internal/repository"

	"gorm.io/datatypes"
)

// LedgerService is the only writer of wallet balances. All methods take the
// transaction-bound Store so the caller decides the atomic unit.
type LedgerService struct {
	platformUserID uint
	currency       string
	now            func() time.Time
	log            *slog.Logger
}

func NewLedgerService(platformUserID uint, currency string, log *slog.Logger) *LedgerService {
	return &LedgerService{
		platformUserID: platformUserID,
		currency:       currency,
		now:            time.Now,
		log:            log.With("component", "ledger"),
	}
}

// Posting describes one completed movement on a wallet.
type Posting struct {
	UserID      uint
	Type        string
	AmountCents int64
	// Gateway and Reference form the idempotency key. Gateway defaults to internal.
	Gateway   string
	Reference string
	Ref       domain.Ref
	Reason    string
	Metadata  map[string]any
}

// Credit adds funds to a wallet. A replayed key returns the original entry.
func (s *LedgerService) Credit(ctx context.Context, tx *repository.Store, p Posting) (*models.LedgerEntry, error) {
	if p.Type == "" {
		p.Type = domain.EntryCredit
	}
	if !domain.IsCreditType(p.Type) {
		return nil, domain.Invalid("entry type %s is not a credit", p.Type)
	}
	e, _, err := s.post(ctx, tx, p)
	return e, err
}

// Debit removes funds from a wallet, failing with ErrInsufficientFunds when
// the available balance is short.
func (s *LedgerService) Debit(ctx context.Context, tx *repository.Store, p Posting) (*models.LedgerEntry, error) {
	if p.Type == "" {
		p.Type = domain.EntryDebit
	}
	if domain.IsCreditType(p.Type) {
		return nil, domain.Invalid("entry type %s is not a debit", p.Type)
	}
	e, _, err := s.post(ctx, tx, p)
	return e, err
}

// post writes a completed entry and applies it to the wallet. created is false
// when the key had already been used.
func (s *LedgerService) post(ctx context.Context, tx *repository.Store, p Posting) (entry *models.LedgerEntry, created bool, err error) {
	if p.AmountCents <= 0 {
		return nil, false, domain.Invalid("amount must be positive, got %d", p.AmountCents)
	}
	if p.Reference == "" {
		return nil, false, domain.Invalid("idempotency reference required")
	}
	if p.Gateway == "" {
		p.Gateway = domain.GatewayInternal
	}
	existing, err := tx.Ledger.FindByGatewayRef(p.Gateway, p.Reference)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		s.log.DebugContext(ctx, "duplicate ledger operation absorbed", "gateway", p.Gateway, "reference", p.Reference)
		return existing, false, nil
	}

	w, err := tx.Wallets.GetForUpdate(p.UserID, s.currency)
	if err != nil {
		return nil, false, err
	}
	credit := domain.IsCreditType(p.Type)
	if !credit && w.AvailableCents() < p.AmountCents {
		return nil, false, fmt.Errorf("%w: wallet of user %d has %d available, needs %d",
			domain.ErrInsufficientFunds, p.UserID, w.AvailableCents(), p.AmountCents)
	}

	now := s.now()
	e := &models.LedgerEntry{
		UserID:           p.UserID,
		Type:             p.Type,
		AmountCents:      p.AmountCents,
		Currency:         w.Currency,
		Status:           domain.EntryCompleted,
		Gateway:          p.Gateway,
		GatewayReference: p.Reference,
		RefKind:          p.Ref.Kind,
		RefID:            p.Ref.ID,
		Reason:           p.Reason,
		Metadata:         encodeMeta(p.Metadata),
		CompletedAt:      &now,
	}
	if err := tx.Ledger.Create(e); err != nil {
		if repository.IsDuplicate(err) {
			prior, ferr := tx.Ledger.FindByGatewayRef(p.Gateway, p.Reference)
			if ferr == nil && prior != nil {
				return prior, false, nil
			}
		}
		return nil, false, err
	}
	w.BalanceCents += e.SignedCents()
	if err := tx.Wallets.SaveBalances(w); err != nil {
		return nil, false, err
	}
	return e, true, nil
}

func encodeMeta(m map[string]any) datatypes.JSON {
	if len(m) == 0 {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

// Hold moves the booking price from the payer's wallet into escrow. For
// gateway payments the capture credit must already be on the wallet.
func (s *LedgerService) Hold(ctx context.Context, tx *repository.Store, b *models.Booking) error {
	if b.PaymentStatus != domain.PaymentPending {
		return fmt.Errorf("hold booking %d: payment already %s: %w", b.ID, b.PaymentStatus, domain.ErrInvalidStateTransition)
	}
	_, created, err := s.post(ctx, tx, Posting{
		UserID:      b.PayerID,
		Type:        domain.EntryBookingPayment,
		AmountCents: b.TotalPriceCents,
		Reference:   domain.IdempotencyKey(b.Ref(), "hold"),
		Ref:         b.Ref(),
		Reason:      "booking payment held in escrow",
		Metadata:    map[string]any{"source": b.PaymentSource},
	})
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	now := s.now()
	b.PaymentStatus = domain.PaymentHeld
	b.FundsHeldAt = &now
	return nil
}

// Release pays amount of the held price to the tutor, less commission.
func (s *LedgerService) Release(ctx context.Context, tx *repository.Store, b *models.Booking, amount int64, reason string) error {
	return s.release(ctx, tx, b, amount, escrow.Commission(amount, b.CommissionRate), reason)
}

func (s *LedgerService) release(ctx context.Context, tx *repository.Store, b *models.Booking, gross, commission int64, reason string) error {
	if gross <= 0 {
		return nil
	}
	if gross > b.UnsettledCents() {
		return domain.Invalid("release %d exceeds unsettled %d on booking %d", gross, b.UnsettledCents(), b.ID)
	}
	net := gross - commission
	created := false
	if net > 0 {
		_, c, err := s.post(ctx, tx, Posting{
			UserID:      b.TutorID,
			Type:        domain.EntryCredit,
			AmountCents: net,
			Reference:   domain.IdempotencyKey(b.Ref(), "release"),
			Ref:         b.Ref(),
			Reason:      reason,
			Metadata:    map[string]any{"gross_cents": gross, "commission_cents": commission},
		})
		if err != nil {
			return err
		}
		created = c
	}
	if commission > 0 {
		e, c, err := s.post(ctx, tx, Posting{
			UserID:      s.platformUserID,
			Type:        domain.EntryCommission,
			AmountCents: commission,
			Reference:   domain.IdempotencyKey(b.Ref(), "commission"),
			Ref:         b.Ref(),
			Reason:      "platform commission",
			Metadata:    map[string]any{"rate": b.CommissionRate.String()},
		})
		if err != nil {
			return err
		}
		if c {
			created = true
			if err := tx.Earnings.Create(&models.PlatformEarning{
				BookingID:       b.ID,
				LedgerEntryID:   e.ID,
				GrossCents:      gross,
				CommissionCents: commission,
				Rate:            b.CommissionRate,
				Currency:        b.Currency,
			}); err != nil {
				return err
			}
		}
	}
	if !created {
		return nil
	}
	now := s.now()
	b.AmountReleasedCents += gross
	b.FundsReleasedAt = &now
	return nil
}

// Refund returns amount of the held price to the payer's wallet. cause keeps
// keys distinct when one booking is refunded for different reasons.
func (s *LedgerService) Refund(ctx context.Context, tx *repository.Store, b *models.Booking, amount int64, reason, cause string) error {
	if amount <= 0 {
		return nil
	}
	if amount > b.UnsettledCents() {
		return domain.Invalid("refund %d exceeds unsettled %d on booking %d", amount, b.UnsettledCents(), b.ID)
	}
	var causes []string
	if cause != "" {
		causes = append(causes, cause)
	}
	_, created, err := s.post(ctx, tx, Posting{
		UserID:      b.PayerID,
		Type:        domain.EntryRefund,
		AmountCents: amount,
		Reference:   domain.IdempotencyKey(b.Ref(), "refund", causes...),
		Ref:         b.Ref(),
		Reason:      reason,
	})
	if err != nil || !created {
		return err
	}
	now := s.now()
	b.AmountRefundedCents += amount
	b.FundsRefundedAt = &now
	return nil
}

// ApplyPlan executes a settlement plan and derives the booking's payment status.
func (s *LedgerService) ApplyPlan(ctx context.Context, tx *repository.Store, b *models.Booking, plan escrow.Plan, cause string) error {
	if b.PaymentStatus != domain.PaymentHeld {
		return fmt.Errorf("settle booking %d: payment is %s: %w", b.ID, b.PaymentStatus, domain.ErrInvalidStateTransition)
	}
	if plan.ReleaseCents+plan.RefundCents > b.UnsettledCents() {
		return domain.Invalid("plan %s exceeds unsettled %d", plan, b.UnsettledCents())
	}
	if err := s.release(ctx, tx, b, plan.ReleaseCents, plan.CommissionCents, plan.Reason); err != nil {
		return err
	}
	if err := s.Refund(ctx, tx, b, plan.RefundCents, plan.Reason, cause); err != nil {
		return err
	}
	b.PaymentStatus = settledStatus(b)
	s.log.InfoContext(ctx, "booking settled", "booking_id", b.ID, "plan", plan.String(), "payment_status", b.PaymentStatus)
	return nil
}

func settledStatus(b *models.Booking) domain.PaymentStatus {
	switch {
	case b.UnsettledCents() > 0:
		return b.PaymentStatus
	case b.AmountRefundedCents == 0:
		return domain.PaymentReleased
	case b.AmountReleasedCents == 0:
		return domain.PaymentRefunded
	default:
		return domain.PaymentPartial
	}
}

// RecordCapture opens a pending gateway credit for a capture that has not
// been confirmed yet. It does not touch the balance.
func (s *LedgerService) RecordCapture(ctx context.Context, tx *repository.Store, userID uint, amount int64, gateway, reference string, ref domain.Ref) (*models.LedgerEntry, error) {
	if existing, err := tx.Ledger.FindByGatewayRef(gateway, reference); err != nil || existing != nil {
		return existing, err
	}
	e := &models.LedgerEntry{
		UserID:           userID,
		Type:             domain.EntryCredit,
		AmountCents:      amount,
		Currency:         s.currency,
		Status:           domain.EntryPending,
		Gateway:          gateway,
		GatewayReference: reference,
		RefKind:          ref.Kind,
		RefID:            ref.ID,
		Reason:           "gateway capture",
	}
	if err := tx.Ledger.Create(e); err != nil {
		return nil, err
	}
	return e, nil
}

// ConfirmPending completes a pending credit and applies it to the wallet.
// Already-completed entries are left alone.
func (s *LedgerService) ConfirmPending(ctx context.Context, tx *repository.Store, e *models.LedgerEntry) (bool, error) {
	if e.Status != domain.EntryPending {
		return false, nil
	}
	w, err := tx.Wallets.GetForUpdate(e.UserID, s.currency)
	if err != nil {
		return false, err
	}
	if !domain.IsCreditType(e.Type) && w.AvailableCents() < e.AmountCents {
		return false, fmt.Errorf("%w: confirm entry %d", domain.ErrInsufficientFunds, e.ID)
	}
	now := s.now()
	e.Status = domain.EntryCompleted
	e.CompletedAt = &now
	if err := tx.Ledger.Save(e); err != nil {
		return false, err
	}
	w.BalanceCents += e.SignedCents()
	return true, tx.Wallets.SaveBalances(w)
}

// FailPending closes a pending entry without moving money.
func (s *LedgerService) FailPending(ctx context.Context, tx *repository.Store, e *models.LedgerEntry, status string) error {
	if e.Status != domain.EntryPending {
		return nil
	}
	e.Status = status
	return tx.Ledger.Save(e)
}

// Reserve sets amount aside for a payout and opens its pending payout entry.
func (s *LedgerService) Reserve(ctx context.Context, tx *repository.Store, p *models.Payout) (*models.LedgerEntry, error) {
	w, err := tx.Wallets.GetForUpdate(p.UserID, s.currency)
	if err != nil {
		return nil, err
	}
	if w.AvailableCents() < p.AmountCents {
		return nil, fmt.Errorf("%w: %d available, payout of %d requested",
			domain.ErrInsufficientFunds, w.AvailableCents(), p.AmountCents)
	}
	e := &models.LedgerEntry{
		UserID:           p.UserID,
		Type:             domain.EntryPayout,
		AmountCents:      p.AmountCents,
		Currency:         w.Currency,
		Status:           domain.EntryPending,
		Gateway:          "payout",
		GatewayReference: p.OrderID,
		RefKind:          domain.RefPayout,
		Reason:           "payout requested",
	}
	if err := tx.Ledger.Create(e); err != nil {
		return nil, err
	}
	w.ReservedCents += p.AmountCents
	return e, tx.Wallets.SaveBalances(w)
}

// SettleReservation turns a payout reservation into a real debit.
func (s *LedgerService) SettleReservation(ctx context.Context, tx *repository.Store, p *models.Payout) error {
	e, err := tx.Ledger.GetByID(p.LedgerEntryID)
	if err != nil {
		return err
	}
	if e.Status != domain.EntryPending {
		return nil
	}
	w, err := tx.Wallets.GetForUpdate(p.UserID, s.currency)
	if err != nil {
		return err
	}
	now := s.now()
	e.Status = domain.EntryCompleted
	e.CompletedAt = &now
	if err := tx.Ledger.Save(e); err != nil {
		return err
	}
	w.BalanceCents -= p.AmountCents
	w.ReservedCents -= p.AmountCents
	return tx.Wallets.SaveBalances(w)
}

// ReleaseReservation returns a payout's reservation to the available balance.
func (s *LedgerService) ReleaseReservation(ctx context.Context, tx *repository.Store, p *models.Payout, entryStatus string) error {
	e, err := tx.Ledger.GetByID(p.LedgerEntryID)
	if err != nil {
		return err
	}
	if e.Status != domain.EntryPending {
		return nil
	}
	w, err := tx.Wallets.GetForUpdate(p.UserID, s.currency)
	if err != nil {
		return err
	}
	e.Status = entryStatus
	if err := tx.Ledger.Save(e); err != nil {
		return err
	}
	w.ReservedCents -= p.AmountCents
	return tx.Wallets.SaveBalances(w)
}

// RecomputeBalance derives a balance from completed entries.
func (s *LedgerService) RecomputeBalance(tx *repository.Store, userID uint) (int64, error) {
	credits, debits, err := tx.Ledger.CompletedTotals(userID)
	if err != nil {
		return 0, err
	}
	return credits - debits, nil
}
