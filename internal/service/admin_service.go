package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"tutorly/internal/domain"
	"tutorly/internal/escrow"
	"tutorly/internal/models"
	"tutorly/internal/repository"

	"github.com/shopspring/decimal"
)

// AdminService holds settings changes and manual ledger corrections.
type AdminService struct {
	store  *repository.Store
	ledger *LedgerService
	now    func() time.Time
	log    *slog.Logger
}

func NewAdminService(store *repository.Store, ledger *LedgerService, log *slog.Logger) *AdminService {
	return &AdminService{store: store, ledger: ledger, now: time.Now, log: log.With("component", "admin")}
}

// UpdateSetting validates and stores a setting. A new commission rate only
// applies to bookings created afterwards.
func (s *AdminService) UpdateSetting(ctx context.Context, actor Actor, key, value string) error {
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	switch key {
	case domain.SettingCommissionRate:
		rate, err := decimal.NewFromString(value)
		if err != nil {
			return domain.Invalid("commission rate %q", value)
		}
		if err := escrow.ValidateRate(rate); err != nil {
			return err
		}
		value = rate.StringFixed(2)
	case domain.SettingPayoutMinimum:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n <= 0 {
			return domain.Invalid("payout minimum must be a positive integer of cents")
		}
	default:
		return domain.Invalid("unknown setting %q", key)
	}
	return s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Settings.Set(key, value); err != nil {
			return err
		}
		uid := actor.UserID
		return tx.Audit.Create(&models.AuditLog{
			UserID:     &uid,
			Action:     "setting.updated",
			Resource:   "setting",
			ResourceID: key,
			Metadata:   metaString(map[string]any{"value": value}),
		})
	})
}

type AdjustmentInput struct {
	UserID uint `json:"user_id" binding:"required"`
	// AmountCents is signed: positive credits, negative debits.
	AmountCents int64  `json:"amount_cents" binding:"required"`
	Reason      string `json:"reason" binding:"required"`
}

// Adjust posts an offsetting correction entry. Entries are never edited.
func (s *AdminService) Adjust(ctx context.Context, actor Actor, in AdjustmentInput) (*models.LedgerEntry, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if in.AmountCents == 0 {
		return nil, domain.Invalid("amount must be non-zero")
	}
	var out *models.LedgerEntry
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		uid := actor.UserID
		a := &models.AuditLog{
			UserID:     &uid,
			Action:     "ledger.adjusted",
			Resource:   "wallet",
			ResourceID: strconv.FormatUint(uint64(in.UserID), 10),
			Metadata:   metaString(map[string]any{"amount_cents": in.AmountCents, "reason": in.Reason}),
		}
		if err := tx.Audit.Create(a); err != nil {
			return err
		}
		ref := domain.Ref{Kind: domain.RefAdjustment, ID: a.ID}
		p := Posting{UserID: in.UserID, Ref: ref, Reason: in.Reason, Reference: domain.IdempotencyKey(ref, "adjust")}
		var err error
		if in.AmountCents > 0 {
			p.AmountCents = in.AmountCents
			out, err = s.ledger.Credit(ctx, tx, p)
		} else {
			p.AmountCents = -in.AmountCents
			out, err = s.ledger.Debit(ctx, tx, p)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "ledger adjusted", "user_id", in.UserID, "amount_cents", in.AmountCents, "admin", actor.UserID)
	return out, nil
}

func (s *AdminService) Dashboard(ctx context.Context) (*repository.DashboardStats, error) {
	return s.store.WithContext(ctx).Admin.GetDashboardStats()
}

// Wallet returns a user's wallet together with the balance derived from the ledger.
func (s *AdminService) Wallet(ctx context.Context, userID uint) (*models.Wallet, int64, error) {
	st := s.store.WithContext(ctx)
	w, err := st.Wallets.GetOrCreate(userID, s.ledger.currency)
	if err != nil {
		return nil, 0, err
	}
	derived, err := s.ledger.RecomputeBalance(st, userID)
	if err != nil {
		return nil, 0, err
	}
	return w, derived, nil
}

func (s *AdminService) Settings(ctx context.Context) ([]models.SystemSetting, error) {
	return s.store.WithContext(ctx).Settings.GetAll()
}

func (s *AdminService) ListBookings(ctx context.Context, status string, page, limit int) ([]models.Booking, int64, error) {
	return s.store.WithContext(ctx).Admin.ListBookings(status, page, limit)
}

func (s *AdminService) ListLedger(ctx context.Context, entryType string, page, limit int) ([]models.LedgerEntry, int64, error) {
	return s.store.WithContext(ctx).Admin.ListLedger(entryType, page, limit)
}

func (s *AdminService) ListPayouts(ctx context.Context, status string, page, limit int) ([]models.Payout, int64, error) {
	return s.store.WithContext(ctx).Admin.ListPayouts(status, page, limit)
}

// AuditTrail returns the audit rows of one booking.
func (s *AdminService) AuditTrail(ctx context.Context, bookingID uint) ([]models.AuditLog, error) {
	return s.store.WithContext(ctx).Audit.ListByResource("booking", strconv.FormatUint(uint64(bookingID), 10))
}
