package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"tutorly/config"
	"tutorly/internal/domain"
	"tutorly/internal/models"
	"tutorly/internal/repository"
	"tutorly/pkg/payment"

	"github.com/google/uuid"
)

var phoneRegex = regexp.MustCompile(`^254[0-9]{9}$`)

// PayoutService runs tutor withdrawals: request (reserve) → approve →
// gateway submission → webhook completion or failure.
type PayoutService struct {
	store    *repository.Store
	ledger   *LedgerService
	gateways payment.PayoutRouter
	cfg      config.PayoutConfig
	pub      EventPublisher
	now      func() time.Time
	log      *slog.Logger
}

func NewPayoutService(store *repository.Store, ledger *LedgerService, gateways payment.PayoutRouter, cfg config.PayoutConfig, pub EventPublisher, log *slog.Logger) *PayoutService {
	return &PayoutService{store: store, ledger: ledger, gateways: gateways, cfg: cfg, pub: pub, now: time.Now, log: log.With("component", "payout")}
}

// normalizePhone converts 07XXXXXXXX or +254XXXXXXXXX to 254XXXXXXXXX.
func normalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.TrimPrefix(phone, "+")
	if strings.HasPrefix(phone, "0") && len(phone) == 10 {
		return "254" + phone[1:]
	}
	return phone
}

type MethodInput struct {
	Kind        string `json:"kind" binding:"required"`
	Destination string `json:"destination" binding:"required"`
}

// AddMethod registers a payout destination. It is unusable until an admin verifies it.
func (s *PayoutService) AddMethod(ctx context.Context, actor Actor, in MethodInput) (*models.PayoutMethod, error) {
	dest := strings.TrimSpace(in.Destination)
	switch in.Kind {
	case domain.PayoutMethodMpesa:
		dest = normalizePhone(dest)
		if !phoneRegex.MatchString(dest) {
			return nil, domain.Invalid("invalid M-Pesa number, use 07XXXXXXXX or 254XXXXXXXXX")
		}
	case domain.PayoutMethodPayPal:
		if !strings.Contains(dest, "@") {
			return nil, domain.Invalid("invalid PayPal email")
		}
	case domain.PayoutMethodBank:
		if dest == "" {
			return nil, domain.Invalid("account number required")
		}
	default:
		return nil, domain.Invalid("unknown payout method %q", in.Kind)
	}
	m := &models.PayoutMethod{UserID: actor.UserID, Kind: in.Kind, Destination: dest}
	if err := s.store.WithContext(ctx).Payouts.CreateMethod(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *PayoutService) VerifyMethod(ctx context.Context, actor Actor, id uint) error {
	if !actor.IsAdmin() {
		return domain.ErrForbidden
	}
	st := s.store.WithContext(ctx)
	if _, err := st.Payouts.GetMethod(id); err != nil {
		return err
	}
	return st.Payouts.SetMethodVerified(id, true)
}

type PayoutInput struct {
	AmountCents int64 `json:"amount_cents" binding:"required"`
	MethodID    uint  `json:"method_id" binding:"required"`
}

// Request reserves amount on the tutor's wallet and opens a pending payout.
// The wallet row lock serializes concurrent requests, so together they can
// never exceed the available balance.
func (s *PayoutService) Request(ctx context.Context, actor Actor, in PayoutInput) (*models.Payout, error) {
	if actor.Role != domain.RoleTutor {
		return nil, fmt.Errorf("%w: only tutors withdraw earnings", domain.ErrForbidden)
	}
	var p *models.Payout
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		minimum, err := tx.Settings.PayoutMinimum(s.cfg.MinimumCents)
		if err != nil {
			return err
		}
		if in.AmountCents < minimum {
			return domain.Invalid("minimum payout is %d", minimum)
		}
		m, err := tx.Payouts.GetMethod(in.MethodID)
		if err != nil {
			return err
		}
		if m.UserID != actor.UserID {
			return domain.ErrForbidden
		}
		if !m.Verified {
			return domain.Invalid("payout method %d is not verified", m.ID)
		}
		gw, ok := s.gateways[m.Kind]
		if !ok {
			return domain.Invalid("%s payouts are not available", m.Kind)
		}
		if err := payment.CheckAmount(gw, in.AmountCents); err != nil {
			return domain.Invalid("%s: %v", m.Kind, err)
		}
		p = &models.Payout{
			UserID:      actor.UserID,
			MethodID:    m.ID,
			OrderID:     "po_" + uuid.NewString(),
			AmountCents: in.AmountCents,
			Currency:    s.ledger.currency,
			Status:      domain.PayoutPending,
			RequestedAt: s.now(),
		}
		if err := tx.Payouts.Create(p); err != nil {
			return err
		}
		e, err := s.ledger.Reserve(ctx, tx, p)
		if err != nil {
			return err
		}
		e.RefID = p.ID
		if err := tx.Ledger.Save(e); err != nil {
			return err
		}
		p.LedgerEntryID = e.ID
		return tx.Payouts.Save(p)
	})
	if err != nil {
		return nil, err
	}
	s.announce(ctx, p)
	return p, nil
}

// Approve moves a pending payout to approved and submits it to its gateway.
// A gateway failure leaves it approved for the sweep to retry.
func (s *PayoutService) Approve(ctx context.Context, actor Actor, id uint) (*models.Payout, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		p, err := tx.Payouts.GetForUpdate(id)
		if err != nil {
			return err
		}
		if p.Status != domain.PayoutPending {
			return payoutStateError(p, "approve")
		}
		now := s.now()
		by := actor.UserID
		p.Status = domain.PayoutApproved
		p.ApprovedBy = &by
		p.ApprovedAt = &now
		return tx.Payouts.Save(p)
	})
	if err != nil {
		return nil, err
	}
	if err := s.submit(ctx, id); err != nil {
		s.log.WarnContext(ctx, "payout submission deferred", "payout_id", id, "err", err)
	}
	return s.store.WithContext(ctx).Payouts.GetByID(id)
}

// submit hands an approved payout to its gateway outside any transaction.
func (s *PayoutService) submit(ctx context.Context, id uint) error {
	p, err := s.store.WithContext(ctx).Payouts.GetByID(id)
	if err != nil {
		return err
	}
	if p.Status != domain.PayoutApproved {
		return nil
	}
	resp, gwErr := s.gateways.Submit(ctx, p.Method.Kind, payment.PayoutRequest{
		OrderID:     p.OrderID,
		AmountCents: p.AmountCents,
		Currency:    p.Currency,
		Destination: p.Method.Destination,
		Description: fmt.Sprintf("Payout #%d", p.ID),
	})
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		locked, err := tx.Payouts.GetForUpdate(id)
		if err != nil {
			return err
		}
		if locked.Status != domain.PayoutApproved {
			return nil
		}
		if gwErr != nil {
			locked.SubmitAttempts++
			locked.FailureReason = gwErr.Error()
			if locked.SubmitAttempts >= s.cfg.MaxSubmitAttempts {
				locked.Status = domain.PayoutFailed
				if err := s.ledger.ReleaseReservation(ctx, tx, locked, domain.EntryFailed); err != nil {
					return err
				}
			}
			*p = *locked
			return tx.Payouts.Save(locked)
		}
		now := s.now()
		locked.Status = domain.PayoutProcessing
		locked.ProviderRef = resp.ProviderRef
		locked.ProcessedAt = &now
		locked.FailureReason = ""
		*p = *locked
		return tx.Payouts.Save(locked)
	})
	if err != nil {
		return err
	}
	s.announce(ctx, p)
	if gwErr != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, gwErr)
	}
	return nil
}

// Reject closes a pending payout and frees the reservation. Approved payouts
// may already be at the gateway, so only its callback or the retry limit
// closes them.
func (s *PayoutService) Reject(ctx context.Context, actor Actor, id uint, reason string) (*models.Payout, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if reason == "" {
		return nil, domain.Invalid("reason required")
	}
	return s.close(ctx, id, func(p *models.Payout) error {
		if p.Status != domain.PayoutPending {
			return payoutStateError(p, "reject")
		}
		now := s.now()
		p.Status = domain.PayoutRejected
		p.RejectedAt = &now
		p.FailureReason = reason
		return nil
	}, domain.EntryCancelled)
}

// Cancel lets the tutor withdraw a request before it is approved.
func (s *PayoutService) Cancel(ctx context.Context, actor Actor, id uint) (*models.Payout, error) {
	return s.close(ctx, id, func(p *models.Payout) error {
		if p.UserID != actor.UserID {
			return domain.ErrForbidden
		}
		if p.Status != domain.PayoutPending {
			return payoutStateError(p, "cancel")
		}
		p.Status = domain.PayoutCancelled
		return nil
	}, domain.EntryCancelled)
}

func (s *PayoutService) close(ctx context.Context, id uint, mutate func(p *models.Payout) error, entryStatus string) (*models.Payout, error) {
	var out *models.Payout
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		p, err := tx.Payouts.GetForUpdate(id)
		if err != nil {
			return err
		}
		if err := mutate(p); err != nil {
			return err
		}
		if err := s.ledger.ReleaseReservation(ctx, tx, p, entryStatus); err != nil {
			return err
		}
		out = p
		return tx.Payouts.Save(p)
	})
	if err != nil {
		return nil, err
	}
	s.announce(ctx, out)
	return out, nil
}

// HandleResult applies a gateway callback keyed by payout order id. Repeated
// callbacks for a finished payout are ignored.
func (s *PayoutService) HandleResult(ctx context.Context, orderID string, success bool, providerRef, reason string) (*models.Payout, error) {
	var out *models.Payout
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		p, err := tx.Payouts.GetByOrderIDForUpdate(orderID)
		if err != nil {
			return err
		}
		out = p
		if p.Status != domain.PayoutApproved && p.Status != domain.PayoutProcessing {
			s.log.InfoContext(ctx, "payout callback for closed payout", "order_id", orderID, "status", p.Status)
			return nil
		}
		now := s.now()
		if providerRef != "" {
			p.ProviderRef = providerRef
		}
		if success {
			p.Status = domain.PayoutCompleted
			p.CompletedAt = &now
			if err := s.ledger.SettleReservation(ctx, tx, p); err != nil {
				return err
			}
		} else {
			p.Status = domain.PayoutFailed
			p.FailureReason = reason
			if err := s.ledger.ReleaseReservation(ctx, tx, p, domain.EntryFailed); err != nil {
				return err
			}
		}
		return tx.Payouts.Save(p)
	})
	if err != nil {
		return nil, err
	}
	s.announce(ctx, out)
	return out, nil
}

// RetrySubmissions resubmits approved payouts whose gateway call failed.
func (s *PayoutService) RetrySubmissions(ctx context.Context, limit int) (int, error) {
	ids, err := s.store.WithContext(ctx).Payouts.ListAwaitingSubmission(limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if err := s.submit(ctx, id); err != nil {
			s.log.WarnContext(ctx, "payout retry failed", "payout_id", id, "err", err)
			continue
		}
		n++
	}
	return n, nil
}

func (s *PayoutService) ListForUser(ctx context.Context, actor Actor, page, limit int) ([]models.Payout, int64, error) {
	return s.store.WithContext(ctx).Payouts.ListByUser(actor.UserID, page, limit)
}

// Methods lists the actor's payout destinations.
func (s *PayoutService) Methods(ctx context.Context, actor Actor) ([]models.PayoutMethod, error) {
	return s.store.WithContext(ctx).Payouts.ListMethods(actor.UserID)
}

func (s *PayoutService) announce(ctx context.Context, p *models.Payout) {
	publish(ctx, s.pub, s.log, TopicPayoutUpdated, PayoutEvent{PayoutID: p.ID, UserID: p.UserID, Status: p.Status, AmountCents: p.AmountCents})
}

func payoutStateError(p *models.Payout, op string) error {
	return fmt.Errorf("%w: cannot %s payout %d in status %s", domain.ErrInvalidStateTransition, op, p.ID, p.Status)
}
