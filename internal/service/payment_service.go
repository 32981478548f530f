package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tutorly/internal/domain"
	"tutorly/internal/models"
	"tutorly/internal/repository"
	"tutorly/pkg/payment"

	"github.com/google/uuid"
)

// PaymentService captures booking payments through external gateways using
// initiate → await → confirm-and-commit. No lock is held across gateway I/O.
type PaymentService struct {
	store          *repository.Store
	ledger         *LedgerService
	bookings       *BookingService
	gateways       payment.Registry
	defaultGateway string
	expiry         time.Duration
	now            func() time.Time
	log            *slog.Logger
}

func NewPaymentService(store *repository.Store, ledger *LedgerService, bookings *BookingService, gateways payment.Registry,
	defaultGateway string, expiry time.Duration, log *slog.Logger) *PaymentService {
	return &PaymentService{
		store:          store,
		ledger:         ledger,
		bookings:       bookings,
		gateways:       gateways,
		defaultGateway: defaultGateway,
		expiry:         expiry,
		now:            time.Now,
		log:            log.With("component", "payment"),
	}
}

type PayRequest struct {
	// Gateway is "wallet" or a registered gateway name; empty uses the default gateway.
	Gateway string `json:"gateway"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

type PayResult struct {
	Booking     *models.Booking `json:"booking"`
	Reference   string          `json:"payment_reference,omitempty"`
	CheckoutURL string          `json:"checkout_url,omitempty"`
	Status      string          `json:"status"`
}

// Pay funds a pending booking from the payer's wallet or starts a gateway capture.
func (s *PaymentService) Pay(ctx context.Context, bookingID uint, actor Actor, req PayRequest) (*PayResult, error) {
	gateway := req.Gateway
	if gateway == "" {
		gateway = s.defaultGateway
	}
	if gateway == domain.PaymentSourceWallet {
		b, err := s.bookings.Transition(ctx, bookingID, domain.EventPay, actor, Payload{Source: domain.PaymentSourceWallet})
		if err != nil {
			return nil, err
		}
		return &PayResult{Booking: b, Status: payment.StatusCompleted}, nil
	}
	provider, err := s.gateways.Get(gateway)
	if err != nil {
		return nil, domain.Invalid("%v", err)
	}

	orderID := "pay_" + uuid.NewString()
	var b *models.Booking
	var entry *models.LedgerEntry
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		var err error
		b, err = tx.Bookings.GetForUpdate(bookingID)
		if err != nil {
			return err
		}
		if err := authorize(b, domain.EventPay, actor); err != nil {
			return err
		}
		if !domain.CanApply(b.Status, domain.EventPay) || b.PaymentStatus != domain.PaymentPending {
			return &domain.TransitionError{From: b.Status, Event: domain.EventPay}
		}
		if err := payment.CheckAmount(provider, b.TotalPriceCents); err != nil {
			return domain.Invalid("%s: %v", gateway, err)
		}
		entry, err = s.ledger.RecordCapture(ctx, tx, b.PayerID, b.TotalPriceCents, gateway, orderID, b.Ref())
		if err != nil {
			return err
		}
		b.PaymentSource = gateway
		b.PaymentRef = orderID
		return tx.Bookings.Save(b)
	})
	if err != nil {
		return nil, err
	}

	resp, err := provider.InitiatePayment(ctx, payment.PaymentRequest{
		UserID:         b.PayerID,
		AmountCents:    b.TotalPriceCents,
		Currency:       b.Currency,
		IdempotencyKey: orderID,
		OrderID:        orderID,
		ExpiresIn:      s.expiry,
		Description:    fmt.Sprintf("Tutoring session #%d", b.ID),
		CustomerPhone:  req.Phone,
		CustomerEmail:  req.Email,
	})
	if err != nil {
		s.log.WarnContext(ctx, "gateway initiate failed", "gateway", gateway, "booking_id", b.ID, "err", err)
		ferr := s.store.Transaction(ctx, func(tx *repository.Store) error {
			return s.ledger.FailPending(ctx, tx, entry, domain.EntryFailed)
		})
		if ferr != nil {
			s.log.ErrorContext(ctx, "could not close failed capture", "reference", orderID, "err", ferr)
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrGatewayUnavailable, gateway, err)
	}

	result := &PayResult{Booking: b, Reference: orderID, CheckoutURL: resp.CheckoutURL, Status: resp.Status}
	if resp.Status == payment.StatusCompleted {
		confirmed, err := s.ConfirmCapture(ctx, gateway, orderID, true)
		if err != nil {
			return nil, err
		}
		if confirmed != nil {
			result.Booking = confirmed
		}
	}
	return result, nil
}

// ConfirmCapture applies a gateway's verdict on a capture. A successful
// capture credits the payer's wallet and, if the booking still awaits
// payment, holds it in escrow. Unknown or already handled references return
// (nil, nil) so webhooks can acknowledge them.
func (s *PaymentService) ConfirmCapture(ctx context.Context, gateway, reference string, success bool) (*models.Booking, error) {
	var b *models.Booking
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		b = nil
		entry, err := s.lookup(tx, gateway, reference)
		if err != nil {
			return err
		}
		if entry == nil {
			s.log.WarnContext(ctx, "unmatched capture reference", "gateway", gateway, "reference", reference)
			return nil
		}
		// booking row first, then the entry and wallet, same order as every other path
		var booking *models.Booking
		if entry.RefKind == domain.RefBooking {
			if booking, err = tx.Bookings.GetForUpdate(entry.RefID); err != nil {
				return err
			}
		}
		entry, err = tx.Ledger.FindByGatewayRefForUpdate(entry.Gateway, entry.GatewayReference)
		if err != nil || entry == nil {
			return err
		}
		if entry.Status != domain.EntryPending {
			s.log.InfoContext(ctx, "capture already handled", "reference", reference, "status", entry.Status)
			return nil
		}
		if !success {
			return s.ledger.FailPending(ctx, tx, entry, domain.EntryFailed)
		}
		if _, err := s.ledger.ConfirmPending(ctx, tx, entry); err != nil {
			return err
		}
		if booking == nil {
			return nil
		}
		if booking.Status != domain.BookingPending || booking.PaymentStatus != domain.PaymentPending || booking.PaymentRef != entry.GatewayReference {
			s.log.WarnContext(ctx, "capture for booking no longer awaiting it, funds left in wallet",
				"booking_id", booking.ID, "status", booking.Status, "reference", reference)
			return nil
		}
		if err := s.bookings.apply(ctx, tx, booking, domain.EventPay, SystemActor(), Payload{}); err != nil {
			return err
		}
		b = booking
		return nil
	})
	if err != nil {
		return nil, err
	}
	if b != nil {
		s.bookings.announce(ctx, b, domain.EventPay)
	}
	return b, nil
}

func (s *PaymentService) lookup(tx *repository.Store, gateway, reference string) (*models.LedgerEntry, error) {
	if reference == "" {
		return nil, nil
	}
	if gateway != "" {
		return tx.Ledger.FindByGatewayRef(gateway, reference)
	}
	return tx.Ledger.FindPendingByReference(reference)
}

// ReconcileCaptures asks gateways about captures that never got a webhook.
// Captures older than the payment expiry that did not settle are failed.
func (s *PaymentService) ReconcileCaptures(ctx context.Context, limit int) (int, error) {
	now := s.now()
	pending, err := s.store.WithContext(ctx).Ledger.ListPendingCaptures(now.Add(-time.Minute), limit)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, e := range pending {
		provider, err := s.gateways.Get(e.Gateway)
		if errors.Is(err, payment.ErrUnknownGateway) {
			continue
		}
		settled, err := provider.VerifyPayment(ctx, e.GatewayReference)
		if err != nil {
			s.log.WarnContext(ctx, "verify capture failed", "reference", e.GatewayReference, "err", err)
			continue
		}
		expired := now.Sub(e.CreatedAt) > s.expiry
		if !settled && !expired {
			continue
		}
		if _, err := s.ConfirmCapture(ctx, e.Gateway, e.GatewayReference, settled); err != nil {
			s.log.WarnContext(ctx, "reconcile capture failed", "reference", e.GatewayReference, "err", err)
			continue
		}
		done++
	}
	return done, nil
}
