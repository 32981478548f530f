package payment

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider statuses reported synchronously by InitiatePayment.
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// ErrUnknownGateway is returned by Registry.Get for an unregistered name.
var ErrUnknownGateway = errors.New("unknown payment gateway")

type PaymentRequest struct {
	UserID         uint
	AmountCents    int64
	Currency       string
	IdempotencyKey string
	Metadata       map[string]interface{}
	ExpiresIn      time.Duration
	Description    string
	// OrderID is the engine's capture reference; the gateway echoes it in its webhook.
	OrderID           string
	CustomerPhone     string // e.g. 254112299271
	CustomerFirstName string
	CustomerLastName  string
	CustomerEmail     string
	CallbackURL       string
}

type PaymentResponse struct {
	Reference         string
	Status            string
	CheckoutURL       string
	ExpiresAt         time.Time
	CheckoutRequestID string // M-Pesa STK checkout request ID
}

// Provider captures payer funds.
type Provider interface {
	InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error)
	// VerifyPayment reports whether the capture behind reference settled.
	VerifyPayment(ctx context.Context, reference string) (bool, error)
}

// Registry maps gateway names to capture providers.
type Registry map[string]Provider

func (r Registry) Get(name string) (Provider, error) {
	p, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, name)
	}
	return p, nil
}
