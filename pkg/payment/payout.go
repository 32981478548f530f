package payment

import (
	"context"
	"errors"
	"fmt"
)

var errStubUnavailable = errors.New("stub payout gateway unavailable")

type PayoutRequest struct {
	OrderID     string
	AmountCents int64
	Currency    string
	// Destination is the method's address: phone number, PayPal email or account number.
	Destination string
	Description string
	CallbackURL string
}

type PayoutResponse struct {
	ProviderRef string
	Status      string
}

// PayoutGateway submits money to a tutor. Completion arrives later by webhook.
type PayoutGateway interface {
	SubmitPayout(ctx context.Context, req PayoutRequest) (*PayoutResponse, error)
}

// PayoutRouter picks a gateway by payout method kind.
type PayoutRouter map[string]PayoutGateway

func (r PayoutRouter) Submit(ctx context.Context, kind string, req PayoutRequest) (*PayoutResponse, error) {
	gw, ok := r[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no payout gateway for %q", ErrUnknownGateway, kind)
	}
	return gw.SubmitPayout(ctx, req)
}
