package payment

import (
	"context"
	"strings"
	"sync"
	"time"
)

// StubProvider is a development gateway. With AutoCapture set every payment
// settles synchronously; otherwise it waits for a webhook like a real gateway.
type StubProvider struct {
	AutoCapture bool

	mu       sync.Mutex
	captured map[string]bool
}

func (s *StubProvider) InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	status := StatusPending
	if s.AutoCapture {
		status = StatusCompleted
		s.mu.Lock()
		if s.captured == nil {
			s.captured = make(map[string]bool)
		}
		s.captured[req.OrderID] = true
		s.mu.Unlock()
	}
	return &PaymentResponse{
		Reference: req.OrderID,
		Status:    status,
		ExpiresAt: time.Now().Add(req.ExpiresIn),
	}, nil
}

func (s *StubProvider) VerifyPayment(ctx context.Context, reference string) (bool, error) {
	if !strings.HasPrefix(reference, "pay_") {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captured[reference], nil
}

// StubPayoutGateway accepts every submission. Fail makes the next N submissions error.
type StubPayoutGateway struct {
	mu   sync.Mutex
	Fail int
	Sent []PayoutRequest
}

func (s *StubPayoutGateway) SubmitPayout(ctx context.Context, req PayoutRequest) (*PayoutResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail > 0 {
		s.Fail--
		return nil, errStubUnavailable
	}
	s.Sent = append(s.Sent, req)
	return &PayoutResponse{ProviderRef: "stub-" + req.OrderID, Status: StatusPending}, nil
}
