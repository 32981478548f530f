// Package service holds the booking lifecycle and escrow settlement engine.
// Every money-moving operation runs inside one repository.Store transaction
// together with the booking or payout row it belongs to.
package service

import (
	"context"
	"log/slog"

	"tutorly/internal/domain"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("tutorly/service")

// Actor is whoever triggers an operation.
type Actor struct {
	UserID uint
	Role   string
}

// SystemActor is used by sweeps and webhooks.
func SystemActor() Actor { return Actor{Role: domain.RoleSystem} }

func (a Actor) IsAdmin() bool  { return a.Role == domain.RoleAdmin }
func (a Actor) IsSystem() bool { return a.Role == domain.RoleSystem }

// EventPublisher receives domain events after their transaction commits.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// Routing keys for published events.
const (
	TopicBookingUpdated = "booking.updated"
	TopicBookingSettled = "booking.settled"
	TopicPayoutUpdated  = "payout.updated"
)

// BookingEvent is published whenever a booking changes status or settles.
type BookingEvent struct {
	BookingID     uint                 `json:"booking_id"`
	Event         domain.Event         `json:"event"`
	Status        domain.BookingStatus `json:"status"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	ReleasedCents int64                `json:"amount_released_cents"`
	RefundedCents int64                `json:"amount_refunded_cents"`
	NoShow        string               `json:"no_show,omitempty"`
}

type PayoutEvent struct {
	PayoutID    uint   `json:"payout_id"`
	UserID      uint   `json:"user_id"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents"`
}

// publish never fails the caller; the state change has already committed.
func publish(ctx context.Context, pub EventPublisher, log *slog.Logger, key string, v any) {
	if pub == nil {
		return
	}
	if err := pub.PublishJSON(ctx, key, v); err != nil {
		log.WarnContext(ctx, "publish event failed", "key", key, "err", err)
	}
}
