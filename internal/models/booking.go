package models

import (
	"time"

	"tutorly/internal/domain"

	"github.com/shopspring/decimal"
)

// Booking is one scheduled session, optionally a child of a recurring series.
// Rows are archived, never deleted.
type Booking struct {
	ID              uint  `gorm:"primaryKey" json:"id"`
	ParentBookingID *uint `gorm:"index" json:"parent_booking_id"`

	PayerID   uint `gorm:"not null;index" json:"payer_id"`
	TutorID   uint `gorm:"not null;index" json:"tutor_id"`
	SubjectID uint `gorm:"not null;index" json:"subject_id"`

	StartTime time.Time `gorm:"not null;index" json:"start_time"`
	EndTime   time.Time `gorm:"not null;index" json:"end_time"`

	Status           domain.BookingStatus `gorm:"size:30;not null;index" json:"status"`
	PaymentStatus    domain.PaymentStatus `gorm:"size:20;not null;index" json:"payment_status"`
	RequiresApproval bool                 `gorm:"not null;default:false" json:"requires_approval"`

	TotalPriceCents int64           `gorm:"not null" json:"total_price_cents"`
	Currency        string          `gorm:"size:3;not null" json:"currency"`
	CommissionRate  decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"commission_rate"` // percent, captured at creation
	PaymentSource   string          `gorm:"size:40" json:"payment_source"`                     // wallet or a gateway name
	PaymentRef      string          `gorm:"size:160;index" json:"payment_reference"`

	FundsHeldAt         *time.Time `json:"funds_held_at"`
	FundsReleasedAt     *time.Time `json:"funds_released_at"`
	FundsRefundedAt     *time.Time `json:"funds_refunded_at"`
	AmountReleasedCents int64      `gorm:"not null;default:0" json:"amount_released_cents"`
	AmountRefundedCents int64      `gorm:"not null;default:0" json:"amount_refunded_cents"`

	CancellationReason string     `gorm:"size:500" json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at"`
	CancelledBy        *uint      `json:"cancelled_by"`

	DisputeRaisedAt   *time.Time `json:"dispute_raised_at"`
	DisputeRaisedBy   *uint      `json:"dispute_raised_by"`
	DisputeReason     string     `gorm:"size:1000" json:"dispute_reason,omitempty"`
	DisputeResolvedAt *time.Time `json:"dispute_resolved_at"`
	DisputeResolution string     `gorm:"size:40" json:"dispute_resolution,omitempty"`
	DisputeResolvedBy *uint      `json:"dispute_resolved_by"`

	TeacherAttended       bool       `gorm:"not null;default:false" json:"teacher_attended"`
	StudentAttended       bool       `gorm:"not null;default:false" json:"student_attended"`
	ActualDurationMinutes int        `gorm:"not null;default:0" json:"actual_duration_minutes"`
	SessionStartedAt      *time.Time `json:"session_started_at"`
	SessionEndedAt        *time.Time `json:"session_ended_at"`
	NoShow                string     `gorm:"size:10" json:"no_show,omitempty"`

	Archived  bool      `gorm:"not null;default:false;index" json:"archived"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Payer User `gorm:"foreignKey:PayerID" json:"-"`
	Tutor User `gorm:"foreignKey:TutorID" json:"-"`
}

func (Booking) TableName() string {
	return "bookings"
}

func (b *Booking) Ref() domain.Ref { return domain.BookingRef(b.ID) }

// IsParty reports whether userID is the payer or the tutor.
func (b *Booking) IsParty(userID uint) bool {
	return userID == b.PayerID || userID == b.TutorID
}

// Duration is the length of the booked window.
func (b *Booking) Duration() time.Duration { return b.EndTime.Sub(b.StartTime) }

// DisplayStatus is the derived read-side status; it is never persisted.
func (b *Booking) DisplayStatus(now time.Time) string {
	return domain.DisplayStatus(domain.SessionView{
		Status:         b.Status,
		PaymentStatus:  b.PaymentStatus,
		StartTime:      b.StartTime,
		EndTime:        b.EndTime,
		SessionStarted: b.SessionStartedAt != nil,
	}, now)
}

// UnsettledCents is the part of the price neither released nor refunded yet.
func (b *Booking) UnsettledCents() int64 {
	return b.TotalPriceCents - b.AmountReleasedCents - b.AmountRefundedCents
}
