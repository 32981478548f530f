package models

import (
	"time"

	"tutorly/internal/domain"
)

// Payout is a tutor's request to withdraw released earnings.
type Payout struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	UserID      uint   `gorm:"not null;index" json:"user_id"`
	MethodID    uint   `gorm:"not null;index" json:"method_id"`
	OrderID     string `gorm:"size:64;uniqueIndex;not null" json:"order_id"`
	AmountCents int64  `gorm:"not null" json:"amount_cents"`
	Currency    string `gorm:"size:3;not null" json:"currency"`
	Status      string `gorm:"size:20;not null;index" json:"status"` // pending, approved, processing, completed, failed, rejected, cancelled
	ProviderRef string `gorm:"size:128" json:"provider_ref"`
	// LedgerEntryID is the pending payout entry created with the reservation.
	LedgerEntryID  uint       `gorm:"not null" json:"ledger_entry_id"`
	SubmitAttempts int        `gorm:"not null;default:0" json:"submit_attempts"`
	FailureReason  string     `gorm:"size:500" json:"failure_reason,omitempty"`
	ApprovedBy     *uint      `json:"approved_by"`
	RequestedAt    time.Time  `json:"requested_at"`
	ApprovedAt     *time.Time `json:"approved_at"`
	ProcessedAt    *time.Time `json:"processed_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	RejectedAt     *time.Time `json:"rejected_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	User   User         `gorm:"foreignKey:UserID" json:"-"`
	Method PayoutMethod `gorm:"foreignKey:MethodID" json:"method,omitempty"`
}

func (Payout) TableName() string {
	return "payouts"
}

// Open reports whether the payout still holds a reservation on the wallet.
func (p *Payout) Open() bool {
	switch p.Status {
	case domain.PayoutPending, domain.PayoutApproved, domain.PayoutProcessing:
		return true
	}
	return false
}

// PayoutMethod is a verified destination for payouts.
type PayoutMethod struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Kind        string    `gorm:"size:20;not null" json:"kind"` // mpesa, paypal, bank
	Destination string    `gorm:"size:255;not null" json:"destination"`
	Verified    bool      `gorm:"not null;default:false" json:"verified"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (PayoutMethod) TableName() string {
	return "payout_methods"
}
