package models

import (
	"time"
)

// Wallet is the materialized balance of one party. It is written only by the ledger.
type Wallet struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	UserID       uint   `gorm:"uniqueIndex;not null" json:"user_id"`
	BalanceCents int64  `gorm:"not null;default:0" json:"balance_cents"`
	// ReservedCents is held back for payouts awaiting completion.
	ReservedCents int64     `gorm:"not null;default:0" json:"reserved_cents"`
	Currency      string    `gorm:"size:3;default:'KES'" json:"currency"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Wallet) TableName() string {
	return "wallets"
}

// AvailableCents is what the owner may still spend or withdraw.
func (w *Wallet) AvailableCents() int64 {
	return w.BalanceCents - w.ReservedCents
}
