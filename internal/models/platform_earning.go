package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlatformEarning is the commission taken on one booking settlement.
type PlatformEarning struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	BookingID       uint            `gorm:"uniqueIndex;not null" json:"booking_id"`
	LedgerEntryID   uint            `gorm:"uniqueIndex;not null" json:"ledger_entry_id"`
	GrossCents      int64           `gorm:"not null" json:"gross_cents"`
	CommissionCents int64           `gorm:"not null" json:"commission_cents"`
	Rate            decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"rate"`
	ReversedCents   int64           `gorm:"not null;default:0" json:"reversed_cents"`
	Currency        string          `gorm:"size:3;not null" json:"currency"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (PlatformEarning) TableName() string {
	return "platform_earnings"
}
