package models

import (
	"time"

	"tutorly/internal/domain"

	"gorm.io/datatypes"
)

// LedgerEntry records one movement of funds on a wallet. Entries are never
// edited once they reach a terminal status; corrections are new entries.
type LedgerEntry struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	UserID      uint   `gorm:"not null;index" json:"user_id"`
	Type        string `gorm:"size:30;not null;index" json:"type"` // credit, debit, booking_payment, payout, refund, commission
	AmountCents int64  `gorm:"not null" json:"amount_cents"`       // always positive; direction follows Type
	Currency    string `gorm:"size:3;not null" json:"currency"`
	Status      string `gorm:"size:20;not null;index" json:"status"` // pending, completed, failed, cancelled
	// Gateway + GatewayReference identify the operation; replays hit the unique index.
	Gateway          string         `gorm:"size:40;not null;uniqueIndex:idx_ledger_gateway_ref" json:"gateway"`
	GatewayReference string         `gorm:"size:160;not null;uniqueIndex:idx_ledger_gateway_ref" json:"gateway_reference"`
	RefKind          domain.RefKind `gorm:"size:20;index:idx_ledger_ref" json:"ref_kind"`
	RefID            uint           `gorm:"index:idx_ledger_ref" json:"ref_id"`
	Reason           string         `gorm:"size:255" json:"reason"`
	Metadata         datatypes.JSON `json:"metadata,omitempty"`
	CompletedAt      *time.Time     `json:"completed_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

func (e *LedgerEntry) Ref() domain.Ref {
	return domain.Ref{Kind: e.RefKind, ID: e.RefID}
}

// SignedCents is the entry's effect on the wallet balance once completed.
func (e *LedgerEntry) SignedCents() int64 {
	if domain.IsCreditType(e.Type) {
		return e.AmountCents
	}
	return -e.AmountCents
}
