package models

import "time"

// ProcessedEvent marks an inbound webhook delivery as handled.
type ProcessedEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"size:200;uniqueIndex;not null" json:"key"` // source:event id
	Outcome   string    `gorm:"size:40" json:"outcome"`
	CreatedAt time.Time `json:"created_at"`
}

func (ProcessedEvent) TableName() string {
	return "processed_events"
}
