package models

import (
	"time"
)

// RescheduleRequest proposes a new window for a confirmed booking.
type RescheduleRequest struct {
	ID          uint `gorm:"primaryKey" json:"id"`
	BookingID   uint `gorm:"not null;index" json:"booking_id"`
	RequestedBy uint `gorm:"not null" json:"requested_by"`
	// PendingBookingID equals BookingID while the request is pending and is
	// cleared on resolution, so the unique index admits one pending request per booking.
	PendingBookingID *uint      `gorm:"uniqueIndex" json:"-"`
	Status           string     `gorm:"size:20;not null;index" json:"status"` // pending, approved, rejected, expired
	OriginalStart    time.Time  `gorm:"not null" json:"original_start"`
	OriginalEnd      time.Time  `gorm:"not null" json:"original_end"`
	ProposedStart    time.Time  `gorm:"not null" json:"proposed_start"`
	ProposedEnd      time.Time  `gorm:"not null" json:"proposed_end"`
	Reason           string     `gorm:"size:500" json:"reason,omitempty"`
	ExpiresAt        time.Time  `gorm:"not null;index" json:"expires_at"`
	RespondedBy      *uint      `json:"responded_by"`
	RespondedAt      *time.Time `json:"responded_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (RescheduleRequest) TableName() string {
	return "reschedule_requests"
}
