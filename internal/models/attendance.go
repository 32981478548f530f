package models

import (
	"time"
)

// ClassroomAttendance is one join/leave interval of a party in a booking's room.
type ClassroomAttendance struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	BookingID       uint       `gorm:"not null;index:idx_attendance_party" json:"booking_id"`
	UserID          uint       `gorm:"not null;index:idx_attendance_party" json:"user_id"`
	Role            string     `gorm:"size:20;not null" json:"role"`
	JoinedAt        time.Time  `gorm:"not null" json:"joined_at"`
	LeftAt          *time.Time `json:"left_at"` // nil while connected
	DurationSeconds int64      `gorm:"not null;default:0" json:"duration_seconds"`
	Source          string     `gorm:"size:20;not null" json:"source"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (ClassroomAttendance) TableName() string {
	return "classroom_attendances"
}
