package models

import (
	"time"

	"tutorly/internal/domain"
)

// User is the engine's view of a party: identity and profiles live elsewhere.
type User struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Email string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Role  string `gorm:"size:20;not null;index" json:"role"` // CLIENT | TUTOR | ADMIN | PLATFORM
	// RequiresApproval gates a tutor's new bookings behind an explicit approve.
	RequiresApproval bool      `gorm:"not null;default:false" json:"requires_approval"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (u *User) IsTutor() bool  { return u.Role == domain.RoleTutor }
func (u *User) IsClient() bool { return u.Role == domain.RoleClient }
func (u *User) IsAdmin() bool  { return u.Role == domain.RoleAdmin }
