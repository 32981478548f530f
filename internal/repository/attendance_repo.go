package repository

import (
	"errors"

	"tutorly/internal/models"

	"gorm.io/gorm"
)

type AttendanceRepository struct {
	db *gorm.DB
}

func NewAttendanceRepository(db *gorm.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

func (r *AttendanceRepository) Create(a *models.ClassroomAttendance) error {
	return r.db.Create(a).Error
}

func (r *AttendanceRepository) Save(a *models.ClassroomAttendance) error {
	return r.db.Save(a).Error
}

// OpenInterval returns the party's interval that has no left_at yet, or nil.
func (r *AttendanceRepository) OpenInterval(bookingID, userID uint) (*models.ClassroomAttendance, error) {
	var a models.ClassroomAttendance
	err := r.db.Where("booking_id = ? AND user_id = ? AND left_at IS NULL", bookingID, userID).
		Order("joined_at DESC").First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttendanceRepository) ListForBooking(bookingID uint) ([]models.ClassroomAttendance, error) {
	var list []models.ClassroomAttendance
	err := r.db.Where("booking_id = ?", bookingID).Order("joined_at ASC").Find(&list).Error
	return list, err
}
