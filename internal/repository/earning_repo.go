package repository

import (
	"errors"

	"tutorly/internal/models"

	"gorm.io/gorm"
)

type EarningRepository struct {
	db *gorm.DB
}

func NewEarningRepository(db *gorm.DB) *EarningRepository {
	return &EarningRepository{db: db}
}

func (r *EarningRepository) Create(e *models.PlatformEarning) error {
	return r.db.Create(e).Error
}

func (r *EarningRepository) Save(e *models.PlatformEarning) error {
	return r.db.Save(e).Error
}

// FindByBooking returns the booking's earning row, or nil when none was recorded.
func (r *EarningRepository) FindByBooking(bookingID uint) (*models.PlatformEarning, error) {
	var e models.PlatformEarning
	err := r.db.Where("booking_id = ?", bookingID).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// NetCommission is the sum of commission kept across all bookings.
func (r *EarningRepository) NetCommission() (int64, error) {
	var total struct{ Total int64 }
	err := r.db.Model(&models.PlatformEarning{}).
		Select("COALESCE(SUM(commission_cents - reversed_cents), 0) AS total").Scan(&total).Error
	return total.Total, err
}
