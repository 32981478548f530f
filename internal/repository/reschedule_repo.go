package repository

import (
	"errors"
	"time"

	"tutorly/internal/domain"
	"tutorly/internal/models"

	"gorm.io/gorm"
)

type RescheduleRepository struct {
	db *gorm.DB
}

func NewRescheduleRepository(db *gorm.DB) *RescheduleRepository {
	return &RescheduleRepository{db: db}
}

func (r *RescheduleRepository) Create(req *models.RescheduleRequest) error {
	return r.db.Create(req).Error
}

// Save persists req; PendingBookingID is written even when nil.
func (r *RescheduleRepository) Save(req *models.RescheduleRequest) error {
	return r.db.Save(req).Error
}

func (r *RescheduleRepository) GetByID(id uint) (*models.RescheduleRequest, error) {
	var req models.RescheduleRequest
	if err := r.db.First(&req, id).Error; err != nil {
		return nil, notFound(err, "reschedule request", id)
	}
	return &req, nil
}

func (r *RescheduleRepository) GetForUpdate(id uint) (*models.RescheduleRequest, error) {
	var req models.RescheduleRequest
	if err := forUpdate(r.db).First(&req, id).Error; err != nil {
		return nil, notFound(err, "reschedule request", id)
	}
	return &req, nil
}

// PendingForBooking returns the booking's pending request, or nil.
func (r *RescheduleRepository) PendingForBooking(bookingID uint) (*models.RescheduleRequest, error) {
	var req models.RescheduleRequest
	err := forUpdate(r.db).Where("booking_id = ? AND status = ?", bookingID, domain.RescheduleStatusPending).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *RescheduleRepository) ListForBooking(bookingID uint) ([]models.RescheduleRequest, error) {
	var list []models.RescheduleRequest
	err := r.db.Where("booking_id = ?", bookingID).Order("id DESC").Find(&list).Error
	return list, err
}

// ListExpired returns pending requests whose expiry is at or before now.
func (r *RescheduleRepository) ListExpired(now time.Time, limit int) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.RescheduleRequest{}).
		Where("status = ? AND expires_at <= ?", domain.RescheduleStatusPending, now).
		Order("expires_at ASC").Limit(limit).Pluck("id", &ids).Error
	return ids, err
}
