package repository

import (
	"time"

	"tutorly/internal/domain"
	"tutorly/internal/models"

	"gorm.io/gorm"
)

// activeStatuses occupy a tutor's calendar.
var activeStatuses = []domain.BookingStatus{
	domain.BookingPending,
	domain.BookingAwaitingApproval,
	domain.BookingConfirmed,
	domain.BookingRescheduling,
}

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Create(b *models.Booking) error {
	return r.db.Create(b).Error
}

func (r *BookingRepository) Save(b *models.Booking) error {
	return r.db.Save(b).Error
}

func (r *BookingRepository) GetByID(id uint) (*models.Booking, error) {
	var b models.Booking
	if err := r.db.First(&b, id).Error; err != nil {
		return nil, notFound(err, "booking", id)
	}
	return &b, nil
}

// GetForUpdate loads a booking and locks its row until the transaction ends.
func (r *BookingRepository) GetForUpdate(id uint) (*models.Booking, error) {
	var b models.Booking
	if err := forUpdate(r.db).First(&b, id).Error; err != nil {
		return nil, notFound(err, "booking", id)
	}
	return &b, nil
}

// ListForUser returns bookings where the user is payer or tutor, newest first.
func (r *BookingRepository) ListForUser(userID uint, status string, includeArchived bool, page, limit int) ([]models.Booking, int64, error) {
	q := r.db.Model(&models.Booking{}).Where("payer_id = ? OR tutor_id = ?", userID, userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if !includeArchived {
		q = q.Where("archived = ?", false)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	lim, off := paginate(page, limit)
	var list []models.Booking
	err := q.Order("start_time DESC").Limit(lim).Offset(off).Find(&list).Error
	return list, total, err
}

func (r *BookingRepository) ListSeries(parentID uint) ([]models.Booking, error) {
	var list []models.Booking
	err := r.db.Where("id = ? OR parent_booking_id = ?", parentID, parentID).Order("start_time ASC").Find(&list).Error
	return list, err
}

// HasOverlap reports whether the tutor has another active booking intersecting [start, end).
func (r *BookingRepository) HasOverlap(tutorID uint, start, end time.Time, excludeID uint) (bool, error) {
	var count int64
	q := r.db.Model(&models.Booking{}).
		Where("tutor_id = ? AND status IN ? AND start_time < ? AND end_time > ?", tutorID, activeStatuses, end, start)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

// ListEndedUnsettled returns confirmed bookings whose window closed before cutoff.
func (r *BookingRepository) ListEndedUnsettled(cutoff time.Time, limit int) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Booking{}).
		Where("status = ? AND payment_status = ? AND end_time < ?", domain.BookingConfirmed, domain.PaymentHeld, cutoff).
		Order("end_time ASC").Limit(limit).Pluck("id", &ids).Error
	return ids, err
}

// ListStalePending returns unpaid bookings created before cutoff.
func (r *BookingRepository) ListStalePending(cutoff time.Time, limit int) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Booking{}).
		Where("status = ? AND payment_status = ? AND created_at < ?", domain.BookingPending, domain.PaymentPending, cutoff).
		Order("id ASC").Limit(limit).Pluck("id", &ids).Error
	return ids, err
}

func (r *BookingRepository) SetArchived(id uint, archived bool) error {
	return r.db.Model(&models.Booking{}).Where("id = ?", id).Update("archived", archived).Error
}
