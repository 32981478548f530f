package repository

import (
	"tutorly/internal/domain"
	"tutorly/internal/models"

	"gorm.io/gorm"
)

type DashboardStats struct {
	TotalBookings     int64 `json:"total_bookings"`
	ConfirmedBookings int64 `json:"confirmed_bookings"`
	OpenDisputes      int64 `json:"open_disputes"`
	HeldCents         int64 `json:"held_cents"`
	PendingPayouts    int64 `json:"pending_payouts"`
	ReservedCents     int64 `json:"reserved_cents"`
	PlatformProfit    int64 `json:"platform_profit"`
}

type AdminRepository struct {
	db *gorm.DB
}

func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

func (r *AdminRepository) GetDashboardStats() (*DashboardStats, error) {
	var s DashboardStats
	r.db.Model(&models.Booking{}).Count(&s.TotalBookings)
	r.db.Model(&models.Booking{}).Where("status = ?", domain.BookingConfirmed).Count(&s.ConfirmedBookings)
	r.db.Model(&models.Booking{}).Where("status = ?", domain.BookingDisputed).Count(&s.OpenDisputes)

	var held struct{ Total int64 }
	r.db.Model(&models.Booking{}).Select("COALESCE(SUM(total_price_cents), 0) as total").
		Where("payment_status = ?", domain.PaymentHeld).Scan(&held)
	s.HeldCents = held.Total

	r.db.Model(&models.Payout{}).Where("status = ?", domain.PayoutPending).Count(&s.PendingPayouts)

	var reserved struct{ Total int64 }
	r.db.Model(&models.Wallet{}).Select("COALESCE(SUM(reserved_cents), 0) as total").Scan(&reserved)
	s.ReservedCents = reserved.Total

	var profit struct{ Total int64 }
	r.db.Model(&models.PlatformEarning{}).Select("COALESCE(SUM(commission_cents - reversed_cents), 0) as total").Scan(&profit)
	s.PlatformProfit = profit.Total

	return &s, nil
}

// ListBookings returns bookings with optional status filter.
func (r *AdminRepository) ListBookings(status string, page, limit int) ([]models.Booking, int64, error) {
	q := r.db.Model(&models.Booking{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	q.Count(&total)
	lim, off := paginate(page, limit)
	var list []models.Booking
	err := q.Order("created_at DESC").Limit(lim).Offset(off).Find(&list).Error
	return list, total, err
}

// ListLedger returns ledger entries with optional type filter.
func (r *AdminRepository) ListLedger(entryType string, page, limit int) ([]models.LedgerEntry, int64, error) {
	q := r.db.Model(&models.LedgerEntry{})
	if entryType != "" {
		q = q.Where("type = ?", entryType)
	}
	var total int64
	q.Count(&total)
	lim, off := paginate(page, limit)
	var list []models.LedgerEntry
	err := q.Order("id DESC").Limit(lim).Offset(off).Find(&list).Error
	return list, total, err
}

// ListPayouts returns payouts with optional status filter.
func (r *AdminRepository) ListPayouts(status string, page, limit int) ([]models.Payout, int64, error) {
	q := r.db.Model(&models.Payout{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	q.Count(&total)
	lim, off := paginate(page, limit)
	var list []models.Payout
	err := q.Preload("Method").Order("created_at DESC").Limit(lim).Offset(off).Find(&list).Error
	return list, total, err
}
