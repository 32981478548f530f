package repository

import (
	"errors"
	"fmt"
	"strconv"

	"tutorly/internal/domain"
	"tutorly/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

func (r *SettingRepository) Get(key string) (string, error) {
	var s models.SystemSetting
	if err := r.db.Where("`key` = ?", key).First(&s).Error; err != nil {
		return "", notFound(err, "setting", key)
	}
	return s.Value, nil
}

func (r *SettingRepository) Set(key, value string) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&models.SystemSetting{Key: key, Value: value}).Error
}

func (r *SettingRepository) GetAll() ([]models.SystemSetting, error) {
	var list []models.SystemSetting
	err := r.db.Order("`key` ASC").Find(&list).Error
	return list, err
}

// SeedDefaults inserts default settings if they don't already exist.
func (r *SettingRepository) SeedDefaults(defaults map[string]string) error {
	for k, v := range defaults {
		var count int64
		if err := r.db.Model(&models.SystemSetting{}).Where("`key` = ?", k).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			if err := r.db.Create(&models.SystemSetting{Key: k, Value: v}).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// CommissionRate is the current global rate in percent. New bookings copy it;
// existing bookings keep the rate they were created with.
func (r *SettingRepository) CommissionRate(fallback decimal.Decimal) (decimal.Decimal, error) {
	v, err := r.Get(domain.SettingCommissionRate)
	if errors.Is(err, domain.ErrNotFound) {
		return fallback, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	rate, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("setting %s=%q: %w", domain.SettingCommissionRate, v, err)
	}
	return rate, nil
}

// PayoutMinimum is the smallest payout in minor units.
func (r *SettingRepository) PayoutMinimum(fallback int64) (int64, error) {
	v, err := r.Get(domain.SettingPayoutMinimum)
	if errors.Is(err, domain.ErrNotFound) {
		return fallback, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("setting %s=%q: %w", domain.SettingPayoutMinimum, v, err)
	}
	return n, nil
}
