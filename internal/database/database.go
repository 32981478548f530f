package database

import (
	"fmt"
	"log/slog"
	"time"

	"tutorly/config"
	"tutorly/internal/domain"
	"tutorly/internal/models"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func NewDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), GormConfig())
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}

// GormConfig is shared by the server and tests so both translate duplicate-key errors.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         newGormLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn)),
		TranslateError: true,
	}
}

// newGormLogger reports slow queries and errors. Missing rows are an expected
// outcome of lookups like wallet get-or-create and are not logged.
func newGormLogger(w logger.Writer) logger.Interface {
	return logger.New(w, logger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// AutoMigrate runs Gorm auto-migration for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Wallet{},
		&models.LedgerEntry{},
		&models.Booking{},
		&models.PlatformEarning{},
		&models.PayoutMethod{},
		&models.Payout{},
		&models.RescheduleRequest{},
		&models.ClassroomAttendance{},
		&models.ProcessedEvent{},
		&models.AuditLog{},
		&models.SystemSetting{},
	)
}

// SeedPlatformAccount makes sure the account that receives commission exists with a wallet.
func SeedPlatformAccount(db *gorm.DB, cfg *config.Config) error {
	u := models.User{ID: cfg.Escrow.PlatformUserID}
	err := db.Where(models.User{ID: cfg.Escrow.PlatformUserID}).
		Attrs(models.User{Email: "platform@tutorly.local", Role: domain.RolePlatform}).
		FirstOrCreate(&u).Error
	if err != nil {
		return fmt.Errorf("seed platform user: %w", err)
	}
	w := models.Wallet{}
	err = db.Where(models.Wallet{UserID: u.ID}).
		Attrs(models.Wallet{Currency: cfg.Payment.Currency}).
		FirstOrCreate(&w).Error
	if err != nil {
		return fmt.Errorf("seed platform wallet: %w", err)
	}
	return nil
}
