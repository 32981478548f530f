package repository

import (
	"context"
	"errors"
	"fmt"

	"tutorly/internal/domain"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store groups the repositories that share one *gorm.DB, either the pool or a transaction.
type Store struct {
	db      *gorm.DB
	retries int

	Users       *UserRepository
	Wallets     *WalletRepository
	Ledger      *LedgerRepository
	Bookings    *BookingRepository
	Earnings    *EarningRepository
	Payouts     *PayoutRepository
	Reschedules *RescheduleRepository
	Attendance  *AttendanceRepository
	Events      *EventRepository
	Audit       *AuditLogRepository
	Settings    *SettingRepository
	Admin       *AdminRepository
}

func NewStore(db *gorm.DB, retries int) *Store {
	s := bind(db)
	s.retries = retries
	return s
}

func bind(db *gorm.DB) *Store {
	return &Store{
		db:          db,
		Users:       NewUserRepository(db),
		Wallets:     NewWalletRepository(db),
		Ledger:      NewLedgerRepository(db),
		Bookings:    NewBookingRepository(db),
		Earnings:    NewEarningRepository(db),
		Payouts:     NewPayoutRepository(db),
		Reschedules: NewRescheduleRepository(db),
		Attendance:  NewAttendanceRepository(db),
		Events:      NewEventRepository(db),
		Audit:       NewAuditLogRepository(db),
		Settings:    NewSettingRepository(db),
		Admin:       NewAdminRepository(db),
	}
}

// DB exposes the underlying handle for migrations and tests.
func (s *Store) DB() *gorm.DB { return s.db }

// WithContext returns a Store whose queries carry ctx.
func (s *Store) WithContext(ctx context.Context) *Store {
	out := bind(s.db.WithContext(ctx))
	out.retries = s.retries
	return out
}

// Transaction runs fn in one database transaction. Deadlocks and lock wait
// timeouts replay fn up to the configured number of times and then surface as
// domain.ErrConcurrentModification.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	var err error
	for attempt := 0; attempt <= s.retries; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
			return fn(bind(gtx))
		})
		if !isLockContention(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrConcurrentModification, err)
}

func isLockContention(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1213 || me.Number == 1205 // ER_LOCK_DEADLOCK, ER_LOCK_WAIT_TIMEOUT
	}
	return false
}

// forUpdate adds SELECT ... FOR UPDATE where the dialect supports row locks.
// SQLite serializes writers on its own.
func forUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func notFound(err error, what string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %v: %w", what, id, domain.ErrNotFound)
	}
	return err
}

// IsDuplicate reports whether err is a unique-constraint violation.
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

func paginate(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return limit, (page - 1) * limit
}
