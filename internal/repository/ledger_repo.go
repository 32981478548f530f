package repository

import (
	"time"

	"tutorly/internal/domain"
	"tutorly/internal/models"

	"gorm.io/gorm"
)

type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Create(e *models.LedgerEntry) error {
	return r.db.Create(e).Error
}

func (r *LedgerRepository) Save(e *models.LedgerEntry) error {
	return r.db.Save(e).Error
}

func (r *LedgerRepository) GetByID(id uint) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	if err := r.db.First(&e, id).Error; err != nil {
		return nil, notFound(err, "ledger entry", id)
	}
	return &e, nil
}

// FindByGatewayRef returns the entry for an idempotency key, or nil if none exists.
func (r *LedgerRepository) FindByGatewayRef(gateway, reference string) (*models.LedgerEntry, error) {
	var list []models.LedgerEntry
	err := r.db.Where("gateway = ? AND gateway_reference = ?", gateway, reference).Limit(1).Find(&list).Error
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// FindByGatewayRefForUpdate is FindByGatewayRef holding a row lock.
func (r *LedgerRepository) FindByGatewayRefForUpdate(gateway, reference string) (*models.LedgerEntry, error) {
	var list []models.LedgerEntry
	err := forUpdate(r.db).Where("gateway = ? AND gateway_reference = ?", gateway, reference).Limit(1).Find(&list).Error
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// FindPendingByReference looks up a pending entry by gateway reference across gateways.
func (r *LedgerRepository) FindPendingByReference(reference string) (*models.LedgerEntry, error) {
	var list []models.LedgerEntry
	err := forUpdate(r.db).Where("gateway_reference = ? AND status = ?", reference, domain.EntryPending).
		Limit(1).Find(&list).Error
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

func (r *LedgerRepository) ListByUser(userID uint, page, limit int) ([]models.LedgerEntry, int64, error) {
	q := r.db.Model(&models.LedgerEntry{}).Where("user_id = ?", userID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	lim, off := paginate(page, limit)
	var list []models.LedgerEntry
	err := q.Order("id DESC").Limit(lim).Offset(off).Find(&list).Error
	return list, total, err
}

func (r *LedgerRepository) ListByRef(ref domain.Ref) ([]models.LedgerEntry, error) {
	var list []models.LedgerEntry
	err := r.db.Where("ref_kind = ? AND ref_id = ?", ref.Kind, ref.ID).Order("id ASC").Find(&list).Error
	return list, err
}

// ListPendingCaptures returns pending gateway credits created before cutoff.
func (r *LedgerRepository) ListPendingCaptures(cutoff time.Time, limit int) ([]models.LedgerEntry, error) {
	var list []models.LedgerEntry
	err := r.db.Where("type = ? AND status = ? AND gateway <> ? AND created_at < ?",
		domain.EntryCredit, domain.EntryPending, domain.GatewayInternal, cutoff).
		Order("id ASC").Limit(limit).Find(&list).Error
	return list, err
}

// CompletedTotals sums completed credit-type and debit-type entries for a wallet owner.
func (r *LedgerRepository) CompletedTotals(userID uint) (credits, debits int64, err error) {
	type row struct {
		Type  string
		Total int64
	}
	var rows []row
	err = r.db.Model(&models.LedgerEntry{}).
		Select("type, COALESCE(SUM(amount_cents), 0) AS total").
		Where("user_id = ? AND status = ?", userID, domain.EntryCompleted).
		Group("type").Scan(&rows).Error
	if err != nil {
		return 0, 0, err
	}
	for _, rw := range rows {
		if domain.IsCreditType(rw.Type) {
			credits += rw.Total
		} else {
			debits += rw.Total
		}
	}
	return credits, debits, nil
}
