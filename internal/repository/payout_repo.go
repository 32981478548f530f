package repository

import (
	"tutorly/internal/domain"
	"tutorly/internal/models"

	"gorm.io/gorm"
)

type PayoutRepository struct {
	db *gorm.DB
}

func NewPayoutRepository(db *gorm.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

func (r *PayoutRepository) Create(p *models.Payout) error {
	return r.db.Create(p).Error
}

func (r *PayoutRepository) Save(p *models.Payout) error {
	return r.db.Omit("User", "Method").Save(p).Error
}

func (r *PayoutRepository) GetByID(id uint) (*models.Payout, error) {
	var p models.Payout
	if err := r.db.Preload("Method").First(&p, id).Error; err != nil {
		return nil, notFound(err, "payout", id)
	}
	return &p, nil
}

func (r *PayoutRepository) GetForUpdate(id uint) (*models.Payout, error) {
	var p models.Payout
	if err := forUpdate(r.db).First(&p, id).Error; err != nil {
		return nil, notFound(err, "payout", id)
	}
	return &p, nil
}

func (r *PayoutRepository) GetByOrderIDForUpdate(orderID string) (*models.Payout, error) {
	var p models.Payout
	if err := forUpdate(r.db).Where("order_id = ?", orderID).First(&p).Error; err != nil {
		return nil, notFound(err, "payout order", orderID)
	}
	return &p, nil
}

func (r *PayoutRepository) ListByUser(userID uint, page, limit int) ([]models.Payout, int64, error) {
	q := r.db.Model(&models.Payout{}).Where("user_id = ?", userID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	lim, off := paginate(page, limit)
	var list []models.Payout
	err := q.Order("id DESC").Limit(lim).Offset(off).Find(&list).Error
	return list, total, err
}

// ListAwaitingSubmission returns approved payouts not yet accepted by a gateway.
func (r *PayoutRepository) ListAwaitingSubmission(limit int) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Payout{}).Where("status = ?", domain.PayoutApproved).
		Order("approved_at ASC").Limit(limit).Pluck("id", &ids).Error
	return ids, err
}

func (r *PayoutRepository) CreateMethod(m *models.PayoutMethod) error {
	return r.db.Create(m).Error
}

func (r *PayoutRepository) GetMethod(id uint) (*models.PayoutMethod, error) {
	var m models.PayoutMethod
	if err := r.db.First(&m, id).Error; err != nil {
		return nil, notFound(err, "payout method", id)
	}
	return &m, nil
}

func (r *PayoutRepository) ListMethods(userID uint) ([]models.PayoutMethod, error) {
	var list []models.PayoutMethod
	err := r.db.Where("user_id = ?", userID).Order("id ASC").Find(&list).Error
	return list, err
}

func (r *PayoutRepository) SetMethodVerified(id uint, verified bool) error {
	return r.db.Model(&models.PayoutMethod{}).Where("id = ?", id).Update("verified", verified).Error
}
