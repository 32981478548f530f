package repository

import (
	"tutorly/internal/models"

	"gorm.io/gorm"
)

type AuditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Create(log *models.AuditLog) error {
	return r.db.Create(log).Error
}

func (r *AuditLogRepository) ListByResource(resource, resourceID string) ([]models.AuditLog, error) {
	var list []models.AuditLog
	err := r.db.Where("resource = ? AND resource_id = ?", resource, resourceID).Order("id ASC").Find(&list).Error
	return list, err
}

func (r *AuditLogRepository) GetByID(id uint) (*models.AuditLog, error) {
	var a models.AuditLog
	if err := r.db.First(&a, id).Error; err != nil {
		return nil, notFound(err, "audit log", id)
	}
	return &a, nil
}
