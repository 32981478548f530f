package repository

import (
	"tutorly/internal/models"

	"gorm.io/gorm"
)

// EventRepository de-duplicates inbound webhook deliveries.
type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Seen(key string) (bool, error) {
	var count int64
	err := r.db.Model(&models.ProcessedEvent{}).Where("`key` = ?", key).Count(&count).Error
	return count > 0, err
}

// Record stores key; a concurrent duplicate fails on the unique index.
func (r *EventRepository) Record(key, outcome string) error {
	return r.db.Create(&models.ProcessedEvent{Key: key, Outcome: outcome}).Error
}
