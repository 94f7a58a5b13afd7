package repository

import (
	"context"
	"errors"
	"time"

	"adgrid/internal/model"

	"gorm.io/gorm"
)

type WebhookEventRepository interface {
	// MarkProcessed records the event and reports false if it was already recorded.
	MarkProcessed(ctx context.Context, eventID, eventType string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type webhookEventRepositoryImpl struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepositoryImpl{db: db}
}

func (r *webhookEventRepositoryImpl) MarkProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	err := r.db.WithContext(ctx).Create(&model.WebhookEvent{
		EventID:     eventID,
		EventType:   eventType,
		ProcessedAt: time.Now(),
	}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// Forget removes an event so that a redelivery is processed again.
func (r *webhookEventRepositoryImpl) Forget(ctx context.Context, eventID string) error {
	return r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Delete(&model.WebhookEvent{}).Error
}
