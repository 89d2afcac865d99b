package repository

import (
	"context"
	"time"

	"polar-billing-bridge/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WebhookEventRepository interface {
	// Record logs one delivery. Redeliveries of the same id bump the counter
	// and overwrite the last outcome.
	Record(ctx context.Context, eventID, eventType, outcome, processingErr string) error
	Get(ctx context.Context, eventID string) (*model.WebhookEvent, error)
}

type webhookEventRepositoryImpl struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepositoryImpl{db: db}
}

func (r *webhookEventRepositoryImpl) Record(ctx context.Context, eventID, eventType, outcome, processingErr string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "event_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"outcome":          outcome,
			"processing_error": processingErr,
			"deliveries":       gorm.Expr("deliveries + 1"),
			"processed_at":     now,
			"updated_at":       now,
		}),
	}).Create(&model.WebhookEvent{
		EventID:         eventID,
		EventType:       eventType,
		Outcome:         outcome,
		ProcessingError: processingErr,
		Deliveries:      1,
		ProcessedAt:     now,
	}).Error
}

func (r *webhookEventRepositoryImpl) Get(ctx context.Context, eventID string) (*model.WebhookEvent, error) {
	var event model.WebhookEvent
	if err := r.db.WithContext(ctx).Where("event_id = ?", eventID).Take(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}
