package repository

import (
	"context"

	"github.com/Govind-619/PayRoute/models"
	"gorm.io/gorm"
)

type WebhookEventRepository struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

func (r *WebhookEventRepository) FindByProviderEvent(ctx context.Context, provider models.GatewayType, eventID string) (*models.WebhookEvent, error) {
	var evt models.WebhookEvent
	err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", provider, eventID).
		First(&evt).Error
	if err != nil {
		return nil, translate(err)
	}
	return &evt, nil
}

func (r *WebhookEventRepository) Create(ctx context.Context, evt *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Create(evt).Error
}

func (r *WebhookEventRepository) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(fields).Error
}
