package repository

import (
	"context"

	"github.com/Govind-619/PayRoute/models"
	"gorm.io/gorm"
)

type GatewayRepository struct {
	db *gorm.DB
}

func NewGatewayRepository(db *gorm.DB) *GatewayRepository {
	return &GatewayRepository{db: db}
}

func (r *GatewayRepository) FindByID(ctx context.Context, id uint) (*models.PaymentGateway, error) {
	var gw models.PaymentGateway
	if err := r.db.WithContext(ctx).First(&gw, id).Error; err != nil {
		return nil, translate(err)
	}
	return &gw, nil
}

// ListActiveByOrg returns the organization's enabled ACTIVE gateways, most
// preferred (lowest priority number) first.
func (r *GatewayRepository) ListActiveByOrg(ctx context.Context, orgID uint) ([]models.PaymentGateway, error) {
	var gws []models.PaymentGateway
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND is_enabled = ? AND status = ?", orgID, true, models.GatewayActive).
		Order("priority ASC").
		Order("id ASC").
		Find(&gws).Error
	return gws, err
}

// SetHealthy records a health probe result. UpdateColumn leaves updated_at,
// and with it the cached adapter, untouched.
func (r *GatewayRepository) SetHealthy(ctx context.Context, id uint, healthy bool) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentGateway{}).
		Where("id = ?", id).
		UpdateColumn("is_healthy", healthy).Error
}
