package repository

import (
	"context"

	"github.com/Govind-619/PayRoute/models"
	"gorm.io/gorm"
)

type MethodRepository struct {
	db *gorm.DB
}

func NewMethodRepository(db *gorm.DB) *MethodRepository {
	return &MethodRepository{db: db}
}

func (r *MethodRepository) FindByID(ctx context.Context, id uint) (*models.PaymentMethod, error) {
	var m models.PaymentMethod
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

// FindEnabled returns the method only if it belongs to orgID and is enabled.
func (r *MethodRepository) FindEnabled(ctx context.Context, orgID, id uint) (*models.PaymentMethod, error) {
	var m models.PaymentMethod
	err := r.db.WithContext(ctx).
		Where("id = ? AND organization_id = ? AND is_enabled = ?", id, orgID, true).
		First(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return &m, nil
}
