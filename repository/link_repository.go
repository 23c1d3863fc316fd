package repository

import (
	"context"
	"time"

	"github.com/Govind-619/PayRoute/models"
	"gorm.io/gorm"
)

type LinkRepository struct {
	db *gorm.DB
}

func NewLinkRepository(db *gorm.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

func (r *LinkRepository) Create(ctx context.Context, link *models.PaymentLink) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *LinkRepository) FindByToken(ctx context.Context, token string) (*models.PaymentLink, error) {
	var link models.PaymentLink
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&link).Error; err != nil {
		return nil, translate(err)
	}
	return &link, nil
}

// ConsumeUse takes one use of the link if it is still active, unexpired and
// below its limit. The check and increment are one statement.
func (r *LinkRepository) ConsumeUse(ctx context.Context, id uint, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentLink{}).
		Where("id = ? AND is_active = ? AND use_count < max_uses AND expires_at > ?", id, true, now).
		Updates(map[string]interface{}{
			"use_count":  gorm.Expr("use_count + ?", 1),
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReleaseUse gives back a use taken by ConsumeUse when the payment could not
// be started.
func (r *LinkRepository) ReleaseUse(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentLink{}).
		Where("id = ? AND use_count > 0", id).
		UpdateColumn("use_count", gorm.Expr("use_count - ?", 1)).Error
}
