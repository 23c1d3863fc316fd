package repository

import (
	"context"
	"time"

	"github.com/Govind-619/PayRoute/models"
	"gorm.io/gorm"
)

type UpiRepository struct {
	db *gorm.DB
}

func NewUpiRepository(db *gorm.DB) *UpiRepository {
	return &UpiRepository{db: db}
}

func (r *UpiRepository) Create(ctx context.Context, txn *models.UpiTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *UpiRepository) FindByID(ctx context.Context, id uint) (*models.UpiTransaction, error) {
	var txn models.UpiTransaction
	if err := r.db.WithContext(ctx).First(&txn, id).Error; err != nil {
		return nil, translate(err)
	}
	return &txn, nil
}

func (r *UpiRepository) FindByMerchantTxnID(ctx context.Context, provider models.GatewayType, merchantTxnID string) (*models.UpiTransaction, error) {
	var txn models.UpiTransaction
	err := r.db.WithContext(ctx).
		Where("provider = ? AND merchant_transaction_id = ?", provider, merchantTxnID).
		First(&txn).Error
	if err != nil {
		return nil, translate(err)
	}
	return &txn, nil
}

// Update writes non-status fields.
func (r *UpiRepository) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	return r.db.WithContext(ctx).Model(&models.UpiTransaction{}).Where("id = ?", id).Updates(fields).Error
}

// ListStalePending returns PENDING rows created before cutoff, oldest first.
func (r *UpiRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.UpiTransaction, error) {
	var txns []models.UpiTransaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.UpiPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&txns).Error
	return txns, err
}

// CompareAndSetStatus moves the row from `from` to `to` and reports whether
// this call made the change.
func (r *UpiRepository) CompareAndSetStatus(ctx context.Context, id uint, from, to models.UpiStatus, fields map[string]interface{}) (bool, error) {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["status"] = to
	fields["updated_at"] = time.Now()

	res := r.db.WithContext(ctx).
		Model(&models.UpiTransaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *UpiRepository) IncrementRetry(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.UpiTransaction{}).
		Where("id = ?", id).
		UpdateColumn("retry_count", gorm.Expr("retry_count + ?", 1)).Error
}
