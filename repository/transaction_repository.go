package repository

import (
	"context"
	"time"

	"github.com/Govind-619/PayRoute/models"
	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *models.PaymentTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *TransactionRepository) FindByID(ctx context.Context, id uint) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	if err := r.db.WithContext(ctx).First(&txn, id).Error; err != nil {
		return nil, translate(err)
	}
	return &txn, nil
}

func (r *TransactionRepository) FindByReference(ctx context.Context, ref string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	if err := r.db.WithContext(ctx).Where("reference = ?", ref).First(&txn).Error; err != nil {
		return nil, translate(err)
	}
	return &txn, nil
}

// FindByGatewayTransactionID finds the payment a provider id belongs to on
// one gateway.
func (r *TransactionRepository) FindByGatewayTransactionID(ctx context.Context, gatewayID uint, gatewayTxnID string) (*models.PaymentTransaction, error) {
	var txn models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("gateway_id = ? AND gateway_transaction_id = ? AND type = ?", gatewayID, gatewayTxnID, models.TxnTypePayment).
		Order("id DESC").
		First(&txn).Error
	if err != nil {
		return nil, translate(err)
	}
	return &txn, nil
}

// Update writes fields without any status guard. Used for data that does not
// move the state machine (gateway ids, links, raw responses).
func (r *TransactionRepository) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	res := r.db.WithContext(ctx).Model(&models.PaymentTransaction{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CompareAndSetStatus moves the row to `to` only while its status is one of
// `from`. It reports whether this call performed the transition.
func (r *TransactionRepository) CompareAndSetStatus(ctx context.Context, id uint, from []models.TransactionStatus, to models.TransactionStatus, fields map[string]interface{}) (bool, error) {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["status"] = to
	fields["updated_at"] = time.Now()

	res := r.db.WithContext(ctx).
		Model(&models.PaymentTransaction{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListRefunds returns the refund rows linked to parentID, oldest first.
func (r *TransactionRepository) ListRefunds(ctx context.Context, parentID uint) ([]models.PaymentTransaction, error) {
	var refunds []models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("parent_transaction_id = ? AND type = ?", parentID, models.TxnTypeRefund).
		Order("id ASC").
		Find(&refunds).Error
	return refunds, err
}

// FindPendingRefund returns the oldest refund for parentID still waiting on
// the provider.
func (r *TransactionRepository) FindPendingRefund(ctx context.Context, parentID uint) (*models.PaymentTransaction, error) {
	var refund models.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("parent_transaction_id = ? AND type = ? AND status IN ?", parentID, models.TxnTypeRefund, models.PendingStatuses).
		Order("id ASC").
		First(&refund).Error
	if err != nil {
		return nil, translate(err)
	}
	return &refund, nil
}

// TransactionFilter narrows ListByOrganization. Zero values match everything.
type TransactionFilter struct {
	Status    models.TransactionStatus
	GatewayID uint
	Type      models.TransactionType
}

// ListByOrganization returns one page of an organization's transactions,
// newest first, together with the total matching count.
func (r *TransactionRepository) ListByOrganization(ctx context.Context, orgID uint, filter TransactionFilter, offset, limit int) ([]models.PaymentTransaction, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PaymentTransaction{}).Where("organization_id = ?", orgID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.GatewayID != 0 {
		query = query.Where("gateway_id = ?", filter.GatewayID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var txns []models.PaymentTransaction
	err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&txns).Error
	return txns, total, err
}
