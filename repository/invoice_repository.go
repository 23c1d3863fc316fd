package repository

import (
	"context"
	"time"

	"github.com/Govind-619/PayRoute/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) FindByID(ctx context.Context, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	if err := r.db.WithContext(ctx).First(&inv, id).Error; err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

// RecordPayment adds amount to the invoice's paid total and sets its status.
func (r *InvoiceRepository) RecordPayment(ctx context.Context, id uint, amount decimal.Decimal, paidAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv models.Invoice
		if err := tx.First(&inv, id).Error; err != nil {
			return translate(err)
		}
		paid := inv.AmountPaid.Add(amount)
		status := "partially_paid"
		if paid.GreaterThanOrEqual(inv.Amount) {
			status = "paid"
		}
		return tx.Model(&models.Invoice{}).Where("id = ?", id).Updates(map[string]interface{}{
			"amount_paid": paid,
			"status":      status,
			"paid_at":     paidAt,
			"updated_at":  time.Now(),
		}).Error
	})
}
