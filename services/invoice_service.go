package services

import (
	"context"
	"errors"
	"time"

	"github.com/Govind-619/PayRoute/events"
	"github.com/Govind-619/PayRoute/models"
	"github.com/Govind-619/PayRoute/repository"
	"github.com/Govind-619/PayRoute/utils"
	"github.com/shopspring/decimal"
)

// InvoiceService is the billing platform's invoice store as the payment core
// needs it.
type InvoiceService interface {
	GetInvoice(ctx context.Context, id uint) (*models.Invoice, error)
	MarkPaid(ctx context.Context, id uint, amount decimal.Decimal, paidAt time.Time) error
}

type invoiceService struct {
	repo *repository.InvoiceRepository
}

func NewInvoiceService(repo *repository.InvoiceRepository) InvoiceService {
	return &invoiceService{repo: repo}
}

func (s *invoiceService) GetInvoice(ctx context.Context, id uint) (*models.Invoice, error) {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.NotFoundError("Invoice not found", err)
		}
		return nil, err
	}
	return inv, nil
}

func (s *invoiceService) MarkPaid(ctx context.Context, id uint, amount decimal.Decimal, paidAt time.Time) error {
	utils.LogInfo("Recording payment of %s on invoice %d", amount, id)
	if err := s.repo.RecordPayment(ctx, id, amount, paidAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return utils.NotFoundError("Invoice not found", err)
		}
		utils.LogError("Failed to record payment on invoice %d: %v", id, err)
		return err
	}
	return nil
}

// SubscribeInvoiceUpdates marks an invoice paid when a payment raised for it
// completes.
func SubscribeInvoiceUpdates(bus events.Bus, invoices InvoiceService) {
	bus.Subscribe(events.PaymentCompleted, func(ctx context.Context, evt events.Event) error {
		invoiceID, ok := evt.Payload["invoice_id"].(uint)
		if !ok {
			return nil
		}
		amount, ok := evt.Payload["amount"].(decimal.Decimal)
		if !ok {
			return nil
		}
		return invoices.MarkPaid(ctx, invoiceID, amount, evt.OccurredAt)
	})
}
