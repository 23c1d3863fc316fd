package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Govind-619/PayRoute/gateways"
	"github.com/Govind-619/PayRoute/models"
	"github.com/Govind-619/PayRoute/repository"
	"github.com/Govind-619/PayRoute/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateLinkInput struct {
	OrganizationID uint
	Amount         *decimal.Decimal
	Currency       string
	InvoiceID      *uint
	MaxUses        int
	TTL            time.Duration
	Description    string
}

type RedeemLinkInput struct {
	PaymentMethodID uint
	Customer        gateways.Customer
}

type PaymentLinkService struct {
	links    *repository.LinkRepository
	invoices InvoiceService
	txns     *TransactionService
	now      func() time.Time
}

func NewPaymentLinkService(links *repository.LinkRepository, invoices InvoiceService, txns *TransactionService) *PaymentLinkService {
	return &PaymentLinkService{links: links, invoices: invoices, txns: txns, now: time.Now}
}

// CreateLink issues a shareable link. Without an explicit amount the link
// asks for what is still owed on the invoice.
func (s *PaymentLinkService) CreateLink(ctx context.Context, in CreateLinkInput) (*models.PaymentLink, error) {
	utils.LogInfo("CreateLink called for org %d", in.OrganizationID)

	currency := utils.NormalizeCurrency(in.Currency)
	var amount decimal.Decimal
	if in.Amount != nil {
		amount = *in.Amount
	}

	if in.InvoiceID != nil {
		inv, err := s.invoices.GetInvoice(ctx, *in.InvoiceID)
		if err != nil {
			return nil, err
		}
		if inv.OrganizationID != in.OrganizationID {
			return nil, utils.NotFoundError("Invoice not found", nil)
		}
		if in.Amount == nil {
			amount = inv.Amount.Sub(inv.AmountPaid)
		}
		if currency == "" {
			currency = utils.NormalizeCurrency(inv.Currency)
		}
	} else if in.Amount == nil {
		return nil, utils.ValidationFailedError("Amount is required without an invoice", nil)
	}

	if err := utils.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if err := utils.ValidateCurrency(currency); err != nil {
		return nil, err
	}

	maxUses := in.MaxUses
	if maxUses <= 0 {
		maxUses = 1
	}
	ttl := in.TTL
	if ttl <= 0 {
		ttl = utils.DefaultPaymentLinkTTL
	}

	link := &models.PaymentLink{
		Token:          strings.ReplaceAll(uuid.NewString(), "-", ""),
		OrganizationID: in.OrganizationID,
		Amount:         amount,
		Currency:       currency,
		InvoiceID:      in.InvoiceID,
		Description:    in.Description,
		MaxUses:        maxUses,
		ExpiresAt:      s.now().Add(ttl),
		IsActive:       true,
	}
	if err := s.links.Create(ctx, link); err != nil {
		utils.LogError("Failed to create payment link for org %d: %v", in.OrganizationID, err)
		return nil, utils.WrapError(err, "failed to create payment link")
	}
	utils.LogInfo("Payment link %d created for %s %s", link.ID, amount, currency)
	return link, nil
}

// ResolveLink returns a link that can still be paid.
func (s *PaymentLinkService) ResolveLink(ctx context.Context, token string) (*models.PaymentLink, error) {
	link, err := s.links.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.NotFoundError("Payment link not found", err)
		}
		return nil, err
	}

	switch now := s.now(); {
	case !link.IsActive:
		return nil, utils.ValidationFailedError("Payment link is no longer active", nil)
	case !now.Before(link.ExpiresAt):
		return nil, utils.ValidationFailedError("Payment link has expired", nil)
	case link.UseCount >= link.MaxUses:
		return nil, utils.ValidationFailedError("Payment link has already been used", nil)
	}
	return link, nil
}

// RedeemLink takes one use of the link and starts the payment. The use is
// given back when the payment cannot be started.
func (s *PaymentLinkService) RedeemLink(ctx context.Context, token string, in RedeemLinkInput) (*InitiatePaymentResult, error) {
	link, err := s.ResolveLink(ctx, token)
	if err != nil {
		return nil, err
	}

	ok, err := s.links.ConsumeUse(ctx, link.ID, s.now())
	if err != nil {
		utils.LogError("Failed to consume payment link %d: %v", link.ID, err)
		return nil, err
	}
	if !ok {
		utils.LogInfo("Payment link %d lost the race for its last use", link.ID)
		return nil, utils.ValidationFailedError("Payment link has already been used", nil)
	}

	res, err := s.txns.InitiatePayment(ctx, InitiatePaymentInput{
		OrganizationID:  link.OrganizationID,
		PaymentMethodID: in.PaymentMethodID,
		Amount:          link.Amount,
		Currency:        link.Currency,
		InvoiceID:       link.InvoiceID,
		Customer:        in.Customer,
		Description:     link.Description,
		Metadata:        map[string]string{"payment_link": link.Token},
	})
	if err != nil {
		if releaseErr := s.links.ReleaseUse(ctx, link.ID); releaseErr != nil {
			utils.LogError("Failed to release payment link %d: %v", link.ID, releaseErr)
		}
		return nil, err
	}
	return res, nil
}
