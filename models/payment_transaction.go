package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type TransactionStatus string

const (
	TxnInitiated         TransactionStatus = "INITIATED"
	TxnProcessing        TransactionStatus = "PROCESSING"
	TxnCompleted         TransactionStatus = "COMPLETED"
	TxnFailed            TransactionStatus = "FAILED"
	TxnRefunded          TransactionStatus = "REFUNDED"
	TxnPartiallyRefunded TransactionStatus = "PARTIALLY_REFUNDED"
	TxnCancelled         TransactionStatus = "CANCELLED"
	TxnExpired           TransactionStatus = "EXPIRED"
)

// PendingStatuses are the statuses a provider outcome may still move.
var PendingStatuses = []TransactionStatus{TxnInitiated, TxnProcessing}

// IsPending reports whether no terminal signal has been applied yet.
func (s TransactionStatus) IsPending() bool {
	return s == TxnInitiated || s == TxnProcessing
}

// IsTerminal reports whether no automatic transition leaves s.
// PARTIALLY_REFUNDED is settled but not terminal.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TxnCompleted, TxnFailed, TxnRefunded, TxnCancelled, TxnExpired:
		return true
	}
	return false
}

type TransactionType string

const (
	TxnTypePayment TransactionType = "PAYMENT"
	TxnTypeRefund  TransactionType = "REFUND"
)

// PaymentTransaction is one payment or refund attempt against a gateway.
// Rows are never deleted.
type PaymentTransaction struct {
	ID                   uint              `gorm:"primaryKey" json:"id"`
	Reference            string            `gorm:"uniqueIndex;not null" json:"reference"`
	OrganizationID       uint              `gorm:"index;not null" json:"organization_id"`
	PaymentMethodID      uint              `gorm:"index" json:"payment_method_id"`
	GatewayID            uint              `gorm:"index" json:"gateway_id"`
	Type                 TransactionType   `gorm:"not null;default:PAYMENT" json:"type"`
	Status               TransactionStatus `gorm:"index;not null" json:"status"`
	Amount               decimal.Decimal   `gorm:"type:decimal(14,2);not null" json:"amount"`
	Fee                  decimal.Decimal   `gorm:"type:decimal(14,2);not null;default:0" json:"fee"`
	Currency             string            `gorm:"size:3;not null" json:"currency"`
	ParentTransactionID  *uint             `gorm:"index" json:"parent_transaction_id,omitempty"`
	InvoiceID            *uint             `gorm:"index" json:"invoice_id,omitempty"`
	GatewayTransactionID string            `gorm:"index" json:"gateway_transaction_id,omitempty"`
	PaymentLink          string            `json:"payment_link,omitempty"`
	PaymentToken         string            `json:"payment_token,omitempty"`
	ExpiresAt            *time.Time        `json:"expires_at,omitempty"`
	GatewayResponse      datatypes.JSON    `json:"gateway_response,omitempty"`
	FailureReason        string            `json:"failure_reason,omitempty"`
	CustomerName         string            `json:"customer_name,omitempty"`
	CustomerEmail        string            `json:"customer_email,omitempty"`
	CustomerPhone        string            `json:"customer_phone,omitempty"`
	Metadata             datatypes.JSON    `json:"metadata,omitempty"`
	CompletedAt          *time.Time        `json:"completed_at,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// ChargeAmount is what the customer is asked to pay.
func (t *PaymentTransaction) ChargeAmount(customerPaysFee bool) decimal.Decimal {
	if customerPaysFee {
		return t.Amount.Add(t.Fee)
	}
	return t.Amount
}
