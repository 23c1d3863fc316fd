package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type UpiStatus string

const (
	UpiPending   UpiStatus = "PENDING"
	UpiCompleted UpiStatus = "COMPLETED"
	UpiFailed    UpiStatus = "FAILED"
	UpiExpired   UpiStatus = "EXPIRED"
)

// UpiTransaction tracks one UPI collect or intent request. It is shared by
// every UPI provider and is moved out of PENDING by a callback or the sweep.
type UpiTransaction struct {
	ID                    uint            `gorm:"primaryKey" json:"id"`
	Provider              GatewayType     `gorm:"uniqueIndex:idx_upi_provider_mtid;not null" json:"provider"`
	MerchantTransactionID string          `gorm:"uniqueIndex:idx_upi_provider_mtid;not null" json:"merchant_transaction_id"`
	PaymentTransactionID  *uint           `gorm:"index" json:"payment_transaction_id,omitempty"`
	Amount                decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Status                UpiStatus       `gorm:"index;not null" json:"status"`
	PayerVPA              string          `json:"payer_vpa,omitempty"`
	PayeeVPA              string          `json:"payee_vpa,omitempty"`
	RRN                   string          `json:"rrn,omitempty"`
	RawRequest            datatypes.JSON  `json:"raw_request,omitempty"`
	RawResponse           datatypes.JSON  `json:"raw_response,omitempty"`
	RetryCount            int             `gorm:"not null;default:0" json:"retry_count"`
	ExpiredAt             *time.Time      `json:"expired_at,omitempty"`
	CreatedAt             time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}
