package utils

import "time"

// Application constants
const (
	// Application name
	AppName = "PayRoute"

	// API version
	APIVersion = "v1"

	// Default port
	DefaultPort = "8080"

	// Default database host
	DefaultDBHost = "localhost"

	// Default database port
	DefaultDBPort = "5432"

	// Default database name
	DefaultDBName = "payroute"

	// Default database user
	DefaultDBUser = "postgres"

	// Default timeout for a single provider API call
	DefaultGatewayTimeout = 30 * time.Second

	// UPI sweep cadence and the age after which a pending UPI payment expires
	DefaultUPISweepInterval = 60 * time.Second
	DefaultUPIPendingTTL    = 5 * time.Minute

	// Maximum accepted age of a signed webhook timestamp
	DefaultWebhookTolerance = 5 * time.Minute

	// Default payment link lifetime
	DefaultPaymentLinkTTL = 7 * 24 * time.Hour
)

// Error messages
const (
	ErrInvalidToken       = "Invalid or expired token"
	ErrUnauthorized       = "Unauthorized access"
	ErrInvalidAmount      = "Amount must be greater than 0"
	ErrInvalidCurrency    = "Currency must be a 3-letter ISO 4217 code"
	ErrInvalidVPA         = "Invalid UPI VPA"
	ErrGatewayUnavailable = "Payment gateway unavailable"
	ErrInvalidSignature   = "Invalid webhook signature"
	ErrRecordNotFound     = "Record not found"
	ErrInternalServer     = "Internal server error"
)

// Success messages
const (
	MsgPaymentInitiated = "Payment initiated successfully"
	MsgPaymentVerified  = "Payment verified successfully"
	MsgRefundProcessed  = "Refund processed successfully"
	MsgWebhookReceived  = "Webhook received"
)
