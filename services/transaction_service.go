package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Govind-619/PayRoute/events"
	"github.com/Govind-619/PayRoute/gateways"
	"github.com/Govind-619/PayRoute/models"
	"github.com/Govind-619/PayRoute/repository"
	"github.com/Govind-619/PayRoute/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type TransactionConfig struct {
	CallbackBaseURL string
	GatewayTimeout  time.Duration
}

type InitiatePaymentInput struct {
	OrganizationID  uint
	PaymentMethodID uint
	Amount          decimal.Decimal
	Currency        string
	InvoiceID       *uint
	Customer        gateways.Customer
	Description     string
	Metadata        map[string]string
}

type InitiatePaymentResult struct {
	Transaction  *models.PaymentTransaction `json:"transaction"`
	PaymentURL   string                     `json:"payment_url,omitempty"`
	PaymentToken string                     `json:"payment_token,omitempty"`
	QRCode       string                     `json:"qr_code,omitempty"`
}

type RefundResult struct {
	Refund *models.PaymentTransaction `json:"refund"`
	Parent *models.PaymentTransaction `json:"parent"`
}

// TransactionService drives payments and refunds through their gateways and
// owns every status change of a PaymentTransaction.
type TransactionService struct {
	txns    *repository.TransactionRepository
	methods *repository.MethodRepository
	factory *GatewayFactory
	bus     events.Bus
	cfg     TransactionConfig
	locks   *keyedMutex
	now     func() time.Time
}

// NewTransactionService also subscribes to UPI expiries so the linked
// payment expires with its UPI row.
func NewTransactionService(txns *repository.TransactionRepository, methods *repository.MethodRepository, factory *GatewayFactory, bus events.Bus, cfg TransactionConfig) *TransactionService {
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = utils.DefaultGatewayTimeout
	}
	cfg.CallbackBaseURL = strings.TrimRight(cfg.CallbackBaseURL, "/")
	s := &TransactionService{
		txns:    txns,
		methods: methods,
		factory: factory,
		bus:     bus,
		cfg:     cfg,
		locks:   newKeyedMutex(),
		now:     time.Now,
	}
	bus.Subscribe(events.UpiTransactionExpired, s.onUpiExpired)
	return s
}

// InitiatePayment records an INITIATED payment and asks its gateway to start
// collecting. A gateway failure leaves the row FAILED.
func (s *TransactionService) InitiatePayment(ctx context.Context, in InitiatePaymentInput) (*InitiatePaymentResult, error) {
	utils.LogInfo("InitiatePayment called: org=%d method=%d amount=%s %s", in.OrganizationID, in.PaymentMethodID, in.Amount, in.Currency)

	currency := utils.NormalizeCurrency(in.Currency)
	if err := utils.ValidateAmount(in.Amount); err != nil {
		return nil, err
	}
	if err := utils.ValidateCurrency(currency); err != nil {
		return nil, err
	}
	if err := utils.ValidateCustomer(in.Customer.Email, in.Customer.Phone); err != nil {
		return nil, err
	}

	method, err := s.methods.FindEnabled(ctx, in.OrganizationID, in.PaymentMethodID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.LogInfo("Payment method %d not available for org %d", in.PaymentMethodID, in.OrganizationID)
			return nil, utils.NotFoundError("Payment method not found or disabled", err)
		}
		return nil, err
	}

	gw, adapter, err := s.selectGateway(ctx, method, in.Amount, currency)
	if err != nil {
		return nil, err
	}
	if !gateways.Supports(adapter, currency, method.Type) {
		utils.LogInfo("Gateway %d rejects %s payments in %s", gw.ID, method.Type, currency)
		return nil, utils.ValidationFailedError(fmt.Sprintf("Gateway %s does not support %s payments in %s", gw.Name, method.Type, currency), nil)
	}

	fee := adapter.TransactionFees(in.Amount, currency, method.Type).Total(in.Amount)
	txn := &models.PaymentTransaction{
		Reference:       "PAY-" + uuid.NewString(),
		OrganizationID:  in.OrganizationID,
		PaymentMethodID: method.ID,
		GatewayID:       gw.ID,
		Type:            models.TxnTypePayment,
		Status:          models.TxnInitiated,
		Amount:          in.Amount,
		Fee:             fee,
		Currency:        currency,
		InvoiceID:       in.InvoiceID,
		CustomerName:    in.Customer.Name,
		CustomerEmail:   in.Customer.Email,
		CustomerPhone:   in.Customer.Phone,
		Metadata:        toJSON(in.Metadata),
	}
	if err := s.txns.Create(ctx, txn); err != nil {
		utils.LogError("Failed to record payment for org %d: %v", in.OrganizationID, err)
		return nil, utils.WrapError(err, "failed to record payment")
	}

	metadata := make(map[string]string, len(in.Metadata)+2)
	for k, v := range in.Metadata {
		metadata[k] = v
	}
	metadata["transaction_id"] = fmt.Sprint(txn.ID)
	metadata["reference"] = txn.Reference

	callCtx, cancel := s.gatewayContext(ctx)
	resp, err := adapter.InitiatePayment(callCtx, gateways.PaymentRequest{
		TransactionID: txn.ID,
		Reference:     txn.Reference,
		Amount:        txn.ChargeAmount(method.CustomerPaysFee),
		Currency:      currency,
		Method:        method.Type,
		Description:   in.Description,
		Customer:      in.Customer,
		CallbackURL:   s.callbackURL(gw),
		ReturnURL:     s.returnURL(txn.Reference),
		Metadata:      metadata,
	})
	cancel()
	if err == nil && (resp == nil || !resp.Success) {
		err = utils.GatewayError(responseError(resp), nil)
	}
	if err != nil {
		utils.LogError("Gateway %d failed to initiate payment %d: %v", gw.ID, txn.ID, err)
		s.markFailed(ctx, txn, err.Error())
		return nil, asGatewayError(err)
	}

	fields := map[string]interface{}{
		"gateway_transaction_id": resp.TransactionID,
		"payment_link":           resp.PaymentURL,
		"payment_token":          resp.Token,
		"gateway_response":       mergeResponse(txn.GatewayResponse, "initiate", resp.Raw),
	}
	if resp.ExpiresAt != nil {
		fields["expires_at"] = *resp.ExpiresAt
	}
	if err := s.txns.Update(ctx, txn.ID, fields); err != nil {
		// The provider already holds the payment; its id is the only link back.
		utils.LogError("Failed to store gateway response for payment %d (%s): gateway %d gateway_transaction_id=%s: %v",
			txn.ID, txn.Reference, gw.ID, resp.TransactionID, err)
		return nil, utils.WrapError(err, fmt.Sprintf("failed to store gateway response (gateway_transaction_id=%s)", resp.TransactionID))
	}
	if txn, err = s.txns.FindByID(ctx, txn.ID); err != nil {
		return nil, err
	}

	utils.LogInfo("Payment %d (%s) initiated via gateway %d", txn.ID, txn.Reference, gw.ID)
	s.bus.Publish(ctx, events.PaymentInitiated, transactionPayload(txn))
	return &InitiatePaymentResult{
		Transaction:  txn,
		PaymentURL:   resp.PaymentURL,
		PaymentToken: resp.Token,
		QRCode:       resp.QRCode,
	}, nil
}

func (s *TransactionService) selectGateway(ctx context.Context, method *models.PaymentMethod, amount decimal.Decimal, currency string) (*models.PaymentGateway, gateways.Adapter, error) {
	if method.IsAutoRouted() {
		gw, err := s.factory.GetOptimalGateway(ctx, method.OrganizationID, amount, currency, method.Type)
		if err != nil {
			return nil, nil, err
		}
		if gw == nil {
			return nil, nil, utils.ValidationFailedError(fmt.Sprintf("No gateway supports %s payments in %s", method.Type, currency), nil)
		}
		adapter := s.factory.adapterFor(gw)
		if adapter == nil {
			return nil, nil, utils.ConfigurationError(utils.ErrGatewayUnavailable, nil)
		}
		return gw, adapter, nil
	}

	gw, adapter, err := s.factory.Resolve(ctx, method.GatewayID)
	if err != nil {
		return nil, nil, err
	}
	if gw == nil || gw.OrganizationID != method.OrganizationID {
		utils.LogError("Payment method %d points at unknown gateway %d", method.ID, method.GatewayID)
		return nil, nil, utils.ConfigurationError("Payment method gateway not found", nil)
	}
	if adapter == nil {
		return nil, nil, utils.ConfigurationError(utils.ErrGatewayUnavailable, nil)
	}
	return gw, adapter, nil
}

// VerifyPayment asks the gateway for the outcome of a pending payment.
// Settled payments are returned as stored without contacting the gateway.
func (s *TransactionService) VerifyPayment(ctx context.Context, id uint) (*models.PaymentTransaction, error) {
	utils.LogInfo("VerifyPayment called for transaction %d", id)
	unlock := s.locks.Lock(id)
	defer unlock()

	txn, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.verify(ctx, txn, true)
}

// RefreshPaymentStatus serves the customer return page. The transaction is
// found by its reference and re-checked with the gateway, but a gateway error
// leaves the stored status untouched.
func (s *TransactionService) RefreshPaymentStatus(ctx context.Context, reference string) (*models.PaymentTransaction, error) {
	found, err := s.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if found.Type != models.TxnTypePayment {
		return nil, utils.NotFoundError("Transaction not found", nil)
	}

	unlock := s.locks.Lock(found.ID)
	defer unlock()

	txn, err := s.load(ctx, found.ID)
	if err != nil {
		return nil, err
	}
	updated, err := s.verify(ctx, txn, false)
	if err != nil {
		utils.LogInfo("Returning stored status for transaction %d: %v", txn.ID, err)
		return txn, nil
	}
	return updated, nil
}

// verify asks the gateway for the payment status. The caller holds the
// transaction lock. failOnError marks the row FAILED when the gateway call
// itself errors.
func (s *TransactionService) verify(ctx context.Context, txn *models.PaymentTransaction, failOnError bool) (*models.PaymentTransaction, error) {
	if txn.Type != models.TxnTypePayment {
		return nil, utils.ValidationFailedError("Only payments can be verified", nil)
	}
	if !txn.Status.IsPending() {
		utils.LogInfo("Transaction %d already %s, skipping gateway verify", txn.ID, txn.Status)
		return txn, nil
	}

	_, adapter, err := s.factory.Resolve(ctx, txn.GatewayID)
	if err != nil {
		return nil, err
	}
	if adapter == nil {
		return nil, utils.ConfigurationError(utils.ErrGatewayUnavailable, nil)
	}

	callCtx, cancel := s.gatewayContext(ctx)
	resp, err := adapter.VerifyPayment(callCtx, gateways.VerifyRequest{
		TransactionID:        txn.ID,
		Reference:            txn.Reference,
		GatewayTransactionID: txn.GatewayTransactionID,
		Amount:               txn.Amount,
		Currency:             txn.Currency,
	})
	cancel()
	if err != nil {
		utils.LogError("Gateway verify failed for transaction %d: %v", txn.ID, err)
		if failOnError {
			s.markFailed(ctx, txn, err.Error())
		}
		return nil, asGatewayError(err)
	}

	updated, _, err := s.applyOutcome(ctx, txn, resp.Status, resp.Error, "verify", resp.Raw)
	return updated, err
}

// applyOutcome moves a pending payment according to a gateway outcome. It
// reports whether this call performed the transition; only that call emits.
func (s *TransactionService) applyOutcome(ctx context.Context, txn *models.PaymentTransaction, status gateways.VerifyStatus, reason, source string, raw map[string]interface{}) (*models.PaymentTransaction, bool, error) {
	response := mergeResponse(txn.GatewayResponse, source, raw)

	var (
		applied bool
		event   string
		err     error
	)
	switch status {
	case gateways.StatusCompleted:
		applied, err = s.txns.CompareAndSetStatus(ctx, txn.ID, models.PendingStatuses, models.TxnCompleted, map[string]interface{}{
			"completed_at":     s.now(),
			"gateway_response": response,
		})
		event = events.PaymentCompleted
	case gateways.StatusFailed:
		if reason == "" {
			reason = "Payment failed at gateway"
		}
		applied, err = s.txns.CompareAndSetStatus(ctx, txn.ID, models.PendingStatuses, models.TxnFailed, map[string]interface{}{
			"failure_reason":   reason,
			"gateway_response": response,
		})
		event = events.PaymentFailed
	default:
		if txn.Status == models.TxnInitiated {
			_, err = s.txns.CompareAndSetStatus(ctx, txn.ID, []models.TransactionStatus{models.TxnInitiated}, models.TxnProcessing, map[string]interface{}{
				"gateway_response": response,
			})
		} else {
			err = s.txns.Update(ctx, txn.ID, map[string]interface{}{"gateway_response": response})
		}
	}
	if err != nil {
		utils.LogError("Failed to apply %s outcome to transaction %d: %v", status, txn.ID, err)
		return nil, false, err
	}

	updated, err := s.txns.FindByID(ctx, txn.ID)
	if err != nil {
		return nil, false, err
	}
	if applied {
		utils.LogInfo("Transaction %d moved to %s via %s", updated.ID, updated.Status, source)
		s.bus.Publish(ctx, event, transactionPayload(updated))
	} else if status != gateways.StatusPending {
		utils.LogInfo("Transaction %d already %s, %s outcome %s ignored", updated.ID, updated.Status, source, status)
	}
	return updated, applied, nil
}

// ProcessRefund refunds amount of a completed payment, or what is left of it
// when amount is nil. Earlier refunds, settled or still in flight, count
// against the original amount.
func (s *TransactionService) ProcessRefund(ctx context.Context, id uint, amount *decimal.Decimal, reason string) (*RefundResult, error) {
	utils.LogInfo("ProcessRefund called for transaction %d", id)
	unlock := s.locks.Lock(id)
	defer unlock()

	parent, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if parent.Type != models.TxnTypePayment {
		return nil, utils.ValidationFailedError("Only payments can be refunded", nil)
	}
	if parent.Status != models.TxnCompleted && parent.Status != models.TxnPartiallyRefunded {
		utils.LogInfo("Refund rejected: transaction %d is %s", parent.ID, parent.Status)
		return nil, utils.ValidationFailedError(fmt.Sprintf("Only completed payments can be refunded (transaction is %s)", parent.Status), nil)
	}

	committed, _, err := s.refundTotals(ctx, parent.ID)
	if err != nil {
		return nil, err
	}
	remaining := parent.Amount.Sub(committed)
	refundAmount := remaining
	if amount != nil {
		refundAmount = *amount
	}
	if err := utils.ValidateAmount(refundAmount); err != nil {
		return nil, err
	}
	if refundAmount.GreaterThan(remaining) {
		utils.LogInfo("Refund of %s on transaction %d exceeds refundable %s", refundAmount, parent.ID, remaining)
		return nil, utils.ValidationFailedError(fmt.Sprintf("Refund amount exceeds refundable balance of %s", remaining.StringFixed(2)), nil)
	}

	_, adapter, err := s.factory.Resolve(ctx, parent.GatewayID)
	if err != nil {
		return nil, err
	}
	if adapter == nil {
		return nil, utils.ConfigurationError(utils.ErrGatewayUnavailable, nil)
	}
	if !gateways.SupportsRefund(adapter) {
		utils.LogInfo("Refund rejected: gateway %d cannot refund transaction %d", parent.GatewayID, parent.ID)
		return nil, utils.ValidationFailedError("Refunds are not supported by this gateway", nil)
	}

	refund := &models.PaymentTransaction{
		Reference:           "REF-" + uuid.NewString(),
		OrganizationID:      parent.OrganizationID,
		PaymentMethodID:     parent.PaymentMethodID,
		GatewayID:           parent.GatewayID,
		Type:                models.TxnTypeRefund,
		Status:              models.TxnInitiated,
		Amount:              refundAmount,
		Currency:            parent.Currency,
		ParentTransactionID: &parent.ID,
		InvoiceID:           parent.InvoiceID,
		CustomerName:        parent.CustomerName,
		CustomerEmail:       parent.CustomerEmail,
		CustomerPhone:       parent.CustomerPhone,
		Metadata:            toJSON(map[string]string{"reason": reason}),
	}
	if err := s.txns.Create(ctx, refund); err != nil {
		utils.LogError("Failed to record refund for transaction %d: %v", parent.ID, err)
		return nil, utils.WrapError(err, "failed to record refund")
	}

	callCtx, cancel := s.gatewayContext(ctx)
	resp, err := adapter.ProcessRefund(callCtx, gateways.RefundRequest{
		TransactionID:        refund.ID,
		Reference:            refund.Reference,
		GatewayTransactionID: parent.GatewayTransactionID,
		Amount:               refundAmount,
		Currency:             parent.Currency,
		Reason:               reason,
	})
	cancel()
	if err == nil && (resp == nil || !resp.Success || resp.Status == gateways.StatusFailed) {
		err = utils.GatewayError(refundError(resp), nil)
	}
	if err != nil {
		utils.LogError("Gateway refund failed for transaction %d: %v", parent.ID, err)
		s.failRefund(ctx, refund, err.Error())
		return nil, asGatewayError(err)
	}

	fields := map[string]interface{}{
		"gateway_transaction_id": resp.RefundID,
		"gateway_response":       mergeResponse(nil, "refund", resp.Raw),
	}
	if resp.Status == gateways.StatusPending {
		if _, err := s.txns.CompareAndSetStatus(ctx, refund.ID, []models.TransactionStatus{models.TxnInitiated}, models.TxnProcessing, fields); err != nil {
			return nil, err
		}
		utils.LogInfo("Refund %d for transaction %d is processing at the gateway", refund.ID, parent.ID)
	} else {
		if _, err := s.completeRefund(ctx, refund, parent, fields); err != nil {
			return nil, err
		}
	}

	if refund, err = s.txns.FindByID(ctx, refund.ID); err != nil {
		return nil, err
	}
	if parent, err = s.txns.FindByID(ctx, parent.ID); err != nil {
		return nil, err
	}
	return &RefundResult{Refund: refund, Parent: parent}, nil
}

// completeRefund settles a pending refund row and recomputes its parent's
// status from the completed refund total.
func (s *TransactionService) completeRefund(ctx context.Context, refund, parent *models.PaymentTransaction, fields map[string]interface{}) (bool, error) {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["completed_at"] = s.now()
	applied, err := s.txns.CompareAndSetStatus(ctx, refund.ID, models.PendingStatuses, models.TxnCompleted, fields)
	if err != nil {
		utils.LogError("Failed to complete refund %d: %v", refund.ID, err)
		return false, err
	}
	if !applied {
		utils.LogInfo("Refund %d already settled", refund.ID)
		return false, nil
	}

	_, completed, err := s.refundTotals(ctx, parent.ID)
	if err != nil {
		return true, err
	}
	target := models.TxnPartiallyRefunded
	if completed.GreaterThanOrEqual(parent.Amount) {
		target = models.TxnRefunded
	}
	if _, err := s.txns.CompareAndSetStatus(ctx, parent.ID, []models.TransactionStatus{models.TxnCompleted, models.TxnPartiallyRefunded}, target, nil); err != nil {
		utils.LogError("Failed to move transaction %d to %s: %v", parent.ID, target, err)
		return true, err
	}

	settled, err := s.txns.FindByID(ctx, refund.ID)
	if err != nil {
		return true, err
	}
	utils.LogInfo("Refund %d completed, transaction %d is now %s", refund.ID, parent.ID, target)
	s.bus.Publish(ctx, events.RefundCompleted, transactionPayload(settled))
	return true, nil
}

func (s *TransactionService) failRefund(ctx context.Context, refund *models.PaymentTransaction, reason string) {
	applied, err := s.txns.CompareAndSetStatus(ctx, refund.ID, models.PendingStatuses, models.TxnFailed, map[string]interface{}{
		"failure_reason": reason,
	})
	if err != nil {
		utils.LogError("Failed to mark refund %d failed: %v", refund.ID, err)
		return
	}
	if applied {
		refund.Status = models.TxnFailed
		refund.FailureReason = reason
		s.bus.Publish(ctx, events.RefundFailed, transactionPayload(refund))
	}
}

// refundTotals sums the refunds of parentID: committed counts completed and
// in-flight refunds, completed only settled ones.
func (s *TransactionService) refundTotals(ctx context.Context, parentID uint) (committed, completed decimal.Decimal, err error) {
	refunds, err := s.txns.ListRefunds(ctx, parentID)
	if err != nil {
		utils.LogError("Failed to list refunds of transaction %d: %v", parentID, err)
		return decimal.Zero, decimal.Zero, err
	}
	for _, r := range refunds {
		switch {
		case r.Status == models.TxnCompleted:
			completed = completed.Add(r.Amount)
			committed = committed.Add(r.Amount)
		case r.Status.IsPending():
			committed = committed.Add(r.Amount)
		}
	}
	return committed, completed, nil
}

// ApplyGatewayEvent applies an authenticated webhook to the payment it names.
// The returned flag is false when the event found the payment already
// settled, which makes redelivery harmless.
func (s *TransactionService) ApplyGatewayEvent(ctx context.Context, gw *models.PaymentGateway, evt *gateways.WebhookEvent) (*models.PaymentTransaction, bool, error) {
	txn, err := s.correlate(ctx, gw, evt)
	if err != nil {
		return nil, false, err
	}

	unlock := s.locks.Lock(txn.ID)
	defer unlock()
	if txn, err = s.load(ctx, txn.ID); err != nil {
		return nil, false, err
	}

	switch evt.Type {
	case gateways.EventPaymentSuccess:
		return s.applyOutcome(ctx, txn, gateways.StatusCompleted, "", "webhook", evt.Raw)
	case gateways.EventPaymentFailed:
		return s.applyOutcome(ctx, txn, gateways.StatusFailed, evt.FailureReason, "webhook", evt.Raw)
	case gateways.EventRefundCompleted:
		refund, err := s.txns.FindPendingRefund(ctx, txn.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				utils.LogInfo("No pending refund on transaction %d, refund event ignored", txn.ID)
				return txn, false, nil
			}
			return nil, false, err
		}
		applied, err := s.completeRefund(ctx, refund, txn, map[string]interface{}{
			"gateway_response": mergeResponse(refund.GatewayResponse, "webhook", evt.Raw),
		})
		if err != nil {
			return nil, false, err
		}
		parent, err := s.txns.FindByID(ctx, txn.ID)
		if err != nil {
			return nil, false, err
		}
		return parent, applied, nil
	}

	utils.LogInfo("Event %s of type %s needs no state change", evt.ID, evt.Type)
	return txn, false, nil
}

// correlate finds the payment an event belongs to: the internal id echoed in
// provider metadata first, the provider's own id second.
func (s *TransactionService) correlate(ctx context.Context, gw *models.PaymentGateway, evt *gateways.WebhookEvent) (*models.PaymentTransaction, error) {
	var (
		txn *models.PaymentTransaction
		err error
	)
	switch {
	case evt.TransactionID != 0:
		txn, err = s.txns.FindByID(ctx, evt.TransactionID)
	case evt.GatewayTransactionID != "":
		txn, err = s.txns.FindByGatewayTransactionID(ctx, gw.ID, evt.GatewayTransactionID)
	default:
		return nil, utils.NotFoundError("Event carries no transaction reference", nil)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.NotFoundError("Transaction not found for event", err)
		}
		return nil, err
	}

	if txn.GatewayID != gw.ID || txn.Type != models.TxnTypePayment {
		utils.LogError("Event %s names transaction %d which does not belong to gateway %d", evt.ID, txn.ID, gw.ID)
		return nil, utils.NotFoundError("Transaction not found for event", nil)
	}
	if txn.GatewayTransactionID != "" && evt.GatewayTransactionID != "" && txn.GatewayTransactionID != evt.GatewayTransactionID {
		utils.LogError("Event %s gateway id %s does not match transaction %d (%s)", evt.ID, evt.GatewayTransactionID, txn.ID, txn.GatewayTransactionID)
		return nil, utils.ValidationFailedError("Gateway transaction id mismatch", nil)
	}
	return txn, nil
}

// CancelTransaction closes a payment that has not settled yet.
func (s *TransactionService) CancelTransaction(ctx context.Context, id uint, reason string) (*models.PaymentTransaction, error) {
	if reason == "" {
		reason = "Cancelled"
	}
	return s.closePending(ctx, id, models.TxnCancelled, reason, events.PaymentCancelled)
}

// ExpireTransaction closes a payment whose payment window ran out.
func (s *TransactionService) ExpireTransaction(ctx context.Context, id uint) (*models.PaymentTransaction, error) {
	return s.closePending(ctx, id, models.TxnExpired, "Payment window expired", events.PaymentExpired)
}

func (s *TransactionService) closePending(ctx context.Context, id uint, to models.TransactionStatus, reason, event string) (*models.PaymentTransaction, error) {
	utils.LogInfo("Moving transaction %d to %s", id, to)
	unlock := s.locks.Lock(id)
	defer unlock()

	txn, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !txn.Status.IsPending() {
		return nil, utils.ConflictError(fmt.Sprintf("Transaction is already %s", txn.Status), nil)
	}
	applied, err := s.txns.CompareAndSetStatus(ctx, id, models.PendingStatuses, to, map[string]interface{}{
		"failure_reason": reason,
	})
	if err != nil {
		return nil, err
	}
	if txn, err = s.txns.FindByID(ctx, id); err != nil {
		return nil, err
	}
	if !applied {
		return nil, utils.ConflictError(fmt.Sprintf("Transaction is already %s", txn.Status), nil)
	}
	s.bus.Publish(ctx, event, transactionPayload(txn))
	return txn, nil
}

func (s *TransactionService) onUpiExpired(ctx context.Context, evt events.Event) error {
	id, ok := evt.Payload["payment_transaction_id"].(uint)
	if !ok || id == 0 {
		return nil
	}
	if _, err := s.ExpireTransaction(ctx, id); err != nil && !utils.IsConflictError(err) {
		return err
	}
	return nil
}

func (s *TransactionService) GetTransaction(ctx context.Context, id uint) (*models.PaymentTransaction, error) {
	return s.load(ctx, id)
}

func (s *TransactionService) GetByReference(ctx context.Context, ref string) (*models.PaymentTransaction, error) {
	txn, err := s.txns.FindByReference(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.NotFoundError("Transaction not found", err)
		}
		return nil, err
	}
	return txn, nil
}

// ListTransactions returns one page of an organization's transactions and
// the total number matching filter.
func (s *TransactionService) ListTransactions(ctx context.Context, orgID uint, filter repository.TransactionFilter, offset, limit int) ([]models.PaymentTransaction, int64, error) {
	if filter.Status != "" && !knownStatus(filter.Status) {
		return nil, 0, utils.BadRequestError(fmt.Sprintf("Unknown status %q", filter.Status), nil)
	}
	return s.txns.ListByOrganization(ctx, orgID, filter, offset, limit)
}

func knownStatus(status models.TransactionStatus) bool {
	switch status {
	case models.TxnInitiated, models.TxnProcessing, models.TxnCompleted, models.TxnFailed,
		models.TxnRefunded, models.TxnPartiallyRefunded, models.TxnCancelled, models.TxnExpired:
		return true
	}
	return false
}

// ListRefunds returns the refunds issued against a payment.
func (s *TransactionService) ListRefunds(ctx context.Context, id uint) ([]models.PaymentTransaction, error) {
	return s.txns.ListRefunds(ctx, id)
}

func (s *TransactionService) load(ctx context.Context, id uint) (*models.PaymentTransaction, error) {
	txn, err := s.txns.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.NotFoundError("Transaction not found", err)
		}
		return nil, err
	}
	return txn, nil
}

// markFailed records a gateway error on a still-pending payment.
func (s *TransactionService) markFailed(ctx context.Context, txn *models.PaymentTransaction, reason string) {
	applied, err := s.txns.CompareAndSetStatus(ctx, txn.ID, models.PendingStatuses, models.TxnFailed, map[string]interface{}{
		"failure_reason": reason,
	})
	if err != nil {
		utils.LogError("Failed to mark transaction %d failed: %v", txn.ID, err)
		return
	}
	if applied {
		txn.Status = models.TxnFailed
		txn.FailureReason = reason
		s.bus.Publish(ctx, events.PaymentFailed, transactionPayload(txn))
	}
}

func (s *TransactionService) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.GatewayTimeout)
}

// callbackURL is where the provider posts asynchronous notifications.
func (s *TransactionService) callbackURL(gw *models.PaymentGateway) string {
	provider := strings.ToLower(string(gw.Type))
	if gw.Type.IsUPI() {
		return fmt.Sprintf("%s/v1/upi/callback/%s?gateway_id=%d", s.cfg.CallbackBaseURL, provider, gw.ID)
	}
	return fmt.Sprintf("%s/v1/webhooks/%s/%d", s.cfg.CallbackBaseURL, provider, gw.ID)
}

// returnURL is where the customer lands after checkout. It carries the
// reference, never the sequential id.
func (s *TransactionService) returnURL(reference string) string {
	return fmt.Sprintf("%s/v1/returns/%s", s.cfg.CallbackBaseURL, url.PathEscape(reference))
}

func asGatewayError(err error) error {
	if utils.IsAppError(err) {
		return err
	}
	return utils.GatewayError(utils.ErrGatewayUnavailable, err)
}

func responseError(resp *gateways.PaymentResponse) string {
	if resp != nil && resp.Error != "" {
		return resp.Error
	}
	return "Gateway declined the payment"
}

func refundError(resp *gateways.RefundResponse) string {
	if resp != nil && resp.Error != "" {
		return resp.Error
	}
	return "Gateway declined the refund"
}

func transactionPayload(txn *models.PaymentTransaction) map[string]interface{} {
	payload := map[string]interface{}{
		"transaction_id":         txn.ID,
		"reference":              txn.Reference,
		"organization_id":        txn.OrganizationID,
		"gateway_id":             txn.GatewayID,
		"type":                   string(txn.Type),
		"status":                 string(txn.Status),
		"amount":                 txn.Amount,
		"fee":                    txn.Fee,
		"currency":               txn.Currency,
		"gateway_transaction_id": txn.GatewayTransactionID,
	}
	if txn.InvoiceID != nil {
		payload["invoice_id"] = *txn.InvoiceID
	}
	if txn.ParentTransactionID != nil {
		payload["parent_transaction_id"] = *txn.ParentTransactionID
	}
	if txn.FailureReason != "" {
		payload["failure_reason"] = txn.FailureReason
	}
	return payload
}

func toJSON(v interface{}) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil || string(raw) == "null" {
		return nil
	}
	return datatypes.JSON(raw)
}

// mergeResponse keeps every gateway answer of a transaction under the step
// that produced it.
func mergeResponse(existing datatypes.JSON, step string, raw map[string]interface{}) datatypes.JSON {
	merged := map[string]interface{}{}
	if len(existing) > 0 {
		_ = json.Unmarshal(existing, &merged)
	}
	if raw != nil {
		merged[step] = raw
	}
	return toJSON(merged)
}
