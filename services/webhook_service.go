package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Govind-619/PayRoute/events"
	"github.com/Govind-619/PayRoute/gateways"
	"github.com/Govind-619/PayRoute/models"
	"github.com/Govind-619/PayRoute/repository"
	"github.com/Govind-619/PayRoute/utils"
)

type WebhookInput struct {
	Provider  string
	GatewayID uint
	Headers   http.Header
	Body      []byte
}

type WebhookResult struct {
	Event     *gateways.WebhookEvent    `json:"event"`
	Status    models.WebhookEventStatus `json:"status"`
	Duplicate bool                      `json:"duplicate"`
	Applied   bool                      `json:"applied"`
}

// WebhookService authenticates provider notifications, logs them once per
// provider event id and applies them to the matching payment.
type WebhookService struct {
	factory *GatewayFactory
	txns    *TransactionService
	log     *repository.WebhookEventRepository
	bus     events.Bus
	now     func() time.Time
}

func NewWebhookService(factory *GatewayFactory, txns *TransactionService, log *repository.WebhookEventRepository, bus events.Bus) *WebhookService {
	return &WebhookService{factory: factory, txns: txns, log: log, bus: bus, now: time.Now}
}

// Handle returns an error only when the notification cannot be
// authenticated or its gateway is unknown. Everything the gateway signed is
// acknowledged; processing failures are recorded on the event log instead.
func (s *WebhookService) Handle(ctx context.Context, in WebhookInput) (*WebhookResult, error) {
	utils.LogInfo("Webhook received: provider=%s gateway=%d bytes=%d", in.Provider, in.GatewayID, len(in.Body))

	gw, adapter, err := s.factory.Resolve(ctx, in.GatewayID)
	if err != nil {
		return nil, err
	}
	if gw == nil || !strings.EqualFold(string(gw.Type), in.Provider) {
		utils.LogError("Webhook for unknown gateway %s/%d", in.Provider, in.GatewayID)
		return nil, utils.NotFoundError("Gateway not found", nil)
	}
	if adapter == nil {
		return nil, utils.ConfigurationError(utils.ErrGatewayUnavailable, nil)
	}

	evt, err := adapter.ProcessWebhook(ctx, gateways.WebhookRequest{Headers: in.Headers, Body: in.Body})
	if err != nil {
		if utils.IsSignatureError(err) {
			utils.LogError("Rejected %s webhook for gateway %d: %v", gw.Type, gw.ID, err)
		} else {
			utils.LogError("Failed to parse %s webhook for gateway %d: %v", gw.Type, gw.ID, err)
		}
		return nil, err
	}
	if evt.ID == "" {
		sum := sha256.Sum256(in.Body)
		evt.ID = "body:" + hex.EncodeToString(sum[:])
	}

	existing, err := s.log.FindByProviderEvent(ctx, gw.Type, evt.ID)
	switch {
	case err == nil && existing.Status != models.WebhookFailed:
		utils.LogInfo("Duplicate %s event %s ignored", gw.Type, evt.ID)
		return &WebhookResult{Event: evt, Status: existing.Status, Duplicate: true}, nil
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		utils.LogError("Failed to look up %s event %s: %v", gw.Type, evt.ID, err)
		return nil, err
	}

	result := &WebhookResult{Event: evt}
	var (
		txn        *models.PaymentTransaction
		processErr error
	)
	if evt.Type == gateways.EventUnknown {
		utils.LogInfo("Unhandled %s event %s (%s) acknowledged", gw.Type, evt.ID, evt.ProviderType)
		result.Status = models.WebhookIgnored
	} else {
		txn, result.Applied, processErr = s.txns.ApplyGatewayEvent(ctx, gw, evt)
		switch {
		case processErr == nil:
			result.Status = models.WebhookProcessed
		case utils.IsNotFoundError(processErr):
			utils.LogInfo("%s event %s matches no transaction: %v", gw.Type, evt.ID, processErr)
			result.Status = models.WebhookIgnored
		default:
			utils.LogError("Failed to apply %s event %s: %v", gw.Type, evt.ID, processErr)
			result.Status = models.WebhookFailed
		}
	}

	s.record(ctx, gw, evt, existing, txn, result.Status, processErr)

	if result.Applied {
		s.bus.Publish(ctx, events.ProviderEvent(strings.ToLower(string(gw.Type)), providerSuffix(evt.Type)), providerPayload(evt, txn))
	}
	utils.LogInfo("%s event %s %s (applied=%v)", gw.Type, evt.ID, result.Status, result.Applied)
	return result, nil
}

// record writes the event log row. A failed earlier attempt is updated in
// place; a concurrent insert of the same event loses on the unique key.
func (s *WebhookService) record(ctx context.Context, gw *models.PaymentGateway, evt *gateways.WebhookEvent, existing *models.WebhookEvent, txn *models.PaymentTransaction, status models.WebhookEventStatus, processErr error) {
	now := s.now()
	errText := ""
	if processErr != nil {
		errText = processErr.Error()
	}
	var txnID *uint
	if txn != nil {
		id := txn.ID
		txnID = &id
	}

	if existing != nil {
		if err := s.log.Update(ctx, existing.ID, map[string]interface{}{
			"status":         status,
			"error":          errText,
			"transaction_id": txnID,
			"processed_at":   now,
		}); err != nil {
			utils.LogError("Failed to update webhook event %d: %v", existing.ID, err)
		}
		return
	}

	row := &models.WebhookEvent{
		Provider:        gw.Type,
		ProviderEventID: evt.ID,
		GatewayID:       gw.ID,
		EventType:       evt.ProviderType,
		TransactionID:   txnID,
		Payload:         toJSON(evt.Raw),
		Status:          status,
		Error:           errText,
		ProcessedAt:     &now,
	}
	if err := s.log.Create(ctx, row); err != nil {
		utils.LogError("Failed to log %s event %s: %v", gw.Type, evt.ID, err)
	}
}

func providerSuffix(t gateways.EventType) string {
	switch t {
	case gateways.EventPaymentSuccess:
		return "payment.success"
	case gateways.EventPaymentFailed:
		return "payment.failed"
	case gateways.EventRefundCompleted:
		return "refund.completed"
	}
	return "unknown"
}

func providerPayload(evt *gateways.WebhookEvent, txn *models.PaymentTransaction) map[string]interface{} {
	payload := map[string]interface{}{
		"event_id":               evt.ID,
		"event_type":             evt.ProviderType,
		"gateway_transaction_id": evt.GatewayTransactionID,
	}
	if txn != nil {
		for k, v := range transactionPayload(txn) {
			payload[k] = v
		}
	}
	return payload
}
