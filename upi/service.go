package upi

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Govind-619/PayRoute/events"
	"github.com/Govind-619/PayRoute/models"
	"github.com/Govind-619/PayRoute/repository"
	"github.com/Govind-619/PayRoute/utils"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Service owns UpiTransaction rows for every provider.
type Service struct {
	repo  *repository.UpiRepository
	bus   events.Bus
	clock Clock
}

func NewService(repo *repository.UpiRepository, bus events.Bus, clock Clock) *Service {
	if clock == nil {
		clock = SystemClock()
	}
	return &Service{repo: repo, bus: bus, clock: clock}
}

type InitiateRequest struct {
	MerchantTxnID        string
	PaymentTransactionID *uint
	Amount               decimal.Decimal
	PayerVPA             string
	PayerPhone           string
	Note                 string
	CallbackURL          string
	RedirectURL          string
}

type InitiateResult struct {
	Transaction *models.UpiTransaction
	RedirectURL string
	IntentURI   string
	QR          *QRCode
}

func toJSON(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// Initiate validates the payer VPA, records a PENDING row and asks the
// provider to start collecting. A provider failure marks the row FAILED.
func (s *Service) Initiate(ctx context.Context, provider Provider, req InitiateRequest) (*InitiateResult, error) {
	utils.LogInfo("UPI initiate called: provider=%s merchantTxnId=%s", provider.Name(), req.MerchantTxnID)

	if req.PayerVPA != "" {
		if err := ValidateVPA(req.PayerVPA); err != nil {
			utils.LogError("Rejected UPI payer VPA %q", req.PayerVPA)
			return nil, err
		}
	}
	if err := utils.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}

	txn := &models.UpiTransaction{
		Provider:              provider.Name(),
		MerchantTransactionID: req.MerchantTxnID,
		PaymentTransactionID:  req.PaymentTransactionID,
		Amount:                req.Amount,
		Status:                models.UpiPending,
		PayerVPA:              req.PayerVPA,
		CreatedAt:             s.clock.Now(),
	}
	if err := s.repo.Create(ctx, txn); err != nil {
		utils.LogError("Failed to record UPI transaction %s: %v", req.MerchantTxnID, err)
		return nil, utils.WrapError(err, "failed to record UPI transaction")
	}

	result, err := provider.Collect(ctx, CollectRequest{
		MerchantTxnID: req.MerchantTxnID,
		Amount:        req.Amount,
		PayerVPA:      req.PayerVPA,
		PayerPhone:    req.PayerPhone,
		Note:          req.Note,
		CallbackURL:   req.CallbackURL,
		RedirectURL:   req.RedirectURL,
	})
	if err != nil {
		utils.LogError("UPI collect failed for %s: %v", req.MerchantTxnID, err)
		if _, casErr := s.repo.CompareAndSetStatus(ctx, txn.ID, models.UpiPending, models.UpiFailed, map[string]interface{}{
			"raw_response": toJSON(map[string]string{"error": err.Error()}),
		}); casErr != nil {
			utils.LogError("Failed to mark UPI transaction %d failed: %v", txn.ID, casErr)
		}
		return nil, err
	}

	txn.PayeeVPA = result.PayeeVPA
	txn.RawRequest = toJSON(result.Request)
	txn.RawResponse = toJSON(result.Response)
	if err := s.repo.Update(ctx, txn.ID, map[string]interface{}{
		"payee_vpa":    txn.PayeeVPA,
		"raw_request":  txn.RawRequest,
		"raw_response": txn.RawResponse,
	}); err != nil {
		utils.LogError("Failed to store UPI provider response for %d: %v", txn.ID, err)
	}

	out := &InitiateResult{Transaction: txn, RedirectURL: result.RedirectURL, IntentURI: result.IntentURI}
	if result.IntentURI != "" {
		if qr, err := qrFromURI(result.IntentURI); err == nil {
			out.QR = qr
		} else {
			utils.LogError("Failed to render QR for %s: %v", req.MerchantTxnID, err)
		}
	}
	utils.LogInfo("UPI transaction %d pending with %s", txn.ID, provider.Name())
	return out, nil
}

// ApplyCallback moves the (provider, merchantTxnID) row out of PENDING
// according to code. It reports whether this call made the change; only
// that call emits upi.transaction.status.
func (s *Service) ApplyCallback(ctx context.Context, provider models.GatewayType, merchantTxnID, code, rrn string, raw map[string]interface{}) (*models.UpiTransaction, bool, error) {
	txn, err := s.repo.FindByMerchantTxnID(ctx, provider, merchantTxnID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, false, utils.NotFoundError("UPI transaction not found", err)
		}
		return nil, false, err
	}

	status := NormalizeCode(code)
	if status == models.UpiPending {
		utils.LogDebug("UPI %s/%s still pending (code %s)", provider, merchantTxnID, code)
		return txn, false, nil
	}

	fields := map[string]interface{}{"raw_response": toJSON(raw)}
	if rrn != "" {
		fields["rrn"] = rrn
	}
	changed, err := s.repo.CompareAndSetStatus(ctx, txn.ID, models.UpiPending, status, fields)
	if err != nil {
		return nil, false, err
	}

	txn, err = s.repo.FindByID(ctx, txn.ID)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		utils.LogInfo("UPI transaction %d already %s, callback ignored", txn.ID, txn.Status)
		return txn, false, nil
	}

	utils.LogInfo("UPI transaction %d moved to %s", txn.ID, status)
	s.bus.Publish(ctx, events.UpiTransactionStatus, statusPayload(txn))
	return txn, true, nil
}

// RefreshStatus polls the provider for a still-pending row and applies the
// answer.
func (s *Service) RefreshStatus(ctx context.Context, provider Provider, merchantTxnID string) (*models.UpiTransaction, error) {
	txn, err := s.repo.FindByMerchantTxnID(ctx, provider.Name(), merchantTxnID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.NotFoundError("UPI transaction not found", err)
		}
		return nil, err
	}
	if txn.Status != models.UpiPending || !provider.SupportsStatusQuery() {
		return txn, nil
	}

	if err := s.repo.IncrementRetry(ctx, txn.ID); err != nil {
		utils.LogError("Failed to count UPI status poll for %d: %v", txn.ID, err)
	}
	status, err := provider.Status(ctx, merchantTxnID)
	if err != nil {
		return nil, err
	}
	updated, _, err := s.ApplyCallback(ctx, provider.Name(), merchantTxnID, status.Code, status.RRN, status.Raw)
	return updated, err
}

func (s *Service) Get(ctx context.Context, id uint) (*models.UpiTransaction, error) {
	txn, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, utils.NotFoundError("UPI transaction not found", err)
		}
		return nil, err
	}
	return txn, nil
}

// PendingDeadline is when a row created at createdAt is swept.
func PendingDeadline(createdAt time.Time, ttl time.Duration) time.Time {
	return createdAt.Add(ttl)
}

func statusPayload(txn *models.UpiTransaction) map[string]interface{} {
	payload := map[string]interface{}{
		"upi_transaction_id":      txn.ID,
		"provider":                string(txn.Provider),
		"merchant_transaction_id": txn.MerchantTransactionID,
		"status":                  string(txn.Status),
		"rrn":                     txn.RRN,
		"amount":                  txn.Amount.String(),
	}
	if txn.PaymentTransactionID != nil {
		payload["payment_transaction_id"] = *txn.PaymentTransactionID
	}
	return payload
}

func qrFromURI(uri string) (*QRCode, error) {
	p, err := ParsePaymentURI(uri)
	if err != nil {
		return nil, err
	}
	return GenerateDynamicQR(p.VPA, p.Name, p.Amount, p.Reference, p.Note)
}
