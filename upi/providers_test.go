package upi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Govind-619/PayRoute/models"
	"github.com/Govind-619/PayRoute/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhonePe_CollectSignsPayload(t *testing.T) {
	var gotVerify string
	var gotPayload map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pg/v1/pay", r.URL.Path)
		gotVerify = r.Header.Get("X-VERIFY")

		var body struct {
			Request string `json:"request"`
		}
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		decoded, err := base64.StdEncoding.DecodeString(body.Request)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(decoded, &gotPayload))
		assert.Equal(t, PhonePeChecksum(body.Request, "/pg/v1/pay", "salt", "1"), gotVerify)

		w.Write([]byte(`{"success":true,"code":"PAYMENT_INITIATED","data":{"transactionId":"T1","instrumentResponse":{"type":"PAY_PAGE","redirectInfo":{"url":"https://pay.example/T1"}}}}`))
	}))
	defer srv.Close()

	provider, err := NewProvider(models.GatewayPhonePe, Credentials{
		MerchantID: "MID",
		SaltKey:    "salt",
		SaltIndex:  "1",
		BaseURL:    srv.URL,
	})
	require.NoError(t, err)

	res, err := provider.Collect(context.Background(), CollectRequest{
		MerchantTxnID: "PAY-1",
		Amount:        decimal.RequireFromString("10.50"),
		PayerVPA:      "alice@ybl",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/T1", res.RedirectURL)
	assert.Equal(t, "T1", res.ProviderReference)
	assert.Equal(t, float64(1050), gotPayload["amount"])
	assert.Equal(t, "PAY-1", gotPayload["merchantTransactionId"])
}

func TestPhonePe_StatusNormalizesCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pg/v1/status/MID/PAY-1", r.URL.Path)
		assert.Equal(t, PhonePeChecksum("", "/pg/v1/status/MID/PAY-1", "salt", "1"), r.Header.Get("X-VERIFY"))
		w.Write([]byte(`{"success":true,"code":"PAYMENT_SUCCESS","data":{"paymentInstrument":{"utr":"UTR9"}}}`))
	}))
	defer srv.Close()

	provider, err := NewProvider(models.GatewayPhonePe, Credentials{MerchantID: "MID", SaltKey: "salt", SaltIndex: "1", BaseURL: srv.URL})
	require.NoError(t, err)

	res, err := provider.Status(context.Background(), "PAY-1")
	require.NoError(t, err)
	assert.Equal(t, models.UpiCompleted, res.Status)
	assert.Equal(t, "UTR9", res.RRN)
}

func TestPhonePe_CallbackSignature(t *testing.T) {
	provider, err := NewProvider(models.GatewayPhonePe, Credentials{MerchantID: "MID", SaltKey: "salt", SaltIndex: "1"})
	require.NoError(t, err)

	doc := `{"success":true,"code":"PAYMENT_SUCCESS","data":{"merchantTransactionId":"PAY-1","transactionId":"T1","amount":1050,"paymentInstrument":{"utr":"UTR9"}}}`
	encoded := base64.StdEncoding.EncodeToString([]byte(doc))
	body := []byte(`{"response":"` + encoded + `"}`)
	headers := http.Header{}
	headers.Set("X-VERIFY", PhonePeChecksum(encoded, "", "salt", "1"))

	cb, err := provider.ParseCallback(headers, body)
	require.NoError(t, err)
	assert.Equal(t, "PAY-1", cb.MerchantTxnID)
	assert.Equal(t, models.UpiCompleted, cb.Status)
	assert.Equal(t, "UTR9", cb.RRN)
	assert.True(t, decimal.RequireFromString("10.5").Equal(cb.Amount))

	tampered := base64.StdEncoding.EncodeToString([]byte(doc + " "))
	_, err = provider.ParseCallback(headers, []byte(`{"response":"`+tampered+`"}`))
	assert.True(t, utils.IsSignatureError(err))
}

func TestPaytm_CallbackSignature(t *testing.T) {
	provider, err := NewProvider(models.GatewayPaytm, Credentials{MerchantID: "MID", MerchantKey: "mkey"})
	require.NoError(t, err)

	inner := map[string]interface{}{
		"orderId":    "PAY-2",
		"txnId":      "PTM1",
		"bankTxnId":  "RRN2",
		"resultInfo": map[string]string{"resultStatus": "TXN_FAILURE"},
	}
	sig, err := PaytmChecksum(inner, "mkey")
	require.NoError(t, err)
	body, _ := json.Marshal(map[string]interface{}{"head": map[string]string{"signature": sig}, "body": inner})

	cb, err := provider.ParseCallback(http.Header{}, body)
	require.NoError(t, err)
	assert.Equal(t, "PAY-2", cb.MerchantTxnID)
	assert.Equal(t, models.UpiFailed, cb.Status)
	assert.Equal(t, "RRN2", cb.RRN)

	inner["orderId"] = "PAY-3"
	forged, _ := json.Marshal(map[string]interface{}{"head": map[string]string{"signature": sig}, "body": inner})
	_, err = provider.ParseCallback(http.Header{}, forged)
	assert.True(t, utils.IsSignatureError(err))
}

func TestIntentProvider(t *testing.T) {
	_, err := NewProvider(models.GatewayGPay, Credentials{PayeeVPA: "merchant@okicici"})
	assert.True(t, utils.IsConfigurationError(err))

	provider, err := NewProvider(models.GatewayBHIM, Credentials{PayeeVPA: "merchant@okicici", PayeeName: "Acme", WebhookSecret: "whsec"})
	require.NoError(t, err)
	assert.False(t, provider.SupportsStatusQuery())
	assert.False(t, provider.SupportsRefund())

	res, err := provider.Collect(context.Background(), CollectRequest{MerchantTxnID: "PAY-9", Amount: decimal.NewFromInt(20)})
	require.NoError(t, err)
	assert.Equal(t, "upi://pay?pa=merchant%40okicici&pn=Acme&am=20.00&tr=PAY-9&cu=INR", res.IntentURI)

	_, err = provider.Refund(context.Background(), RefundRequest{MerchantTxnID: "PAY-9", Amount: decimal.NewFromInt(20)})
	assert.True(t, utils.IsValidationError(err))

	body := []byte(`{"merchantTransactionId":"PAY-9","status":"SUCCESS","rrn":"R1","amount":"20.00"}`)
	headers := http.Header{}
	headers.Set(SignatureHeader, HMACSignature(body, "whsec"))

	cb, err := provider.ParseCallback(headers, body)
	require.NoError(t, err)
	assert.Equal(t, models.UpiCompleted, cb.Status)
	assert.Equal(t, "PAY-9:SUCCESS", cb.EventID)

	tampered := []byte(`{"merchantTransactionId":"PAY-9","status":"SUCCESS","rrn":"R1","amount":"2000.00"}`)
	_, err = provider.ParseCallback(headers, tampered)
	assert.True(t, utils.IsSignatureError(err))
}

func TestHMACSignatureFixture(t *testing.T) {
	body := []byte(`{"merchantTransactionId":"PAY-1","status":"SUCCESS","rrn":"R1","amount":"10.00"}`)
	assert.Equal(t, "b78a6cd57f58945cfad58db49d615544aa8e74b661bb22ef6526e80f2d3af27f", HMACSignature(body, "whsec"))
}
