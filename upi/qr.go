package upi

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/Govind-619/PayRoute/utils"
	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 256

// PaymentURI is the content of a upi://pay deep link. A zero Amount and
// empty Reference or Note are left out of the URI.
type PaymentURI struct {
	VPA       string
	Name      string
	Amount    decimal.Decimal
	Reference string
	Note      string
	Currency  string
}

// BuildPaymentURI renders the link with parameters in a fixed order:
// pa, pn, am, tr, tn, cu.
func BuildPaymentURI(p PaymentURI) string {
	var b strings.Builder
	b.WriteString("upi://pay?pa=")
	b.WriteString(url.QueryEscape(p.VPA))
	b.WriteString("&pn=")
	b.WriteString(url.QueryEscape(p.Name))
	if !p.Amount.IsZero() {
		b.WriteString("&am=")
		b.WriteString(p.Amount.StringFixed(2))
	}
	if p.Reference != "" {
		b.WriteString("&tr=")
		b.WriteString(url.QueryEscape(p.Reference))
	}
	if p.Note != "" {
		b.WriteString("&tn=")
		b.WriteString(url.QueryEscape(p.Note))
	}
	b.WriteString("&cu=INR")
	return b.String()
}

// ParsePaymentURI reads a upi://pay link back.
func ParsePaymentURI(raw string) (PaymentURI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return PaymentURI{}, utils.ValidationFailedError("invalid UPI URI", err)
	}
	if u.Scheme != "upi" || u.Host != "pay" {
		return PaymentURI{}, utils.ValidationFailedError("not a upi://pay URI", nil)
	}

	q, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return PaymentURI{}, utils.ValidationFailedError("invalid UPI URI query", err)
	}
	p := PaymentURI{
		VPA:       q.Get("pa"),
		Name:      q.Get("pn"),
		Reference: q.Get("tr"),
		Note:      q.Get("tn"),
		Currency:  q.Get("cu"),
	}
	if am := q.Get("am"); am != "" {
		p.Amount, err = decimal.NewFromString(am)
		if err != nil {
			return PaymentURI{}, utils.ValidationFailedError("invalid UPI amount", err)
		}
	}
	return p, nil
}

// QRCode is a rendered intent link.
type QRCode struct {
	URI       string `json:"uri"`
	PNGBase64 string `json:"png_base64"`
}

// GenerateDynamicQR validates the payee VPA and renders the intent link as a
// base64 PNG.
func GenerateDynamicQR(vpa, name string, amount decimal.Decimal, ref, note string) (*QRCode, error) {
	if err := ValidateVPA(vpa); err != nil {
		return nil, err
	}
	if amount.IsNegative() {
		return nil, utils.ValidationFailedError(utils.ErrInvalidAmount, nil)
	}

	uri := BuildPaymentURI(PaymentURI{VPA: vpa, Name: name, Amount: amount, Reference: ref, Note: note})
	png, err := qrcode.Encode(uri, qrcode.Medium, qrSize)
	if err != nil {
		return nil, utils.WrapError(err, "failed to render UPI QR code")
	}
	return &QRCode{URI: uri, PNGBase64: base64.StdEncoding.EncodeToString(png)}, nil
}
