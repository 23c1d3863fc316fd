// Package upi implements the UPI sub-flow shared by PhonePe, Paytm, GPay and
// BHIM: VPA checks, request signing, intent URIs and QR codes, callbacks and
// the pending-expiry sweep.
package upi

import (
	"regexp"
	"strings"

	"github.com/Govind-619/PayRoute/utils"
)

var vpaPattern = regexp.MustCompile(`^[a-zA-Z0-9.\-_]{2,256}@[a-zA-Z]{2,64}$`)

// knownHandles are the PSP suffixes accepted after the '@'.
var knownHandles = map[string]bool{
	"upi":        true,
	"ybl":        true,
	"ibl":        true,
	"axl":        true,
	"paytm":      true,
	"ptyes":      true,
	"ptaxis":     true,
	"pthdfc":     true,
	"ptsbi":      true,
	"okaxis":     true,
	"okhdfcbank": true,
	"okicici":    true,
	"oksbi":      true,
	"apl":        true,
	"yapl":       true,
	"ikwik":      true,
	"axisbank":   true,
	"hdfcbank":   true,
	"icici":      true,
	"sbi":        true,
	"kotak":      true,
	"indus":      true,
	"federal":    true,
	"barodampay": true,
	"unionbank":  true,
	"pnb":        true,
	"idfcbank":   true,
	"aubank":     true,
	"fbl":        true,
	"slice":      true,
	"freecharge": true,
	"airtel":     true,
	"jio":        true,
	"postbank":   true,
	"rbl":        true,
}

// Handle returns the lower-cased part after '@'.
func Handle(vpa string) string {
	if i := strings.LastIndex(vpa, "@"); i >= 0 {
		return strings.ToLower(vpa[i+1:])
	}
	return ""
}

// IsValidVPA reports whether vpa is well formed and uses a known handle.
func IsValidVPA(vpa string) bool {
	vpa = strings.TrimSpace(vpa)
	return vpaPattern.MatchString(vpa) && knownHandles[Handle(vpa)]
}

// ValidateVPA returns a validation error for malformed or unknown VPAs.
func ValidateVPA(vpa string) error {
	if !IsValidVPA(vpa) {
		return utils.ValidationFailedError(utils.ErrInvalidVPA, nil)
	}
	return nil
}
