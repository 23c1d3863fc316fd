package upi

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// PhonePeChecksum is hex(SHA256(base64Payload + endpointPath + saltKey)) + "###" + saltIndex.
// Callbacks are signed with an empty endpointPath.
func PhonePeChecksum(base64Payload, endpointPath, saltKey, saltIndex string) string {
	sum := sha256.Sum256([]byte(base64Payload + endpointPath + saltKey))
	return hex.EncodeToString(sum[:]) + "###" + saltIndex
}

// PaytmChecksum is hex(SHA256(canonicalJSON(body) + merchantKey)).
func PaytmChecksum(body interface{}, merchantKey string) (string, error) {
	canonical, err := CanonicalJSON(body)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(append(canonical, merchantKey...))
	return hex.EncodeToString(sum[:]), nil
}

// CanonicalJSON re-encodes v with object keys sorted, no insignificant
// whitespace and no HTML escaping, so equal values always sign identically.
func CanonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// HMACSignature is hex(HMAC-SHA256(secret, body)), used by intent-only
// providers for callbacks.
func HMACSignature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// equalSignature compares signatures in constant time.
func equalSignature(expected, got string) bool {
	return hmac.Equal([]byte(expected), []byte(got))
}
