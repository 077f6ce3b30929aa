package salesforce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// SignatureHeader carries the base64 HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Salesforce-Signature"

// SignPayload returns the base64-encoded HMAC-SHA256 of payload under secret.
func SignPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against the raw body. An empty secret disables
// verification entirely; that is a development convenience and production
// deployments must set SALESFORCE_WEBHOOK_SECRET.
func VerifySignature(secret string, payload []byte, header string) error {
	if strings.TrimSpace(secret) == "" {
		return nil
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return fmt.Errorf("%w: missing %s header", ErrInvalidSignature, SignatureHeader)
	}
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty body", ErrInvalidSignature)
	}
	expected := SignPayload(secret, payload)
	if !hmac.Equal([]byte(expected), []byte(header)) {
		return fmt.Errorf("%w: signature mismatch", ErrInvalidSignature)
	}
	return nil
}
