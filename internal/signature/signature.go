// Package signature verifies Razorpay payment and webhook signatures.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrMissingSecret means the verification secret was never configured.
var ErrMissingSecret = errors.New("signature secret is not configured")

// Sign returns the hex HMAC-SHA256 of "orderID|paymentID" under secret.
func Sign(orderID, paymentID, secret string) string {
	return digest([]byte(orderID+"|"+paymentID), secret)
}

// Verify reports whether sig was produced by the processor for the given
// order and payment. A mismatch is never an error.
func Verify(orderID, paymentID, sig, secret string) (bool, error) {
	if secret == "" {
		return false, ErrMissingSecret
	}
	return equal(Sign(orderID, paymentID, secret), sig), nil
}

// SignWebhook returns the hex HMAC-SHA256 of a raw webhook body.
func SignWebhook(body []byte, secret string) string {
	return digest(body, secret)
}

// VerifyWebhook checks the X-Razorpay-Signature header against the raw body.
func VerifyWebhook(body []byte, sig, secret string) (bool, error) {
	if secret == "" {
		return false, ErrMissingSecret
	}
	return equal(digest(body, secret), sig), nil
}

func digest(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func equal(expected, actual string) bool {
	return hmac.Equal([]byte(expected), []byte(actual))
}
