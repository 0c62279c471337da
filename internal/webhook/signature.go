package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

const sigPrefix = "sha256="

// Sign computes the signature header value for a request body:
// "sha256=" + hex(HMAC-SHA256(secret, body)). The MAC covers the exact
// bytes sent, so receivers must verify before any JSON parsing.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return sigPrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a received signature in constant time.
func Verify(secret string, body []byte, signature string) bool {
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
