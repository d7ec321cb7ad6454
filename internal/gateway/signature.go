package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// computeHMAC returns the hex-encoded HMAC-SHA256 of payload under secret
func computeHMAC(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// secureCompare compares two hex signatures in constant time
func secureCompare(expected, provided string) bool {
	return hmac.Equal([]byte(expected), []byte(provided))
}
