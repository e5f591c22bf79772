package gateway

import (
	"strings"

	"github.com/goliatone/go-checkout/core"
)

// Adapter turns a vendor webhook into a canonical event and checks its
// signature. Both operations are side effect free.
type Adapter interface {
	Name() string
	SignatureHeaders() []string
	Normalize(raw []byte) (core.CanonicalEvent, error)
	VerifySignature(rawBody []byte, signature string, secret string) bool
}

// HeaderValue does a case-insensitive header lookup.
func HeaderValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// FirstHeader returns the first non-empty value among keys.
func FirstHeader(headers map[string]string, keys ...string) string {
	for _, key := range keys {
		if value := HeaderValue(headers, key); value != "" {
			return value
		}
	}
	return ""
}
