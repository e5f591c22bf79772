package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

const (
	EncodingHex    = "hex"
	EncodingBase64 = "base64"
)

// HMACVerifier checks an HMAC-SHA256 signature over a raw body.
type HMACVerifier struct {
	Prefix   string
	Encoding string
}

// Verify reports whether signature matches the HMAC of body under secret.
// Empty inputs never verify.
func (v HMACVerifier) Verify(body []byte, signature string, secret string) bool {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return false
	}
	signature = strings.TrimSpace(signature)
	if prefix := strings.TrimSpace(v.Prefix); prefix != "" {
		signature = strings.TrimSpace(strings.TrimPrefix(signature, prefix))
	}
	if signature == "" {
		return false
	}

	expected := Sum(body, secret)
	var decoded []byte
	var err error
	switch strings.ToLower(strings.TrimSpace(v.Encoding)) {
	case EncodingBase64:
		decoded, err = base64.StdEncoding.DecodeString(signature)
	default:
		decoded, err = hex.DecodeString(strings.ToLower(signature))
	}
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(decoded, expected) == 1
}

func Sum(body []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}

// SignHex returns the lowercase hex HMAC-SHA256 of body.
func SignHex(body []byte, secret string) string {
	return hex.EncodeToString(Sum(body, secret))
}
