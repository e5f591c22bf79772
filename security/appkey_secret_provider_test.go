package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"testing"
)

func TestAppKeySecretProvider_EncryptDecryptRoundTrip(t *testing.T) {
	provider, err := NewAppKeySecretProviderFromString("super-secret-test-key", WithKeyID("checkout-v1"), WithVersion(3))
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	plaintext := []byte("pushinpay-token-123")
	encrypted, err := provider.Encrypt(context.Background(), plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(encrypted, plaintext) {
		t.Fatalf("expected encrypted payload to hide plaintext")
	}
	if !bytes.HasPrefix(encrypted, []byte(envelopePrefix)) {
		t.Fatalf("expected envelope prefix")
	}

	decrypted, err := provider.Decrypt(context.Background(), encrypted)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("expected roundtrip plaintext; got %q", string(decrypted))
	}

	meta, err := ParseEnvelopeMetadata(encrypted)
	if err != nil {
		t.Fatalf("parse metadata: %v", err)
	}
	if meta.KeyID != "checkout-v1" || meta.Version != 3 || meta.Legacy {
		t.Fatalf("unexpected metadata %+v", meta)
	}
}

func TestAppKeySecretProvider_RejectsMetadataMismatch(t *testing.T) {
	issuer, err := NewAppKeySecretProviderFromString("super-secret-test-key", WithKeyID("checkout-v1"), WithVersion(1))
	if err != nil {
		t.Fatalf("new issuer provider: %v", err)
	}
	receiver, err := NewAppKeySecretProviderFromString("super-secret-test-key", WithKeyID("checkout-v2"), WithVersion(2))
	if err != nil {
		t.Fatalf("new receiver provider: %v", err)
	}

	encrypted, err := issuer.Encrypt(context.Background(), []byte("payload"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := receiver.Decrypt(context.Background(), encrypted); err == nil {
		t.Fatalf("expected metadata mismatch error")
	}
}

func TestAppKeySecretProvider_RejectsTamperedCiphertext(t *testing.T) {
	provider, err := NewAppKeySecretProviderFromString("super-secret-test-key")
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	other, err := NewAppKeySecretProviderFromString("another-key")
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	encrypted, err := provider.Encrypt(context.Background(), []byte("payload"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := other.Decrypt(context.Background(), encrypted); err == nil {
		t.Fatalf("expected wrong key to fail")
	}
	if _, err := provider.Decrypt(context.Background(), []byte(envelopePrefix+"{not json")); err == nil {
		t.Fatalf("expected broken envelope to fail")
	}
	if _, err := provider.Decrypt(context.Background(), nil); err == nil {
		t.Fatalf("expected empty ciphertext to fail")
	}
}

func TestAppKeySecretProvider_DecryptsLegacyNonceCiphertext(t *testing.T) {
	rawKey := bytes.Repeat([]byte{7}, 32)
	encodedKey := base64.StdEncoding.EncodeToString(rawKey)

	block, err := aes.NewCipher(rawKey)
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		t.Fatalf("gcm: %v", err)
	}
	nonce := bytes.Repeat([]byte{1}, gcm.NonceSize())
	sealed := gcm.Seal(nil, nonce, []byte("legacy-token"), nil)
	legacy := base64.StdEncoding.EncodeToString(append(nonce, sealed...))

	provider, err := NewAppKeySecretProviderFromString(encodedKey)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	plaintext, err := provider.Decrypt(context.Background(), []byte(legacy))
	if err != nil {
		t.Fatalf("decrypt legacy: %v", err)
	}
	if string(plaintext) != "legacy-token" {
		t.Fatalf("unexpected plaintext %q", plaintext)
	}
	meta, err := ParseEnvelopeMetadata([]byte(legacy))
	if err != nil || !meta.Legacy {
		t.Fatalf("expected legacy metadata, got %+v err=%v", meta, err)
	}
}

func TestAppKeySecretProvider_AuthenticatesEnvelopeMetadata(t *testing.T) {
	provider, err := NewAppKeySecretProviderFromString("super-secret-test-key", WithKeyID("checkout-v1"))
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	encrypted, err := provider.Encrypt(context.Background(), []byte("payload"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	// An envelope with the key id stripped skips the id check but must
	// still fail authentication.
	stripped := bytes.Replace(encrypted, []byte(`"kid":"checkout-v1"`), []byte(`"kid":""`), 1)
	if bytes.Equal(stripped, encrypted) {
		t.Fatalf("expected kid field in envelope %s", encrypted)
	}
	if _, err := provider.Decrypt(context.Background(), stripped); err == nil {
		t.Fatalf("expected rewritten metadata to fail authentication")
	}
}
