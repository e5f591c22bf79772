package security

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-checkout/core"
)

const appKeySize = 32

type Option func(*AppKeySecretProvider)

// AppKeySecretProvider seals gateway tokens and webhook secrets with
// AES-256-GCM under the application key. The key id and version of an
// envelope are authenticated along with the ciphertext.
type AppKeySecretProvider struct {
	gcm     cipher.AEAD
	keyID   string
	version int
}

func WithKeyID(id string) Option {
	return func(p *AppKeySecretProvider) {
		if id = strings.TrimSpace(id); id != "" {
			p.keyID = id
		}
	}
}

func WithVersion(version int) Option {
	return func(p *AppKeySecretProvider) {
		if version > 0 {
			p.version = version
		}
	}
}

func NewAppKeySecretProvider(keyMaterial []byte, opts ...Option) (*AppKeySecretProvider, error) {
	material := bytes.TrimSpace(keyMaterial)
	if len(material) == 0 {
		return nil, fmt.Errorf("security: key material is required")
	}
	block, err := aes.NewCipher(deriveAppKey(material))
	if err != nil {
		return nil, fmt.Errorf("security: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: create gcm: %w", err)
	}
	p := &AppKeySecretProvider{gcm: gcm, keyID: "app-key", version: 1}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

func NewAppKeySecretProviderFromString(key string, opts ...Option) (*AppKeySecretProvider, error) {
	return NewAppKeySecretProvider([]byte(key), opts...)
}

func (p *AppKeySecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if p == nil || p.gcm == nil {
		return nil, fmt.Errorf("security: secret provider is not configured")
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: plaintext is required")
	}
	nonce := make([]byte, p.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("security: nonce generation failed: %w", err)
	}
	sealed := p.gcm.Seal(nil, nonce, plaintext, associatedData(p.keyID, p.version))
	return encodeEnvelope(envelope{
		KeyID:      p.keyID,
		Version:    p.version,
		Algorithm:  envelopeAlgorithm,
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
	})
}

// Decrypt opens an envelope, or a bare base64(nonce || ciphertext) value
// written before envelopes existed.
func (p *AppKeySecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if p == nil || p.gcm == nil {
		return nil, fmt.Errorf("security: secret provider is not configured")
	}
	env, legacy, err := decodeEnvelope(ciphertext)
	if err != nil {
		return nil, err
	}
	if legacy {
		return p.openLegacy(string(ciphertext))
	}

	switch {
	case env.KeyID != "" && env.KeyID != p.keyID:
		return nil, fmt.Errorf("security: envelope sealed by key %q, have %q", env.KeyID, p.keyID)
	case env.Version > 0 && env.Version != p.version:
		return nil, fmt.Errorf("security: envelope sealed by version %d, have %d", env.Version, p.version)
	}
	nonce, err := decodeBase64(env.Nonce, "nonce")
	if err != nil {
		return nil, err
	}
	sealed, err := decodeBase64(env.Ciphertext, "ciphertext payload")
	if err != nil {
		return nil, err
	}
	if len(nonce) != p.gcm.NonceSize() {
		return nil, fmt.Errorf("security: nonce must be %d bytes", p.gcm.NonceSize())
	}
	plaintext, err := p.gcm.Open(nil, nonce, sealed, associatedData(env.KeyID, env.Version))
	if err != nil {
		return nil, fmt.Errorf("security: decrypt payload: %w", err)
	}
	return plaintext, nil
}

func (p *AppKeySecretProvider) openLegacy(encoded string) ([]byte, error) {
	raw, err := decodeBase64(encoded, "legacy ciphertext")
	if err != nil {
		return nil, err
	}
	size := p.gcm.NonceSize()
	if len(raw) <= size {
		return nil, fmt.Errorf("security: legacy ciphertext is too short")
	}
	plaintext, err := p.gcm.Open(nil, raw[:size], raw[size:], nil)
	if err != nil {
		return nil, fmt.Errorf("security: decrypt legacy payload: %w", err)
	}
	return plaintext, nil
}

func (p *AppKeySecretProvider) KeyID() string {
	if p == nil {
		return ""
	}
	return p.keyID
}

func (p *AppKeySecretProvider) Version() int {
	if p == nil {
		return 0
	}
	return p.version
}

func (p *AppKeySecretProvider) Metadata() (string, int) {
	return p.KeyID(), p.Version()
}

func associatedData(keyID string, version int) []byte {
	return []byte(envelopePrefix + keyID + "/" + strconv.Itoa(version))
}

// deriveAppKey accepts a base64 encoded 32 byte key, a raw 32 byte key, or
// any other passphrase, which is hashed down to 32 bytes.
func deriveAppKey(material []byte) []byte {
	if decoded, err := base64.StdEncoding.DecodeString(string(material)); err == nil && len(decoded) == appKeySize {
		return decoded
	}
	if len(material) == appKeySize {
		return bytes.Clone(material)
	}
	sum := sha256.Sum256(material)
	return sum[:]
}

var _ core.SecretProvider = (*AppKeySecretProvider)(nil)
