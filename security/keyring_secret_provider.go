package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-checkout/core"
)

// KeyringDiagnostic is emitted when decryption falls through to a retired key.
type KeyringDiagnostic struct {
	OccurredAt time.Time
	Operation  string
	Outcome    string
	KeyID      string
	Error      string
}

type KeyringDiagnosticHook func(event KeyringDiagnostic)

type KeyringOption func(*KeyringSecretProvider)

// KeyringSecretProvider encrypts with the active key and decrypts with the
// active key first, then with each retired key in order.
type KeyringSecretProvider struct {
	active         core.SecretProvider
	retired        []core.SecretProvider
	diagnosticHook KeyringDiagnosticHook
	now            func() time.Time
}

func NewKeyringSecretProvider(active core.SecretProvider, opts ...KeyringOption) (*KeyringSecretProvider, error) {
	if active == nil {
		return nil, fmt.Errorf("security: active secret provider is required")
	}
	provider := &KeyringSecretProvider{
		active: active,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(provider)
	}
	if provider.now == nil {
		provider.now = func() time.Time { return time.Now().UTC() }
	}
	return provider, nil
}

func WithRetiredSecretProvider(provider core.SecretProvider) KeyringOption {
	return func(k *KeyringSecretProvider) {
		if k == nil || provider == nil {
			return
		}
		k.retired = append(k.retired, provider)
	}
}

func WithKeyringDiagnostics(hook KeyringDiagnosticHook) KeyringOption {
	return func(k *KeyringSecretProvider) {
		if k == nil {
			return
		}
		k.diagnosticHook = hook
	}
}

func WithKeyringClock(now func() time.Time) KeyringOption {
	return func(k *KeyringSecretProvider) {
		if k == nil {
			return
		}
		k.now = now
	}
}

// NewKeyringFromConfig builds the provider used for secrets at rest. A blank
// previous key yields a keyring with only the active key.
func NewKeyringFromConfig(cfg core.SecurityConfig, opts ...KeyringOption) (*KeyringSecretProvider, error) {
	active, err := NewAppKeySecretProviderFromString(cfg.AppKey, WithKeyID(cfg.KeyID))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.PreviousAppKey) != "" {
		keyID := cfg.PreviousKeyID
		if strings.TrimSpace(keyID) == "" {
			keyID = cfg.KeyID
		}
		previous, err := NewAppKeySecretProviderFromString(cfg.PreviousAppKey, WithKeyID(keyID))
		if err != nil {
			return nil, err
		}
		opts = append([]KeyringOption{WithRetiredSecretProvider(previous)}, opts...)
	}
	return NewKeyringSecretProvider(active, opts...)
}

func (k *KeyringSecretProvider) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if k == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	return k.active.Encrypt(ctx, plaintext)
}

func (k *KeyringSecretProvider) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if k == nil {
		return nil, fmt.Errorf("security: secret provider is nil")
	}
	plaintext, err := k.active.Decrypt(ctx, ciphertext)
	if err == nil || len(k.retired) == 0 {
		return plaintext, err
	}
	for _, retired := range k.retired {
		plaintext, retiredErr := retired.Decrypt(ctx, ciphertext)
		if retiredErr == nil {
			k.emit("decrypt", "retired_key_used", retired, err)
			return plaintext, nil
		}
	}
	k.emit("decrypt", "all_keys_failed", k.active, err)
	return nil, fmt.Errorf("security: no key in keyring could decrypt payload: %w", err)
}

func (k *KeyringSecretProvider) Metadata() (string, int) {
	if k == nil {
		return "", 0
	}
	if keyID, version, ok := readProviderMetadata(k.active); ok {
		return keyID, version
	}
	return "", 0
}

func (k *KeyringSecretProvider) emit(operation string, outcome string, provider core.SecretProvider, err error) {
	if k == nil || k.diagnosticHook == nil {
		return
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	keyID, _, _ := readProviderMetadata(provider)
	k.diagnosticHook(KeyringDiagnostic{
		OccurredAt: k.now().UTC(),
		Operation:  operation,
		Outcome:    outcome,
		KeyID:      keyID,
		Error:      msg,
	})
}

func readProviderMetadata(provider core.SecretProvider) (string, int, bool) {
	if provider == nil {
		return "", 0, false
	}
	metadataProvider, ok := provider.(interface{ Metadata() (string, int) })
	if !ok {
		return "", 0, false
	}
	keyID, version := metadataProvider.Metadata()
	keyID = strings.TrimSpace(keyID)
	if keyID == "" || version <= 0 {
		return "", 0, false
	}
	return keyID, version, true
}

var _ core.SecretProvider = (*KeyringSecretProvider)(nil)
