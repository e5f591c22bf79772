// Package ratelimit makes gateway calls back off locally once the gateway
// signals throttling for an account.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-checkout/core"
	goerrors "github.com/goliatone/go-errors"
)

// Key identifies one throttle window. Account is a fingerprint, never a raw
// token.
type Key struct {
	Gateway string
	Account string
	Bucket  string
}

func (k Key) normalized() Key {
	return Key{
		Gateway: strings.ToLower(strings.TrimSpace(k.Gateway)),
		Account: strings.TrimSpace(k.Account),
		Bucket:  strings.ToLower(strings.TrimSpace(k.Bucket)),
	}
}

// AccountFingerprint derives Key.Account from a gateway token.
func AccountFingerprint(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:8])
}

// ThrottledError is returned by BeforeCall while a window is open.
type ThrottledError struct {
	Key        Key
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf("ratelimit: %s/%s throttled for %s", e.Key.Gateway, e.Key.Bucket, e.RetryAfter)
}

// ToError maps the throttle into the checkout error envelope.
func (e ThrottledError) ToError() *goerrors.Error {
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.ErrorGatewayThrottled).
		WithMetadata(map[string]any{
			"gateway":        e.Key.Gateway,
			"bucket":         e.Key.Bucket,
			"retry_after_ms": e.RetryAfter.Milliseconds(),
		})
}

type window struct {
	strikes int
	until   time.Time
}

// Limiter opens a window on 429 responses, or when the gateway reports no
// remaining quota, and rejects calls until it closes. Without Retry-After
// the window doubles per consecutive 429 from Backoff up to MaxBackoff.
type Limiter struct {
	Backoff    time.Duration
	MaxBackoff time.Duration
	Now        func() time.Time

	mu      sync.Mutex
	windows map[Key]window
}

func New() *Limiter {
	return &Limiter{
		Backoff:    time.Second,
		MaxBackoff: time.Minute,
		Now:        time.Now,
		windows:    map[Key]window{},
	}
}

// BeforeCall fails with ThrottledError while key's window is open.
func (l *Limiter) BeforeCall(_ context.Context, key Key) error {
	if l == nil {
		return nil
	}
	key = key.normalized()
	now := l.Now()
	l.mu.Lock()
	w, ok := l.windows[key]
	l.mu.Unlock()
	if ok && now.Before(w.until) {
		return ThrottledError{Key: key, RetryAfter: w.until.Sub(now)}
	}
	return nil
}

// AfterCall updates key's window from a gateway response.
func (l *Limiter) AfterCall(_ context.Context, key Key, status int, headers map[string]string) error {
	if l == nil {
		return nil
	}
	key = key.normalized()
	now := l.Now()
	h := http.Header{}
	for name, value := range headers {
		h.Set(name, strings.TrimSpace(value))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.windows[key]
	switch {
	case status == http.StatusTooManyRequests:
		w.strikes++
		if delay, ok := retryAfter(h.Get("Retry-After"), now); ok {
			w.until = now.Add(delay)
		} else {
			w.until = now.Add(l.backoff(w.strikes))
		}
	case status < http.StatusInternalServerError && h.Get("X-RateLimit-Remaining") == "0":
		reset, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64)
		if err != nil || reset <= 0 {
			w.until = now.Add(l.backoff(1))
		} else {
			w.until = time.Unix(reset, 0)
		}
	default:
		delete(l.windows, key)
		return nil
	}
	l.windows[key] = w
	return nil
}

func (l *Limiter) backoff(strikes int) time.Duration {
	delay := l.Backoff
	for i := 1; i < strikes && delay < l.MaxBackoff; i++ {
		delay *= 2
	}
	return min(delay, l.MaxBackoff)
}

func retryAfter(raw string, now time.Time) (time.Duration, bool) {
	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second, seconds > 0
	}
	if at, err := http.ParseTime(raw); err == nil && at.After(now) {
		return at.Sub(now), true
	}
	return 0, false
}
