package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-checkout/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const subscriptionCacheKeyPrefix = "go-checkout::subscriptions::v1"

type subscriptionActivator interface {
	SetActive(ctx context.Context, id string, active bool) error
}

// CachedSubscriptionStore caches ListActive results per vendor and event.
// Writes that go through it invalidate the affected keys.
type CachedSubscriptionStore struct {
	base  core.SubscriptionStore
	cache repositorycache.CacheService
}

func NewCachedSubscriptionStore(
	base core.SubscriptionStore,
	cacheService repositorycache.CacheService,
) (*CachedSubscriptionStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base subscription store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: subscription cache service is required")
	}
	return &CachedSubscriptionStore{base: base, cache: cacheService}, nil
}

// SubscriptionCacheKey is go-checkout::subscriptions::v1::<vendor>::<event>
// with each segment URL-path escaped.
func SubscriptionCacheKey(vendorID string, eventName string) (string, error) {
	vendorID = strings.TrimSpace(vendorID)
	eventName = strings.TrimSpace(eventName)
	if vendorID == "" || eventName == "" {
		return "", fmt.Errorf("sqlstore: vendor id and event name are required for cache key")
	}
	return strings.Join([]string{
		subscriptionCacheKeyPrefix,
		url.PathEscape(vendorID),
		url.PathEscape(eventName),
	}, "::"), nil
}

func (s *CachedSubscriptionStore) Create(ctx context.Context, sub core.Subscription) (core.Subscription, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	created, err := s.base.Create(ctx, sub)
	if err != nil {
		return core.Subscription{}, err
	}
	if err := s.invalidate(ctx, created); err != nil {
		return core.Subscription{}, err
	}
	return created, nil
}

func (s *CachedSubscriptionStore) Get(ctx context.Context, id string) (core.Subscription, error) {
	if s == nil || s.base == nil {
		return core.Subscription{}, fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	return s.base.Get(ctx, id)
}

func (s *CachedSubscriptionStore) ListActive(ctx context.Context, vendorID string, eventName string) ([]core.Subscription, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	cacheKey, err := SubscriptionCacheKey(vendorID, eventName)
	if err != nil {
		return nil, err
	}
	subs, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) ([]core.Subscription, error) {
		fetched, fetchErr := s.base.ListActive(ctx, vendorID, eventName)
		if fetchErr != nil {
			return nil, fetchErr
		}
		return cloneSubscriptions(fetched), nil
	})
	if err != nil {
		return nil, err
	}
	return cloneSubscriptions(subs), nil
}

func (s *CachedSubscriptionStore) SetActive(ctx context.Context, id string, active bool) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached subscription store is not configured")
	}
	activator, ok := s.base.(subscriptionActivator)
	if !ok {
		return fmt.Errorf("sqlstore: base subscription store cannot toggle activation")
	}
	current, err := s.base.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := activator.SetActive(ctx, id, active); err != nil {
		return err
	}
	return s.invalidate(ctx, current)
}

func (s *CachedSubscriptionStore) invalidate(ctx context.Context, sub core.Subscription) error {
	for _, eventName := range sub.Events {
		cacheKey, err := SubscriptionCacheKey(sub.VendorID, eventName)
		if err != nil {
			continue
		}
		if err := s.cache.Delete(ctx, cacheKey); err != nil {
			return err
		}
	}
	return nil
}

func cloneSubscriptions(in []core.Subscription) []core.Subscription {
	if len(in) == 0 {
		return nil
	}
	out := make([]core.Subscription, 0, len(in))
	for _, sub := range in {
		cloned := sub
		cloned.EncryptedSecret = append([]byte(nil), sub.EncryptedSecret...)
		cloned.Events = append([]string(nil), sub.Events...)
		cloned.ProductIDs = append([]string(nil), sub.ProductIDs...)
		out = append(out, cloned)
	}
	return out
}
