package sqlstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-checkout/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type stubSubscriptionStore struct {
	mu        sync.Mutex
	subs      map[string]core.Subscription
	listCalls int
}

func newStubSubscriptionStore() *stubSubscriptionStore {
	return &stubSubscriptionStore{subs: map[string]core.Subscription{}}
}

func (s *stubSubscriptionStore) Create(_ context.Context, sub core.Subscription) (core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.ID] = sub
	return sub, nil
}

func (s *stubSubscriptionStore) Get(_ context.Context, id string) (core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return core.Subscription{}, core.NotFoundError("webhook", id)
	}
	return sub, nil
}

func (s *stubSubscriptionStore) ListActive(_ context.Context, vendorID string, eventName string) ([]core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	var out []core.Subscription
	for _, sub := range s.subs {
		if sub.VendorID == vendorID && sub.Accepts(eventName, "") {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *stubSubscriptionStore) SetActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := s.subs[id]
	sub.Active = active
	s.subs[id] = sub
	return nil
}

func TestCachedSubscriptionStore_ListActiveMissFetchThenHit(t *testing.T) {
	base := newStubSubscriptionStore()
	store, err := NewCachedSubscriptionStore(base, newTestCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	ctx := context.Background()
	if _, err := store.Create(ctx, core.Subscription{
		ID:       "wh_1",
		VendorID: "vendor_1",
		Events:   []string{core.OutboundPurchaseApproved},
		Active:   true,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	for range 2 {
		subs, err := store.ListActive(ctx, "vendor_1", core.OutboundPurchaseApproved)
		if err != nil {
			t.Fatalf("list active: %v", err)
		}
		if len(subs) != 1 {
			t.Fatalf("expected one subscription, got %d", len(subs))
		}
	}
	if base.listCalls != 1 {
		t.Fatalf("expected second list to be a cache hit, base calls=%d", base.listCalls)
	}
}

func TestCachedSubscriptionStore_SetActiveInvalidates(t *testing.T) {
	base := newStubSubscriptionStore()
	store, err := NewCachedSubscriptionStore(base, newTestCacheService(t))
	if err != nil {
		t.Fatalf("new cached store: %v", err)
	}
	ctx := context.Background()
	if _, err := store.Create(ctx, core.Subscription{
		ID:       "wh_1",
		VendorID: "vendor_1",
		Events:   []string{core.OutboundRefund},
		Active:   true,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.ListActive(ctx, "vendor_1", core.OutboundRefund); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if err := store.SetActive(ctx, "wh_1", false); err != nil {
		t.Fatalf("set active: %v", err)
	}
	subs, err := store.ListActive(ctx, "vendor_1", core.OutboundRefund)
	if err != nil {
		t.Fatalf("list after invalidate: %v", err)
	}
	if len(subs) != 0 {
		t.Fatalf("expected deactivated subscription to disappear, got %+v", subs)
	}
	if base.listCalls != 2 {
		t.Fatalf("expected invalidation to force a refetch, base calls=%d", base.listCalls)
	}
}

func TestSubscriptionCacheKey_EscapesSegments(t *testing.T) {
	key, err := SubscriptionCacheKey("vendor/1", "purchase approved")
	if err != nil {
		t.Fatalf("cache key: %v", err)
	}
	if key != "go-checkout::subscriptions::v1::vendor%2F1::purchase%20approved" {
		t.Fatalf("unexpected cache key %q", key)
	}
	if _, err := SubscriptionCacheKey("", "x"); err == nil {
		t.Fatalf("expected missing vendor to fail")
	}
}

func newTestCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}
