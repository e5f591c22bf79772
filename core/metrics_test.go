package core

import (
	"context"
	"testing"
	"time"
)

func TestSeriesKeySortsTags(t *testing.T) {
	got := SeriesKey(" outbound.delivery ", map[string]string{"status": "failed", "attempt": "2"})
	if got != "outbound.delivery{attempt=2,status=failed}" {
		t.Fatalf("unexpected series key %q", got)
	}
	if SeriesKey("webhooks.duplicate", nil) != "webhooks.duplicate" {
		t.Fatalf("expected bare name without tags")
	}
}

func TestMemoryMetricsRecorderAggregates(t *testing.T) {
	metrics := NewMemoryMetricsRecorder()
	ctx := context.Background()
	tags := map[string]string{"reason": "signature"}

	metrics.IncCounter(ctx, "webhooks.rejected", 1, tags)
	metrics.IncCounter(ctx, "webhooks.rejected", 2, map[string]string{"reason": "signature"})
	metrics.IncCounter(ctx, "webhooks.rejected", 1, map[string]string{"reason": "malformed"})
	metrics.ObserveHistogram(ctx, "orders.create_order.duration_ms", 12, nil)
	metrics.ObserveHistogram(ctx, "orders.create_order.duration_ms", 4, nil)

	if got := metrics.Counter("webhooks.rejected", tags); got != 3 {
		t.Fatalf("expected 3 signature rejections, got %d", got)
	}
	if got := len(metrics.Counters()); got != 2 {
		t.Fatalf("expected two counter series, got %d", got)
	}
	samples := metrics.Samples("orders.create_order.duration_ms", nil)
	if len(samples) != 2 || samples[0] != 12 {
		t.Fatalf("unexpected samples %v", samples)
	}
}

func TestObserverFeedsMemoryRecorder(t *testing.T) {
	metrics := NewMemoryMetricsRecorder()
	observer := NewObserver("orders", nil, metrics)

	observer.Observe(context.Background(), time.Now(), "create_order", nil, nil)
	observer.Count(context.Background(), "expired", 4, nil)

	success := map[string]string{"operation": "create_order", "status": "success"}
	if metrics.Counter("orders.create_order.total", success) != 1 {
		t.Fatalf("expected one successful create_order, got %v", metrics.Counters())
	}
	if len(metrics.Samples("orders.create_order.duration_ms", success)) != 1 {
		t.Fatalf("expected one duration sample")
	}
	if metrics.Counter("orders.expired", nil) != 4 {
		t.Fatalf("expected expired counter, got %v", metrics.Counters())
	}
}
