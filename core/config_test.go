package core

import (
	"testing"
	"time"
)

func TestSweepLockTTL_OutlivesFullBatch(t *testing.T) {
	cfg := DefaultConfig()
	// 100 deliveries at 10s each must not outlive the lease.
	worstCase := time.Duration(cfg.Retry.BatchSize) * cfg.Dispatch.Timeout
	if got := cfg.SweepLockTTL(); got <= worstCase {
		t.Fatalf("expected lock ttl above %s, got %s", worstCase, got)
	}
	if got := cfg.SweepLockTTL(); got <= cfg.Retry.Interval {
		t.Fatalf("expected lock ttl above the sweep interval, got %s", got)
	}
}

func TestSweepLockTTL_UsesLargestBatchAndDefaults(t *testing.T) {
	cfg := Config{
		Retry:   RetryConfig{BatchSize: 10},
		Abandon: AbandonConfig{BatchSize: 40},
	}
	want := 40*DefaultConfig().Dispatch.Timeout + sweepLockMargin
	if got := cfg.SweepLockTTL(); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}

	cfg = Config{Dispatch: DispatchConfig{Timeout: time.Second}}
	want = DefaultSweepBatchSize*time.Second + sweepLockMargin
	if got := cfg.SweepLockTTL(); got != want {
		t.Fatalf("expected default batch ttl %s, got %s", want, got)
	}

	cfg.Retry.Interval = time.Hour
	if got := cfg.SweepLockTTL(); got != time.Hour {
		t.Fatalf("expected interval floor, got %s", got)
	}
}
