package core

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
)

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// MemoryMetricsRecorder aggregates counters and histogram samples in process.
// Series are keyed by name plus sorted tags, e.g.
// "webhooks.rejected{reason=signature}".
type MemoryMetricsRecorder struct {
	mu       sync.Mutex
	counters map[string]int64
	samples  map[string][]float64
}

func NewMemoryMetricsRecorder() *MemoryMetricsRecorder {
	return &MemoryMetricsRecorder{
		counters: map[string]int64{},
		samples:  map[string][]float64{},
	}
}

func (m *MemoryMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[SeriesKey(name, tags)] += value
}

func (m *MemoryMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := SeriesKey(name, tags)
	m.samples[key] = append(m.samples[key], value)
}

// Counter returns the running total for one series.
func (m *MemoryMetricsRecorder) Counter(name string, tags map[string]string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[SeriesKey(name, tags)]
}

// Samples returns a copy of the observations for one series.
func (m *MemoryMetricsRecorder) Samples(name string, tags map[string]string) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.samples[SeriesKey(name, tags)]...)
}

// Counters snapshots every counter series.
func (m *MemoryMetricsRecorder) Counters() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.counters)
}

func SeriesKey(name string, tags map[string]string) string {
	name = strings.TrimSpace(name)
	if len(tags) == 0 {
		return name
	}
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+tags[key])
	}
	return name + "{" + strings.Join(pairs, ",") + "}"
}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	return maps.Clone(tags)
}

var (
	_ MetricsRecorder = NopMetricsRecorder{}
	_ MetricsRecorder = (*MemoryMetricsRecorder)(nil)
)
