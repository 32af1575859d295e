// internal/utils/metrics.go
package utils

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector collects in-process counters, gauges and histograms.
type MetricsCollector struct {
	counters   map[string]*int64
	gauges     map[string]*int64
	histograms map[string]*Histogram

	mu sync.RWMutex
}

// Histogram tracks count, sum, min and max of observed values.
type Histogram struct {
	count int64
	sum   int64
	min   int64
	max   int64
	mu    sync.Mutex
}

// HistogramSnapshot is the exported view of a Histogram.
type HistogramSnapshot struct {
	Count int64   `json:"count"`
	Sum   int64   `json:"sum"`
	Min   int64   `json:"min"`
	Max   int64   `json:"max"`
	Avg   float64 `json:"avg"`
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:   make(map[string]*int64),
		gauges:     make(map[string]*int64),
		histograms: make(map[string]*Histogram),
	}
}

// slot returns the value cell for name, creating it under the write lock.
func (m *MetricsCollector) slot(set map[string]*int64, name string) *int64 {
	m.mu.RLock()
	v, ok := set[name]
	m.mu.RUnlock()
	if ok {
		return v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok = set[name]; !ok {
		v = new(int64)
		set[name] = v
	}
	return v
}

func (m *MetricsCollector) IncrementCounter(name string) {
	atomic.AddInt64(m.slot(m.counters, name), 1)
}

func (m *MetricsCollector) AddCounter(name string, value int64) {
	atomic.AddInt64(m.slot(m.counters, name), value)
}

func (m *MetricsCollector) GetCounterValue(name string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.counters[name]; ok {
		return atomic.LoadInt64(v)
	}
	return 0
}

func (m *MetricsCollector) SetGauge(name string, value int64) {
	atomic.StoreInt64(m.slot(m.gauges, name), value)
}

func (m *MetricsCollector) IncGauge(name string) {
	atomic.AddInt64(m.slot(m.gauges, name), 1)
}

func (m *MetricsCollector) DecGauge(name string) {
	atomic.AddInt64(m.slot(m.gauges, name), -1)
}

func (m *MetricsCollector) GetGauge(name string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.gauges[name]; ok {
		return atomic.LoadInt64(v)
	}
	return 0
}

func (m *MetricsCollector) RecordHistogram(name string, value int64) {
	m.mu.RLock()
	h, ok := m.histograms[name]
	m.mu.RUnlock()
	if !ok {
		m.mu.Lock()
		if h, ok = m.histograms[name]; !ok {
			h = &Histogram{min: value, max: value}
			m.histograms[name] = h
		}
		m.mu.Unlock()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	if value < h.min {
		h.min = value
	}
	if value > h.max {
		h.max = value
	}
}

// GetMetrics returns a point-in-time snapshot of every metric.
func (m *MetricsCollector) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counters := make(map[string]int64, len(m.counters))
	for name, v := range m.counters {
		counters[name] = atomic.LoadInt64(v)
	}
	gauges := make(map[string]int64, len(m.gauges))
	for name, v := range m.gauges {
		gauges[name] = atomic.LoadInt64(v)
	}
	histograms := make(map[string]HistogramSnapshot, len(m.histograms))
	for name, h := range m.histograms {
		h.mu.Lock()
		snap := HistogramSnapshot{Count: h.count, Sum: h.sum, Min: h.min, Max: h.max}
		if h.count > 0 {
			snap.Avg = float64(h.sum) / float64(h.count)
		}
		h.mu.Unlock()
		histograms[name] = snap
	}

	return map[string]interface{}{
		"counters":   counters,
		"gauges":     gauges,
		"histograms": histograms,
	}
}

// CounterNames lists known counters in sorted order.
func (m *MetricsCollector) CounterNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.counters))
	for name := range m.counters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AppMetrics names the metrics recorded by the API and services.
type AppMetrics struct {
	collector *MetricsCollector
}

func NewAppMetrics(collector *MetricsCollector) *AppMetrics {
	if collector == nil {
		collector = NewMetricsCollector()
	}
	return &AppMetrics{collector: collector}
}

func (am *AppMetrics) Collector() *MetricsCollector {
	return am.collector
}

// RecordAPIRequest records one served HTTP request.
func (am *AppMetrics) RecordAPIRequest(route, method string, statusCode int, duration time.Duration) {
	am.collector.IncrementCounter("api.requests.total")
	am.collector.IncrementCounter("api.requests." + method + " " + route)
	if statusCode >= 500 {
		am.collector.IncrementCounter("api.responses.5xx")
	} else if statusCode >= 400 {
		am.collector.IncrementCounter("api.responses.4xx")
	}
	am.collector.RecordHistogram("api.latency_ms", duration.Milliseconds())
}

// RecordLLMRequest records one call to an external text provider.
func (am *AppMetrics) RecordLLMRequest(provider string, tokensUsed int, duration time.Duration, failed bool) {
	am.collector.IncrementCounter("llm.requests." + provider)
	if failed {
		am.collector.IncrementCounter("llm.failures." + provider)
	}
	if tokensUsed > 0 {
		am.collector.AddCounter("llm.tokens."+provider, int64(tokensUsed))
	}
	am.collector.RecordHistogram("llm.latency_ms", duration.Milliseconds())
}

// RecordStoryGeneration counts generated stories by origin.
func (am *AppMetrics) RecordStoryGeneration(source string, fellBack bool) {
	am.collector.IncrementCounter("stories.generated." + source)
	if fellBack {
		am.collector.IncrementCounter("stories.fallbacks")
	}
}

func (am *AppMetrics) RecordError(errorType, component string) {
	am.collector.IncrementCounter("errors." + component + "." + errorType)
}

func (am *AppMetrics) ConnectionOpened() {
	am.collector.IncGauge("ws.connections")
}

func (am *AppMetrics) ConnectionClosed() {
	am.collector.DecGauge("ws.connections")
}
