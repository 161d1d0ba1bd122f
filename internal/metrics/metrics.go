package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// MetricType tags a metric in the snapshot output.
type MetricType string

const (
	Counter MetricType = "counter"
	Timer   MetricType = "timer"
	Gauge   MetricType = "gauge"
)

// sampleWindow bounds how many timer samples feed the percentiles.
const sampleWindow = 512

// Metric is a counter or gauge as exposed on the metrics endpoint.
type Metric struct {
	Name        string            `json:"name"`
	Type        MetricType        `json:"type"`
	Value       float64           `json:"value"`
	Labels      map[string]string `json:"labels,omitempty"`
	Description string            `json:"description,omitempty"`
	LastUpdate  time.Time         `json:"last_update"`
}

// TimerStats summarizes a timer series in milliseconds.
type TimerStats struct {
	Count   int64   `json:"count"`
	Sum     float64 `json:"sum_ms"`
	Min     float64 `json:"min_ms"`
	Max     float64 `json:"max_ms"`
	Average float64 `json:"avg_ms"`
	P95     float64 `json:"p95_ms,omitempty"`
	P99     float64 `json:"p99_ms,omitempty"`
}

// Snapshot is the full registry state at one point in time.
type Snapshot struct {
	Counters  map[string]*Metric     `json:"counters"`
	Timers    map[string]*TimerStats `json:"timers"`
	Gauges    map[string]*Metric     `json:"gauges"`
	UptimeMS  int64                  `json:"uptime_ms"`
	Timestamp int64                  `json:"timestamp"`
}

type timerSeries struct {
	count   int64
	sum     float64
	min     float64
	max     float64
	samples []float64
}

// Registry is the in-process metric store behind the metrics endpoint.
type Registry struct {
	mu        sync.RWMutex
	counters  map[string]*Metric
	timers    map[string]*timerSeries
	gauges    map[string]*Metric
	startTime time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		counters:  make(map[string]*Metric),
		timers:    make(map[string]*timerSeries),
		gauges:    make(map[string]*Metric),
		startTime: time.Now(),
	}
}

var globalRegistry = NewRegistry()

// GetRegistry returns the process-wide registry.
func GetRegistry() *Registry {
	return globalRegistry
}

// IncrementCounter bumps a counter by one.
func (r *Registry) IncrementCounter(name string, labels map[string]string, description string) {
	r.AddToCounter(name, 1, labels, description)
}

// AddToCounter adds an arbitrary delta to a counter.
func (r *Registry) AddToCounter(name string, value float64, labels map[string]string, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := metricKey(name, labels)
	if existing, ok := r.counters[key]; ok {
		existing.Value += value
		existing.LastUpdate = time.Now()
		return
	}
	r.counters[key] = &Metric{
		Name:        name,
		Type:        Counter,
		Value:       value,
		Labels:      copyLabels(labels),
		Description: description,
		LastUpdate:  time.Now(),
	}
}

// RecordTimer appends one duration observation to a timer series.
func (r *Registry) RecordTimer(name string, duration time.Duration, labels map[string]string, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := metricKey(name, labels)
	ms := float64(duration.Nanoseconds()) / 1e6

	series, ok := r.timers[key]
	if !ok {
		series = &timerSeries{min: ms, max: ms}
		r.timers[key] = series
	}
	series.count++
	series.sum += ms
	if ms < series.min {
		series.min = ms
	}
	if ms > series.max {
		series.max = ms
	}
	series.samples = append(series.samples, ms)
	if len(series.samples) > sampleWindow {
		series.samples = series.samples[len(series.samples)-sampleWindow:]
	}
}

// SetGauge overwrites a gauge value.
func (r *Registry) SetGauge(name string, value float64, labels map[string]string, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := metricKey(name, labels)
	r.gauges[key] = &Metric{
		Name:        name,
		Type:        Gauge,
		Value:       value,
		Labels:      copyLabels(labels),
		Description: description,
		LastUpdate:  time.Now(),
	}
}

// GetAllMetrics snapshots the registry. Percentiles are computed here,
// over the retained sample window, so the hot path stays cheap.
func (r *Registry) GetAllMetrics() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		Counters:  make(map[string]*Metric, len(r.counters)),
		Timers:    make(map[string]*TimerStats, len(r.timers)),
		Gauges:    make(map[string]*Metric, len(r.gauges)),
		UptimeMS:  time.Since(r.startTime).Milliseconds(),
		Timestamp: time.Now().Unix(),
	}
	for key, c := range r.counters {
		copied := *c
		snap.Counters[key] = &copied
	}
	for key, g := range r.gauges {
		copied := *g
		snap.Gauges[key] = &copied
	}
	for key, series := range r.timers {
		stats := &TimerStats{
			Count: series.count,
			Sum:   series.sum,
			Min:   series.min,
			Max:   series.max,
		}
		if series.count > 0 {
			stats.Average = series.sum / float64(series.count)
		}
		if len(series.samples) >= 10 {
			sorted := append([]float64(nil), series.samples...)
			sort.Float64s(sorted)
			stats.P95 = percentile(sorted, 0.95)
			stats.P99 = percentile(sorted, 0.99)
		}
		snap.Timers[key] = stats
	}
	return snap
}

// metricKey renders name plus sorted labels so the same label set always
// maps to the same series regardless of map iteration order.
func metricKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(name)
	for _, k := range keys {
		sb.WriteByte('_')
		sb.WriteString(k)
		sb.WriteByte(':')
		sb.WriteString(labels[k])
	}
	return sb.String()
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func copyLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

// Package-level helpers against the global registry.

func IncrementCounter(name string, labels map[string]string, description string) {
	globalRegistry.IncrementCounter(name, labels, description)
}

func AddToCounter(name string, value float64, labels map[string]string, description string) {
	globalRegistry.AddToCounter(name, value, labels, description)
}

func RecordTimer(name string, duration time.Duration, labels map[string]string, description string) {
	globalRegistry.RecordTimer(name, duration, labels, description)
}

func SetGauge(name string, value float64, labels map[string]string, description string) {
	globalRegistry.SetGauge(name, value, labels, description)
}

func GetAllMetrics() Snapshot {
	return globalRegistry.GetAllMetrics()
}
