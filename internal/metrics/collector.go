package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// RequestMetadata describes a recorded request.
type RequestMetadata struct {
	Protocol   string // e.g. "http"
	Endpoint   string // aggregation label; requests sharing it are reported together
	StatusCode string // protocol status for failures, e.g. "503" or "TIMEOUT"
}

// EndpointStats are the aggregated numbers for one label, or for the whole run.
type EndpointStats struct {
	Total          int64         `json:"total" yaml:"total"`
	Successes      int64         `json:"successes" yaml:"successes"`
	Failures       int64         `json:"failures" yaml:"failures"`
	MinLatency     time.Duration `json:"-" yaml:"-"`
	MaxLatency     time.Duration `json:"-" yaml:"-"`
	MeanLatency    time.Duration `json:"-" yaml:"-"`
	TotalLatency   time.Duration `json:"-" yaml:"-"` // exact sum of recorded latencies
	P50Latency     time.Duration `json:"-" yaml:"-"`
	P90Latency     time.Duration `json:"-" yaml:"-"`
	P95Latency     time.Duration `json:"-" yaml:"-"`
	P99Latency     time.Duration `json:"-" yaml:"-"`
	RequestsPerSec float64       `json:"requests_per_sec" yaml:"requests_per_sec"`

	MinLatencyMs  float64 `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms" yaml:"max_latency_ms"`
	MeanLatencyMs float64 `json:"mean_latency_ms" yaml:"mean_latency_ms"`
	P50LatencyMs  float64 `json:"p50_latency_ms" yaml:"p50_latency_ms"`
	P90LatencyMs  float64 `json:"p90_latency_ms" yaml:"p90_latency_ms"`
	P95LatencyMs  float64 `json:"p95_latency_ms" yaml:"p95_latency_ms"`
	P99LatencyMs  float64 `json:"p99_latency_ms" yaml:"p99_latency_ms"`

	// protocol -> status code -> failure count
	StatusBuckets map[string]map[string]int `json:"status_buckets,omitempty" yaml:"status_buckets,omitempty"`
}

// Stats represents aggregated metrics for a run.
type Stats struct {
	EndpointStats `yaml:",inline"`

	Duration   time.Duration            `json:"-" yaml:"-"`
	DurationMs float64                  `json:"duration_ms" yaml:"duration_ms"`
	Endpoints  map[string]EndpointStats `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
	Errors     map[string]int           `json:"errors,omitempty" yaml:"errors,omitempty"`
}

type bucket struct {
	hist       *hdrhistogram.Histogram
	successes  int64
	failures   int64
	minLatency time.Duration
	maxLatency time.Duration
	sumLatency time.Duration
	statuses   map[string]map[string]int
}

func newBucket() *bucket {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	return &bucket{
		hist:     hdrhistogram.New(1, 60_000_000, 3),
		statuses: make(map[string]map[string]int),
	}
}

func (b *bucket) record(latency time.Duration, err error, protocol, status string) {
	if latency > 0 {
		us := latency.Microseconds()
		if us < b.hist.LowestTrackableValue() {
			us = b.hist.LowestTrackableValue()
		}
		if us > b.hist.HighestTrackableValue() {
			us = b.hist.HighestTrackableValue()
		}
		_ = b.hist.RecordValue(us)
	}
	b.sumLatency += latency
	if b.minLatency == 0 || latency < b.minLatency {
		b.minLatency = latency
	}
	if latency > b.maxLatency {
		b.maxLatency = latency
	}

	if err == nil {
		b.successes++
		return
	}
	b.failures++
	if status == "" {
		return
	}
	if protocol == "" {
		protocol = "unknown"
	}
	codes, ok := b.statuses[protocol]
	if !ok {
		codes = make(map[string]int)
		b.statuses[protocol] = codes
	}
	codes[status]++
}

func (b *bucket) snapshot(elapsed time.Duration) EndpointStats {
	total := b.successes + b.failures
	s := EndpointStats{
		Total:        total,
		Successes:    b.successes,
		Failures:     b.failures,
		MinLatency:   b.minLatency,
		MaxLatency:   b.maxLatency,
		TotalLatency: b.sumLatency,
	}
	if total > 0 {
		s.MeanLatency = time.Duration(int64(b.sumLatency) / total)
	}
	if b.hist.TotalCount() > 0 {
		s.P50Latency = quantile(b.hist, 50)
		s.P90Latency = quantile(b.hist, 90)
		s.P95Latency = quantile(b.hist, 95)
		s.P99Latency = quantile(b.hist, 99)
	}
	if elapsed > 0 && total > 0 {
		s.RequestsPerSec = float64(total) / elapsed.Seconds()
	}

	s.MinLatencyMs = toMillis(s.MinLatency)
	s.MaxLatencyMs = toMillis(s.MaxLatency)
	s.MeanLatencyMs = toMillis(s.MeanLatency)
	s.P50LatencyMs = toMillis(s.P50Latency)
	s.P90LatencyMs = toMillis(s.P90Latency)
	s.P95LatencyMs = toMillis(s.P95Latency)
	s.P99LatencyMs = toMillis(s.P99Latency)

	if len(b.statuses) > 0 {
		s.StatusBuckets = make(map[string]map[string]int, len(b.statuses))
		for protocol, codes := range b.statuses {
			copied := make(map[string]int, len(codes))
			for code, n := range codes {
				copied[code] = n
			}
			s.StatusBuckets[protocol] = copied
		}
	}
	return s
}

// Collector records per-request metrics in a thread-safe manner.
type Collector struct {
	mu           sync.Mutex
	total        *bucket
	endpoints    map[string]*bucket
	errorsByType map[string]int64
	start        time.Time
}

func NewCollector() *Collector {
	return &Collector{
		total:        newBucket(),
		endpoints:    make(map[string]*bucket),
		errorsByType: make(map[string]int64),
		start:        time.Now(),
	}
}

// Start marks the beginning of the measured run.
func (c *Collector) Start() {
	c.mu.Lock()
	c.start = time.Now()
	c.mu.Unlock()
}

// Elapsed returns the time since Start.
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start)
}

// RecordRequest records a single request's latency and error state. meta may be nil.
func (c *Collector) RecordRequest(latency time.Duration, err error, meta *RequestMetadata) {
	var protocol, endpoint, status string
	if meta != nil {
		protocol, endpoint, status = meta.Protocol, meta.Endpoint, meta.StatusCode
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.total.record(latency, err, protocol, status)
	if endpoint != "" {
		b, ok := c.endpoints[endpoint]
		if !ok {
			b = newBucket()
			c.endpoints[endpoint] = b
		}
		b.record(latency, err, protocol, status)
	}
	if err != nil {
		errorType := fmt.Sprintf("%T", err)
		if len(errorType) > 30 {
			errorType = errorType[len(errorType)-30:]
		}
		c.errorsByType[errorType]++
	}
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		EndpointStats: c.total.snapshot(elapsed),
		Duration:      elapsed,
		DurationMs:    toMillis(elapsed),
	}
	if len(c.endpoints) > 0 {
		stats.Endpoints = make(map[string]EndpointStats, len(c.endpoints))
		for name, b := range c.endpoints {
			stats.Endpoints[name] = b.snapshot(elapsed)
		}
	}
	if len(c.errorsByType) > 0 {
		stats.Errors = make(map[string]int, len(c.errorsByType))
		for k, v := range c.errorsByType {
			stats.Errors[k] = int(v)
		}
	}
	return stats
}

func quantile(h *hdrhistogram.Histogram, q float64) time.Duration {
	return time.Duration(h.ValueAtQuantile(q)) * time.Microsecond
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
