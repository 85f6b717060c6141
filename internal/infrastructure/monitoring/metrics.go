package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Channel metrics
	ChannelConnections prometheus.Gauge
	ChannelMessages    *prometheus.CounterVec

	// Correlation metrics
	RequestsPending  prometheus.Gauge
	RequestsResolved *prometheus.CounterVec
	RequestsExpired  prometheus.Counter
	UnknownResponses prometheus.Counter

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Probe metrics
	ProbeFailures prometheus.Counter

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for the JSON stats endpoint
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current values for the stats endpoint
type Snapshot struct {
	TotalRequests      int64   `json:"total_requests"`
	TotalErrors        int64   `json:"total_errors"`
	ActiveChannels     int64   `json:"active_channels"`
	ResolvedRequests   int64   `json:"resolved_requests"`
	ExpiredRequests    int64   `json:"expired_requests"`
	UnknownResponses   int64   `json:"unknown_responses"`
	CacheHits          int64   `json:"cache_hits"`
	CacheMisses        int64   `json:"cache_misses"`
	TotalDuration      float64 `json:"-"`
	RequestCount       int64   `json:"-"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
	UptimeSeconds      float64 `json:"uptime_seconds"`
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxy_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "proxy_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "proxy_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		ChannelConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "proxy_channel_connections",
				Help: "Number of connected host channels",
			},
		),
		ChannelMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxy_channel_messages_total",
				Help: "Channel messages by direction and type",
			},
			[]string{"direction", "type"},
		),

		RequestsPending: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "proxy_requests_pending",
				Help: "Outstanding correlated requests awaiting a host response",
			},
		),
		RequestsResolved: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxy_requests_resolved_total",
				Help: "Correlated requests resolved, by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		RequestsExpired: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "proxy_requests_expired_total",
				Help: "Correlated requests dropped without a host response (timeout or channel close)",
			},
		),
		UnknownResponses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "proxy_unknown_responses_total",
				Help: "Host responses carrying an unknown or late request id",
			},
		),

		CacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "proxy_cache_hits_total",
				Help: "Content cache hits",
			},
		),
		CacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "proxy_cache_misses_total",
				Help: "Content cache misses",
			},
		),

		ProbeFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "proxy_probe_failures_total",
				Help: "Localhost origin probe failures",
			},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "proxy_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}

	go m.updateUptime()
	return m
}

func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordChannelMessage records a channel message
func (m *Metrics) RecordChannelMessage(direction, msgType string) {
	m.ChannelMessages.WithLabelValues(direction, msgType).Inc()
}

// IncChannelConnections increments the connected channel gauge
func (m *Metrics) IncChannelConnections() {
	m.ChannelConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveChannels++
	m.mu.Unlock()
}

// DecChannelConnections decrements the connected channel gauge
func (m *Metrics) DecChannelConnections() {
	m.ChannelConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveChannels--
	m.mu.Unlock()
}

// IncRequestsPending increments the outstanding correlated request gauge
func (m *Metrics) IncRequestsPending() {
	m.RequestsPending.Inc()
}

// DecRequestsPending decrements the outstanding correlated request gauge
func (m *Metrics) DecRequestsPending() {
	m.RequestsPending.Dec()
}

// RecordResolved records a resolved correlated request
func (m *Metrics) RecordResolved(kind, outcome string) {
	m.RequestsResolved.WithLabelValues(kind, outcome).Inc()
	m.mu.Lock()
	m.snapshot.ResolvedRequests++
	m.mu.Unlock()
}

// RecordExpired records a request dropped by the resolve timeout
func (m *Metrics) RecordExpired() {
	m.RequestsExpired.Inc()
	m.mu.Lock()
	m.snapshot.ExpiredRequests++
	m.mu.Unlock()
}

// RecordUnknownResponse records a response with an unknown request id
func (m *Metrics) RecordUnknownResponse() {
	m.UnknownResponses.Inc()
	m.mu.Lock()
	m.snapshot.UnknownResponses++
	m.mu.Unlock()
}

// RecordCacheHit records a content cache hit
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
	m.mu.Lock()
	m.snapshot.CacheHits++
	m.mu.Unlock()
}

// RecordCacheMiss records a content cache miss
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
	m.mu.Lock()
	m.snapshot.CacheMisses++
	m.mu.Unlock()
}

// RecordProbeFailure records a failed localhost probe
func (m *Metrics) RecordProbeFailure() {
	m.ProbeFailures.Inc()
}

// GetSnapshot returns current values for the stats endpoint
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	snap := m.snapshot
	m.mu.RUnlock()

	if snap.RequestCount > 0 {
		snap.AvgDurationSeconds = snap.TotalDuration / float64(snap.RequestCount)
	}
	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	return snap
}
