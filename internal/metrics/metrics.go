package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "workload"

type Metrics struct {
	registry         *prometheus.Registry
	cacheLookups     *prometheus.CounterVec
	cacheEvictions   prometheus.Counter
	cacheSize        prometheus.Gauge
	upstreamRequests *prometheus.CounterVec
	upstreamDuration prometheus.Histogram
	refreshes        *prometheus.CounterVec
	startTime        time.Time
}

type Snapshot struct {
	Uptime           time.Duration    `json:"uptime"`
	CacheHits        int64            `json:"cache_hits"`
	CacheMisses      int64            `json:"cache_misses"`
	CacheEvictions   int64            `json:"cache_evictions"`
	CacheSize        int64            `json:"cache_size"`
	UpstreamRequests map[string]int64 `json:"upstream_requests"`
	Refreshes        map[string]int64 `json:"refreshes"`
}

// NewMetrics builds the collectors on a private registry, so several
// instances can coexist in one process.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Cache lookups on the request path by result (hit, miss).",
			},
			[]string{"result"}),
		cacheEvictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "evictions_total",
				Help:      "Records evicted after going unrequested for the stale threshold.",
			}),
		cacheSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "records",
				Help:      "Records held in the cache after the last refresh tick.",
			}),
		upstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "requests_total",
				Help:      "Upstream requests by outcome (ok, status, timeout, network, error).",
			},
			[]string{"outcome"}),
		upstreamDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "upstream",
				Name:      "request_duration_seconds",
				Help:      "Upstream request latency.",
				Buckets:   prometheus.DefBuckets,
			}),
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "refresh",
				Name:      "records_total",
				Help:      "Background record refreshes by outcome.",
			},
			[]string{"outcome"}),
		startTime: time.Now(),
	}

	m.registry.MustRegister(
		m.cacheLookups,
		m.cacheEvictions,
		m.cacheSize,
		m.upstreamRequests,
		m.upstreamDuration,
		m.refreshes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordUpstream(outcome string, duration time.Duration) {
	m.upstreamRequests.WithLabelValues(outcome).Inc()
	m.upstreamDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordEviction() {
	m.cacheEvictions.Inc()
}

func (m *Metrics) RecordRefresh(outcome string) {
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetCacheSize(size int) {
	m.cacheSize.Set(float64(size))
}

func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		Uptime:           time.Since(m.startTime),
		UpstreamRequests: make(map[string]int64),
		Refreshes:        make(map[string]int64),
	}

	families, err := m.registry.Gather()
	if err != nil {
		return snap
	}

	for _, family := range families {
		for _, metric := range family.GetMetric() {
			label := ""
			if pairs := metric.GetLabel(); len(pairs) > 0 {
				label = pairs[0].GetValue()
			}

			switch family.GetName() {
			case "workload_cache_lookups_total":
				if label == "hit" {
					snap.CacheHits = int64(metric.GetCounter().GetValue())
				} else {
					snap.CacheMisses = int64(metric.GetCounter().GetValue())
				}
			case "workload_cache_evictions_total":
				snap.CacheEvictions = int64(metric.GetCounter().GetValue())
			case "workload_cache_records":
				snap.CacheSize = int64(metric.GetGauge().GetValue())
			case "workload_upstream_requests_total":
				snap.UpstreamRequests[label] = int64(metric.GetCounter().GetValue())
			case "workload_refresh_records_total":
				snap.Refreshes[label] = int64(metric.GetCounter().GetValue())
			}
		}
	}

	return snap
}
