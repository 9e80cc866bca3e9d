// Package metrics collects cache and upstream metrics and exposes them
// in the Prometheus exposition format.
//
// It uses a channel-based event pipeline to asynchronously collect:
//   - Cache hits and misses on the request path
//   - Upstream request outcomes and latency
//   - Background refresh outcomes
//   - Evictions of stale records and the current cache size
//
// The collector runs in a dedicated goroutine and processes events without blocking
// the request path. Emit drops events when the buffer is full rather than
// waiting for the collector to catch up.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:     metrics.EventUpstreamCompleted,
//		Duration: 150 * time.Millisecond,
//		Outcome:  "ok",
//	})
//
//	http.Handle("/metrics", collector.Handler())
//
// Each collector owns a private prometheus.Registry and drains queued
// events on shutdown.
package metrics
