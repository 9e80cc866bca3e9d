package metrics_test

import (
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/workload-cache/internal/metrics"
)

var _ = Describe("Metrics", func() {
	var m *metrics.Metrics

	BeforeEach(func() {
		m = metrics.NewMetrics()
	})

	Describe("NewMetrics", func() {
		It("should start with an empty snapshot", func() {
			snap := m.Snapshot()
			Expect(snap.CacheHits).To(BeZero())
			Expect(snap.CacheMisses).To(BeZero())
			Expect(snap.UpstreamRequests).To(BeEmpty())
			Expect(snap.Refreshes).To(BeEmpty())
		})

		It("should use independent registries", func() {
			other := metrics.NewMetrics()
			m.RecordEviction()
			Expect(other.Snapshot().CacheEvictions).To(BeZero())
		})
	})

	Describe("RecordLookup", func() {
		It("should count hits and misses separately", func() {
			m.RecordLookup(true)
			m.RecordLookup(false)
			m.RecordLookup(false)

			snap := m.Snapshot()
			Expect(snap.CacheHits).To(Equal(int64(1)))
			Expect(snap.CacheMisses).To(Equal(int64(2)))
		})
	})

	Describe("RecordUpstream", func() {
		It("should count by outcome and observe latency", func() {
			m.RecordUpstream("ok", 20*time.Millisecond)
			m.RecordUpstream("ok", 30*time.Millisecond)
			m.RecordUpstream("network", time.Millisecond)

			Expect(m.Snapshot().UpstreamRequests).To(Equal(map[string]int64{"ok": 2, "network": 1}))

			count, err := testutil.GatherAndCount(m.Registry(), "workload_upstream_request_duration_seconds")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})
	})

	Describe("SetCacheSize", func() {
		It("should report the latest size", func() {
			m.SetCacheSize(3)
			m.SetCacheSize(1)
			Expect(m.Snapshot().CacheSize).To(Equal(int64(1)))
		})
	})

	Describe("Snapshot", func() {
		It("should report uptime", func() {
			time.Sleep(5 * time.Millisecond)
			Expect(m.Snapshot().Uptime).To(BeNumerically(">=", 5*time.Millisecond))
		})
	})
})
