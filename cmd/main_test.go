package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"

	"github.com/angeloszaimis/workload-cache/config"
	"github.com/angeloszaimis/workload-cache/internal/cache"
	"github.com/angeloszaimis/workload-cache/internal/handler"
	"github.com/angeloszaimis/workload-cache/internal/metrics"
	"github.com/angeloszaimis/workload-cache/internal/upstream"
	"github.com/angeloszaimis/workload-cache/internal/worker"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Address:      ":7007",
			Environment:  config.EnvDev,
			ReadTimeout:  "10s",
			WriteTimeout: "20s",
			IdleTimeout:  "30s",
		},
		Upstream: config.UpstreamConfig{URL: "http://localhost:7008", APIKey: "secret", Timeout: "3s"},
		Cache: config.CacheConfig{
			ShouldFetch:          true,
			ShouldUpdate:         false,
			RefreshInterval:      "2s",
			StaleThreshold:       "45s",
			RefreshFailurePolicy: config.FailurePolicySkip,
			RefreshConcurrency:   3,
		},
		Metrics: config.MetricsConfig{BufferSize: 10},
		Logging: config.LoggingConfig{Level: config.LogLevelInfo},
	}
}

var _ = Describe("workerConfig", func() {
	It("should carry the cache settings over", func() {
		wc := workerConfig(testConfig())

		Expect(wc.Options.ShouldFetch).To(BeTrue())
		Expect(wc.Options.ShouldUpdate).To(BeFalse())
		Expect(wc.RefreshInterval).To(Equal(2 * time.Second))
		Expect(wc.StaleThreshold).To(Equal(45 * time.Second))
		Expect(wc.FailurePolicy).To(Equal(worker.FailurePolicySkip))
		Expect(wc.Concurrency).To(Equal(3))
	})
})

var _ = Describe("serverOptions", func() {
	It("should carry the server timeouts over", func() {
		opts := serverOptions(testConfig())

		Expect(opts.ReadTimeout).To(Equal(10 * time.Second))
		Expect(opts.WriteTimeout).To(Equal(20 * time.Second))
		Expect(opts.IdleTimeout).To(Equal(30 * time.Second))
	})
})

var _ = Describe("setupRouter", func() {
	var (
		upstreamSrv *httptest.Server
		router      http.Handler
		collector   *metrics.Collector
		cancel      context.CancelFunc
		calls       chan string
		logs        *gbytes.Buffer
	)

	BeforeEach(func() {
		calls = make(chan string, 10)
		upstreamSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls <- r.URL.RawQuery
			if r.URL.Query().Get("workload_uuid") == "missing" {
				w.WriteHeader(http.StatusNotFound)
				io.WriteString(w, `{"message":"Not Found"}`)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `[{"workload_uuid":"u1","cluster_name":"local","status":"Healthy"}]`)
		}))

		logs = gbytes.NewBuffer()
		log := slog.New(slog.NewTextHandler(logs, nil))

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		collector = metrics.NewCollector(10, log)
		collector.Start(ctx)

		client, err := upstream.New(upstreamSrv.URL, "secret", time.Second, log)
		Expect(err).NotTo(HaveOccurred())

		cfg := testConfig()
		w := worker.New(client, cache.New(), workerConfig(cfg), log, collector)
		router = setupRouter(handler.NewWorkloadHandler(log, w, w.Options()), collector)
	})

	AfterEach(func() {
		cancel()
		upstreamSrv.Close()
	})

	serve := func(method, target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
		return rec
	}

	It("should answer /ping", func() {
		rec := serve(http.MethodGet, "/ping")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"message":"hello"}`))
	})

	It("should fetch once and then serve /services from the cache", func() {
		rec := serve(http.MethodGet, "/services?workload_uuid=u1")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`[{"workload_uuid":"u1","cluster_name":"local","status":"Healthy"}]`))

		rec = serve(http.MethodGet, "/services?workload_uuid=u1")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(calls).To(HaveLen(1))
	})

	It("should pass upstream errors through", func() {
		rec := serve(http.MethodGet, "/services?workload_uuid=missing")
		Expect(rec.Code).To(Equal(http.StatusNotFound))
		Expect(rec.Body.String()).To(MatchJSON(`{"message":"Not Found"}`))
	})

	It("should reject other methods on /services", func() {
		rec := serve(http.MethodPost, "/services")
		Expect(rec.Code).To(Equal(http.StatusMethodNotAllowed))
	})

	It("should answer unknown routes with a JSON 404", func() {
		rec := serve(http.MethodGet, "/nope")
		Expect(rec.Code).To(Equal(http.StatusNotFound))
		Expect(rec.Body.String()).To(MatchJSON(`{"error":"not found"}`))
		Eventually(logs).Should(gbytes.Say(`msg="Served request".*path=/nope.*status=404`))
	})

	It("should expose Prometheus metrics", func() {
		serve(http.MethodGet, "/services?workload_uuid=u1")

		Eventually(func() string {
			return serve(http.MethodGet, "/metrics").Body.String()
		}).Should(ContainSubstring(`workload_cache_lookups_total{result="miss"} 1`))
	})
})
