package worker

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/angeloszaimis/workload-cache/internal/cache"
	"github.com/angeloszaimis/workload-cache/internal/metrics"
	"github.com/angeloszaimis/workload-cache/internal/upstream"
	"github.com/angeloszaimis/workload-cache/internal/workload"
)

const (
	DefaultRefreshInterval = 5 * time.Second
	DefaultStaleThreshold  = 30 * time.Second
)

// Fetcher is the upstream side of the worker; *upstream.Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, q workload.Query) ([]workload.Item, error)
}

// FailurePolicy decides what a failed background refresh does to its tick.
type FailurePolicy string

const (
	// FailurePolicyStop aborts the tick and stops the refresh loop.
	FailurePolicyStop FailurePolicy = "stop"
	// FailurePolicySkip logs the failing record and carries on.
	FailurePolicySkip FailurePolicy = "skip"
)

type Config struct {
	Options         workload.CacheOptions
	RefreshInterval time.Duration
	StaleThreshold  time.Duration
	FailurePolicy   FailurePolicy
	// Concurrency bounds the parallel record refreshes within one tick.
	Concurrency int
}

// Response is the outcome of GetServiceInfo.
type Response struct {
	StatusCode int
	Items      []workload.Item
	// ErrorBody is the upstream error body, passed through unchanged.
	ErrorBody []byte
	Message   string
}

type Worker struct {
	cache     *cache.Cache
	fetcher   Fetcher
	cfg       Config
	logger    *slog.Logger
	collector *metrics.Collector
	group     singleflight.Group
	now       func() time.Time

	mutex         sync.Mutex
	state         State
	stopRequested bool
}

type Option func(*Worker)

// WithClock replaces time.Now for staleness checks and new record stamps.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		w.now = now
	}
}

// New creates a stopped worker. A nil store gets a fresh cache and a nil
// collector disables metrics.
func New(fetcher Fetcher, store *cache.Cache, cfg Config, logger *slog.Logger, collector *metrics.Collector, opts ...Option) *Worker {
	if store == nil {
		store = cache.New()
	}

	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}

	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = DefaultStaleThreshold
	}

	if cfg.FailurePolicy == "" {
		cfg.FailurePolicy = FailurePolicyStop
	}

	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	w := &Worker{
		cache:     store,
		fetcher:   fetcher,
		cfg:       cfg,
		logger:    logger,
		collector: collector,
		now:       time.Now,
		state:     StateStopped,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Cache returns the live cache owned by the worker.
func (w *Worker) Cache() *cache.Cache {
	return w.cache
}

// Options returns the configured cache options.
func (w *Worker) Options() workload.CacheOptions {
	return w.cfg.Options
}

// GetServiceInfo returns the status of the workloads matching q.
func (w *Worker) GetServiceInfo(ctx context.Context, q workload.Query, opts workload.CacheOptions) Response {
	q = q.Normalize()

	var items []workload.Item

	cached, hit := w.lookup(q, opts)
	if hit {
		items = make([]workload.Item, 0, len(cached))
		for _, r := range cached {
			items = append(items, r.ToItem())
		}
	} else {
		fetched, err := w.fetchShared(ctx, q)
		if err != nil {
			return w.errorResponse(q, err)
		}
		items = fetched
	}

	if opts.ShouldFetch {
		if hit {
			for _, r := range cached {
				w.cache.Upsert(r, true)
			}
		} else {
			now := w.now()
			for _, item := range items {
				w.cache.Upsert(item.ToRecord(q, now), true)
			}
		}
	}

	return Response{
		StatusCode: http.StatusOK,
		Items:      items,
	}
}

func (w *Worker) lookup(q workload.Query, opts workload.CacheOptions) ([]workload.Record, bool) {
	if !opts.ShouldFetch {
		return nil, false
	}

	var found []workload.Record

	if q.HasUUID() {
		if r, ok := w.cache.Get(q.UUID); ok {
			found = append(found, r)
		}
	} else if q.Name != workload.DefaultValue || q.Namespace != workload.DefaultValue {
		found = w.cache.Find(q.Matches)
	}

	if len(found) == 0 {
		w.collector.Emit(metrics.MetricEvent{Type: metrics.EventCacheMiss})
		return nil, false
	}

	w.collector.Emit(metrics.MetricEvent{Type: metrics.EventCacheHit})
	return found, true
}

// fetchShared coalesces concurrent identical requests into one upstream call.
// The shared call does not inherit the cancellation of the caller that
// started it; the upstream timeout bounds it instead.
func (w *Worker) fetchShared(ctx context.Context, q workload.Query) ([]workload.Item, error) {
	v, err, _ := w.group.Do(q.Key(), func() (any, error) {
		return w.fetch(context.WithoutCancel(ctx), q)
	})
	if err != nil {
		return nil, err
	}

	shared := v.([]workload.Item)
	items := make([]workload.Item, len(shared))
	copy(items, shared)

	return items, nil
}

func (w *Worker) fetch(ctx context.Context, q workload.Query) ([]workload.Item, error) {
	start := time.Now()
	items, err := w.fetcher.Fetch(ctx, q)

	w.collector.Emit(metrics.MetricEvent{
		Type:     metrics.EventUpstreamCompleted,
		Duration: time.Since(start),
		Outcome:  upstream.Kind(err),
	})

	if items == nil && err == nil {
		items = []workload.Item{}
	}

	return items, err
}

func (w *Worker) errorResponse(q workload.Query, err error) Response {
	if code, ok := upstream.StatusCodeOf(err); ok {
		w.logger.Warn("Upstream rejected workload request",
			slog.String("query", q.Key()),
			slog.Int("status", code))

		return Response{
			StatusCode: code,
			ErrorBody:  upstream.BodyOf(err),
			Message:    err.Error(),
		}
	}

	w.logger.Error("Failed to fetch workload status",
		slog.String("query", q.Key()),
		slog.String("kind", upstream.Kind(err)),
		slog.Any("err", err))

	return Response{
		StatusCode: http.StatusInternalServerError,
		Message:    fmt.Sprintf("cannot get workload status for %s", q.Key()),
	}
}
