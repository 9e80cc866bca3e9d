package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/workload-cache/internal/cache"
	"github.com/angeloszaimis/workload-cache/internal/metrics"
	"github.com/angeloszaimis/workload-cache/internal/upstream"
	"github.com/angeloszaimis/workload-cache/internal/workload"
)

type State int

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateRunning:
		return "RUNNING"
	default:
		return "UNKNOWN"
	}
}

// State returns the current state of the refresh loop.
func (w *Worker) State() State {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.state
}

// Start launches the refresh loop and reports whether it is running.
// It does nothing unless ShouldUpdate is set. Calling Start on a running
// worker cancels a pending Stop.
func (w *Worker) Start(ctx context.Context) bool {
	if !w.cfg.Options.ShouldUpdate {
		w.logger.Info("Background cache updates are disabled")
		return false
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.stopRequested = false
	if w.state == StateRunning {
		return true
	}

	w.state = StateRunning
	go w.run(ctx)

	w.logger.Info("Started updating cache",
		slog.Duration("interval", w.cfg.RefreshInterval),
		slog.Duration("stale_threshold", w.cfg.StaleThreshold),
		slog.String("failure_policy", string(w.cfg.FailurePolicy)))

	return true
}

// Stop asks the refresh loop to exit before its next tick.
func (w *Worker) Stop() {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.stopRequested = true
}

func (w *Worker) run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		if w.exitIfStopRequested() {
			return
		}

		// In-flight fetches outlive cancellation of ctx; only the next tick is skipped.
		if err := w.Refresh(context.WithoutCancel(ctx)); err != nil {
			w.logger.Error("Refresh tick aborted, stopping cache updates", slog.Any("err", err))
			w.markStopped()
			return
		}

		select {
		case <-ctx.Done():
			w.markStopped()
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) exitIfStopRequested() bool {
	w.mutex.Lock()
	if !w.stopRequested {
		w.mutex.Unlock()
		return false
	}
	w.state = StateStopped
	w.stopRequested = false
	w.mutex.Unlock()

	w.logger.Info("Stopped updating cache")
	return true
}

func (w *Worker) markStopped() {
	w.mutex.Lock()
	w.state = StateStopped
	w.stopRequested = false
	w.mutex.Unlock()

	w.logger.Info("Stopped updating cache")
}

// Refresh runs a single tick over a snapshot of the cache: stale records
// are evicted and the others re-fetched. Under FailurePolicyStop the first
// failed fetch aborts the tick and is returned.
func (w *Worker) Refresh(ctx context.Context) error {
	snapshot := w.cache.Snapshot()
	now := w.now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)

	snapshot.ForEach(func(r workload.Record) cache.Visit {
		if gctx.Err() != nil {
			return cache.Stop
		}

		g.Go(func() error {
			// g.Go may have waited for a slot while another record failed.
			if gctx.Err() != nil {
				return nil
			}
			return w.refreshRecord(gctx, r, now)
		})

		return cache.Continue
	})

	err := g.Wait()

	w.collector.Emit(metrics.MetricEvent{
		Type: metrics.EventCacheSize,
		Size: w.cache.Len(),
	})

	return err
}

// refreshRecord evicts r if it went stale, otherwise re-fetches it without
// touching its LastUpdateRequest.
func (w *Worker) refreshRecord(ctx context.Context, r workload.Record, now time.Time) error {
	stale := func(live workload.Record) bool {
		return live.IsStale(now, w.cfg.StaleThreshold)
	}

	if w.cache.RemoveIf(r.UUID, stale) {
		w.collector.Emit(metrics.MetricEvent{Type: metrics.EventRecordEvicted})
		w.logger.Debug("Evicted stale workload",
			slog.String("uuid", r.UUID),
			slog.Time("last_update_request", r.LastUpdateRequest))
		return nil
	}

	if _, ok := w.cache.Get(r.UUID); !ok {
		return nil
	}

	q := workload.Query{Name: r.Name, Namespace: r.Namespace, UUID: r.UUID}
	items, err := w.fetch(ctx, q)

	w.collector.Emit(metrics.MetricEvent{
		Type:    metrics.EventRefreshCompleted,
		Outcome: upstream.Kind(err),
	})

	if err != nil {
		if w.cfg.FailurePolicy == FailurePolicySkip {
			w.logger.Warn("Cannot refresh workload, skipping",
				slog.String("uuid", r.UUID),
				slog.Any("err", err))
			return nil
		}

		return fmt.Errorf("refresh workload %s: %w", r.UUID, err)
	}

	for _, item := range items {
		if item.UUID != r.UUID {
			continue
		}

		// Update never resurrects a record evicted since the snapshot.
		w.cache.Update(item.ToRecord(q, now), false)
	}

	return nil
}
