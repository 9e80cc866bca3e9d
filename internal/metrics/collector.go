package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventCacheHit          EventType = "cache_hit"
	EventCacheMiss         EventType = "cache_miss"
	EventUpstreamCompleted EventType = "upstream_completed"
	EventRecordEvicted     EventType = "record_evicted"
	EventRefreshCompleted  EventType = "refresh_completed"
	EventCacheSize         EventType = "cache_size"
)

type MetricEvent struct {
	Type      EventType
	Timestamp time.Time
	Duration  time.Duration
	// Outcome is the upstream.Kind of the call that produced the event.
	Outcome string
	Size    int
}

type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

// Emit queues event without blocking; it is dropped when the buffer is full.
// A nil collector ignores every event.
func (c *Collector) Emit(event MetricEvent) {
	if c == nil {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventCacheHit:
		c.metrics.RecordLookup(true)

	case EventCacheMiss:
		c.metrics.RecordLookup(false)

	case EventUpstreamCompleted:
		c.metrics.RecordUpstream(event.Outcome, event.Duration)

	case EventRecordEvicted:
		c.metrics.RecordEviction()

	case EventRefreshCompleted:
		c.metrics.RecordRefresh(event.Outcome)

	case EventCacheSize:
		c.metrics.SetCacheSize(event.Size)

	default:
		c.logger.Debug("Ignoring unknown metric event", slog.String("type", string(event.Type)))
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
