package cache

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/angeloszaimis/workload-cache/internal/workload"
)

// Visit tells ForEach whether to keep going.
type Visit int

const (
	Continue Visit = iota
	Stop
)

func (v Visit) String() string {
	switch v {
	case Continue:
		return "CONTINUE"
	case Stop:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}

// Cache is a concurrency-safe store of workload records.
type Cache struct {
	mutex   sync.RWMutex
	records map[string]workload.Record
	now     func() time.Time
}

type Option func(*Cache)

// WithClock replaces time.Now as the source of LastUpdateRequest stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func New(opts ...Option) *Cache {
	c := &Cache{
		records: make(map[string]workload.Record),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get returns the record stored under uuid.
func (c *Cache) Get(uuid string) (workload.Record, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	r, ok := c.records[uuid]
	return r, ok
}

// Find returns every record accepted by predicate, in no particular order.
func (c *Cache) Find(predicate func(workload.Record) bool) []workload.Record {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	found := make([]workload.Record, 0)
	for _, r := range c.records {
		if predicate(r) {
			found = append(found, r)
		}
	}

	return found
}

// Upsert inserts r, or merges its cluster name and status into the record
// already stored under r.UUID. When touch is set the existing record's
// LastUpdateRequest moves to now; it never moves backwards.
func (c *Cache) Upsert(r workload.Record, touch bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.mergeLocked(r, touch) {
		return
	}

	if r.LastUpdateRequest.IsZero() {
		r.LastUpdateRequest = c.now()
	}
	c.records[r.UUID] = r
}

// Update is Upsert without the insert: it only merges into a record that
// is still present, and reports whether it did.
func (c *Cache) Update(r workload.Record, touch bool) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.mergeLocked(r, touch)
}

func (c *Cache) mergeLocked(r workload.Record, touch bool) bool {
	existing, ok := c.records[r.UUID]
	if !ok {
		return false
	}

	existing.ClusterName = r.ClusterName
	existing.Status = r.Status

	if touch {
		if now := c.now(); now.After(existing.LastUpdateRequest) {
			existing.LastUpdateRequest = now
		}
	}

	c.records[r.UUID] = existing
	return true
}

// Remove deletes the record stored under uuid and reports whether one existed.
func (c *Cache) Remove(uuid string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, ok := c.records[uuid]; !ok {
		return false
	}

	delete(c.records, uuid)
	return true
}

// RemoveIf deletes the record stored under uuid only if predicate accepts
// it, checking and deleting under a single lock.
func (c *Cache) RemoveIf(uuid string, predicate func(workload.Record) bool) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	r, ok := c.records[uuid]
	if !ok || !predicate(r) {
		return false
	}

	delete(c.records, uuid)
	return true
}

// Len returns the number of stored records.
func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.records)
}

// Snapshot returns an independent copy of the cache.
func (c *Cache) Snapshot() *Cache {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	records := make(map[string]workload.Record, len(c.records))
	for uuid, r := range c.records {
		records[uuid] = r
	}

	return &Cache{
		records: records,
		now:     c.now,
	}
}

// ForEach calls visit for every record, in UUID order, until it returns Stop.
// The records are collected first, so visit may safely mutate c.
func (c *Cache) ForEach(visit func(workload.Record) Visit) {
	c.mutex.RLock()
	records := make([]workload.Record, 0, len(c.records))
	for _, r := range c.records {
		records = append(records, r)
	}
	c.mutex.RUnlock()

	slices.SortFunc(records, func(a, b workload.Record) int {
		return strings.Compare(a.UUID, b.UUID)
	})

	for _, r := range records {
		if visit(r) == Stop {
			return
		}
	}
}
