// Package cache holds workload records keyed by UUID.
//
// Records are stored by value, so nothing handed out by the cache aliases
// its internal state. Long-running sweeps should iterate a Snapshot rather
// than the live cache: the snapshot is an independent copy that the live
// cache can keep mutating underneath.
//
//	snap := c.Snapshot()
//	snap.ForEach(func(r workload.Record) cache.Visit {
//		if r.IsStale(time.Now(), 30*time.Second) {
//			c.Remove(r.UUID)
//		}
//		return cache.Continue
//	})
package cache
