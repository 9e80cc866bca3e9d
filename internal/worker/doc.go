// Package worker serves workload status requests through the cache and
// keeps cached records fresh in the background.
//
// GetServiceInfo answers a single request: from the cache when allowed and
// populated, from the upstream API otherwise. It never returns an error;
// every failure becomes a status code and a body.
//
// Start runs the refresh loop. Every tick it snapshots the cache, evicts
// records nobody requested within the stale threshold and re-fetches the
// rest without resetting their idle timers. Stop is cooperative: the loop
// exits before its next tick, never in the middle of one.
package worker
