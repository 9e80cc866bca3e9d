// Package workload defines the identity and status types shared by the
// upstream client, the cache and the refresh worker.
package workload
