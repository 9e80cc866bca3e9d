// Package upstream implements the HTTP client for the workload status API.
// Every request carries a bearer token and is bounded by a timeout; failures
// come back as *TimeoutError, *StatusError or *NetworkError so callers can
// decide what to surface.
package upstream
