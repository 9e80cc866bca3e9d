// Package handler implements the inbound HTTP endpoints. It translates
// query parameters into workload queries and worker responses into JSON.
package handler
