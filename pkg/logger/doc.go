// Package logger builds the process-wide structured logger. Production
// environments log JSON, every other environment logs human-readable text.
package logger
