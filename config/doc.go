// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the server settings, the upstream
// workload API endpoint and credentials, cache refresh behaviour and logging.
package config
