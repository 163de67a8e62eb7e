// Package config loads and validates the service configuration from
// YAML files and RECORDSTORE_* environment variables.
package config
