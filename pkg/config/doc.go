// Package config loads form-relay configuration from a YAML file, a local .env
// file and environment variables, and fills in deployment defaults.
package config
