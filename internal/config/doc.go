// Package config loads and validates application configuration from
// environment variables (OUTREACH_ prefix) and an optional config file.
package config
