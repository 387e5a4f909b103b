// Package config handles configuration loading and management for the
// fetchling CLI.
//
// It provides functionality for:
//   - Loading configuration from .fetchling.json or fetchling.config.json files
//   - Default configuration values
//   - Turning a configuration into client options and a root request overlay
package config
