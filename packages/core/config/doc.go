// Package config handles configuration loading for shtest.
//
// It provides functionality for:
//   - Loading configuration from .shtest.yaml or .shtest.yml files
//   - Loading a .env file into the process environment
//   - Default configuration values with CLI-flag overrides
package config
