// Package config provides configuration management for Red-Read.
//
// The config package uses Viper to load configuration from a YAML file and
// environment variables. The file lives at ~/.redread/config.yaml and is
// created with defaults on first use.
//
// All values can be overridden with REDREAD_-prefixed environment variables,
// nested fields separated by underscores:
//
//   - REDREAD_PLAYBACK_RATE=450
//   - REDREAD_PLAYBACK_MODE=skim
//   - REDREAD_OBSERVER_ENABLED=true
//   - REDREAD_LOGGING_LEVEL=debug
//
// Playback rate and mode are session starting points, not hard limits: the
// scheduler clamps rates into its own valid range at runtime, so a bad value
// here degrades to the nearest valid one instead of failing startup.
package config
