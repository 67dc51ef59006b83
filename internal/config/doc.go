// Package config provides configuration loading and validation for the meeting audio bridge.
// It handles YAML-based configuration with per-section validation and duration
// accessors for all timeout and interval settings.
package config
