// Package config loads, normalizes, and validates vidfinder configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and applies command-line overrides on top.
// The Config type centralizes every knob the fingerprinting engine and CLI
// need: sampling and hashing parameters, cache behaviour, the watched
// database location, external media tools, and logging.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors. Validation failures wrap
// failures.ErrConfiguration and are fatal at startup.
package config
