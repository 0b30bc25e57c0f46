// Package config loads, normalizes, and validates subtrans configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files and optional .env files, and honours
// environment fallbacks such as GEMINI_API_KEY and SUBTRANS_API_KEYS. The
// Config type centralizes every knob the daemon and CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
