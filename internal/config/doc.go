// Package config loads, normalizes, and validates pomo configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// XDG_RUNTIME_DIR and POMO_NTFY_TOPIC. Socket and database names without a
// directory are placed under the runtime and data directories respectively.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
