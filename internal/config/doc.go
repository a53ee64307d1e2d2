// Package config loads, normalizes, and validates quizline configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TELEGRAM_BOT_TOKEN. Legacy ops.yml files from the original tooling are
// accepted as well and mapped onto the same Config shape.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
