// Package config loads, normalizes, and validates fragmenter configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads optional .env files, and honours
// environment fallbacks such as FRAGMENTER_PRIMARY_DSN. The Config type
// centralizes every knob the CLI and HTTP front-end need: worker tiers,
// fallback behaviour, and the sink table that maps a project domain to its
// secondary store.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, a validated tier ladder, and clear validation errors.
package config
