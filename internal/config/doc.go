// Package config loads, normalizes, and validates VidSnatch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// VIDSNATCH_DOWNLOAD_DIR. Runtime changes made through the HTTP API (the
// download folder picker) are persisted separately in settings.toml under the
// state directory and layered over the file values on load.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
