// Package config loads, normalizes, and validates reel configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// REEL_FFMPEG and REEL_FFPROBE. The Config type centralizes the knobs the
// scan and merge jobs need: progress cadence, termination grace periods,
// size-anomaly thresholds, and where temporary artifacts and locks live.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
