// Package config loads, normalizes, and validates ferry configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// FERRY_DATASET_KEY. Staging, state, log, and publish directories default to
// subdirectories of paths.data_root so a single setting relocates a whole
// pipeline.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, deduplicated unit keys, and clear validation errors.
package config
