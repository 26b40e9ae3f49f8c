// Package config loads, normalizes, and validates Tubecraft configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a local .env file, and honours
// environment overrides such as TUBECRAFT_MAX_CONCURRENT_JOBS. The Config type
// centralizes every knob the daemon and CLI need: data directories, external
// collaborator endpoints (Ollama, speech synthesis, ffmpeg), scheduler limits,
// and logging output.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
