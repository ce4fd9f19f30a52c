// Package config loads, normalizes, and validates reelrank configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TMDB_API_KEY. The Config type centralizes every knob the CLI and the
// reconcile pipeline need: catalog credentials, the cinema feed location,
// the disambiguation policy, and report output.
package config
