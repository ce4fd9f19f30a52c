// Package logging assembles structured slog loggers and formatting helpers used
// across reelrank.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes the standard field keys (component, run_id,
// event_type, error_hint, impact) so warnings carry cause, impact, and next
// step in the same shape everywhere. The package also provides a no-op logger
// for tests and wiring code that cannot fail.
package logging
