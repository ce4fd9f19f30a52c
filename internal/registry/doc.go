// Package registry owns the per-run mapping from listing code to resolved
// MovieRecord.
//
// Registration deduplicates by listing code and by normalized title (first
// registrant wins), rejects scores outside the 0-10 rating range, intersects listing attributes with the feed's genre vocabulary, and keeps
// diagnostics for rejected and unresolved listings. The Aggregator folds
// per-day screening events into records, skipping premium formats and
// ignoring events for films that were never registered.
package registry
