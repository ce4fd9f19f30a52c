// Package disambiguation selects one catalog candidate for a normalized
// listing title.
//
// Resolve runs search, eligibility filtering, detail enrichment bounded to the
// eligible set, and a two-key score: case-folded Levenshtein distance first,
// then the configured Policy. Ties keep the earliest candidate. Failures never
// escape as fatal errors; they map onto ErrNoCandidates, ErrUnrated, or
// ErrCollaborator so the caller can record the listing as unresolved.
package disambiguation
