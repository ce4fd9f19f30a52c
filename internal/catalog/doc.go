// Package catalog defines the candidate model shared by disambiguation and the
// TMDB-backed Searcher that produces it.
package catalog
