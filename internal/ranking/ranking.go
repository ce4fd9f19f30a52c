// Package ranking orders resolved movies for display.
//
// The score of a record is the pair (rating, votes). CompareScore and Equal
// agree on it, so two records are equal exactly when neither outranks the
// other. Less refines score ties by title and listing code to keep output
// deterministic.
package ranking

import (
	"cmp"
	"slices"

	"reelrank/internal/registry"
)

// CompareScore returns a negative number when a scores below b, zero when
// Equal(a, b), and a positive number when a scores above b.
func CompareScore(a, b registry.MovieRecord) int {
	if c := cmp.Compare(a.Rating, b.Rating); c != 0 {
		return c
	}
	return cmp.Compare(a.Votes, b.Votes)
}

// Equal reports whether a and b share both rating and vote count.
func Equal(a, b registry.MovieRecord) bool {
	return CompareScore(a, b) == 0
}

// Less reports whether a is displayed before b: higher rating first, then
// more votes, then title and listing code ascending.
func Less(a, b registry.MovieRecord) bool {
	return compareDisplay(a, b) < 0
}

func compareDisplay(a, b registry.MovieRecord) int {
	if c := CompareScore(b, a); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Title, b.Title); c != 0 {
		return c
	}
	return cmp.Compare(a.Code, b.Code)
}

// Sort returns a new slice of records in display order.
func Sort(records []registry.MovieRecord) []registry.MovieRecord {
	out := slices.Clone(records)
	slices.SortStableFunc(out, compareDisplay)
	return out
}
