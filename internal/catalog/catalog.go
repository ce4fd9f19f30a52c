package catalog

import (
	"context"
	"fmt"

	"github.com/gosimple/slug"
)

// KindMovie is the only candidate kind eligible for matching.
const KindMovie = "movie"

// Candidate is a catalog record returned by a title search. Rating and Votes
// stay nil until the record is enriched with details.
type Candidate struct {
	ID     int64
	Title  string
	Year   int
	Kind   string
	Rating *float64
	Votes  *int64
}

// Enriched reports whether both rating and vote count are known.
func (c Candidate) Enriched() bool {
	return c.Rating != nil && c.Votes != nil
}

// URL returns the canonical TMDB page for the candidate.
func (c Candidate) URL() string {
	if c.ID <= 0 {
		return ""
	}
	s := slug.Make(c.Title)
	if s == "" {
		return fmt.Sprintf("https://www.themoviedb.org/movie/%d", c.ID)
	}
	return fmt.Sprintf("https://www.themoviedb.org/movie/%d-%s", c.ID, s)
}

// Searcher is the catalog collaborator used by disambiguation.
type Searcher interface {
	// Search returns candidates for title. An empty slice is not an error.
	Search(ctx context.Context, title string) ([]Candidate, error)
	// EnrichDetails returns c with rating and votes populated when the
	// catalog knows them. Missing data is represented by nil fields.
	EnrichDetails(ctx context.Context, c Candidate) (Candidate, error)
}

// Float64 and Int64 return pointers for optional candidate fields.
func Float64(v float64) *float64 { return &v }

func Int64(v int64) *int64 { return &v }
