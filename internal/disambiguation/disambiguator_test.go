package disambiguation

import (
	"context"
	"errors"
	"testing"
	"time"

	"reelrank/internal/catalog"
)

type fakeSearcher struct {
	results   []catalog.Candidate
	searchErr error
	details   map[int64]catalog.Candidate
	enrichErr map[int64]error
	enriched  []int64
}

func (f *fakeSearcher) Search(context.Context, string) ([]catalog.Candidate, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	out := make([]catalog.Candidate, len(f.results))
	copy(out, f.results)
	return out, nil
}

func (f *fakeSearcher) EnrichDetails(_ context.Context, c catalog.Candidate) (catalog.Candidate, error) {
	f.enriched = append(f.enriched, c.ID)
	if err := f.enrichErr[c.ID]; err != nil {
		return c, err
	}
	if d, ok := f.details[c.ID]; ok {
		c.Rating = d.Rating
		c.Votes = d.Votes
	}
	return c, nil
}

func fixedNow(year int) func() time.Time {
	return func() time.Time { return time.Date(year, time.June, 1, 12, 0, 0, 0, time.UTC) }
}

func movie(id int64, title string, year int, rating float64, votes int64) catalog.Candidate {
	return catalog.Candidate{
		ID:     id,
		Title:  title,
		Year:   year,
		Kind:   catalog.KindMovie,
		Rating: catalog.Float64(rating),
		Votes:  catalog.Int64(votes),
	}
}

func TestResolveNeverSelectsNonMovie(t *testing.T) {
	episode := movie(1, "alpha", 2020, 9.9, 100000)
	episode.Kind = "episode"
	searcher := &fakeSearcher{results: []catalog.Candidate{episode, movie(2, "alpha beta", 2020, 5, 10)}}
	d := New(searcher, Options{Now: fixedNow(2024)})

	match, err := d.Resolve(context.Background(), "alpha", 0)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if match.Candidate.ID != 2 {
		t.Fatalf("expected movie candidate, got %+v", match.Candidate)
	}
}

func TestResolveExcludesFutureAndUnknownYears(t *testing.T) {
	unknown := movie(2, "alpha", 0, 7, 10)
	searcher := &fakeSearcher{results: []catalog.Candidate{movie(1, "alpha", 2099, 7, 10), unknown}}
	d := New(searcher, Options{Now: fixedNow(2024)})

	if _, err := d.Resolve(context.Background(), "alpha", 0); !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
}

func TestResolvePolicies(t *testing.T) {
	results := []catalog.Candidate{
		movie(2020, "Alpha", 2020, 6.5, 500),
		movie(2021, "Alpha", 2021, 7.0, 9000),
	}
	tests := []struct {
		name         string
		policy       Policy
		expectedYear int
		want         int64
	}{
		{name: "votes", policy: PolicyVotes, want: 2021},
		{name: "votes ignores year hint", policy: PolicyVotes, expectedYear: 2020, want: 2021},
		{name: "year distance with hint", policy: PolicyYearDistance, expectedYear: 2020, want: 2020},
		{name: "year distance from current year", policy: PolicyYearDistance, want: 2021},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(&fakeSearcher{results: results}, Options{Policy: tt.policy, Now: fixedNow(2024)})
			match, err := d.Resolve(context.Background(), "alpha", tt.expectedYear)
			if err != nil {
				t.Fatalf("Resolve returned error: %v", err)
			}
			if match.Candidate.ID != tt.want {
				t.Fatalf("expected candidate %d, got %d", tt.want, match.Candidate.ID)
			}
		})
	}
}

func TestResolvePrefersSmallerEditDistance(t *testing.T) {
	searcher := &fakeSearcher{results: []catalog.Candidate{
		movie(1, "Dune", 1984, 6.3, 3000),
		movie(2, "Dune: Part Two", 2024, 8.2, 6000),
	}}
	d := New(searcher, Options{Now: fixedNow(2024)})

	match, err := d.Resolve(context.Background(), "dune part two", 0)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if match.Candidate.ID != 2 || match.Distance != 1 {
		t.Fatalf("unexpected match %+v", match)
	}
}

func TestResolveCaseFoldsUnicode(t *testing.T) {
	searcher := &fakeSearcher{results: []catalog.Candidate{
		movie(1, "Amelie", 2001, 7.9, 100),
		movie(2, "AMÉLIE", 2001, 7.9, 10),
	}}
	d := New(searcher, Options{Now: fixedNow(2024)})

	match, err := d.Resolve(context.Background(), "amélie", 0)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if match.Candidate.ID != 2 || match.Distance != 0 {
		t.Fatalf("expected exact folded match, got %+v", match)
	}
}

func TestResolveTieKeepsFirstCandidate(t *testing.T) {
	searcher := &fakeSearcher{results: []catalog.Candidate{
		movie(1, "Alpha", 2020, 6, 500),
		movie(2, "Alpha", 2020, 8, 500),
	}}
	d := New(searcher, Options{Now: fixedNow(2024)})

	match, err := d.Resolve(context.Background(), "alpha", 0)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if match.Candidate.ID != 1 {
		t.Fatalf("expected first candidate on full tie, got %d", match.Candidate.ID)
	}
}

func TestResolveYearDriftWindow(t *testing.T) {
	searcher := &fakeSearcher{results: []catalog.Candidate{
		movie(1, "Alpha", 2014, 9, 90000),
		movie(2, "Alpha", 2015, 5, 10),
	}}
	d := New(searcher, Options{Now: fixedNow(2024)})

	match, err := d.Resolve(context.Background(), "alpha", 2020)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if match.Candidate.ID != 2 {
		t.Fatalf("expected 2014 candidate to fall outside the window, got %d", match.Candidate.ID)
	}

	narrow := New(searcher, Options{MaxYearDrift: 2, Now: fixedNow(2024)})
	if _, err := narrow.Resolve(context.Background(), "alpha", 2020); !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates with drift 2, got %v", err)
	}
}

func TestResolveEnrichesOnlyEligibleCandidates(t *testing.T) {
	tv := catalog.Candidate{ID: 1, Title: "Alpha", Year: 2020, Kind: "tv"}
	future := catalog.Candidate{ID: 2, Title: "Alpha", Year: 2099, Kind: catalog.KindMovie}
	bare := catalog.Candidate{ID: 3, Title: "Alpha", Year: 2020, Kind: catalog.KindMovie}
	rated := movie(4, "Alpha Two", 2021, 6, 100)
	searcher := &fakeSearcher{
		results: []catalog.Candidate{tv, future, bare, rated},
		details: map[int64]catalog.Candidate{3: movie(3, "Alpha", 2020, 7.5, 1200)},
	}
	d := New(searcher, Options{Now: fixedNow(2024)})

	match, err := d.Resolve(context.Background(), "alpha", 0)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if match.Candidate.ID != 3 || *match.Candidate.Votes != 1200 {
		t.Fatalf("unexpected match %+v", match.Candidate)
	}
	if len(searcher.enriched) != 1 || searcher.enriched[0] != 3 {
		t.Fatalf("expected enrichment only for candidate 3, got %v", searcher.enriched)
	}
}

func TestResolveUnratedSelection(t *testing.T) {
	searcher := &fakeSearcher{results: []catalog.Candidate{
		{ID: 1, Title: "Alpha", Year: 2020, Kind: catalog.KindMovie},
	}}
	d := New(searcher, Options{Now: fixedNow(2024)})

	if _, err := d.Resolve(context.Background(), "alpha", 0); !errors.Is(err, ErrUnrated) {
		t.Fatalf("expected ErrUnrated, got %v", err)
	}
}

func TestResolveCollaboratorErrors(t *testing.T) {
	cause := errors.New("connection refused")

	search := New(&fakeSearcher{searchErr: cause}, Options{Now: fixedNow(2024)})
	_, err := search.Resolve(context.Background(), "alpha", 0)
	if !errors.Is(err, ErrCollaborator) || !errors.Is(err, cause) {
		t.Fatalf("expected wrapped collaborator error, got %v", err)
	}

	enrich := New(&fakeSearcher{
		results:   []catalog.Candidate{{ID: 1, Title: "Alpha", Year: 2020, Kind: catalog.KindMovie}},
		enrichErr: map[int64]error{1: cause},
	}, Options{Now: fixedNow(2024)})
	_, err = enrich.Resolve(context.Background(), "alpha", 0)
	if !errors.Is(err, ErrCollaborator) || !errors.Is(err, cause) {
		t.Fatalf("expected wrapped enrich error, got %v", err)
	}
}

func TestResolveSurvivesFailedEnrichmentOfLoser(t *testing.T) {
	searcher := &fakeSearcher{
		results: []catalog.Candidate{
			{ID: 1, Title: "Alpha Omega", Year: 2020, Kind: catalog.KindMovie},
			movie(2, "Alpha", 2020, 7, 700),
		},
		enrichErr: map[int64]error{1: errors.New("timeout")},
	}
	d := New(searcher, Options{Now: fixedNow(2024)})

	match, err := d.Resolve(context.Background(), "alpha", 0)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if match.Candidate.ID != 2 {
		t.Fatalf("expected rated candidate, got %d", match.Candidate.ID)
	}
}

func TestResolveEmptySearch(t *testing.T) {
	d := New(&fakeSearcher{}, Options{Now: fixedNow(2024)})
	if _, err := d.Resolve(context.Background(), "alpha", 0); !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
}

func TestParsePolicy(t *testing.T) {
	tests := map[string]Policy{
		"":              PolicyVotes,
		"votes":         PolicyVotes,
		"Year-Distance": PolicyYearDistance,
		"year_distance": PolicyYearDistance,
	}
	for input, want := range tests {
		got, err := ParsePolicy(input)
		if err != nil {
			t.Fatalf("ParsePolicy(%q) returned error: %v", input, err)
		}
		if got != want {
			t.Fatalf("ParsePolicy(%q) = %q, want %q", input, got, want)
		}
	}
	if _, err := ParsePolicy("popularity"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}
