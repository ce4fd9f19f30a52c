package disambiguation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hbollon/go-edlib"
	"golang.org/x/text/cases"

	"reelrank/internal/catalog"
	"reelrank/internal/logging"
)

// Sentinel outcomes for a query that could not be matched. Callers record
// them as unresolved and continue with the next listing.
var (
	ErrNoCandidates = errors.New("no eligible candidates")
	ErrUnrated      = errors.New("selected candidate has no rating data")
	ErrCollaborator = errors.New("catalog collaborator failed")
)

// DefaultMaxYearDrift bounds how far a candidate's year may sit from the
// listing's expected year.
const DefaultMaxYearDrift = 5

// Policy selects the secondary scoring key applied after edit distance.
type Policy string

const (
	// PolicyVotes prefers the most-voted candidate on equal edit distance.
	PolicyVotes Policy = "votes"
	// PolicyYearDistance prefers the candidate closest to the reference year.
	PolicyYearDistance Policy = "year_distance"
)

// ParsePolicy accepts the config spelling of a policy. Empty selects PolicyVotes.
func ParsePolicy(value string) (Policy, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_")
	switch Policy(normalized) {
	case "", PolicyVotes:
		return PolicyVotes, nil
	case PolicyYearDistance:
		return PolicyYearDistance, nil
	default:
		return "", fmt.Errorf("unknown scoring policy %q (want %q or %q)", value, PolicyVotes, PolicyYearDistance)
	}
}

// Options configures a Disambiguator.
type Options struct {
	Policy       Policy
	MaxYearDrift int
	Now          func() time.Time
	Logger       *slog.Logger
}

// Match is the accepted candidate and the score that selected it.
type Match struct {
	Candidate catalog.Candidate
	Distance  int
	Secondary int64
}

// Disambiguator picks one catalog candidate for a dirty query title.
type Disambiguator struct {
	searcher     catalog.Searcher
	policy       Policy
	maxYearDrift int
	now          func() time.Time
	logger       *slog.Logger
}

// New constructs a Disambiguator around searcher.
func New(searcher catalog.Searcher, opts Options) *Disambiguator {
	policy := opts.Policy
	if policy == "" {
		policy = PolicyVotes
	}
	drift := opts.MaxYearDrift
	if drift <= 0 {
		drift = DefaultMaxYearDrift
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Disambiguator{
		searcher:     searcher,
		policy:       policy,
		maxYearDrift: drift,
		now:          now,
		logger:       logging.NewComponentLogger(opts.Logger, "disambiguation"),
	}
}

// Policy reports the configured secondary key.
func (d *Disambiguator) Policy() Policy {
	return d.policy
}

type scored struct {
	candidate catalog.Candidate
	distance  int
	secondary int64
	enrichErr error
}

// Resolve searches the catalog for query and selects the best candidate.
// expectedYear <= 0 means no year hint. Every failure is reported as one of
// ErrNoCandidates, ErrUnrated, or ErrCollaborator.
func (d *Disambiguator) Resolve(ctx context.Context, query string, expectedYear int) (Match, error) {
	if d == nil || d.searcher == nil {
		return Match{}, fmt.Errorf("%w: searcher unavailable", ErrCollaborator)
	}
	logger := d.logger.With(logging.String(logging.FieldQuery, query))

	results, err := d.searcher.Search(ctx, query)
	if err != nil {
		return Match{}, fmt.Errorf("%w: search %q: %w", ErrCollaborator, query, err)
	}
	if len(results) == 0 {
		logger.Debug("catalog search returned nothing",
			logging.Args(logging.DecisionAttrs("candidate_filter", "unresolved", "empty search result")...)...)
		return Match{}, ErrNoCandidates
	}

	eligible := d.filter(results, expectedYear)
	logger.Debug("candidates filtered",
		logging.Int("total_results", len(results)),
		logging.Int("eligible", len(eligible)),
		logging.Int("expected_year", expectedYear))
	if len(eligible) == 0 {
		return Match{}, ErrNoCandidates
	}

	pool := d.enrich(ctx, logger, eligible)
	ref := expectedYear
	if ref <= 0 {
		ref = d.now().Year()
	}
	folder := cases.Fold()
	foldedQuery := folder.String(query)

	best := -1
	for i := range pool {
		pool[i].distance = edlib.LevenshteinDistance(foldedQuery, folder.String(pool[i].candidate.Title))
		pool[i].secondary = d.secondaryKey(pool[i].candidate, ref)
		logger.Debug("candidate scored",
			logging.Int("result_index", i),
			logging.Int64("tmdb_id", pool[i].candidate.ID),
			logging.String("title", pool[i].candidate.Title),
			logging.Int("year", pool[i].candidate.Year),
			logging.Int("edit_distance", pool[i].distance),
			logging.Int64("secondary_key", pool[i].secondary))
		if best < 0 || less(pool[i], pool[best]) {
			best = i
		}
	}

	chosen := pool[best]
	if !chosen.candidate.Enriched() {
		if chosen.enrichErr != nil {
			return Match{}, fmt.Errorf("%w: enrich %d: %w", ErrCollaborator, chosen.candidate.ID, chosen.enrichErr)
		}
		logger.Info("best candidate rejected",
			logging.Args(append(logging.DecisionAttrs("candidate_accept", "unresolved", "missing rating or votes"),
				logging.Int64("tmdb_id", chosen.candidate.ID),
				logging.String("title", chosen.candidate.Title))...)...)
		return Match{}, ErrUnrated
	}

	logger.Info("best candidate accepted",
		logging.Args(append(logging.DecisionAttrs("candidate_accept", "matched", string(d.policy)),
			logging.Int64("tmdb_id", chosen.candidate.ID),
			logging.String("title", chosen.candidate.Title),
			logging.Int("year", chosen.candidate.Year),
			logging.Int("edit_distance", chosen.distance),
			logging.Float64("rating", *chosen.candidate.Rating),
			logging.Int64("votes", *chosen.candidate.Votes))...)...)
	return Match{Candidate: chosen.candidate, Distance: chosen.distance, Secondary: chosen.secondary}, nil
}

// filter keeps released movies with a known year inside the drift window.
func (d *Disambiguator) filter(results []catalog.Candidate, expectedYear int) []catalog.Candidate {
	currentYear := d.now().Year()
	out := make([]catalog.Candidate, 0, len(results))
	for _, c := range results {
		if c.Kind != catalog.KindMovie || c.Year <= 0 || c.Year > currentYear {
			continue
		}
		if expectedYear > 0 && abs(c.Year-expectedYear) > d.maxYearDrift {
			continue
		}
		out = append(out, c)
	}
	return out
}

// enrich fetches details for eligible candidates missing rating data. A
// failed lookup leaves the candidate as it was.
func (d *Disambiguator) enrich(ctx context.Context, logger *slog.Logger, eligible []catalog.Candidate) []scored {
	pool := make([]scored, len(eligible))
	for i, c := range eligible {
		pool[i].candidate = c
		if c.Enriched() {
			continue
		}
		enriched, err := d.searcher.EnrichDetails(ctx, c)
		if err != nil {
			logging.WarnWithContext(logger, "candidate enrichment failed", "enrich_failed",
				logging.Int64("tmdb_id", c.ID),
				logging.String("title", c.Title),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check TMDB connectivity and API key"),
				logging.String(logging.FieldImpact, "candidate scored without rating data"))
			pool[i].enrichErr = err
			continue
		}
		pool[i].candidate = enriched
	}
	return pool
}

func (d *Disambiguator) secondaryKey(c catalog.Candidate, referenceYear int) int64 {
	if d.policy == PolicyYearDistance {
		return int64(abs(c.Year - referenceYear))
	}
	if c.Votes == nil {
		return 0
	}
	return -*c.Votes
}

func less(a, b scored) bool {
	if a.distance != b.distance {
		return a.distance < b.distance
	}
	return a.secondary < b.secondary
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
