package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"reelrank/internal/catalog/tmdb"
	"reelrank/internal/logging"
)

// TMDBClient defines the subset of TMDB client functionality used by the searcher.
type TMDBClient interface {
	SearchMulti(ctx context.Context, query string) (*tmdb.Response, error)
	GetMovieDetails(ctx context.Context, movieID int64) (*tmdb.Result, error)
}

// TMDBSearcher adapts the TMDB API to the Searcher contract. Responses are
// cached for the lifetime of the searcher, identical in-flight lookups are
// coalesced, and outgoing requests share one rate limiter.
type TMDBSearcher struct {
	client  TMDBClient
	limiter *rate.Limiter
	logger  *slog.Logger
	group   singleflight.Group

	mu       sync.Mutex
	searches map[string][]Candidate
	details  map[int64]Candidate
}

var _ Searcher = (*TMDBSearcher)(nil)

// NewTMDBSearcher wraps client. A non-positive requestsPerSecond disables rate limiting.
func NewTMDBSearcher(client TMDBClient, requestsPerSecond float64, logger *slog.Logger) *TMDBSearcher {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &TMDBSearcher{
		client:   client,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logging.NewComponentLogger(logger, "catalog"),
		searches: make(map[string][]Candidate),
		details:  make(map[int64]Candidate),
	}
}

// Search runs a TMDB multi search and converts the results to candidates.
func (s *TMDBSearcher) Search(ctx context.Context, title string) ([]Candidate, error) {
	if s == nil || s.client == nil {
		return nil, errors.New("tmdb client unavailable")
	}
	key := strings.ToLower(strings.TrimSpace(title))

	s.mu.Lock()
	if cached, ok := s.searches[key]; ok {
		s.mu.Unlock()
		return cloneCandidates(cached), nil
	}
	s.mu.Unlock()

	value, err, shared := s.group.Do("search|"+key, func() (any, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		resp, err := s.client.SearchMulti(ctx, title)
		if err != nil {
			return nil, err
		}
		candidates := make([]Candidate, 0, len(resp.Results))
		for _, result := range resp.Results {
			candidates = append(candidates, fromResult(result))
		}
		s.mu.Lock()
		s.searches[key] = candidates
		s.mu.Unlock()
		return candidates, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("tmdb search completed",
		logging.String(logging.FieldQuery, title),
		logging.Int("results", len(value.([]Candidate))),
		logging.Bool("shared", shared))
	return cloneCandidates(value.([]Candidate)), nil
}

// EnrichDetails fills rating and votes from the TMDB movie details endpoint.
func (s *TMDBSearcher) EnrichDetails(ctx context.Context, c Candidate) (Candidate, error) {
	if s == nil || s.client == nil {
		return c, errors.New("tmdb client unavailable")
	}
	if c.Enriched() {
		return c, nil
	}

	s.mu.Lock()
	if cached, ok := s.details[c.ID]; ok {
		s.mu.Unlock()
		return mergeDetails(c, cached), nil
	}
	s.mu.Unlock()

	value, err, _ := s.group.Do("details|"+strconv.FormatInt(c.ID, 10), func() (any, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		details, err := s.client.GetMovieDetails(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		enriched := fromResult(*details)
		s.mu.Lock()
		s.details[c.ID] = enriched
		s.mu.Unlock()
		return enriched, nil
	})
	if err != nil {
		return c, err
	}
	return mergeDetails(c, value.(Candidate)), nil
}

// fromResult maps a TMDB result to a candidate. TMDB reports unrated titles
// with zero votes, which is treated as missing rating data.
func fromResult(result tmdb.Result) Candidate {
	c := Candidate{
		ID:    result.ID,
		Title: strings.TrimSpace(result.DisplayTitle()),
		Year:  result.Year(),
		Kind:  strings.ToLower(strings.TrimSpace(result.MediaType)),
	}
	if result.VoteCount > 0 {
		c.Rating = Float64(result.VoteAverage)
		c.Votes = Int64(result.VoteCount)
	}
	return c
}

func mergeDetails(c, details Candidate) Candidate {
	if c.Rating == nil && details.Rating != nil {
		c.Rating = Float64(*details.Rating)
	}
	if c.Votes == nil && details.Votes != nil {
		c.Votes = Int64(*details.Votes)
	}
	if c.Year == 0 {
		c.Year = details.Year
	}
	return c
}

func cloneCandidates(in []Candidate) []Candidate {
	out := make([]Candidate, len(in))
	copy(out, in)
	return out
}
