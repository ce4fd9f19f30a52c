package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"reelrank/internal/disambiguation"
	"reelrank/internal/listing"
	"reelrank/internal/logging"
	"reelrank/internal/metrics"
	"reelrank/internal/ranking"
	"reelrank/internal/registry"
)

// Feed supplies listings, the genre vocabulary, and screening events.
type Feed interface {
	Listings(ctx context.Context) ([]listing.Listing, error)
	Genres(ctx context.Context) ([]string, error)
	Dates(ctx context.Context, cinemaCode int, until time.Time) ([]string, error)
	Events(ctx context.Context, cinemaCode int, day string) ([]registry.Event, error)
}

// Resolver picks a catalog match for a normalized title.
type Resolver interface {
	Resolve(ctx context.Context, query string, expectedYear int) (disambiguation.Match, error)
}

// Options configures a Pipeline.
type Options struct {
	CinemaCode      int
	DaysAhead       int
	ExcludedFormats []string
	Workers         int
	UseListingYear  bool
	Now             func() time.Time
	Logger          *slog.Logger
	Metrics         *metrics.Recorder
}

// Result is the outcome of one run.
type Result struct {
	RunID      string
	CinemaCode int
	StartedAt  time.Time
	FinishedAt time.Time
	Records    []registry.MovieRecord
	Unresolved []registry.UnresolvedQuery
	Rejections []registry.Rejection
	Events     registry.IngestStats
}

// Pipeline reconciles a cinema feed against the catalog.
type Pipeline struct {
	feed     Feed
	resolver Resolver
	opts     Options
	logger   *slog.Logger
}

// New constructs a Pipeline.
func New(feed Feed, resolver Resolver, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.DaysAhead <= 0 {
		opts.DaysAhead = 365
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{
		feed:     feed,
		resolver: resolver,
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "reconcile"),
	}
}

type job struct {
	listing listing.Listing
	title   string
}

type outcome struct {
	match disambiguation.Match
	err   error
}

// Run executes one reconcile pass. Only failures to read the listing or
// genre documents, or a cancelled context, abort the run.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	result := &Result{
		RunID:      uuid.NewString(),
		CinemaCode: p.opts.CinemaCode,
		StartedAt:  p.opts.Now(),
	}
	logger := p.logger.With(logging.String(logging.FieldRunID, result.RunID))
	logger.Info("reconcile run started",
		logging.Int("cinema_code", p.opts.CinemaCode),
		logging.Int("workers", p.opts.Workers),
		logging.Bool("use_listing_year", p.opts.UseListingYear))

	genres, err := p.feed.Genres(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch genre vocabulary: %w", err)
	}
	listings, err := p.feed.Listings(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch listings: %w", err)
	}
	reg := registry.New(genres, logger)

	jobs := p.normalize(logger, reg, listings)
	if err := p.register(ctx, logger, reg, jobs); err != nil {
		return nil, err
	}
	stats, err := p.aggregate(ctx, logger, reg, result.StartedAt)
	if err != nil {
		return nil, err
	}

	result.Records = ranking.Sort(reg.Records())
	result.Unresolved = reg.Unresolved()
	result.Rejections = reg.Rejections()
	result.Events = stats
	result.FinishedAt = p.opts.Now()
	p.opts.Metrics.SetRecords(reg.Len())

	logger.Info("reconcile run completed",
		logging.Int("listings", len(listings)),
		logging.Int("movies", len(result.Records)),
		logging.Int("unresolved", len(result.Unresolved)),
		logging.Int("rejected", len(result.Rejections)),
		logging.Int("screenings_kept", stats.Kept),
		logging.Int("screenings_excluded", stats.Excluded),
		logging.Duration("duration", result.FinishedAt.Sub(result.StartedAt)))
	return result, nil
}

// normalize turns listings into jobs, recording malformed slugs as unresolved.
func (p *Pipeline) normalize(logger *slog.Logger, reg *registry.Registry, listings []listing.Listing) []job {
	jobs := make([]job, 0, len(listings))
	for _, l := range listings {
		title, err := listing.Normalize(l.URL)
		if err != nil {
			logging.WarnWithContext(logger, "listing skipped", "listing_malformed",
				logging.String(logging.FieldListingCode, l.Code),
				logging.String("url", l.URL),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "feed url no longer carries a films/<slug> segment"),
				logging.String(logging.FieldImpact, "listing left out of the report"))
			reg.MarkUnresolved(l.URL, registry.ReasonMalformed)
			p.opts.Metrics.ListingUnresolved(string(registry.ReasonMalformed))
			continue
		}
		jobs = append(jobs, job{listing: l, title: title})
	}
	return jobs
}

// register resolves every job and stores the matches in listing order, so the
// first listing for a title wins regardless of resolve concurrency.
func (p *Pipeline) register(ctx context.Context, logger *slog.Logger, reg *registry.Registry, jobs []job) error {
	outcomes := make(map[string]outcome, len(jobs))
	if p.opts.Workers > 1 {
		resolved, err := p.resolveParallel(ctx, jobs)
		if err != nil {
			return err
		}
		outcomes = resolved
	}

	unresolved := make(map[string]struct{})
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		jobLogger := logger.With(
			logging.String(logging.FieldListingCode, j.listing.Code),
			logging.String(logging.FieldQuery, j.title))
		if _, done := unresolved[j.title]; done || reg.Contains(j.title) {
			jobLogger.Debug("title already handled", logging.Args(logging.DecisionAttrs("listing_dedup", "skipped", "title seen earlier in listing order")...)...)
			p.opts.Metrics.ListingSkipped()
			continue
		}

		out, ok := outcomes[j.title]
		if !ok {
			out = p.resolve(ctx, j)
			outcomes[j.title] = out
		}
		if out.err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			reason := unresolvedReason(out.err)
			jobLogger.Info("listing unresolved",
				logging.Args(append(logging.DecisionAttrs("listing_resolve", "unresolved", string(reason)),
					logging.Error(out.err))...)...)
			reg.MarkUnresolved(j.title, reason)
			unresolved[j.title] = struct{}{}
			p.opts.Metrics.ListingUnresolved(string(reason))
			continue
		}

		err := reg.Register(registry.Registration{
			Code:         j.listing.Code,
			Title:        j.title,
			FeatureTitle: j.listing.FeatureTitle,
			Attributes:   j.listing.Attributes,
			Match:        out.match.Candidate,
		})
		var rejected *registry.RejectedError
		switch {
		case errors.As(err, &rejected):
			jobLogger.Info("listing rejected",
				logging.Args(logging.DecisionAttrs("listing_register", "rejected", string(rejected.Reason))...)...)
			p.opts.Metrics.ListingRejected(string(rejected.Reason))
		case err != nil:
			return fmt.Errorf("register listing %s: %w", j.listing.Code, err)
		default:
			jobLogger.Info("listing registered",
				logging.String("title", out.match.Candidate.Title),
				logging.Int("year", out.match.Candidate.Year),
				logging.Int64("tmdb_id", out.match.Candidate.ID))
			p.opts.Metrics.ListingResolved()
		}
	}
	return nil
}

// resolveParallel resolves each distinct title once with bounded concurrency.
func (p *Pipeline) resolveParallel(ctx context.Context, jobs []job) (map[string]outcome, error) {
	var unique []job
	seen := make(map[string]struct{}, len(jobs))
	for _, j := range jobs {
		if _, ok := seen[j.title]; ok {
			continue
		}
		seen[j.title] = struct{}{}
		unique = append(unique, j)
	}

	results := make([]outcome, len(unique))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.opts.Workers)
	for i, j := range unique {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			results[i] = p.resolve(groupCtx, j)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]outcome, len(unique))
	for i, j := range unique {
		out[j.title] = results[i]
	}
	return out, nil
}

func (p *Pipeline) resolve(ctx context.Context, j job) outcome {
	expectedYear := 0
	if p.opts.UseListingYear {
		expectedYear = j.listing.ExpectedYear()
	}
	start := time.Now()
	match, err := p.resolver.Resolve(ctx, j.title, expectedYear)
	p.opts.Metrics.ObserveResolve(time.Since(start))
	return outcome{match: match, err: err}
}

func unresolvedReason(err error) registry.Reason {
	switch {
	case errors.Is(err, disambiguation.ErrNoCandidates):
		return registry.ReasonNoCandidates
	case errors.Is(err, disambiguation.ErrUnrated):
		return registry.ReasonUnrated
	default:
		return registry.ReasonCollaborator
	}
}

// aggregate folds screening events into the registry. Days are fetched with
// bounded concurrency and ingested in feed order. A failing day is skipped.
func (p *Pipeline) aggregate(ctx context.Context, logger *slog.Logger, reg *registry.Registry, now time.Time) (registry.IngestStats, error) {
	var total registry.IngestStats
	until := now.AddDate(0, 0, p.opts.DaysAhead)
	days, err := p.feed.Dates(ctx, p.opts.CinemaCode, until)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return total, ctxErr
		}
		logging.WarnWithContext(logger, "screening dates unavailable", "dates_fetch_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check cinema feed availability"),
			logging.String(logging.FieldImpact, "movies listed without screening dates"))
		return total, nil
	}

	batches := make([][]registry.Event, len(days))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.opts.Workers)
	for i, day := range days {
		group.Go(func() error {
			events, err := p.feed.Events(groupCtx, p.opts.CinemaCode, day)
			if err != nil {
				if ctxErr := groupCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				logging.WarnWithContext(logger, "screening events unavailable", "events_fetch_failed",
					logging.String("day", day),
					logging.Error(err),
					logging.String(logging.FieldImpact, "screenings for this day omitted"))
				return nil
			}
			batches[i] = events
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return total, err
	}

	agg := registry.NewAggregator(reg, p.opts.ExcludedFormats)
	for i, batch := range batches {
		stats := agg.Ingest(batch)
		total.Add(stats)
		p.opts.Metrics.EventsIngested(stats.Kept, stats.Excluded, stats.Unknown)
		logger.Debug("screening day ingested",
			logging.String("day", days[i]),
			logging.Int("kept", stats.Kept),
			logging.Int("excluded", stats.Excluded),
			logging.Int("unknown_film", stats.Unknown))
	}
	return total, nil
}
