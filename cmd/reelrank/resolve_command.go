package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reelrank/internal/disambiguation"
	"reelrank/internal/listing"
)

type resolveOutput struct {
	Query     string  `json:"query"`
	TMDBID    int64   `json:"tmdb_id"`
	Title     string  `json:"title"`
	Year      int     `json:"year"`
	Rating    float64 `json:"rating"`
	Votes     int64   `json:"votes"`
	URL       string  `json:"url"`
	Distance  int     `json:"edit_distance"`
	Policy    string  `json:"policy"`
	Secondary int64   `json:"secondary_key"`
}

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var (
		year       int
		policy     string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "resolve <title or slug>",
		Short: "Show which TMDB movie a listing title resolves to",
		Long: `Run the matcher for a single title without touching the cinema feed. The
argument may be a plain title, a slug such as dune-part-two-green, or a full
listing URL.

Examples:
  reelrank resolve "dune part two"
  reelrank resolve films/alpha-green --year 2020 --policy year_distance`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			query, err := listing.Normalize(strings.Join(args, " "))
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("policy") {
				policy = cfg.Matching.SecondaryKey
			}

			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}
			resolver, err := newResolver(cfg, policy, logger)
			if err != nil {
				return err
			}

			match, err := resolver.Resolve(cmd.Context(), query, year)
			if err != nil {
				return describeResolveError(query, err)
			}

			result := resolveOutput{
				Query:     query,
				TMDBID:    match.Candidate.ID,
				Title:     match.Candidate.Title,
				Year:      match.Candidate.Year,
				Rating:    *match.Candidate.Rating,
				Votes:     *match.Candidate.Votes,
				URL:       match.Candidate.URL(),
				Distance:  match.Distance,
				Policy:    string(resolver.Policy()),
				Secondary: match.Secondary,
			}
			if jsonOutput {
				return writeJSON(cmd, result)
			}
			rows := [][]string{
				{"Query", result.Query},
				{"Title", result.Title},
				{"Year", yearLabel(result.Year)},
				{"Rating", strconv.FormatFloat(result.Rating, 'f', 1, 64)},
				{"Votes", strconv.FormatInt(result.Votes, 10)},
				{"TMDB", result.URL},
				{"Edit distance", strconv.Itoa(result.Distance)},
				{"Policy", result.Policy},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Expected release year")
	cmd.Flags().StringVar(&policy, "policy", "", "Tie-break policy: votes or year_distance")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the match as JSON")
	return cmd
}

func describeResolveError(query string, err error) error {
	switch {
	case errors.Is(err, disambiguation.ErrNoCandidates):
		return fmt.Errorf("no released movie on TMDB matches %q", query)
	case errors.Is(err, disambiguation.ErrUnrated):
		return fmt.Errorf("best TMDB match for %q has no rating yet", query)
	default:
		return fmt.Errorf("resolve %q: %w", query, err)
	}
}
