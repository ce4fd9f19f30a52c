package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reelrank/internal/cinema"
	"reelrank/internal/config"
	"reelrank/internal/export"
	"reelrank/internal/logging"
	"reelrank/internal/metrics"
	"reelrank/internal/notifications"
	"reelrank/internal/reconcile"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOutput  bool
		exportPath  string
		workers     int
		policy      string
		metricsFile string
	)

	cmd := &cobra.Command{
		Use:   "run [cinema]",
		Short: "Match the cinema's current listing against TMDB and rank it",
		Long: `Fetch the cinema's showing posters, match each one to a TMDB movie, collect
the screening dates, and print the movies ranked by rating.

Examples:
  reelrank run                       # Use the configured cinema
  reelrank run Haifa                 # Pick a branch by name
  reelrank run 1073 --json           # Pick a branch by code, emit JSON
  reelrank run --export runs.db      # Append the run to a SQLite file`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if err := applyRunFlags(cmd, cfg, jsonOutput, exportPath, workers, policy, metricsFile); err != nil {
				return err
			}

			branchName := cfg.Feed.Cinema
			if len(args) > 0 {
				branchName = args[0]
			}
			branch, err := cinema.LookupBranch(branchName)
			if err != nil {
				return err
			}

			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}
			resolver, err := newResolver(cfg, cfg.Matching.SecondaryKey, logger)
			if err != nil {
				return err
			}
			feed, err := newFeedClient(cfg, logger)
			if err != nil {
				return err
			}

			notifier := notifications.NewService(cfg)
			recorder := metrics.New()
			pipeline := reconcile.New(feed, resolver, reconcile.Options{
				CinemaCode:      branch.Code,
				DaysAhead:       cfg.Feed.DaysAhead,
				ExcludedFormats: cfg.Feed.ExcludedFormats,
				Workers:         cfg.Reconcile.Workers,
				UseListingYear:  cfg.Matching.UseListingYear,
				Logger:          logger,
				Metrics:         recorder,
			})
			result, err := pipeline.Run(cmd.Context())
			if err != nil {
				runErr := fmt.Errorf("reconcile %s: %w", branch.Name, err)
				if cmd.Context().Err() == nil {
					warnNotifyFailed(logger, notifier.NotifyRunFailed(cmd.Context(), branch.Name, runErr))
				}
				return runErr
			}
			report := export.NewReport(result)

			if cfg.Output.ExportPath != "" {
				if err := export.WriteSQLite(cmd.Context(), cfg.Output.ExportPath, report); err != nil {
					return fmt.Errorf("export run: %w", err)
				}
				logger.Info("run exported", logging.String("path", cfg.Output.ExportPath))
			}
			if cfg.Output.MetricsFile != "" {
				if err := recorder.WriteTextfile(cfg.Output.MetricsFile); err != nil {
					logging.WarnWithContext(logger, "metrics textfile not written", "metrics_write_failed",
						logging.Error(err),
						logging.String("path", cfg.Output.MetricsFile),
						logging.String(logging.FieldImpact, "run metrics unavailable to node_exporter"))
				}
			}

			warnNotifyFailed(logger, notifier.NotifyRunCompleted(cmd.Context(), runSummary(branch, report)))

			out := cmd.OutOrStdout()
			if cfg.Output.Format == config.OutputJSON {
				return export.WriteJSON(out, report)
			}
			renderRunReport(out, branch, report, shouldColorize(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the report as JSON")
	cmd.Flags().StringVar(&exportPath, "export", "", "Append the run to a SQLite file")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent TMDB lookups (overrides reconcile.workers)")
	cmd.Flags().StringVar(&policy, "policy", "", "Tie-break policy: votes or year_distance")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus textfile metrics to this path")
	return cmd
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config, jsonOutput bool, exportPath string, workers int, policy, metricsFile string) error {
	if jsonOutput {
		cfg.Output.Format = config.OutputJSON
	}
	if cmd.Flags().Changed("export") {
		expanded, err := config.ExpandPath(strings.TrimSpace(exportPath))
		if err != nil {
			return fmt.Errorf("resolve export path: %w", err)
		}
		cfg.Output.ExportPath = expanded
	}
	if cmd.Flags().Changed("workers") {
		if workers < 1 {
			return fmt.Errorf("--workers must be at least 1, got %d", workers)
		}
		cfg.Reconcile.Workers = workers
	}
	if cmd.Flags().Changed("policy") {
		cfg.Matching.SecondaryKey = policy
	}
	if cmd.Flags().Changed("metrics-file") {
		expanded, err := config.ExpandPath(strings.TrimSpace(metricsFile))
		if err != nil {
			return fmt.Errorf("resolve metrics path: %w", err)
		}
		cfg.Output.MetricsFile = expanded
	}
	return nil
}

func renderRunReport(out io.Writer, branch cinema.Branch, report export.Report, colorize bool) {
	for _, line := range renderSectionHeader(fmt.Sprintf("%s (%d)", branch.Name, branch.Code), colorize) {
		fmt.Fprintln(out, line)
	}
	if len(report.Movies) == 0 {
		fmt.Fprintln(out, "No movies matched")
	} else {
		rows := make([][]string, 0, len(report.Movies))
		for _, m := range report.Movies {
			next := ""
			if len(m.Screenings) > 0 {
				next = m.Screenings[0]
			}
			rows = append(rows, []string{
				strconv.Itoa(m.Rank),
				displayTitle(m),
				yearLabel(m.Year),
				strconv.FormatFloat(m.Rating, 'f', 1, 64),
				strconv.FormatInt(m.Votes, 10),
				strings.Join(m.Genres, ", "),
				strconv.Itoa(len(m.Screenings)),
				next,
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"#", "Title", "Year", "Rating", "Votes", "Genres", "Shows", "Next"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignRight, alignLeft},
		))
	}

	if len(report.Unresolved) > 0 {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Unresolved", colorize) {
			fmt.Fprintln(out, line)
		}
		for _, u := range report.Unresolved {
			fmt.Fprintf(out, "  %s (%s)\n", u.Title, u.Reason)
		}
	}
	fmt.Fprintf(out, "\n%d matched, %d unresolved, %d rejected, %d screenings (%d premium skipped)\n",
		len(report.Movies), len(report.Unresolved), len(report.Rejections), report.Events.Kept, report.Events.Excluded)
}

func runSummary(branch cinema.Branch, report export.Report) notifications.RunSummary {
	top := make([]string, 0, len(report.Movies))
	for _, m := range report.Movies {
		top = append(top, fmt.Sprintf("%s (%.1f)", m.Title, m.Rating))
	}
	return notifications.RunSummary{
		Cinema:     branch.Name,
		Matched:    len(report.Movies),
		Unresolved: len(report.Unresolved),
		Rejected:   len(report.Rejections),
		TopTitles:  top,
		Duration:   report.FinishedAt.Sub(report.StartedAt),
	}
}

func warnNotifyFailed(logger *slog.Logger, err error) {
	if err == nil {
		return
	}
	logging.WarnWithContext(logger, "ntfy notification failed", "notification_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		logging.String(logging.FieldImpact, "run summary not delivered"))
}

func displayTitle(m export.Movie) string {
	if m.FeatureTitle != "" && m.FeatureTitle != m.Title {
		return fmt.Sprintf("%s [%s]", m.Title, m.FeatureTitle)
	}
	return m.Title
}

func yearLabel(year int) string {
	if year <= 0 {
		return "-"
	}
	return strconv.Itoa(year)
}
