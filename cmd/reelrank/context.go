package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"reelrank/internal/catalog"
	"reelrank/internal/catalog/tmdb"
	"reelrank/internal/cinema"
	"reelrank/internal/config"
	"reelrank/internal/disambiguation"
	"reelrank/internal/logging"
)

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.verbose != nil && *c.verbose {
			cfg.Logging.Level = "debug"
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	return logger, nil
}

// newResolver builds the TMDB-backed disambiguator for policy.
func newResolver(cfg *config.Config, policy string, logger *slog.Logger) (*disambiguation.Disambiguator, error) {
	if err := cfg.RequireTMDBKey(); err != nil {
		return nil, err
	}
	parsed, err := disambiguation.ParsePolicy(policy)
	if err != nil {
		return nil, err
	}
	client, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language,
		tmdb.WithHTTPClient(&http.Client{Timeout: cfg.TMDBTimeout()}))
	if err != nil {
		logging.WarnWithContext(logger, "tmdb client initialization failed", "tmdb_client_init_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "verify tmdb.api_key in config"),
			logging.String(logging.FieldImpact, "no listing can be matched"))
		return nil, fmt.Errorf("create TMDB client: %w", err)
	}
	searcher := catalog.NewTMDBSearcher(client, cfg.TMDB.RequestsPerSecond, logger)
	return disambiguation.New(searcher, disambiguation.Options{
		Policy:       parsed,
		MaxYearDrift: cfg.Matching.MaxYearDrift,
		Logger:       logger,
	}), nil
}

func newFeedClient(cfg *config.Config, logger *slog.Logger) (*cinema.Client, error) {
	client, err := cinema.New(cfg.Feed.BaseURL, cfg.Feed.Tenant, cfg.Feed.Language,
		cinema.WithHTTPClient(&http.Client{Timeout: cfg.FeedTimeout()}),
		cinema.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("create cinema feed client: %w", err)
	}
	return client, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
