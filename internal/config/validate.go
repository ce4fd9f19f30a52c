package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTMDB(); err != nil {
		return err
	}
	if err := c.validateFeed(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if c.Reconcile.Workers < 1 {
		return errors.New("reconcile.workers must be at least 1")
	}
	switch c.Output.Format {
	case OutputTable, OutputJSON:
	default:
		return fmt.Errorf("output.format must be %q or %q, got %q", OutputTable, OutputJSON, c.Output.Format)
	}
	if c.Notifications.NtfyTopic != "" {
		if _, err := url.ParseRequestURI(c.Notifications.NtfyTopic); err != nil {
			return fmt.Errorf("notifications.ntfy_topic must be a full topic URL: %w", err)
		}
	}
	return nil
}

// RequireTMDBKey reports a descriptive error when no catalog credentials are
// configured. Commands that never touch the catalog skip this check.
func (c *Config) RequireTMDBKey() error {
	if c.TMDB.APIKey != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return fmt.Errorf("tmdb.api_key is required. Set TMDB_API_KEY env var or edit %s (create with 'reelrank config init')", defaultPath)
}

func (c *Config) validateTMDB() error {
	if _, err := url.ParseRequestURI(c.TMDB.BaseURL); err != nil {
		return fmt.Errorf("tmdb.base_url: %w", err)
	}
	if c.TMDB.RequestsPerSecond <= 0 {
		return errors.New("tmdb.requests_per_second must be positive")
	}
	return nil
}

func (c *Config) validateFeed() error {
	if _, err := url.ParseRequestURI(c.Feed.BaseURL); err != nil {
		return fmt.Errorf("feed.base_url: %w", err)
	}
	if c.Feed.DaysAhead <= 0 {
		return errors.New("feed.days_ahead must be positive")
	}
	return nil
}

func (c *Config) validateMatching() error {
	switch c.Matching.SecondaryKey {
	case SecondaryKeyVotes, SecondaryKeyYearDistance:
	default:
		return fmt.Errorf("matching.secondary_key must be %q or %q, got %q",
			SecondaryKeyVotes, SecondaryKeyYearDistance, c.Matching.SecondaryKey)
	}
	if c.Matching.MaxYearDrift < 0 {
		return errors.New("matching.max_year_drift must not be negative")
	}
	return nil
}
