package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTMDB()
	c.normalizeFeed()
	c.normalizeMatching()
	if c.Reconcile.Workers <= 0 {
		c.Reconcile.Workers = defaultReconcileWorkers
	}
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
	return c.normalizeOutput()
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	var err error
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeTMDB() {
	if c.TMDB.APIKey == "" {
		if value, ok := os.LookupEnv("TMDB_API_KEY"); ok {
			c.TMDB.APIKey = value
		}
	}
	c.TMDB.APIKey = strings.TrimSpace(c.TMDB.APIKey)
	c.TMDB.BaseURL = strings.TrimRight(strings.TrimSpace(c.TMDB.BaseURL), "/")
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	c.TMDB.Language = strings.TrimSpace(c.TMDB.Language)
	if c.TMDB.RequestsPerSecond <= 0 {
		c.TMDB.RequestsPerSecond = defaultTMDBRequestsPerS
	}
	if c.TMDB.TimeoutSeconds <= 0 {
		c.TMDB.TimeoutSeconds = defaultTMDBTimeout
	}
}

func (c *Config) normalizeFeed() {
	c.Feed.BaseURL = strings.TrimRight(strings.TrimSpace(c.Feed.BaseURL), "/")
	if c.Feed.BaseURL == "" {
		c.Feed.BaseURL = defaultFeedBaseURL
	}
	c.Feed.Tenant = strings.TrimSpace(c.Feed.Tenant)
	if c.Feed.Tenant == "" {
		c.Feed.Tenant = defaultFeedTenant
	}
	c.Feed.Language = strings.TrimSpace(c.Feed.Language)
	if c.Feed.Language == "" {
		c.Feed.Language = defaultFeedLanguage
	}
	c.Feed.Cinema = strings.TrimSpace(c.Feed.Cinema)
	if c.Feed.Cinema == "" {
		c.Feed.Cinema = defaultFeedCinema
	}
	if c.Feed.DaysAhead <= 0 {
		c.Feed.DaysAhead = defaultFeedDaysAhead
	}
	if c.Feed.TimeoutSeconds <= 0 {
		c.Feed.TimeoutSeconds = defaultFeedTimeout
	}
	formats := make([]string, 0, len(c.Feed.ExcludedFormats))
	seen := make(map[string]struct{}, len(c.Feed.ExcludedFormats))
	for _, format := range c.Feed.ExcludedFormats {
		normalized := strings.ToLower(strings.TrimSpace(format))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		formats = append(formats, normalized)
	}
	c.Feed.ExcludedFormats = formats
}

func (c *Config) normalizeMatching() {
	key := strings.ToLower(strings.TrimSpace(c.Matching.SecondaryKey))
	key = strings.ReplaceAll(key, "-", "_")
	if key == "" {
		key = defaultSecondaryKey
	}
	c.Matching.SecondaryKey = key
	if c.Matching.MaxYearDrift <= 0 {
		c.Matching.MaxYearDrift = defaultMaxYearDrift
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeOutput() error {
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
	if c.Output.Format == "" {
		c.Output.Format = defaultOutputFormat
	}
	var err error
	if c.Output.ExportPath, err = expandPath(strings.TrimSpace(c.Output.ExportPath)); err != nil {
		return fmt.Errorf("output.export_path: %w", err)
	}
	if c.Output.MetricsFile, err = expandPath(strings.TrimSpace(c.Output.MetricsFile)); err != nil {
		return fmt.Errorf("output.metrics_file: %w", err)
	}
	return nil
}
