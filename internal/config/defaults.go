package config

const (
	defaultConfigPath        = "~/.config/reelrank/config.toml"
	defaultLogDir            = "~/.local/share/reelrank/logs"
	defaultTMDBBaseURL       = "https://api.themoviedb.org/3"
	defaultTMDBLanguage      = "en-US"
	defaultTMDBRequestsPerS  = 4.0
	defaultTMDBTimeout       = 10
	defaultFeedBaseURL       = "https://www.planetcinema.co.il/il/data-api-service/v1"
	defaultFeedTenant        = "10100"
	defaultFeedLanguage      = "he_IL"
	defaultFeedCinema        = "Rishon LeZion"
	defaultFeedDaysAhead     = 365
	defaultFeedTimeout       = 30
	defaultSecondaryKey      = SecondaryKeyVotes
	defaultMaxYearDrift      = 5
	defaultReconcileWorkers  = 1
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultOutputFormat      = OutputTable
	defaultNtfyTimeout       = 10
	SecondaryKeyVotes        = "votes"
	SecondaryKeyYearDistance = "year_distance"
	OutputTable              = "table"
	OutputJSON               = "json"
)

// DefaultExcludedFormats lists the premium showing formats whose events are
// left out of date aggregation.
func DefaultExcludedFormats() []string {
	return []string{"3d", "4dx", "hfr-3d", "imax", "screenx", "vip"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir: defaultLogDir,
		},
		TMDB: TMDB{
			BaseURL:           defaultTMDBBaseURL,
			Language:          defaultTMDBLanguage,
			RequestsPerSecond: defaultTMDBRequestsPerS,
			TimeoutSeconds:    defaultTMDBTimeout,
		},
		Feed: Feed{
			BaseURL:         defaultFeedBaseURL,
			Tenant:          defaultFeedTenant,
			Language:        defaultFeedLanguage,
			Cinema:          defaultFeedCinema,
			DaysAhead:       defaultFeedDaysAhead,
			TimeoutSeconds:  defaultFeedTimeout,
			ExcludedFormats: DefaultExcludedFormats(),
		},
		Matching: Matching{
			SecondaryKey: defaultSecondaryKey,
			MaxYearDrift: defaultMaxYearDrift,
		},
		Reconcile: Reconcile{
			Workers: defaultReconcileWorkers,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Output: Output{
			Format: defaultOutputFormat,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
	}
}
