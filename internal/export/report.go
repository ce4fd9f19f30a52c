package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"reelrank/internal/ranking"
	"reelrank/internal/reconcile"
)

// ScreeningLayout is how screening timestamps appear in reports.
const ScreeningLayout = "2006-01-02T15:04"

// Movie is the report view of a MovieRecord.
type Movie struct {
	Rank         int      `json:"rank"`
	Code         string   `json:"code"`
	Query        string   `json:"query"`
	Title        string   `json:"title"`
	FeatureTitle string   `json:"feature_title,omitempty"`
	Year         int      `json:"year"`
	Genres       []string `json:"genres"`
	Rating       float64  `json:"rating"`
	Votes        int64    `json:"votes"`
	TMDBID       int64    `json:"tmdb_id"`
	URL          string   `json:"url"`
	Screenings   []string `json:"screenings"`
}

// Unresolved is a listing title that could not be matched.
type Unresolved struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// Rejection is a matched listing the registry refused.
type Rejection struct {
	Code   string `json:"code"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// EventSummary counts screening events by outcome.
type EventSummary struct {
	Kept     int `json:"kept"`
	Excluded int `json:"excluded"`
	Unknown  int `json:"unknown_film"`
}

// Report is the serializable outcome of a run.
type Report struct {
	RunID      string       `json:"run_id"`
	CinemaCode int          `json:"cinema_code"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Movies     []Movie      `json:"movies"`
	Unresolved []Unresolved `json:"unresolved"`
	Rejections []Rejection  `json:"rejections"`
	Events     EventSummary `json:"events"`
}

// NewReport converts a pipeline result. Movies keep the result's order;
// records with an equal score share a rank.
func NewReport(result *reconcile.Result) Report {
	report := Report{
		Movies:     make([]Movie, 0),
		Unresolved: make([]Unresolved, 0),
		Rejections: make([]Rejection, 0),
	}
	if result == nil {
		return report
	}
	report.RunID = result.RunID
	report.CinemaCode = result.CinemaCode
	report.StartedAt = result.StartedAt
	report.FinishedAt = result.FinishedAt
	report.Events = EventSummary{Kept: result.Events.Kept, Excluded: result.Events.Excluded, Unknown: result.Events.Unknown}

	rank := 0
	for i, r := range result.Records {
		if i == 0 || !ranking.Equal(result.Records[i-1], r) {
			rank = i + 1
		}
		screenings := make([]string, 0, len(r.Dates))
		for _, ts := range r.Dates {
			screenings = append(screenings, ts.Format(ScreeningLayout))
		}
		genres := r.Genres
		if genres == nil {
			genres = []string{}
		}
		report.Movies = append(report.Movies, Movie{
			Rank:         rank,
			Code:         r.Code,
			Query:        r.Query,
			Title:        r.Title,
			FeatureTitle: r.FeatureTitle,
			Year:         r.Year,
			Genres:       genres,
			Rating:       r.Rating,
			Votes:        r.Votes,
			TMDBID:       r.ExternalID,
			URL:          r.URL,
			Screenings:   screenings,
		})
	}
	for _, u := range result.Unresolved {
		report.Unresolved = append(report.Unresolved, Unresolved{Title: u.Title, Reason: string(u.Reason)})
	}
	for _, r := range result.Rejections {
		report.Rejections = append(report.Rejections, Rejection{Code: r.Code, Title: r.Title, Reason: string(r.Reason)})
	}
	return report
}

// WriteJSON encodes the report as indented JSON.
func WriteJSON(w io.Writer, report Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
