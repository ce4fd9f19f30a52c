package registry

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"reelrank/internal/catalog"
	"reelrank/internal/logging"
)

// Reason tags why a listing produced no MovieRecord.
type Reason string

const (
	ReasonDuplicateTitle Reason = "duplicate_title"
	ReasonDuplicateCode  Reason = "duplicate_code"
	ReasonNoGenres       Reason = "no_genres"
	ReasonInvalidScore   Reason = "invalid_score"
	ReasonMalformed      Reason = "malformed"
	ReasonNoCandidates   Reason = "no_candidates"
	ReasonUnrated        Reason = "unrated"
	ReasonCollaborator   Reason = "collaborator_error"
)

// MovieRecord is a resolved listing. Values handed out by the registry are
// copies; screenings are appended only through AddScreening.
type MovieRecord struct {
	Code         string
	Query        string
	Title        string
	FeatureTitle string
	Year         int
	Genres       []string
	Rating       float64
	Votes        int64
	ExternalID   int64
	URL          string
	Dates        []time.Time
}

func (r MovieRecord) clone() MovieRecord {
	r.Genres = slices.Clone(r.Genres)
	r.Dates = slices.Clone(r.Dates)
	return r
}

// Registration carries everything needed to store a resolved listing.
type Registration struct {
	Code         string
	Title        string
	FeatureTitle string
	Attributes   []string
	Match        catalog.Candidate
}

// RejectedError reports a registration that was refused without storing a record.
type RejectedError struct {
	Code   string
	Title  string
	Reason Reason
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("listing %s (%q) rejected: %s", e.Code, e.Title, e.Reason)
}

// Rejection records a refused registration for diagnostics.
type Rejection struct {
	Code   string
	Title  string
	Reason Reason
}

// UnresolvedQuery is a listing title that could not be matched.
type UnresolvedQuery struct {
	Title  string
	Reason Reason
}

// Registry owns the listing code to MovieRecord mapping for one run.
// All methods are safe for concurrent use.
type Registry struct {
	logger *slog.Logger
	genres map[string]string

	mu         sync.Mutex
	records    map[string]*MovieRecord
	order      []string
	titles     map[string]string
	unresolved []UnresolvedQuery
	rejections []Rejection
}

// New creates an empty registry for the given genre vocabulary.
func New(vocabulary []string, logger *slog.Logger) *Registry {
	genres := make(map[string]string, len(vocabulary))
	for _, genre := range vocabulary {
		trimmed := strings.TrimSpace(genre)
		if trimmed == "" {
			continue
		}
		genres[strings.ToLower(trimmed)] = trimmed
	}
	return &Registry{
		logger:  logging.NewComponentLogger(logger, "registry"),
		genres:  genres,
		records: make(map[string]*MovieRecord),
		titles:  make(map[string]string),
	}
}

// Register stores a MovieRecord for reg. It returns a *RejectedError when the
// code or the title is already registered, when the match carries a rating
// outside 0-10 or negative votes, or when none of the listing's attributes
// belong to the genre vocabulary. A rejected registration stores nothing.
func (r *Registry) Register(reg Registration) error {
	title := strings.TrimSpace(reg.Title)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, exists := r.records[reg.Code]; exists {
		r.logger.Debug("listing code already registered",
			logging.String(logging.FieldListingCode, reg.Code),
			logging.String("title", title),
			logging.String("registered_title", existing.Query))
		return r.rejectLocked(reg.Code, title, ReasonDuplicateCode)
	}
	if owner, exists := r.titles[title]; exists {
		r.logger.Debug("duplicate title skipped",
			logging.String(logging.FieldListingCode, reg.Code),
			logging.String("title", title),
			logging.String("registered_code", owner))
		return r.rejectLocked(reg.Code, title, ReasonDuplicateTitle)
	}
	if !validScore(reg.Match) {
		logging.WarnWithContext(r.logger, "match score out of range", "invalid_match_score",
			logging.String(logging.FieldListingCode, reg.Code),
			logging.String("title", title),
			logging.Int64("tmdb_id", reg.Match.ID),
			logging.String(logging.FieldImpact, "listing dropped from the ranking"))
		return r.rejectLocked(reg.Code, title, ReasonInvalidScore)
	}
	genres := r.genreTags(reg.Attributes)
	if len(genres) == 0 {
		r.logger.Debug("listing has no genre tags",
			logging.String(logging.FieldListingCode, reg.Code),
			logging.String("title", title),
			logging.Strings("attributes", reg.Attributes))
		return r.rejectLocked(reg.Code, title, ReasonNoGenres)
	}

	record := &MovieRecord{
		Code:         reg.Code,
		Query:        title,
		Title:        reg.Match.Title,
		FeatureTitle: strings.TrimSpace(reg.FeatureTitle),
		Year:         reg.Match.Year,
		Genres:       genres,
		ExternalID:   reg.Match.ID,
		URL:          reg.Match.URL(),
	}
	if reg.Match.Rating != nil {
		record.Rating = *reg.Match.Rating
	}
	if reg.Match.Votes != nil {
		record.Votes = *reg.Match.Votes
	}
	r.order = append(r.order, reg.Code)
	r.records[reg.Code] = record
	r.titles[title] = reg.Code
	return nil
}

// validScore holds for ratings within 0-10 and non-negative vote counts.
// Missing values are stored as zero.
func validScore(c catalog.Candidate) bool {
	if c.Rating != nil && !(*c.Rating >= 0 && *c.Rating <= 10) {
		return false
	}
	return c.Votes == nil || *c.Votes >= 0
}

func (r *Registry) rejectLocked(code, title string, reason Reason) error {
	r.rejections = append(r.rejections, Rejection{Code: code, Title: title, Reason: reason})
	return &RejectedError{Code: code, Title: title, Reason: reason}
}

// genreTags returns the sorted vocabulary spellings of attributes.
func (r *Registry) genreTags(attributes []string) []string {
	var tags []string
	for _, attr := range attributes {
		genre, ok := r.genres[strings.ToLower(strings.TrimSpace(attr))]
		if !ok || slices.Contains(tags, genre) {
			continue
		}
		tags = append(tags, genre)
	}
	slices.Sort(tags)
	return tags
}

// Contains reports whether title is already registered.
func (r *Registry) Contains(title string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.titles[strings.TrimSpace(title)]
	return ok
}

// MarkUnresolved records title as unmatched.
func (r *Registry) MarkUnresolved(title string, reason Reason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unresolved = append(r.unresolved, UnresolvedQuery{Title: title, Reason: reason})
}

// AddScreening appends ts to the record for code. Unknown codes are ignored
// and reported by a false return.
func (r *Registry) AddScreening(code string, ts time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[code]
	if !ok {
		return false
	}
	record.Dates = append(record.Dates, ts)
	return true
}

// Get returns a copy of the record for code.
func (r *Registry) Get(code string) (MovieRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[code]
	if !ok {
		return MovieRecord{}, false
	}
	return record.clone(), true
}

// Records returns copies of all records in registration order.
func (r *Registry) Records() []MovieRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MovieRecord, 0, len(r.order))
	for _, code := range r.order {
		out = append(out, r.records[code].clone())
	}
	return out
}

// Unresolved returns the unmatched titles in the order they were recorded.
func (r *Registry) Unresolved() []UnresolvedQuery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.unresolved)
}

// Rejections returns refused registrations in the order they occurred.
func (r *Registry) Rejections() []Rejection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.rejections)
}

// Len returns the number of stored records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
