package registry

import (
	"strings"
	"time"
)

// Event is one screening from a per-day feed batch.
type Event struct {
	FilmID     string
	DateTime   time.Time
	Attributes []string
}

// IngestStats counts what happened to a batch of events.
type IngestStats struct {
	Kept     int
	Excluded int
	Unknown  int
}

// Add accumulates other into s.
func (s *IngestStats) Add(other IngestStats) {
	s.Kept += other.Kept
	s.Excluded += other.Excluded
	s.Unknown += other.Unknown
}

// Aggregator folds screening events into registry records.
type Aggregator struct {
	registry *Registry
	excluded map[string]struct{}
}

// NewAggregator drops events tagged with any of excludedFormats, compared
// case-insensitively.
func NewAggregator(reg *Registry, excludedFormats []string) *Aggregator {
	excluded := make(map[string]struct{}, len(excludedFormats))
	for _, format := range excludedFormats {
		if f := strings.ToLower(strings.TrimSpace(format)); f != "" {
			excluded[f] = struct{}{}
		}
	}
	return &Aggregator{registry: reg, excluded: excluded}
}

// Ingest appends the screening time of every kept event to its record.
// Events for unknown films are counted and otherwise ignored.
func (a *Aggregator) Ingest(batch []Event) IngestStats {
	var stats IngestStats
	for _, event := range batch {
		if a.isExcluded(event.Attributes) {
			stats.Excluded++
			continue
		}
		if a.registry.AddScreening(event.FilmID, event.DateTime) {
			stats.Kept++
		} else {
			stats.Unknown++
		}
	}
	return stats
}

func (a *Aggregator) isExcluded(attributes []string) bool {
	for _, attr := range attributes {
		if _, ok := a.excluded[strings.ToLower(strings.TrimSpace(attr))]; ok {
			return true
		}
	}
	return false
}
