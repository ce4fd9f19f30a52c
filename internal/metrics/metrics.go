package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder collects counters for one reconcile run. A nil Recorder discards
// everything.
type Recorder struct {
	registry       *prometheus.Registry
	listings       *prometheus.CounterVec
	events         *prometheus.CounterVec
	resolveSeconds prometheus.Histogram
	records        prometheus.Gauge
}

// New creates a Recorder backed by its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		listings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reelrank_listings_total",
			Help: "Listings processed by outcome and reason",
		}, []string{"outcome", "reason"}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reelrank_screening_events_total",
			Help: "Screening events ingested by result",
		}, []string{"result"}),
		resolveSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reelrank_resolve_duration_seconds",
			Help:    "Time spent disambiguating one listing title",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 8),
		}),
		records: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reelrank_registered_movies",
			Help: "Movie records held by the registry at the end of the run",
		}),
	}
}

// ListingResolved counts a listing that produced a MovieRecord.
func (r *Recorder) ListingResolved() {
	if r == nil {
		return
	}
	r.listings.WithLabelValues("resolved", "none").Inc()
}

// ListingUnresolved counts a listing that could not be matched.
func (r *Recorder) ListingUnresolved(reason string) {
	if r == nil {
		return
	}
	r.listings.WithLabelValues("unresolved", normalizeReasonLabel(reason)).Inc()
}

// ListingRejected counts a matched listing the registry refused.
func (r *Recorder) ListingRejected(reason string) {
	if r == nil {
		return
	}
	r.listings.WithLabelValues("rejected", normalizeReasonLabel(reason)).Inc()
}

// ListingSkipped counts a listing whose title was already handled earlier in the run.
func (r *Recorder) ListingSkipped() {
	if r == nil {
		return
	}
	r.listings.WithLabelValues("skipped", "duplicate_title").Inc()
}

// EventsIngested adds one batch worth of aggregation results.
func (r *Recorder) EventsIngested(kept, excluded, unknown int) {
	if r == nil {
		return
	}
	r.events.WithLabelValues("kept").Add(float64(kept))
	r.events.WithLabelValues("excluded").Add(float64(excluded))
	r.events.WithLabelValues("unknown_film").Add(float64(unknown))
}

// ObserveResolve records the duration of one disambiguation.
func (r *Recorder) ObserveResolve(d time.Duration) {
	if r == nil {
		return
	}
	r.resolveSeconds.Observe(d.Seconds())
}

// SetRecords records the final registry size.
func (r *Recorder) SetRecords(n int) {
	if r == nil {
		return
	}
	r.records.Set(float64(n))
}

// Gatherer exposes the underlying registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}

// WriteTextfile dumps the current values in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || strings.TrimSpace(path) == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func normalizeReasonLabel(reason string) string {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case "malformed", "no_candidates", "unrated", "collaborator_error", "duplicate_title", "duplicate_code", "no_genres", "invalid_score":
		return strings.ToLower(strings.TrimSpace(reason))
	default:
		return "unknown"
	}
}
