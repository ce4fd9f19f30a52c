package export_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/go-cmp/cmp"

	"reelrank/internal/export"
	"reelrank/internal/reconcile"
	"reelrank/internal/registry"
)

func sampleResult(runID string) *reconcile.Result {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return &reconcile.Result{
		RunID:      runID,
		CinemaCode: 1072,
		StartedAt:  start,
		FinishedAt: start.Add(42 * time.Second),
		Records: []registry.MovieRecord{
			{
				Code:         "A1",
				Query:        "dune part two",
				Title:        "Dune: Part Two",
				FeatureTitle: "Dune 2",
				Year:         2024,
				Genres:       []string{"sci-fi"},
				Rating:       8.5,
				Votes:        400000,
				ExternalID:   693134,
				URL:          "https://www.themoviedb.org/movie/693134-dune-part-two",
				Dates: []time.Time{
					time.Date(2024, 3, 5, 18, 0, 0, 0, time.UTC),
					time.Date(2024, 3, 6, 21, 15, 0, 0, time.UTC),
				},
			},
			{Code: "G7", Query: "beta", Title: "Beta", Year: 2019, Rating: 7.7, Votes: 1200, ExternalID: 4},
		},
		Unresolved: []registry.UnresolvedQuery{{Title: "nothing here", Reason: registry.ReasonNoCandidates}},
		Rejections: []registry.Rejection{{Code: "D4", Title: "gift card", Reason: registry.ReasonNoGenres}},
		Events:     registry.IngestStats{Kept: 2, Excluded: 1},
	}
}

func TestNewReport(t *testing.T) {
	report := export.NewReport(sampleResult("run-1"))

	want := export.Movie{
		Rank:         1,
		Code:         "A1",
		Query:        "dune part two",
		Title:        "Dune: Part Two",
		FeatureTitle: "Dune 2",
		Year:         2024,
		Genres:       []string{"sci-fi"},
		Rating:       8.5,
		Votes:        400000,
		TMDBID:       693134,
		URL:          "https://www.themoviedb.org/movie/693134-dune-part-two",
		Screenings:   []string{"2024-03-05T18:00", "2024-03-06T21:15"},
	}
	if diff := cmp.Diff(want, report.Movies[0]); diff != "" {
		t.Fatalf("movie mismatch (-want +got):\n%s", diff)
	}
	if report.Movies[1].Rank != 2 || report.Movies[1].Genres == nil || report.Movies[1].Screenings == nil {
		t.Fatalf("expected rank 2 and empty slices, got %+v", report.Movies[1])
	}
	if diff := cmp.Diff([]export.Unresolved{{Title: "nothing here", Reason: "no_candidates"}}, report.Unresolved); diff != "" {
		t.Fatalf("unresolved mismatch (-want +got):\n%s", diff)
	}
}

func TestNewReportSharesRankOnEqualScore(t *testing.T) {
	result := sampleResult("run-1")
	result.Records = []registry.MovieRecord{
		{Code: "A1", Title: "Alpha", Rating: 8, Votes: 100},
		{Code: "B2", Title: "Beta", Rating: 8, Votes: 100},
		{Code: "C3", Title: "Gamma", Rating: 8, Votes: 90},
		{Code: "D4", Title: "Delta", Rating: 6.5, Votes: 900},
	}

	report := export.NewReport(result)

	var ranks []int
	for _, m := range report.Movies {
		ranks = append(ranks, m.Rank)
	}
	if diff := cmp.Diff([]int{1, 1, 3, 4}, ranks); diff != "" {
		t.Fatalf("ranks mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := export.WriteJSON(&buf, export.NewReport(nil)); err != nil {
		t.Fatalf("WriteJSON returned error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	for _, key := range []string{"movies", "unresolved", "rejections"} {
		if _, ok := decoded[key].([]any); !ok {
			t.Fatalf("expected %s to encode as an array, got %#v", key, decoded[key])
		}
	}
}

func TestWriteSQLiteAppendsRuns(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reports", "reelrank.db")

	if err := export.WriteSQLite(ctx, path, export.NewReport(sampleResult("run-1"))); err != nil {
		t.Fatalf("first WriteSQLite returned error: %v", err)
	}
	if err := export.WriteSQLite(ctx, path, export.NewReport(sampleResult("run-2"))); err != nil {
		t.Fatalf("second WriteSQLite returned error: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	counts := map[string]int{}
	for _, table := range []string{"runs", "movies", "screenings", "unresolved", "rejections"} {
		var n int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(1) FROM "+table).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		counts[table] = n
	}
	want := map[string]int{"runs": 2, "movies": 4, "screenings": 4, "unresolved": 2, "rejections": 2}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Fatalf("row counts mismatch (-want +got):\n%s", diff)
	}

	var title string
	var feature sql.NullString
	if err := db.QueryRowContext(ctx,
		"SELECT title, feature_title FROM movies WHERE run_id = ? AND rank = 2", "run-1",
	).Scan(&title, &feature); err != nil {
		t.Fatalf("query movie: %v", err)
	}
	if title != "Beta" || feature.Valid {
		t.Fatalf("unexpected row title=%q feature=%v", title, feature)
	}
}

func TestWriteSQLiteRejectsDuplicateRun(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reelrank.db")
	report := export.NewReport(sampleResult("run-1"))

	if err := export.WriteSQLite(ctx, path, report); err != nil {
		t.Fatalf("WriteSQLite returned error: %v", err)
	}
	if err := export.WriteSQLite(ctx, path, report); err == nil {
		t.Fatal("expected error when writing the same run twice")
	}
}

func TestWriteSQLiteHonorsLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reelrank.db")
	holder := flock.New(path + ".lock")
	ok, err := holder.TryLock()
	if err != nil || !ok {
		t.Fatalf("could not take lock: ok=%v err=%v", ok, err)
	}
	t.Cleanup(func() { _ = holder.Unlock() })

	err = export.WriteSQLite(context.Background(), path, export.NewReport(sampleResult("run-1")))
	if !errors.Is(err, export.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestWriteSQLiteSchemaMismatch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reelrank.db")
	if err := export.WriteSQLite(ctx, path, export.NewReport(sampleResult("run-1"))); err != nil {
		t.Fatalf("WriteSQLite returned error: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	if _, err := db.ExecContext(ctx, "UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	err = export.WriteSQLite(ctx, path, export.NewReport(sampleResult("run-2")))
	if !errors.Is(err, export.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
