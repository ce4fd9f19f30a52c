package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelrank/internal/config"
	"reelrank/internal/testsupport"
)

type cliTestEnv struct {
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("TMDB_API_KEY", "")

	tmdbServer := httptest.NewServer(http.HandlerFunc(fakeTMDB))
	t.Cleanup(tmdbServer.Close)
	feedServer := httptest.NewServer(http.HandlerFunc(fakeFeed))
	t.Cleanup(feedServer.Close)

	opts = append([]testsupport.ConfigOption{
		testsupport.WithTMDBServer(tmdbServer.URL),
		testsupport.WithFeedServer(feedServer.URL, "Haifa"),
	}, opts...)
	cfg := testsupport.NewConfig(t, opts...)

	configPath := filepath.Join(base, "config.toml")
	testsupport.WriteConfig(t, configPath, cfg)
	return &cliTestEnv{configPath: configPath, baseDir: base}
}

func fakeTMDB(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search/multi" {
		http.NotFound(w, r)
		return
	}
	switch r.URL.Query().Get("query") {
	case "dune part two":
		_, _ = w.Write([]byte(`{"page":1,"results":[
			{"id":693134,"title":"Dune: Part Two","release_date":"2024-02-27","media_type":"movie","vote_average":8.2,"vote_count":6000},
			{"id":9,"name":"Dune Part Two Show","first_air_date":"2021-01-01","media_type":"tv","vote_average":9.9,"vote_count":10}
		]}`))
	case "poor things":
		_, _ = w.Write([]byte(`{"page":1,"results":[
			{"id":792307,"title":"Poor Things","release_date":"2023-12-07","media_type":"movie","vote_average":7.7,"vote_count":4200}
		]}`))
	case "wonka":
		_, _ = w.Write([]byte(`{"page":1,"results":[
			{"id":787699,"title":"Wonka","release_date":"2023-12-06","media_type":"movie","vote_average":7.2,"vote_count":3500}
		]}`))
	default:
		_, _ = w.Write([]byte(`{"page":1,"results":[]}`))
	}
}

func fakeFeed(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/poster/"):
		_, _ = w.Write([]byte(`{"body":{"posters":[
			{"code":"A1","url":"https://www.planetcinema.co.il/films/wonka","attributes":["comedy"],"dateStarted":"2023-12-07T00:00:00"},
			{"code":"B2","url":"https://www.planetcinema.co.il/films/dune-part-two-green","attributes":["sci-fi"],"dateStarted":"2024-02-29T00:00:00"},
			{"code":"C3","url":"https://www.planetcinema.co.il/films/nothing-here","attributes":["drama"],"dateStarted":""},
			{"code":"D4","url":"https://www.planetcinema.co.il/films/poor-things-purple","attributes":["voucher"],"dateStarted":""}
		]}}`))
	case strings.HasSuffix(r.URL.Path, "/attributes"):
		_, _ = w.Write([]byte(`{"body":{"dropdownConfig":{"genres":["comedy","sci-fi","drama"]}}}`))
	case strings.Contains(r.URL.Path, "/dates/in-cinema/1070/"):
		_, _ = w.Write([]byte(`{"body":{"dates":["2024-03-05"]}}`))
	case strings.Contains(r.URL.Path, "/film-events/in-cinema/1070/at-date/2024-03-05"):
		_, _ = w.Write([]byte(`{"body":{"events":[
			{"filmId":"B2","eventDateTime":"2024-03-05T18:00:00","attributeIds":["subbed"]},
			{"filmId":"B2","eventDateTime":"2024-03-05T21:00:00","attributeIds":["imax"]},
			{"filmId":"A1","eventDateTime":"2024-03-05T16:30:00","attributeIds":[]}
		]}}`))
	default:
		http.NotFound(w, r)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestRunCommandJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	exportPath := filepath.Join(env.baseDir, "runs.db")
	metricsPath := filepath.Join(env.baseDir, "metrics", "reelrank.prom")

	out, _, err := runCLI(t, []string{"run", "--json", "--export", exportPath, "--metrics-file", metricsPath}, env.configPath)
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	var report struct {
		CinemaCode int `json:"cinema_code"`
		Movies     []struct {
			Rank       int      `json:"rank"`
			Code       string   `json:"code"`
			Title      string   `json:"title"`
			Screenings []string `json:"screenings"`
		} `json:"movies"`
		Unresolved []struct {
			Title  string `json:"title"`
			Reason string `json:"reason"`
		} `json:"unresolved"`
		Rejections []struct {
			Code   string `json:"code"`
			Reason string `json:"reason"`
		} `json:"rejections"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if report.CinemaCode != 1070 {
		t.Fatalf("expected Haifa code 1070, got %d", report.CinemaCode)
	}
	if len(report.Movies) != 2 {
		t.Fatalf("expected 2 movies, got %+v", report.Movies)
	}
	if report.Movies[0].Code != "B2" || report.Movies[0].Title != "Dune: Part Two" {
		t.Fatalf("expected Dune first, got %+v", report.Movies[0])
	}
	if got := report.Movies[0].Screenings; len(got) != 1 || got[0] != "2024-03-05T18:00" {
		t.Fatalf("expected one non-premium screening, got %v", got)
	}
	if report.Movies[1].Code != "A1" || report.Movies[1].Rank != 2 {
		t.Fatalf("expected Wonka second, got %+v", report.Movies[1])
	}
	if len(report.Unresolved) != 1 || report.Unresolved[0].Title != "nothing here" {
		t.Fatalf("unexpected unresolved %+v", report.Unresolved)
	}
	if len(report.Rejections) != 1 || report.Rejections[0].Code != "D4" || report.Rejections[0].Reason != "no_genres" {
		t.Fatalf("unexpected rejections %+v", report.Rejections)
	}

	if _, err := os.Stat(exportPath); err != nil {
		t.Fatalf("expected export file: %v", err)
	}
	metrics, err := os.ReadFile(metricsPath)
	if err != nil {
		t.Fatalf("read metrics file: %v", err)
	}
	requireContains(t, string(metrics), "reelrank_registered_movies 2")
}

func TestRunCommandTable(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"run", "1070"}, env.configPath)
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	requireContains(t, out, "== Haifa (1070) ==")
	requireContains(t, out, "Dune: Part Two")
	requireContains(t, out, "8.2")
	requireContains(t, out, "nothing here (no_candidates)")
	requireContains(t, out, "2 matched, 1 unresolved, 1 rejected, 2 screenings (1 premium skipped)")
}

func TestRunCommandRejectsUnknownCinema(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"run", "Eilat"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown cinema")
	}
}

func TestRunCommandRequiresTMDBKey(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithTMDBKey(""))

	_, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err == nil {
		t.Fatal("expected missing key error")
	}
	requireContains(t, err.Error(), "tmdb.api_key is required")
}

func TestRunCommandSendsNotification(t *testing.T) {
	bodies := make(chan string, 1)
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		bodies <- r.Header.Get("Title") + "\n" + string(data)
	}))
	t.Cleanup(ntfy.Close)

	env := setupCLITestEnv(t, func(c *config.Config) {
		c.Notifications.NtfyTopic = ntfy.URL + "/reelrank"
	})
	if _, _, err := runCLI(t, []string{"run", "--json"}, env.configPath); err != nil {
		t.Fatalf("run returned error: %v", err)
	}

	got := <-bodies
	requireContains(t, got, "reelrank - Haifa")
	requireContains(t, got, "2 matched, 1 unresolved, 1 rejected")
	requireContains(t, got, "1. Dune: Part Two (8.2)")
}

func TestResolveCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"resolve", "--json", "films/dune-part-two-green"}, env.configPath)
	if err != nil {
		t.Fatalf("resolve returned error: %v", err)
	}
	var got resolveOutput
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if got.Query != "dune part two" || got.TMDBID != 693134 || got.Policy != "votes" {
		t.Fatalf("unexpected match %+v", got)
	}
	if got.URL != "https://www.themoviedb.org/movie/693134-dune-part-two" {
		t.Fatalf("unexpected url %q", got.URL)
	}

	out, _, err = runCLI(t, []string{"resolve", "wonka"}, env.configPath)
	if err != nil {
		t.Fatalf("resolve returned error: %v", err)
	}
	requireContains(t, out, "Wonka")
	requireContains(t, out, "2023")
}

func TestResolveCommandReportsNoMatch(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"resolve", "nothing", "here"}, env.configPath)
	if err == nil {
		t.Fatal("expected error")
	}
	requireContains(t, err.Error(), `no released movie on TMDB matches "nothing here"`)
}

func TestCinemasCommandSkipsConfig(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist", "config.toml")
	out, _, err := runCLI(t, []string{"cinemas"}, missing)
	if err != nil {
		t.Fatalf("cinemas returned error: %v", err)
	}
	requireContains(t, out, "Rishon LeZion")
	requireContains(t, out, "1072")
	if strings.Index(out, "Ayalon") > strings.Index(out, "Zikhron Ya'akov") {
		t.Fatalf("expected branches sorted by name:\n%s", out)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	base := t.TempDir()
	t.Setenv("HOME", base)
	t.Setenv("TMDB_API_KEY", "abcdef123456")
	target := filepath.Join(base, "conf", "reelrank.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init returned error: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration to "+target)

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error when config already exists")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite returned error: %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "show"}, target)
	if err != nil {
		t.Fatalf("config show returned error: %v", err)
	}
	requireContains(t, out, "********3456")
	if strings.Contains(out, "abcdef123456") {
		t.Fatalf("api key leaked in output:\n%s", out)
	}
	requireContains(t, out, "[matching]")
	requireContains(t, out, "secondary_key")

	out, _, err = runCLI(t, []string{"config", "validate"}, target)
	if err != nil {
		t.Fatalf("config validate returned error: %v", err)
	}
	requireContains(t, out, "Configuration valid")
}

func TestMaskSecret(t *testing.T) {
	tests := map[string]string{
		"":         "",
		"abc":      "****",
		"abcdefgh": "****efgh",
	}
	for input, want := range tests {
		if got := maskSecret(input); got != want {
			t.Fatalf("maskSecret(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestRenderSectionHeader(t *testing.T) {
	plain := renderSectionHeader("Haifa", false)
	if plain[0] != "== Haifa ==" || plain[1] != strings.Repeat("-", len("== Haifa ==")) {
		t.Fatalf("unexpected header %q", plain)
	}
	colored := renderSectionHeader("Haifa", true)
	requireContains(t, colored[0], ansiBlue)
	if shouldColorize(&bytes.Buffer{}) {
		t.Fatal("buffers are never colorized")
	}
}

func TestApplyRunFlagsRejectsZeroWorkers(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"run", "--workers", "0"}, env.configPath)
	if err == nil {
		t.Fatal("expected error")
	}
	requireContains(t, err.Error(), "--workers must be at least 1")
}
