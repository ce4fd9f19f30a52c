package listing

import (
	"errors"
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare slug with marker", "dune-two-green", "dune two"},
		{"url path", "films/dune-part-two", "dune part two"},
		{"absolute url", "https://www.planetcinema.co.il/films/oppenheimer", "oppenheimer"},
		{"purple marker", "/films/wicked-purple", "wicked"},
		{"uppercase", "Films/Inside-Out-2", "inside out 2"},
		{"marker only is kept", "green", "green"},
		{"marker inside title is kept", "films/green-book", "green book"},
		{"stacked markers", "films/dune-green-purple", "dune"},
		{"already normalized", "dune part two", "dune part two"},
		{"extra separators", "  the--room  ", "the room"},
		{"non-ascii slug", "films/amélie-green", "amélie"},
		{"percent-encoded slug", "https://x/films/am%C3%A9lie-purple", "amélie"},
		{"underscore slug", "films/wall_e", "wall_e"},
		{"query string", "films/dune-part-two?lang=he", "dune part two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw)
			if err != nil {
				t.Fatalf("Normalize(%q) returned error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"dune-two-green",
		"films/dune-part-two",
		"films/dune-green-purple",
		"green",
		"Films/Inside-Out-2",
		"a-b-c-purple-green",
	}
	for _, raw := range inputs {
		once, err := Normalize(raw)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", raw, err)
		}
		twice, err := Normalize(once)
		if err != nil {
			t.Fatalf("Normalize(Normalize(%q)): %v", raw, err)
		}
		if once != twice {
			t.Fatalf("not idempotent for %q: %q then %q", raw, once, twice)
		}
	}
}

func TestNormalizeMalformed(t *testing.T) {
	for _, raw := range []string{"", "   ", "/events/123", "films/", "---", "https://example.test/posters/abc", "films/bad%zzslug"} {
		_, err := Normalize(raw)
		var malformed *MalformedListingError
		if !errors.As(err, &malformed) {
			t.Fatalf("Normalize(%q) expected MalformedListingError, got %v", raw, err)
		}
		if malformed.Raw != raw {
			t.Fatalf("expected raw %q on error, got %q", raw, malformed.Raw)
		}
	}
}

func TestExpectedYear(t *testing.T) {
	l := Listing{DateStarted: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	if got := l.ExpectedYear(); got != 2024 {
		t.Fatalf("ExpectedYear() = %d, want 2024", got)
	}
	if got := (Listing{}).ExpectedYear(); got != 0 {
		t.Fatalf("ExpectedYear() for zero date = %d, want 0", got)
	}
}
