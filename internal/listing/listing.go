package listing

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Listing is one entry of the cinema feed.
type Listing struct {
	Code         string
	URL          string
	Attributes   []string
	DateStarted  time.Time
	FeatureTitle string
}

// MalformedListingError reports a raw slug with no extractable title segment.
type MalformedListingError struct {
	Raw    string
	Reason string
}

func (e *MalformedListingError) Error() string {
	return fmt.Sprintf("malformed listing %q: %s", e.Raw, e.Reason)
}

// filmSegmentPattern captures the whole path segment after films/, so
// non-ASCII and percent-encoded slugs survive intact.
var filmSegmentPattern = regexp.MustCompile(`films/([^/?#]+)`)

// variantMarkers are auxiliary-format suffixes some listings append to the slug.
var variantMarkers = map[string]struct{}{
	"green":  {},
	"purple": {},
}

// Normalize turns a raw listing slug or URL into a catalog query title.
//
// Values containing a slash must carry a films/<slug> segment. Bare slugs and
// already normalized titles pass through the same cleanup, which makes
// Normalize idempotent.
func Normalize(raw string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if strings.Contains(value, "/") {
		match := filmSegmentPattern.FindStringSubmatch(value)
		if match == nil {
			return "", &MalformedListingError{Raw: raw, Reason: "no films/<slug> segment"}
		}
		segment, err := url.PathUnescape(match[1])
		if err != nil {
			return "", &MalformedListingError{Raw: raw, Reason: "invalid escape in slug"}
		}
		value = segment
	}

	value = strings.ReplaceAll(value, "-", " ")
	words := strings.Fields(value)
	// Stacked markers are all stripped so Normalize stays idempotent.
	for len(words) > 1 {
		if _, ok := variantMarkers[words[len(words)-1]]; !ok {
			break
		}
		words = words[:len(words)-1]
	}
	title := strings.TrimSpace(strings.Join(words, " "))
	if title == "" {
		return "", &MalformedListingError{Raw: raw, Reason: "empty title"}
	}
	return title, nil
}

// ExpectedYear returns the listing's start year, or 0 when unknown.
func (l Listing) ExpectedYear() int {
	if l.DateStarted.IsZero() {
		return 0
	}
	return l.DateStarted.Year()
}
