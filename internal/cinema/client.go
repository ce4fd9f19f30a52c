package cinema

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"reelrank/internal/listing"
	"reelrank/internal/logging"
	"reelrank/internal/registry"
)

// Feed timestamps carry no zone; they are kept as wall-clock values in UTC.
var timestampLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

// StatusError reports a non-200 feed response.
type StatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cinema feed %s returned %d", e.Endpoint, e.StatusCode)
}

// Client reads the cinema chain's public data API.
type Client struct {
	baseURL    string
	tenant     string
	language   string
	httpClient *http.Client
	retryWait  time.Duration
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryWait sets the pause before the single retry on 429/5xx responses.
func WithRetryWait(wait time.Duration) Option {
	return func(c *Client) {
		if wait >= 0 {
			c.retryWait = wait
		}
	}
}

// WithLogger attaches a logger for skipped feed entries.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "cinema")
	}
}

// New creates a feed client.
func New(baseURL, tenant, language string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("cinema feed base url required")
	}
	tenant = strings.TrimSpace(tenant)
	if tenant == "" {
		return nil, errors.New("cinema feed tenant required")
	}
	client := &Client{
		baseURL:    baseURL,
		tenant:     tenant,
		language:   strings.TrimSpace(language),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retryWait:  time.Second,
		logger:     logging.NewComponentLogger(nil, "cinema"),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type posterPayload struct {
	Body struct {
		Posters []struct {
			Code         string   `json:"code"`
			URL          string   `json:"url"`
			Attributes   []string `json:"attributes"`
			DateStarted  string   `json:"dateStarted"`
			FeatureTitle string   `json:"featureTitle"`
		} `json:"posters"`
	} `json:"body"`
}

type attributesPayload struct {
	Body struct {
		DropdownConfig struct {
			Genres []string `json:"genres"`
		} `json:"dropdownConfig"`
	} `json:"body"`
}

type datesPayload struct {
	Body struct {
		Dates []string `json:"dates"`
	} `json:"body"`
}

type eventsPayload struct {
	Body struct {
		Events []struct {
			FilmID        string   `json:"filmId"`
			EventDateTime string   `json:"eventDateTime"`
			AttributeIDs  []string `json:"attributeIds"`
		} `json:"events"`
	} `json:"body"`
}

// Listings returns the posters currently showing.
func (c *Client) Listings(ctx context.Context) ([]listing.Listing, error) {
	params := url.Values{}
	params.Set("ordering", "desc")
	var payload posterPayload
	if err := c.get(ctx, "posters", "/poster/"+c.tenant+"/by-showing-type/SHOWING", params, &payload); err != nil {
		return nil, err
	}
	out := make([]listing.Listing, 0, len(payload.Body.Posters))
	for _, p := range payload.Body.Posters {
		entry := listing.Listing{
			Code:         strings.TrimSpace(p.Code),
			URL:          p.URL,
			Attributes:   p.Attributes,
			FeatureTitle: strings.TrimSpace(p.FeatureTitle),
		}
		if p.DateStarted != "" {
			started, err := parseTimestamp(p.DateStarted)
			if err != nil {
				c.logger.Debug("poster start date unreadable",
					logging.String(logging.FieldListingCode, entry.Code),
					logging.String("date_started", p.DateStarted))
			} else {
				entry.DateStarted = started
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// Genres returns the feed's genre vocabulary.
func (c *Client) Genres(ctx context.Context) ([]string, error) {
	var payload attributesPayload
	if err := c.get(ctx, "attributes", "/quickbook/"+c.tenant+"/attributes", url.Values{}, &payload); err != nil {
		return nil, err
	}
	return payload.Body.DropdownConfig.Genres, nil
}

// Dates lists the days with screenings at cinemaCode up to until.
func (c *Client) Dates(ctx context.Context, cinemaCode int, until time.Time) ([]string, error) {
	path := fmt.Sprintf("/quickbook/%s/dates/in-cinema/%d/until/%s", c.tenant, cinemaCode, until.Format("2006-01-02"))
	params := url.Values{}
	params.Set("attr", "")
	var payload datesPayload
	if err := c.get(ctx, "dates", path, params, &payload); err != nil {
		return nil, err
	}
	return payload.Body.Dates, nil
}

// Events returns the screenings at cinemaCode on day (YYYY-MM-DD).
// Events with an unreadable timestamp are skipped.
func (c *Client) Events(ctx context.Context, cinemaCode int, day string) ([]registry.Event, error) {
	path := fmt.Sprintf("/quickbook/%s/film-events/in-cinema/%d/at-date/%s", c.tenant, cinemaCode, url.PathEscape(day))
	params := url.Values{}
	params.Set("attr", "")
	var payload eventsPayload
	if err := c.get(ctx, "events", path, params, &payload); err != nil {
		return nil, err
	}
	out := make([]registry.Event, 0, len(payload.Body.Events))
	for _, e := range payload.Body.Events {
		ts, err := parseTimestamp(e.EventDateTime)
		if err != nil {
			logging.WarnWithContext(c.logger, "screening timestamp unreadable", "event_timestamp_invalid",
				logging.String(logging.FieldListingCode, e.FilmID),
				logging.String("event_date_time", e.EventDateTime),
				logging.String(logging.FieldImpact, "screening omitted from dates"))
			continue
		}
		out = append(out, registry.Event{FilmID: e.FilmID, DateTime: ts, Attributes: e.AttributeIDs})
	}
	return out, nil
}

func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

func (c *Client) get(ctx context.Context, endpointName, path string, params url.Values, out any) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse feed url: %w", err)
	}
	if c.language != "" {
		params.Set("lang", c.language)
	}
	endpoint.RawQuery = params.Encode()

	resp, err := c.do(ctx, endpoint.String())
	if err != nil {
		return fmt.Errorf("cinema feed %s: %w", endpointName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Endpoint: endpointName, StatusCode: resp.StatusCode}
	}
	body, err := decodeBody(resp)
	if err != nil {
		return fmt.Errorf("cinema feed %s: %w", endpointName, err)
	}
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("decode cinema feed %s: %w", endpointName, err)
	}
	return nil
}

// do issues the request and retries once on 429 or 5xx.
func (c *Client) do(ctx context.Context, rawURL string) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Accept-Encoding", "br, gzip")
		req.Header.Set("User-Agent", "Mozilla/5.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		if !retryable || attempt > 0 {
			return resp, nil
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		c.logger.Debug("retrying feed request",
			logging.String("url", rawURL),
			logging.Int("status", resp.StatusCode))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryWait):
		}
	}
}

// decodeBody unwraps the response according to Content-Encoding. Setting
// Accept-Encoding by hand disables net/http's transparent gzip handling.
func decodeBody(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
		return resp.Body, nil
	case "br":
		return brotli.NewReader(resp.Body), nil
	case "gzip":
		reader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("open gzip body: %w", err)
		}
		return reader, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}
}
