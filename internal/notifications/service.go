package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"reelrank/internal/config"
)

const userAgent = "reelrank/0.1.0"

// maxTopTitles bounds how many ranked titles a run summary lists.
const maxTopTitles = 3

// RunSummary describes a finished reconcile run.
type RunSummary struct {
	Cinema     string
	Matched    int
	Unresolved int
	Rejected   int
	TopTitles  []string
	Duration   time.Duration
}

// Service defines the notification surface used by the CLI.
type Service interface {
	NotifyRunCompleted(ctx context.Context, summary RunSummary) error
	NotifyRunFailed(ctx context.Context, cinema string, err error) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := cfg.NotificationTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, summary RunSummary) error {
	var builder strings.Builder
	fmt.Fprintf(&builder, "%d matched, %d unresolved, %d rejected", summary.Matched, summary.Unresolved, summary.Rejected)
	if summary.Duration > 0 {
		fmt.Fprintf(&builder, " in %s", summary.Duration.Round(time.Second))
	}
	top := summary.TopTitles
	if len(top) > maxTopTitles {
		top = top[:maxTopTitles]
	}
	for i, title := range top {
		fmt.Fprintf(&builder, "\n%d. %s", i+1, strings.TrimSpace(title))
	}

	data := payload{
		title:   fmt.Sprintf("reelrank - %s", strings.TrimSpace(summary.Cinema)),
		message: builder.String(),
		tags:    []string{"reelrank", "run", "completed"},
	}
	if summary.Unresolved > 0 {
		data.tags = append(data.tags, "unresolved")
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunFailed(ctx context.Context, cinema string, err error) error {
	message := "unknown error"
	if err != nil {
		message = strings.TrimSpace(err.Error())
	}
	data := payload{
		title:    fmt.Sprintf("reelrank - %s failed", strings.TrimSpace(cinema)),
		message:  message,
		tags:     []string{"reelrank", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRunCompleted(context.Context, RunSummary) error { return nil }
func (noopService) NotifyRunFailed(context.Context, string, error) error { return nil }
