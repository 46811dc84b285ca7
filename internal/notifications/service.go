package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ferry/internal/config"
)

const userAgent = "ferry/0.1"

// Event identifies the kind of notification being published.
type Event string

const (
	EventRunStarted   Event = "run_started"
	EventRunCompleted Event = "run_completed"
	EventUnitFailed   Event = "unit_failed"
	EventTest         Event = "test"
)

// Payload carries event fields. Keys are documented per event in format.
type Payload map[string]any

// Service publishes pipeline events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		run:      cfg.Notifications.Run,
		errors:   cfg.Notifications.Errors,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	run      bool
	errors   bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled(event) {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventRunStarted, EventRunCompleted:
		return n.run
	case EventUnitFailed:
		return n.errors
	default:
		return true
	}
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventRunStarted:
		return message{
			title: "ferry - Run Started",
			body:  fmt.Sprintf("Processing %d units of dataset %s", intValue(payload, "units"), stringValue(payload, "dataset", "unknown")),
			tags:  []string{"ferry", "run", "started"},
		}, true
	case EventRunCompleted:
		completed := intValue(payload, "completed")
		failed := intValue(payload, "failed")
		duration := durationText(payload["duration"])
		if failed == 0 {
			return message{
				title: "ferry - Run Complete",
				body:  fmt.Sprintf("Run complete: %d units published in %s", completed, duration),
				tags:  []string{"ferry", "run", "completed"},
			}, true
		}
		return message{
			title:    "ferry - Run Complete (with failures)",
			body:     fmt.Sprintf("Run complete: %d units published, %d failed in %s", completed, failed, duration),
			tags:     []string{"ferry", "run", "completed", "warning"},
			priority: "high",
		}, true
	case EventUnitFailed:
		return message{
			title: "ferry - Unit Failed",
			body: fmt.Sprintf("Unit %s failed at %s: %s",
				stringValue(payload, "unit", "?"),
				stringValue(payload, "stage", "?"),
				stringValue(payload, "error", "unknown")),
			tags:     []string{"ferry", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "ferry - Test",
			body:     "Notification system test",
			tags:     []string{"ferry", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func stringValue(payload Payload, key, fallback string) string {
	value, ok := payload[key]
	if !ok || value == nil {
		return fallback
	}
	var text string
	switch v := value.(type) {
	case string:
		text = v
	case error:
		text = v.Error()
	default:
		text = fmt.Sprint(v)
	}
	if text = strings.TrimSpace(text); text == "" {
		return fallback
	}
	return text
}

func intValue(payload Payload, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func durationText(value any) string {
	duration, _ := value.(time.Duration)
	duration = duration.Round(time.Second)
	if duration <= 0 {
		return "0s"
	}
	return duration.String()
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
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

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
