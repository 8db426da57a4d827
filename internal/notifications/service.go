package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vidsnatch/internal/config"
)

const userAgent = "VidSnatch/1.0"

// Event identifies a notification type.
type Event string

const (
	EventDownloadCompleted Event = "download_completed"
	EventDownloadFailed    Event = "download_failed"
	EventTest              Event = "test"
)

// Payload carries event fields such as "title", "url", "file" and "error".
type Payload map[string]string

// Service defines the notification surface exposed to the job service.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
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

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		completed: cfg.Notifications.Completed,
		failed:    cfg.Notifications.Failed,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	completed bool
	failed    bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, fields Payload) error {
	data, ok := n.render(event, fields)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func (n *ntfyService) render(event Event, fields Payload) (payload, bool) {
	get := func(key string) string { return strings.TrimSpace(fields[key]) }
	switch event {
	case EventDownloadCompleted:
		if !n.completed {
			return payload{}, false
		}
		message := fmt.Sprintf("Downloaded: %s", orUnknown(get("title")))
		if file := get("file"); file != "" {
			message = fmt.Sprintf("%s\nFile: %s", message, file)
		}
		return payload{
			title:   "VidSnatch - Download Complete",
			message: message,
			tags:    []string{"vidsnatch", "download", "completed"},
		}, true
	case EventDownloadFailed:
		if !n.failed {
			return payload{}, false
		}
		message := fmt.Sprintf("Download failed: %s", orUnknown(get("title")))
		if reason := get("error"); reason != "" {
			message = fmt.Sprintf("%s\n%s", message, reason)
		}
		return payload{
			title:    "VidSnatch - Download Failed",
			message:  message,
			tags:     []string{"vidsnatch", "download", "error"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "VidSnatch - Test",
			message:  "Notification system test",
			tags:     []string{"vidsnatch", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func orUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
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

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
