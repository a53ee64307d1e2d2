package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"quizline/internal/config"
)

const userAgent = "Quizline-Go/0.1.0"

// Service defines the notification surface exposed to stage runners.
type Service interface {
	NotifyRefillNeeded(ctx context.Context, ready, requested, target int) error
	NotifyPublished(ctx context.Context, topic string, publishedAt time.Time) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
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
		errors:    cfg.Notifications.Errors,
		refill:    cfg.Notifications.Refill,
		published: cfg.Notifications.Published,
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
	errors    bool
	refill    bool
	published bool
}

func (n *ntfyService) NotifyRefillNeeded(ctx context.Context, ready, requested, target int) error {
	if !n.refill {
		return nil
	}
	data := payload{
		title:   "Quizline - Buffer Low",
		message: fmt.Sprintf("📉 %d READY left; %d more needed to reach %d", ready, requested, target),
		tags:    []string{"quizline", "buffer", "refill"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPublished(ctx context.Context, topic string, publishedAt time.Time) error {
	if !n.published {
		return nil
	}
	data := payload{
		title:   "Quizline - Published",
		message: fmt.Sprintf("✅ Published: %s (%s)", strings.TrimSpace(topic), publishedAt.UTC().Format(time.RFC3339)),
		tags:    []string{"quizline", "publish", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Quizline - Error",
		message:  builder.String(),
		tags:     []string{"quizline", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Quizline - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"quizline", "test"},
		priority: "low",
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

func (noopService) NotifyRefillNeeded(context.Context, int, int, int) error  { return nil }
func (noopService) NotifyPublished(context.Context, string, time.Time) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error         { return nil }
func (noopService) TestNotification(context.Context) error                   { return nil }

// Noop returns a service that drops every notification.
func Noop() Service { return noopService{} }
