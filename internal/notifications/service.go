package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"recsync/internal/config"
)

const userAgent = "recsync/0.1"

// Service defines the alert surface exposed to the sync engine.
type Service interface {
	NotifyConnectivityLost(ctx context.Context, err error) error
	NotifyConnectivityRestored(ctx context.Context) error
	NotifyLoginRequired(ctx context.Context, reason string) error
	NotifySyncError(ctx context.Context, err error, contextLabel string) error
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

func (n *ntfyService) NotifyConnectivityLost(ctx context.Context, err error) error {
	message := "Server unreachable; changes are queued locally"
	if err != nil {
		message = fmt.Sprintf("%s: %s", message, strings.TrimSpace(err.Error()))
	}
	return n.send(ctx, payload{
		title:   "recsync - Offline",
		message: message,
		tags:    []string{"recsync", "connectivity", "lost"},
	})
}

func (n *ntfyService) NotifyConnectivityRestored(ctx context.Context) error {
	return n.send(ctx, payload{
		title:   "recsync - Online",
		message: "Server reachable again; queued changes are syncing",
		tags:    []string{"recsync", "connectivity", "restored"},
	})
}

func (n *ntfyService) NotifyLoginRequired(ctx context.Context, reason string) error {
	message := "Sign-in required to continue syncing"
	if reason = strings.TrimSpace(reason); reason != "" {
		message = fmt.Sprintf("%s: %s", message, reason)
	}
	return n.send(ctx, payload{
		title:    "recsync - Login Required",
		message:  message,
		tags:     []string{"recsync", "session", "login"},
		priority: "high",
	})
}

func (n *ntfyService) NotifySyncError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Sync error")
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
	return n.send(ctx, payload{
		title:    "recsync - Error",
		message:  builder.String(),
		tags:     []string{"recsync", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "recsync - Test",
		message:  "Notification system test",
		tags:     []string{"recsync", "test"},
		priority: "low",
	})
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

func (noopService) NotifyConnectivityLost(context.Context, error) error  { return nil }
func (noopService) NotifyConnectivityRestored(context.Context) error     { return nil }
func (noopService) NotifyLoginRequired(context.Context, string) error    { return nil }
func (noopService) NotifySyncError(context.Context, error, string) error { return nil }
func (noopService) TestNotification(context.Context) error               { return nil }
