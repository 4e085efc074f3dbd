package slack

import (
	"context"
	"log/slog"
	"time"
)

// ServiceConfig holds the parameters needed to construct a Service.
type ServiceConfig struct {
	Token        string
	Channel      string
	DashboardURL string
}

// TaskCompletedInput contains data for a terminal Task notification.
type TaskCompletedInput struct {
	TaskID       string
	AgentName    string
	Status       string // completed, failed
	Content      string
	ErrorMessage string
}

// Service handles Slack notification delivery for Task terminal states.
// Nil-safe: all methods are no-ops when service is nil.
type Service struct {
	client       *Client
	dashboardURL string
	logger       *slog.Logger
}

// NewService creates a new Slack notification service.
// Returns nil if Token or Channel is empty, so callers can unconditionally
// hold a *Service field and call its methods without a nil check of their own.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return &Service{
		client:       NewClient(cfg.Token, cfg.Channel),
		dashboardURL: cfg.DashboardURL,
		logger:       slog.Default().With("component", "slack-service"),
	}
}

// NewServiceWithClient creates a Service backed by a pre-built Client.
// Useful for testing with a mock API server.
func NewServiceWithClient(client *Client, dashboardURL string) *Service {
	return &Service{
		client:       client,
		dashboardURL: dashboardURL,
		logger:       slog.Default().With("component", "slack-service"),
	}
}

// NotifyTaskCompleted sends a terminal status notification for one Task.
// Fail-open: errors are logged, never returned, so a Slack outage never
// blocks Runner finalization.
func (s *Service) NotifyTaskCompleted(ctx context.Context, input TaskCompletedInput) {
	if s == nil {
		return
	}

	blocks := BuildTerminalMessage(input, s.dashboardURL)
	if err := s.client.PostMessage(ctx, blocks, 10*time.Second); err != nil {
		s.logger.Error("failed to send Slack notification",
			"task_id", input.TaskID,
			"status", input.Status,
			"error", err)
	}
}
