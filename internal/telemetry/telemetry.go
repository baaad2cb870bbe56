// Package telemetry reports anonymous task lifecycle metrics. Without an
// API key every call is a no-op.
package telemetry

import (
	"log/slog"
	"time"

	"github.com/posthog/posthog-go"

	"github.com/autocodit-io/runner/internal/models"
)

// Client sends task metrics to PostHog.
type Client struct {
	posthog posthog.Client
	log     *slog.Logger
}

// New creates a telemetry client. An empty apiKey disables telemetry and
// returns a client whose methods do nothing.
func New(apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{log: logger.With("component", "telemetry")}
	if apiKey == "" {
		return c
	}

	ph, err := posthog.NewWithConfig(apiKey, posthog.Config{
		Endpoint: "https://eu.posthog.com",
	})
	if err != nil {
		logger.Warn("telemetry disabled", "error", err)
		return c
	}
	c.posthog = ph
	return c
}

// TaskStarted records the start of a task run.
func (c *Client) TaskStarted(task models.TaskRequest, steps int) {
	c.capture(task, "task_started", posthog.NewProperties().
		Set("action", string(task.Action)).
		Set("steps", steps))
}

// TaskCompleted records the terminal outcome of a task run.
func (c *Client) TaskCompleted(task models.TaskRequest, summary models.Summary) {
	c.capture(task, "task_completed", posthog.NewProperties().
		Set("action", string(task.Action)).
		Set("success", summary.Success).
		Set("steps_completed", summary.StepsCompleted).
		Set("steps_total", summary.StepsTotal).
		Set("elapsed_ms", summary.Elapsed.Milliseconds()))
}

func (c *Client) capture(task models.TaskRequest, event string, props posthog.Properties) {
	if c.posthog == nil {
		return
	}
	err := c.posthog.Enqueue(posthog.Capture{
		DistinctId: task.SessionID,
		Event:      event,
		Timestamp:  time.Now().UTC(),
		Properties: props,
	})
	if err != nil {
		c.log.Warn("failed to enqueue telemetry event", "event", event, "error", err)
	}
}

// Close flushes pending events.
func (c *Client) Close() {
	if c.posthog != nil {
		_ = c.posthog.Close()
	}
}
