package models

import "time"

// Settings represents optional runner settings loaded from
// $AGENT_HOME/settings.yaml. Everything here has a working default so a
// container with only the required environment variables runs unchanged.
type Settings struct {
	Version int `yaml:"version"`

	// CommandTimeout bounds each validation command (seconds).
	CommandTimeout int `yaml:"command_timeout"`

	// ProgressQueueSize bounds the in-flight progress event queue.
	ProgressQueueSize int `yaml:"progress_queue_size"`

	// PlaywrightURL points at the browser-automation sidecar, if any.
	PlaywrightURL string `yaml:"playwright_url,omitempty"`

	// PosthogAPIKey enables product telemetry when set.
	PosthogAPIKey string `yaml:"posthog_api_key,omitempty"`

	// ToolReadyTimeout bounds waiting for tool servers to report healthy.
	ToolReadyTimeout time.Duration `yaml:"tool_ready_timeout"`
}

// NewSettings creates settings with default values.
func NewSettings() *Settings {
	return &Settings{
		Version:           1,
		CommandTimeout:    600, // 10 minutes
		ProgressQueueSize: 256,
		ToolReadyTimeout:  60 * time.Second,
	}
}
