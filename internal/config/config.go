// Package config handles process configuration, workspace paths, and
// settings loading for one task attempt.
package config

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/autocodit-io/runner/internal/models"
)

// Environment variable names forming the process configuration contract.
// The container supervisor sets these before the runner starts.
const (
	EnvTaskID          = "TASK_ID"
	EnvSessionID       = "SESSION_ID"
	EnvRepositoryURL   = "REPOSITORY_URL"
	EnvTaskDescription = "TASK_DESCRIPTION"
	EnvActionType      = "ACTION_TYPE"
	EnvAgentConfig     = "AGENT_CONFIG"
	EnvAPIEndpoint     = "API_ENDPOINT"
	EnvInstallationID  = "GITHUB_INSTALLATION_ID"
	EnvWorkspaceDir    = "WORKSPACE_DIR"
	EnvAgentHome       = "AGENT_HOME"
	EnvPlaywrightURL   = "PLAYWRIGHT_URL"
	EnvPosthogAPIKey   = "POSTHOG_API_KEY"
)

// Config is the explicit configuration value for one task attempt,
// constructed once at startup and passed into the orchestrator. There is no
// global instance.
type Config struct {
	Task      models.TaskRequest
	Settings  *models.Settings
	Workspace Workspace
	AgentHome string

	PlaywrightURL string
	PosthogAPIKey string
}

// Load builds the configuration from the environment, then overlays the
// optional settings.yaml from the agent home. A missing repository URL or
// installation identifier is a fatal startup condition.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault(EnvAPIEndpoint, "http://api:8000")
	v.SetDefault(EnvWorkspaceDir, DefaultWorkspaceDir)

	repoURL := v.GetString(EnvRepositoryURL)
	if repoURL == "" {
		return nil, fmt.Errorf("%s is required", EnvRepositoryURL)
	}
	installationID := v.GetString(EnvInstallationID)
	if installationID == "" {
		return nil, fmt.Errorf("%s is required", EnvInstallationID)
	}

	agent, err := models.ParseAgentConfig(v.GetString(EnvAgentConfig))
	if err != nil {
		return nil, err
	}

	taskID := v.GetString(EnvTaskID)
	if taskID == "" {
		taskID = uuid.New().String()
	}
	sessionID := v.GetString(EnvSessionID)
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	agentHome := v.GetString(EnvAgentHome)
	if agentHome == "" {
		agentHome = DefaultAgentHome()
	}

	settings, err := LoadSettings(agentHome)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Task: models.TaskRequest{
			TaskID:         taskID,
			SessionID:      sessionID,
			RepositoryURL:  repoURL,
			Description:    v.GetString(EnvTaskDescription),
			Action:         models.ActionType(v.GetString(EnvActionType)),
			Agent:          agent,
			APIEndpoint:    v.GetString(EnvAPIEndpoint),
			InstallationID: installationID,
			CreatedAt:      time.Now().UTC(),
		},
		Settings:  settings,
		Workspace: NewWorkspace(v.GetString(EnvWorkspaceDir)),
		AgentHome: agentHome,

		PlaywrightURL: v.GetString(EnvPlaywrightURL),
		PosthogAPIKey: v.GetString(EnvPosthogAPIKey),
	}

	// Environment beats settings.yaml for the two sidecar knobs.
	if cfg.PlaywrightURL == "" {
		cfg.PlaywrightURL = settings.PlaywrightURL
	}
	if cfg.PosthogAPIKey == "" {
		cfg.PosthogAPIKey = settings.PosthogAPIKey
	}

	return cfg, nil
}

// CommandTimeout returns the validation command time budget.
func (c *Config) CommandTimeout() time.Duration {
	if c.Settings != nil && c.Settings.CommandTimeout > 0 {
		return time.Duration(c.Settings.CommandTimeout) * time.Second
	}
	return 10 * time.Minute
}
