package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/autocodit-io/runner/internal/models"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvRepositoryURL, "https://github.com/acme/widgets")
	t.Setenv(EnvInstallationID, "12345678")
	t.Setenv(EnvAgentHome, t.TempDir())
	t.Setenv(EnvWorkspaceDir, t.TempDir())
}

func TestLoadFromEnvironment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv(EnvTaskID, "task-abc")
	t.Setenv(EnvSessionID, "session-def")
	t.Setenv(EnvActionType, "apply")
	t.Setenv(EnvTaskDescription, "fix the login bug")
	t.Setenv(EnvAgentConfig, `{"model":"gpt-4"}`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Task.TaskID != "task-abc" || cfg.Task.SessionID != "session-def" {
		t.Errorf("identifiers not taken from env: %+v", cfg.Task)
	}
	if cfg.Task.Action != models.ActionApply {
		t.Errorf("action = %s, want apply", cfg.Task.Action)
	}
	if cfg.Task.Agent.Model != "gpt-4" {
		t.Errorf("agent model = %q, want gpt-4", cfg.Task.Agent.Model)
	}
	if cfg.Settings.ProgressQueueSize != 256 {
		t.Errorf("default progress queue size = %d, want 256", cfg.Settings.ProgressQueueSize)
	}
}

func TestLoadRequiresRepositoryURL(t *testing.T) {
	t.Setenv(EnvRepositoryURL, "")
	t.Setenv(EnvInstallationID, "12345678")

	if _, err := Load(); err == nil {
		t.Error("expected error without REPOSITORY_URL")
	}
}

func TestLoadRequiresInstallationID(t *testing.T) {
	t.Setenv(EnvRepositoryURL, "https://github.com/acme/widgets")
	t.Setenv(EnvInstallationID, "")

	if _, err := Load(); err == nil {
		t.Error("expected error without GITHUB_INSTALLATION_ID")
	}
}

func TestLoadGeneratesMissingIdentifiers(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv(EnvTaskID, "")
	t.Setenv(EnvSessionID, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Task.TaskID == "" || cfg.Task.SessionID == "" {
		t.Error("missing identifiers should be generated")
	}
}

func TestSettingsOverlay(t *testing.T) {
	agentHome := t.TempDir()
	settings := models.NewSettings()
	settings.CommandTimeout = 120
	settings.PlaywrightURL = "http://playwright:3000"
	if err := SaveSettings(agentHome, settings); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	setRequiredEnv(t)
	t.Setenv(EnvAgentHome, agentHome)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.CommandTimeout().Seconds(); got != 120 {
		t.Errorf("CommandTimeout() = %vs, want 120s", got)
	}
	if cfg.PlaywrightURL != "http://playwright:3000" {
		t.Errorf("PlaywrightURL = %q, want settings value", cfg.PlaywrightURL)
	}

	// Environment beats settings.yaml.
	t.Setenv(EnvPlaywrightURL, "http://sidecar:4000")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PlaywrightURL != "http://sidecar:4000" {
		t.Errorf("PlaywrightURL = %q, env should win", cfg.PlaywrightURL)
	}
}

func TestWorkspaceEnsure(t *testing.T) {
	ws := NewWorkspace(filepath.Join(t.TempDir(), "workspace"))
	if err := ws.Ensure(); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	for _, dir := range []string{ws.RepoDir(), ws.ArtifactsDir(), ws.ScreenshotsDir(), ws.LogsDir()} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("%s was not created", dir)
		}
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.yaml")

	in := models.NewSettings()
	in.CommandTimeout = 42
	if err := SaveYAML(path, in); err != nil {
		t.Fatalf("SaveYAML() error = %v", err)
	}

	var out models.Settings
	if err := LoadYAML(path, &out); err != nil {
		t.Fatalf("LoadYAML() error = %v", err)
	}
	if out.CommandTimeout != 42 {
		t.Errorf("CommandTimeout = %d, want 42", out.CommandTimeout)
	}
}
