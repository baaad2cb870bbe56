package config

import (
	"os"
	"path/filepath"
)

const (
	// DefaultWorkspaceDir is where the supervisor mounts the task workspace.
	DefaultWorkspaceDir = "/workspace"

	// RepoDirName is the cloned repository inside the workspace.
	RepoDirName = "repository"

	// ArtifactsDirName holds durable step outputs.
	ArtifactsDirName = "artifacts"

	// ScreenshotsDirName holds browser captures under artifacts.
	ScreenshotsDirName = "screenshots"

	// LogsDirName holds command logs under artifacts.
	LogsDirName = "logs"

	// AgentHomeDirName is the per-user runner directory.
	AgentHomeDirName = ".autocodit"

	// SettingsFileName is the optional settings file in the agent home.
	SettingsFileName = "settings.yaml"
)

// Workspace describes the directory tree one task attempt may read/write.
type Workspace struct {
	Root string
}

// NewWorkspace creates a workspace rooted at root.
func NewWorkspace(root string) Workspace {
	return Workspace{Root: root}
}

// RepoDir returns the cloned repository directory.
func (w Workspace) RepoDir() string {
	return filepath.Join(w.Root, RepoDirName)
}

// ArtifactsDir returns the artifacts directory.
func (w Workspace) ArtifactsDir() string {
	return filepath.Join(w.Root, ArtifactsDirName)
}

// ScreenshotsDir returns the screenshots directory.
func (w Workspace) ScreenshotsDir() string {
	return filepath.Join(w.ArtifactsDir(), ScreenshotsDirName)
}

// LogsDir returns the command logs directory.
func (w Workspace) LogsDir() string {
	return filepath.Join(w.ArtifactsDir(), LogsDirName)
}

// Ensure creates the workspace directory tree.
func (w Workspace) Ensure() error {
	for _, dir := range []string{w.Root, w.RepoDir(), w.ArtifactsDir(), w.ScreenshotsDir(), w.LogsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// DefaultAgentHome returns ~/.autocodit, falling back to a workspace-local
// directory when the home directory cannot be resolved.
func DefaultAgentHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(DefaultWorkspaceDir, AgentHomeDirName)
	}
	return filepath.Join(home, AgentHomeDirName)
}

// SettingsFile returns the settings.yaml path inside the agent home.
func SettingsFile(agentHome string) string {
	return filepath.Join(agentHome, SettingsFileName)
}
