package config

import (
	"github.com/autocodit-io/runner/internal/models"
)

// LoadSettings loads settings.yaml from the agent home, or defaults if the
// file doesn't exist.
func LoadSettings(agentHome string) (*models.Settings, error) {
	settings, err := LoadYAMLOrDefault(SettingsFile(agentHome), models.NewSettings)
	if err != nil {
		return nil, err
	}
	// Backfill zero values so a sparse file still gets working defaults.
	defaults := models.NewSettings()
	if settings.CommandTimeout <= 0 {
		settings.CommandTimeout = defaults.CommandTimeout
	}
	if settings.ProgressQueueSize <= 0 {
		settings.ProgressQueueSize = defaults.ProgressQueueSize
	}
	if settings.ToolReadyTimeout <= 0 {
		settings.ToolReadyTimeout = defaults.ToolReadyTimeout
	}
	return settings, nil
}

// SaveSettings writes settings.yaml to the agent home.
func SaveSettings(agentHome string, settings *models.Settings) error {
	return SaveYAML(SettingsFile(agentHome), settings)
}
