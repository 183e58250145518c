package main

import (
	"fmt"
	"log"

	"alphaearth-desktop/internal/config"
)

// ===================
// Settings Management
// ===================

// GetSettings returns current user settings
func (a *App) GetSettings() (*config.UserSettings, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Return a copy to prevent external modifications
	settingsCopy := *a.settings
	settingsCopy.DefaultBands = append([]string(nil), a.settings.DefaultBands...)
	return &settingsCopy, nil
}

// SaveSettings saves user settings to disk and updates app state
func (a *App) SaveSettings(settings *config.UserSettings) error {
	if settings == nil {
		return fmt.Errorf("settings cannot be empty")
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// The install ID is not editable from the frontend
	settings.InstallID = a.settings.InstallID

	// Save to disk
	if err := config.SaveSettingsTo(a.getSettingsPath(), settings); err != nil {
		return err
	}

	// Update app state
	a.settings = settings
	a.analysis = a.newAnalysisClient(settings)

	// Note: Cache and drawing settings require app restart to take effect
	log.Printf("Settings saved. Cache and drawing settings will apply on next restart.")

	return nil
}

// GetSettingsPath returns the OS-specific settings file path
func (a *App) GetSettingsPath() string {
	return a.getSettingsPath()
}

func (a *App) getSettingsPath() string {
	if a.settingsPath != "" {
		return a.settingsPath
	}
	return config.GetSettingsPath()
}
