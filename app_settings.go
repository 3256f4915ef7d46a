package main

import (
	"globe-overlay/internal/config"
)

// ===================
// Settings Management
// ===================

// GetSettings returns current settings
func (a *App) GetSettings() (*config.Settings, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	settingsCopy := *a.settings
	return &settingsCopy, nil
}

// SaveSettings validates and saves settings. A running overlay keeps its
// configuration until it is activated again.
func (a *App) SaveSettings(settings *config.Settings) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := settings.Validate(); err != nil {
		return err
	}
	if err := config.SaveSettings(settings); err != nil {
		return err
	}

	a.settings = settings
	a.log.Info("Saved settings", "path", config.GetSettingsPath())
	return nil
}

// GetSettingsPath returns the settings file path
func (a *App) GetSettingsPath() string {
	return config.GetSettingsPath()
}

// AddDataset validates and appends a dataset to the settings
func (a *App) AddDataset(ds config.DatasetSettings) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := *a.settings
	next.Datasets = append(append([]config.DatasetSettings(nil), a.settings.Datasets...), ds)
	if err := next.Validate(); err != nil {
		return err
	}
	if err := config.SaveSettings(&next); err != nil {
		return err
	}
	a.settings = &next
	return nil
}

// RemoveDataset removes a dataset by name
func (a *App) RemoveDataset(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	next := *a.settings
	next.Datasets = nil
	for _, ds := range a.settings.Datasets {
		if ds.Name != name {
			next.Datasets = append(next.Datasets, ds)
		}
	}
	if err := config.SaveSettings(&next); err != nil {
		return err
	}
	a.settings = &next
	return nil
}
