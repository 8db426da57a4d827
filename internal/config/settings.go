package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Settings holds values changed at runtime (for example through the folder
// picker) that must survive a restart. They override the config file.
type Settings struct {
	DownloadDir string    `toml:"download_dir"`
	UpdatedAt   time.Time `toml:"updated_at"`
}

// LoadSettings reads persisted runtime settings. A missing file yields zero
// settings and no error.
func LoadSettings(path string) (Settings, error) {
	var settings Settings
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return settings, nil
		}
		return settings, fmt.Errorf("read settings: %w", err)
	}
	if err := toml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return settings, nil
}

// SaveSettings writes settings atomically via a temp file rename.
func SaveSettings(path string, settings Settings) error {
	if settings.UpdatedAt.IsZero() {
		settings.UpdatedAt = time.Now().UTC()
	}
	data, err := toml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.toml")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// PersistDownloadDir records a new destination directory in the settings file
// and updates the in-memory config.
func (c *Config) PersistDownloadDir(dir string) error {
	expanded, err := expandPath(strings.TrimSpace(dir))
	if err != nil {
		return fmt.Errorf("download dir: %w", err)
	}
	if expanded == "" {
		return errors.New("download dir must not be empty")
	}
	settings, err := LoadSettings(c.SettingsPath())
	if err != nil {
		return err
	}
	settings.DownloadDir = expanded
	settings.UpdatedAt = time.Now().UTC()
	if err := SaveSettings(c.SettingsPath(), settings); err != nil {
		return err
	}
	c.Paths.DownloadDir = expanded
	return nil
}

func (c *Config) applySettings() error {
	settings, err := LoadSettings(c.SettingsPath())
	if err != nil {
		return err
	}
	if _, envSet := os.LookupEnv("VIDSNATCH_DOWNLOAD_DIR"); envSet {
		return nil
	}
	if dir := strings.TrimSpace(settings.DownloadDir); dir != "" {
		expanded, err := expandPath(dir)
		if err != nil {
			return fmt.Errorf("settings download_dir: %w", err)
		}
		c.Paths.DownloadDir = expanded
	}
	return nil
}
