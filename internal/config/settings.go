package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the server configuration loaded from <home>/workspace.yaml.
// Missing file or fields fall back to defaults.
type Settings struct {
	ListenAddr   string `yaml:"listen_addr,omitempty"`
	FlushDelayMS int    `yaml:"flush_delay_ms,omitempty"`
	DBDriver     string `yaml:"db_driver,omitempty"` // "sqlite" or "postgres"
	DBURL        string `yaml:"db_url,omitempty"`
	APIKey       string `yaml:"api_key,omitempty"`
}

const (
	DefaultListenAddr   = "localhost:3719"
	DefaultFlushDelayMS = 500
	DefaultDBDriver     = "sqlite"
)

// SettingsPath returns <home>/workspace.yaml.
func SettingsPath(home string) string {
	return filepath.Join(home, "workspace.yaml")
}

// DefaultSettings returns the settings used when no file exists.
func DefaultSettings() Settings {
	return Settings{
		ListenAddr:   DefaultListenAddr,
		FlushDelayMS: DefaultFlushDelayMS,
		DBDriver:     DefaultDBDriver,
	}
}

// LoadSettings reads <home>/workspace.yaml. A missing file yields defaults;
// a present file has its zero fields filled from defaults.
func LoadSettings(home string) (Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(SettingsPath(home))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("read settings: %w", err)
	}
	var file Settings
	if err := yaml.Unmarshal(data, &file); err != nil {
		return s, fmt.Errorf("parse settings: %w", err)
	}
	if file.ListenAddr != "" {
		s.ListenAddr = file.ListenAddr
	}
	if file.FlushDelayMS > 0 {
		s.FlushDelayMS = file.FlushDelayMS
	}
	if file.DBDriver != "" {
		s.DBDriver = file.DBDriver
	}
	s.DBURL = file.DBURL
	s.APIKey = file.APIKey
	return s, nil
}

// SaveSettings writes settings to <home>/workspace.yaml, creating home if needed.
func SaveSettings(home string, s Settings) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(SettingsPath(home), data, 0o644)
}

// FlushDelay converts the configured flush delay to a duration.
func (s Settings) FlushDelay() time.Duration {
	if s.FlushDelayMS <= 0 {
		return time.Duration(DefaultFlushDelayMS) * time.Millisecond
	}
	return time.Duration(s.FlushDelayMS) * time.Millisecond
}
