package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides. Nested keys use a double
// underscore: TOWNCTL_BACKUP__BUCKET -> backup.bucket.
const EnvPrefix = "TOWNCTL_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (TOWNCTL_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

// envKey maps TOWNCTL_PANEL__PORT to panel.port.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path. The file may
// hold backup credentials, so it is written owner-only.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validProgress = map[string]bool{
	ProgressAuto: true,
	ProgressBar:  true,
	ProgressLine: true,
	ProgressOff:  true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid base_url %q: must be an http(s) URL", c.BaseURL)
	}

	if c.StateDB == "" {
		return fmt.Errorf("state_db is required")
	}

	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}

	if c.Staff.AuthHeader == "" {
		return fmt.Errorf("staff.auth_header is required")
	}

	if c.Pollers.Players <= 0 || c.Pollers.Uptime <= 0 {
		return fmt.Errorf("poller intervals must be positive")
	}

	if c.Panel.Port < 1 || c.Panel.Port > 65535 {
		return fmt.Errorf("panel.port %d out of range", c.Panel.Port)
	}

	if c.Progress != "" && !validProgress[c.Progress] {
		return fmt.Errorf("invalid progress %q: must be one of auto, bar, line, off", c.Progress)
	}

	if (c.Backup.AccessKey == "") != (c.Backup.SecretKey == "") {
		return fmt.Errorf("backup.access_key and backup.secret_key must be set together")
	}

	return nil
}

// PanelAddr returns the listen address for the local panel.
func (c *Config) PanelAddr() string {
	return fmt.Sprintf("%s:%d", c.Panel.Host, c.Panel.Port)
}

// PublicDashboardURL returns where "view as user" sends the browser.
func (c *Config) PublicDashboardURL() string {
	if c.PublicURL != "" {
		return c.PublicURL
	}
	return strings.TrimRight(c.BaseURL, "/") + "/public/dashboard"
}
