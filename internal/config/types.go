package config

import "time"

// Config is the top-level townctl configuration, corresponding to .townctl.yml.
type Config struct {
	BaseURL    string        `yaml:"base_url" koanf:"base_url"`
	Username   string        `yaml:"username" koanf:"username"`
	StateDB    string        `yaml:"state_db" koanf:"state_db"`
	Timeout    time.Duration `yaml:"timeout" koanf:"timeout"`
	UserAgent  string        `yaml:"user_agent" koanf:"user_agent"`
	PublicURL  string        `yaml:"public_url" koanf:"public_url"`
	Staff      StaffConfig   `yaml:"staff" koanf:"staff"`
	Guard      GuardConfig   `yaml:"guard" koanf:"guard"`
	Pollers    PollerConfig  `yaml:"pollers" koanf:"pollers"`
	Panel      PanelConfig   `yaml:"panel" koanf:"panel"`
	Backup     BackupConfig  `yaml:"backup" koanf:"backup"`
	Progress   string        `yaml:"progress" koanf:"progress"`
}

// StaffConfig describes the staff town-operation surface.
type StaffConfig struct {
	Endpoint   string `yaml:"endpoint" koanf:"endpoint"`
	AuthHeader string `yaml:"auth_header" koanf:"auth_header"`
}

// GuardConfig holds session guard settings.
type GuardConfig struct {
	// FailOpen lets pages load when the validation call itself fails.
	FailOpen bool `yaml:"fail_open" koanf:"fail_open"`
}

// PollerConfig holds the live counter intervals.
type PollerConfig struct {
	Players time.Duration `yaml:"players" koanf:"players"`
	Uptime  time.Duration `yaml:"uptime" koanf:"uptime"`
}

// PanelConfig holds the local web panel listener settings.
type PanelConfig struct {
	Host        string   `yaml:"host" koanf:"host"`
	Port        int      `yaml:"port" koanf:"port"`
	CORSOrigins []string `yaml:"cors_origins" koanf:"cors_origins"`
}

// BackupConfig holds the S3 archive target for exported towns.
type BackupConfig struct {
	Bucket    string `yaml:"bucket" koanf:"bucket"`
	Prefix    string `yaml:"prefix" koanf:"prefix"`
	Region    string `yaml:"region" koanf:"region"`
	Endpoint  string `yaml:"endpoint" koanf:"endpoint"`
	AccessKey string `yaml:"access_key" koanf:"access_key"`
	SecretKey string `yaml:"secret_key" koanf:"secret_key"`
	PathStyle bool   `yaml:"path_style" koanf:"path_style"`
}

// Progress modes.
const (
	ProgressAuto = "auto"
	ProgressBar  = "bar"
	ProgressLine = "line"
	ProgressOff  = "off"
)

// DefaultPath is where init writes the configuration.
const DefaultPath = ".townctl.yml"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:   "http://127.0.0.1:8000",
		StateDB:   ".townctl/state.db",
		Timeout:   30 * time.Second,
		UserAgent: "townctl",
		Staff: StaffConfig{
			Endpoint:   "/mh/games/bg_gameserver_plugin/townOperations/",
			AuthHeader: "mh_auth_params",
		},
		Guard: GuardConfig{FailOpen: true},
		Pollers: PollerConfig{
			Players: 30 * time.Second,
			Uptime:  5 * time.Second,
		},
		Panel: PanelConfig{
			Host: "127.0.0.1",
			Port: 8088,
		},
		Backup: BackupConfig{
			Prefix: "towns",
			Region: "us-east-1",
		},
		Progress: ProgressAuto,
	}
}
