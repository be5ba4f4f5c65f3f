package config

import "time"

// Config is the complete muster configuration.
type Config struct {
	Service     ServiceConfig  `yaml:"service"`
	Journal     JournalConfig  `yaml:"journal"`
	API         APIConfig      `yaml:"api,omitempty"`
	ProfilesDir string         `yaml:"profiles_dir"`
	Executor    ExecutorConfig `yaml:"executor"`

	// Fingerprint is the BLAKE3 hash of the loaded config file. Not set
	// from YAML; populated by Load and reported by version/healthz.
	Fingerprint string `yaml:"-"`
}

// ServiceConfig defines core controller settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// DefaultTimeout bounds an agent's runtime unless the dispatch or the
	// profile overrides it.
	DefaultTimeout time.Duration `yaml:"default_timeout"`

	// SweepInterval is how often the timeout sweep scans running agents.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// PollInterval is how often the liveness poll probes running pids.
	PollInterval time.Duration `yaml:"poll_interval"`

	// GracePeriod is the wait between SIGTERM and SIGKILL.
	GracePeriod time.Duration `yaml:"grace_period"`

	// MaxStderrBytes caps captured child stderr.
	MaxStderrBytes int `yaml:"max_stderr_bytes"`

	// LockPath is the controller's single-instance pid lock.
	LockPath string `yaml:"lock_path"`
}

// JournalConfig defines the audit journal settings.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen"`
	Auth    APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	// APIKey is the bearer token; empty disables auth (local use).
	APIKey string `yaml:"api_key"`
}

// ExecutorConfig names the external command the child mode bridges to.
// Argv entries may reference {{prompt}} and {{model}}.
type ExecutorConfig struct {
	Command []string `yaml:"command"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:           "muster",
			LogLevel:       "info",
			LogFormat:      "json",
			DefaultTimeout: 5 * time.Minute,
			SweepInterval:  10 * time.Second,
			PollInterval:   15 * time.Second,
			GracePeriod:    5 * time.Second,
			MaxStderrBytes: 64 * 1024,
			LockPath:       "./data/muster.pid",
		},
		Journal: JournalConfig{
			Path: "./data/journal.db",
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8080",
		},
		ProfilesDir: "./profiles",
	}
}
