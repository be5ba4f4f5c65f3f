package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a YAML file. Missing fields keep
// their defaults; ${ENV_VAR} references are expanded before parsing.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: check the path or run with --config", absPath)
	}

	expanded := expandEnvVars(data)

	cfg := Defaults()
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", absPath, err)
	}

	// Paths in the file are relative to the file, not the cwd.
	dir := filepath.Dir(absPath)
	cfg.Journal.Path = resolveRelative(dir, cfg.Journal.Path)
	cfg.ProfilesDir = resolveRelative(dir, cfg.ProfilesDir)
	cfg.Service.LockPath = resolveRelative(dir, cfg.Service.LockPath)

	cfg.Fingerprint, err = FingerprintFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("fingerprint config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the controller cannot run with.
func (c *Config) Validate() error {
	if c.Service.DefaultTimeout <= 0 {
		return fmt.Errorf("service.default_timeout must be positive")
	}
	if c.Service.SweepInterval <= 0 {
		return fmt.Errorf("service.sweep_interval must be positive")
	}
	if c.Service.PollInterval <= 0 {
		return fmt.Errorf("service.poll_interval must be positive")
	}
	if c.Service.GracePeriod <= 0 {
		return fmt.Errorf("service.grace_period must be positive")
	}
	if c.Service.MaxStderrBytes <= 0 {
		return fmt.Errorf("service.max_stderr_bytes must be positive")
	}
	if c.API.Enabled && c.API.Listen == "" {
		return fmt.Errorf("api.listen is required when api.enabled is true")
	}
	if c.ProfilesDir == "" {
		return fmt.Errorf("profiles_dir is required")
	}
	return nil
}

// DiscoverPath finds the config file when --config is not given: the
// MUSTER_CONFIG environment variable, then ./config.yaml, then
// ~/.config/muster/config.yaml.
func DiscoverPath() (string, error) {
	if env := os.Getenv("MUSTER_CONFIG"); env != "" {
		return env, nil
	}

	candidates := []string{"config.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "muster", "config.yaml"))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("no config file found; set MUSTER_CONFIG, create ./config.yaml, or pass --config")
}

func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		if val, ok := os.LookupEnv(string(name)); ok {
			return []byte(val)
		}
		// Leave unknown references intact so validation can surface them.
		return match
	})
}

func resolveRelative(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
