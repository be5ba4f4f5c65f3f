package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/muster-io/muster/internal/config"
)

// Discover scans profilesDir for directories holding a manifest.yaml and
// validates each. Invalid profiles are logged and skipped, not fatal, so one
// broken manifest cannot take the controller down.
func Discover(profilesDir string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	absDir, err := filepath.Abs(profilesDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve profiles dir %q: %w", profilesDir, err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("profiles dir does not exist: %s", absDir)
		}
		return nil, fmt.Errorf("failed to stat profiles dir %s: %w", absDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("profiles dir is not a directory: %s", absDir)
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles dir %s: %w", absDir, err)
	}

	registry := NewRegistry()
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(absDir, entry.Name())
		manifestPath := filepath.Join(dir, manifestFilename)
		if _, err := os.Stat(manifestPath); err != nil {
			continue
		}

		p, err := loadProfile(entry.Name(), dir)
		if err != nil {
			logger.Warn("failed to load profile", "path", dir, "error", err)
			continue
		}
		if err := registry.Add(p); err != nil {
			logger.Warn("duplicate profile ignored", "profile", p.Name, "path", dir)
			continue
		}
		logger.Info("loaded profile", "profile", p.Name, "model", p.Model, "hash", p.Hash[:12])
	}
	return registry, nil
}

func loadProfile(dirName, dir string) (*Profile, error) {
	manifestPath := filepath.Join(dir, manifestFilename)

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}
	if err := validateManifest(&manifest, dirName); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	return &Profile{
		Name:        manifest.Name,
		Description: manifest.Description,
		Model:       manifest.Model,
		Timeout:     manifest.Timeout,
		Path:        dir,
		Hash:        config.Fingerprint(data),
	}, nil
}
