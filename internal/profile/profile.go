// Package profile discovers and indexes agent profiles. A profile is a named
// dispatch target: a directory under the profiles dir holding a manifest.yaml
// that pins its description, default model, and optional timeout override.
package profile

import (
	"fmt"
	"strings"
	"time"
)

const manifestFilename = "manifest.yaml"

// Manifest is the on-disk profile description.
type Manifest struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	Model       string        `yaml:"model,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
}

// Profile is a validated, discovered agent profile.
type Profile struct {
	Name        string
	Description string
	Model       string
	Timeout     time.Duration

	// Path is the profile directory, Hash the BLAKE3 fingerprint of its
	// manifest at discovery time.
	Path string
	Hash string
}

func validateManifest(m *Manifest, dirName string) error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if m.Name != dirName {
		return fmt.Errorf("name %q does not match directory %q", m.Name, dirName)
	}
	if strings.ContainsAny(m.Name, " \t/\\") {
		return fmt.Errorf("name %q contains invalid characters", m.Name)
	}
	if m.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

// Registry holds discovered profiles indexed by name.
type Registry struct {
	profiles map[string]*Profile
}

// NewRegistry creates an empty profile registry.
func NewRegistry() *Registry {
	return &Registry{profiles: make(map[string]*Profile)}
}

// Get retrieves a profile by name.
func (r *Registry) Get(name string) (*Profile, bool) {
	p, ok := r.profiles[name]
	return p, ok
}

// All returns all registered profiles.
func (r *Registry) All() map[string]*Profile {
	return r.profiles
}

// Names returns the registered profile names, unsorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	return names
}

// Add registers a profile in the registry.
func (r *Registry) Add(p *Profile) error {
	if _, exists := r.profiles[p.Name]; exists {
		return fmt.Errorf("profile %q already registered", p.Name)
	}
	r.profiles[p.Name] = p
	return nil
}
