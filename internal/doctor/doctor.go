// Package doctor validates muster configuration and agent profile setup.
package doctor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/muster-io/muster/internal/config"
	"github.com/muster-io/muster/internal/lock"
	"github.com/muster-io/muster/internal/profile"
	"github.com/muster-io/muster/internal/state"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates configuration against discovered profiles.
type Doctor struct {
	cfg      *config.Config
	registry *profile.Registry
}

// New creates a Doctor from a loaded config and profile registry.
func New(cfg *config.Config, registry *profile.Registry) *Doctor {
	return &Doctor{cfg: cfg, registry: registry}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateServiceConfig(r)
	d.validateProfiles(r)
	d.validateJournal(r)
	d.validateExecutor(r)
	d.validateAPIConfig(r)
	d.warnStaleLock(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateServiceConfig(r *Result) {
	svc := d.cfg.Service
	if svc.DefaultTimeout <= 0 {
		d.addError(r, "service", "service.default_timeout", "default_timeout must be positive")
	}
	if svc.SweepInterval <= 0 {
		d.addError(r, "service", "service.sweep_interval", "sweep_interval must be positive")
	}
	if svc.PollInterval <= 0 {
		d.addError(r, "service", "service.poll_interval", "poll_interval must be positive")
	}
	if svc.GracePeriod <= 0 {
		d.addError(r, "service", "service.grace_period", "grace_period must be positive")
	}
	if svc.MaxStderrBytes <= 0 {
		d.addError(r, "service", "service.max_stderr_bytes", "max_stderr_bytes must be positive")
	}
	if d.cfg.ProfilesDir == "" {
		d.addError(r, "service", "profiles_dir", "profiles_dir is required")
	}
}

// validateProfiles checks that the profiles directory exists and that at
// least one valid profile was discovered.
func (d *Doctor) validateProfiles(r *Result) {
	if d.cfg.ProfilesDir == "" {
		return
	}
	info, err := os.Stat(d.cfg.ProfilesDir)
	if err != nil {
		d.addError(r, "profiles", "profiles_dir",
			fmt.Sprintf("profiles_dir %q not accessible: %v", d.cfg.ProfilesDir, err))
		return
	}
	if !info.IsDir() {
		d.addError(r, "profiles", "profiles_dir",
			fmt.Sprintf("profiles_dir %q is not a directory", d.cfg.ProfilesDir))
		return
	}

	if d.registry == nil || len(d.registry.Names()) == 0 {
		d.addWarning(r, "profiles", "profiles_dir",
			"no agent profiles discovered; every dispatch will fail with unknown profile")
		return
	}

	for _, p := range d.registry.All() {
		if p.Timeout > 0 && p.Timeout < d.cfg.Service.GracePeriod {
			d.addWarning(r, "profiles", p.Name,
				fmt.Sprintf("profile %q timeout %s is shorter than the grace period %s",
					p.Name, p.Timeout, d.cfg.Service.GracePeriod))
		}
	}
}

// validateJournal checks that the journal directory can be created and
// written.
func (d *Doctor) validateJournal(r *Result) {
	path := d.cfg.Journal.Path
	if path == "" {
		d.addWarning(r, "journal", "journal.path", "journal disabled; agent history will not survive restarts")
		return
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		d.addError(r, "journal", "journal.path",
			fmt.Sprintf("cannot create journal directory %q: %v", dir, err))
		return
	}
	probe, err := os.CreateTemp(dir, ".doctor-probe-*")
	if err != nil {
		d.addError(r, "journal", "journal.path",
			fmt.Sprintf("journal directory %q is not writable: %v", dir, err))
		return
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())
}

// validateExecutor checks that the configured external agent command
// resolves to an executable.
func (d *Doctor) validateExecutor(r *Result) {
	cmd := d.cfg.Executor.Command
	if len(cmd) == 0 {
		d.addWarning(r, "executor", "executor.command",
			"no executor command configured; child mode will fail until one is set")
		return
	}
	if strings.Contains(cmd[0], "{{") {
		d.addError(r, "executor", "executor.command",
			"executor command binary must not contain placeholders")
		return
	}
	if _, err := exec.LookPath(cmd[0]); err != nil {
		d.addError(r, "executor", "executor.command",
			fmt.Sprintf("executor binary %q not found: %v", cmd[0], err))
	}
}

func (d *Doctor) validateAPIConfig(r *Result) {
	if !d.cfg.API.Enabled {
		return
	}
	if d.cfg.API.Listen == "" {
		d.addError(r, "api", "api.listen", "api.listen is required when API is enabled")
	}
	if d.cfg.API.Auth.APIKey == "" {
		d.addWarning(r, "api", "api.auth", "API enabled without an api_key; only safe on loopback")
	}
}

// warnStaleLock reports a lock file left behind by a dead controller. The
// lock itself is advisory flock, so a stale file is harmless but confusing.
func (d *Doctor) warnStaleLock(r *Result) {
	path := d.cfg.Service.LockPath
	if path == "" {
		return
	}
	pid, err := lock.ReadPID(path)
	if err != nil {
		// Absent or unreadable lock file is the normal stopped state.
		return
	}
	if pid == os.Getpid() {
		return
	}
	if state.PIDAlive(pid) {
		d.addWarning(r, "lock", "service.lock_path",
			fmt.Sprintf("controller already running with pid %d", pid))
	} else {
		d.addWarning(r, "lock", "service.lock_path",
			fmt.Sprintf("stale lock file from dead pid %d; it will be reclaimed on start", pid))
	}
}
