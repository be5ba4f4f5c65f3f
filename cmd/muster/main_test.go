package main

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdoutBytes, _ := io.ReadAll(stdoutR)
	stderrBytes, _ := io.ReadAll(stderrR)

	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func setVersionMetadataForTest(t *testing.T, v, commit, built string) {
	t.Helper()

	origVersion := version
	origCommit := gitCommit
	origBuildDate := buildDate

	version = v
	gitCommit = commit
	buildDate = built

	t.Cleanup(func() {
		version = origVersion
		gitCommit = origCommit
		buildDate = origBuildDate
	})
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	profilesDir := filepath.Join(dir, "profiles", "researcher")
	if err := os.MkdirAll(profilesDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	manifest := "name: researcher\ndescription: digs things up\nmodel: base\n"
	if err := os.WriteFile(filepath.Join(profilesDir, "manifest.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("WriteFile manifest: %v", err)
	}

	cfgBody := `service:
  name: muster-test
profiles_dir: ./profiles
journal:
  path: ./data/journal.db
executor:
  command: ["/bin/sh", "-c", "echo {{prompt}}"]
`
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfgBody), 0o644); err != nil {
		t.Fatalf("WriteFile config: %v", err)
	}
	return cfgPath
}

func TestRunCLIUnknownCommand(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"frobnicate"})
	})
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "Unknown command: frobnicate") {
		t.Fatalf("expected unknown command error, got: %s", stderr)
	}
}

func TestRunCLINoArgs(t *testing.T) {
	code, _, _ := captureOutputWithExitCode(t, func() int {
		return runCLI(nil)
	})
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
}

func TestRunCLIHelp(t *testing.T) {
	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"help"})
	})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	for _, want := range []string{"system", "agent", "profile", "dispatch"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("usage output missing %q:\n%s", want, stdout)
		}
	}
	// Child mode is internal and stays out of the usage text.
	if strings.Contains(stdout, "child") {
		t.Fatalf("usage output should not mention child mode:\n%s", stdout)
	}
}

func TestRunVersionPlain(t *testing.T) {
	setVersionMetadataForTest(t, "1.2.3", "abcdef1234567890", "2026-08-01T10:00:00Z")

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runVersion(nil)
	})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(stdout, "muster 1.2.3") {
		t.Fatalf("unexpected version output: %s", stdout)
	}
	if !strings.Contains(stdout, "commit: abcdef123456") {
		t.Fatalf("expected shortened commit, got: %s", stdout)
	}
}

func TestRunVersionJSON(t *testing.T) {
	setVersionMetadataForTest(t, "1.2.3", "abcdef1234567890", "2026-08-01T10:00:00Z")

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runVersion([]string{"--json"})
	})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}

	var info versionInfo
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, stdout)
	}
	if info.Version != "1.2.3" {
		t.Fatalf("expected version 1.2.3, got %q", info.Version)
	}
	if info.Commit != "abcdef123456" {
		t.Fatalf("expected shortened commit, got %q", info.Commit)
	}
	if info.BuildTime != "2026-08-01T10:00:00Z" {
		t.Fatalf("expected normalized build time, got %q", info.BuildTime)
	}
}

func TestRunVersionRejectsExtraArgs(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runVersion([]string{"extra"})
	})
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "Usage") {
		t.Fatalf("expected usage message, got: %s", stderr)
	}
}

func TestRunDoctorValidConfig(t *testing.T) {
	cfgPath := writeTestConfig(t)

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runDoctor([]string{"--config", cfgPath})
	})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d\n%s", code, stdout)
	}
	if !strings.Contains(stdout, "PASSED") {
		t.Fatalf("expected passing doctor output, got: %s", stdout)
	}
}

func TestRunDoctorBrokenExecutor(t *testing.T) {
	cfgPath := writeTestConfig(t)
	body, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	broken := strings.Replace(string(body), "/bin/sh", "/no/such/binary", 1)
	if err := os.WriteFile(cfgPath, []byte(broken), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runDoctor([]string{"--config", cfgPath, "--json"})
	})
	if code != 1 {
		t.Fatalf("expected exit 1, got %d\n%s", code, stdout)
	}
	if !strings.Contains(stdout, "executor") {
		t.Fatalf("expected executor issue in JSON output: %s", stdout)
	}
}

func TestRunDoctorMissingConfig(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runDoctor([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")})
	})
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "Config failed to load") {
		t.Fatalf("expected load failure, got: %s", stderr)
	}
}

func TestRunProfileList(t *testing.T) {
	cfgPath := writeTestConfig(t)

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runProfileList([]string{"--config", cfgPath})
	})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d\n%s", code, stdout)
	}
	if !strings.Contains(stdout, "researcher") {
		t.Fatalf("expected researcher profile listed: %s", stdout)
	}
}

func TestRunAgentNounUsage(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runAgentNoun(nil)
	})
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "Usage: muster agent") {
		t.Fatalf("expected agent usage, got: %s", stderr)
	}

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runAgentNoun([]string{"help"})
	})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(stdout, "dispatch") {
		t.Fatalf("expected actions in help, got: %s", stdout)
	}
}

func TestRunAgentDispatchRequiresFlags(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runAgentDispatch([]string{"--profile", "researcher"})
	})
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "--prompt") {
		t.Fatalf("expected prompt requirement, got: %s", stderr)
	}
}

func TestRunAgentStatusRequiresID(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runAgentStatus(nil)
	})
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr, "agent-id") {
		t.Fatalf("expected id requirement, got: %s", stderr)
	}
}
