package childmode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/muster-io/muster/internal/config"
)

// ErrNoExecutorCommand is returned when the configuration names no external
// agent command to bridge to.
var ErrNoExecutorCommand = errors.New("no executor command configured")

// CommandExecutor bridges a task to the external agent command from the
// configuration. Each stdout line of that command is forwarded as a
// reasoning update; the last non-empty line becomes the result. The
// command's stderr passes through to the child's own stderr, which the
// controller captures.
type CommandExecutor struct {
	cfg config.ExecutorConfig
}

// NewCommandExecutor creates an executor over the configured command.
func NewCommandExecutor(cfg config.ExecutorConfig) *CommandExecutor {
	return &CommandExecutor{cfg: cfg}
}

// Execute runs the external command with {{prompt}} and {{model}} expanded.
func (e *CommandExecutor) Execute(ctx context.Context, task Task, progress func(string)) (string, error) {
	if len(e.cfg.Command) == 0 {
		return "", ErrNoExecutorCommand
	}

	argv := renderArgv(e.cfg.Command, task)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start executor: %w", err)
	}

	var lastLine string
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lastLine = line
		if progress != nil {
			progress(line)
		}
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		return "", fmt.Errorf("executor: %w", err)
	}
	if scanErr != nil {
		return "", fmt.Errorf("read executor output: %w", scanErr)
	}
	return lastLine, nil
}

// renderArgv substitutes the task placeholders in each argv entry.
func renderArgv(command []string, task Task) []string {
	out := make([]string, len(command))
	for i, arg := range command {
		arg = strings.ReplaceAll(arg, "{{prompt}}", task.Prompt)
		arg = strings.ReplaceAll(arg, "{{model}}", task.Model)
		out[i] = arg
	}
	return out
}
