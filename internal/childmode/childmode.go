// Package childmode is the headless single-task mode the controller
// re-invokes itself in. It parses the child argv contract, runs the task
// through an AgentExecutor, and writes protocol control lines on stdout.
// All logging goes to stderr; stdout belongs to the protocol.
package childmode

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/muster-io/muster/internal/log"
	"github.com/muster-io/muster/internal/protocol"
)

// Task is one unit of agent work, decoded from the child argv.
type Task struct {
	TaskID  string
	Profile string
	Prompt  string
	Model   string
}

//go:generate mockgen -source=childmode.go -destination=mocks/mock_executor.go -package=mocks

// AgentExecutor performs the task. progress is called once per incremental
// reasoning update; the returned string is the final result.
type AgentExecutor interface {
	Execute(ctx context.Context, task Task, progress func(string)) (string, error)
}

// ParseArgs decodes the argv the dispatcher builds for a child. args is
// everything after the "child" noun.
func ParseArgs(args []string) (Task, error) {
	fs := flag.NewFlagSet("child", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var t Task
	fs.StringVar(&t.TaskID, "task-id", "", "task id assigned by the dispatcher")
	fs.StringVar(&t.Profile, "agent", "", "agent profile name")
	fs.StringVar(&t.Prompt, "prompt", "", "task prompt")
	fs.StringVar(&t.Model, "model", "", "model override")

	if err := fs.Parse(args); err != nil {
		return Task{}, fmt.Errorf("parse child args: %w", err)
	}
	if t.TaskID == "" {
		return Task{}, errors.New("missing --task-id")
	}
	if t.Profile == "" {
		return Task{}, errors.New("missing --agent")
	}
	if t.Prompt == "" {
		return Task{}, errors.New("missing --prompt")
	}
	return t, nil
}

// Run executes one task end to end: parse argv, execute, emit protocol
// lines on stdout. A nil error means the result line was written and the
// process should exit 0.
func Run(ctx context.Context, args []string, exec AgentExecutor, stdout io.Writer) error {
	task, err := ParseArgs(args)
	if err != nil {
		return err
	}

	logger := log.WithComponent("child").With("task_id", task.TaskID, "profile", task.Profile)
	logger.Info("task started", "model", task.Model)

	emitter := protocol.NewEmitter(stdout)
	result, err := exec.Execute(ctx, task, func(text string) {
		if werr := emitter.Reasoning(text); werr != nil {
			logger.Warn("reasoning write failed", "error", werr)
		}
	})
	if err != nil {
		logger.Error("task failed", "error", err)
		return err
	}

	if err := emitter.Result(result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	logger.Info("task finished")
	return nil
}
