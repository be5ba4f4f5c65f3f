package childmode_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muster-io/muster/internal/childmode"
	"github.com/muster-io/muster/internal/childmode/mocks"
	"github.com/muster-io/muster/internal/log"
	"github.com/muster-io/muster/internal/protocol"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", "json")
	os.Exit(m.Run())
}

func TestParseArgs(t *testing.T) {
	t.Parallel()

	task, err := childmode.ParseArgs([]string{
		"--task-id", "t-1", "--agent", "researcher", "--prompt", "find things", "--model", "big",
	})
	require.NoError(t, err)
	assert.Equal(t, childmode.Task{
		TaskID: "t-1", Profile: "researcher", Prompt: "find things", Model: "big",
	}, task)

	// Model is optional.
	task, err = childmode.ParseArgs([]string{"--task-id", "t-2", "--agent", "a", "--prompt", "p"})
	require.NoError(t, err)
	assert.Empty(t, task.Model)
}

func TestParseArgsValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{"missing task id", []string{"--agent", "a", "--prompt", "p"}},
		{"missing agent", []string{"--task-id", "t", "--prompt", "p"}},
		{"missing prompt", []string{"--task-id", "t", "--agent", "a"}},
		{"unknown flag", []string{"--task-id", "t", "--agent", "a", "--prompt", "p", "--bogus", "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := childmode.ParseArgs(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestRunEmitsProtocolLines(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	exec := mocks.NewMockAgentExecutor(ctrl)
	exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, task childmode.Task, progress func(string)) (string, error) {
			assert.Equal(t, "t-1", task.TaskID)
			progress("step one")
			progress("step two")
			return "all done", nil
		})

	var out bytes.Buffer
	err := childmode.Run(context.Background(), []string{
		"--task-id", "t-1", "--agent", "worker", "--prompt", "p",
	}, exec, &out)
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)

	msg, ok := protocol.ParseLine(lines[0])
	require.True(t, ok)
	assert.Equal(t, protocol.KindReasoning, msg.Kind)
	assert.Equal(t, "step one", msg.Text)

	msg, ok = protocol.ParseLine(lines[2])
	require.True(t, ok)
	assert.Equal(t, protocol.KindResult, msg.Kind)
	assert.Equal(t, "all done", msg.Text)
}

func TestRunExecutorFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	exec := mocks.NewMockAgentExecutor(ctrl)
	exec.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).Return("", errors.New("model unavailable"))

	var out bytes.Buffer
	err := childmode.Run(context.Background(), []string{
		"--task-id", "t-1", "--agent", "worker", "--prompt", "p",
	}, exec, &out)
	require.Error(t, err)

	// No result line on failure; the controller reads the exit code instead.
	assert.NotContains(t, out.String(), `"kind":"result"`)
}

func TestRunBadArgs(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var out bytes.Buffer
	err := childmode.Run(context.Background(), []string{"--prompt", "p"}, mocks.NewMockAgentExecutor(ctrl), &out)
	assert.Error(t, err)
	assert.Empty(t, out.String())
}
