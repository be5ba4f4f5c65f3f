package dispatch

import (
	"bufio"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/muster-io/muster/internal/events"
	"github.com/muster-io/muster/internal/protocol"
	"github.com/muster-io/muster/internal/state"
)

// monitor owns one child from start to terminal transition. The two streams
// get one reader each so a stalled stream never blocks the other; per-stream
// line order is preserved, no order is implied between the streams.
func (d *Dispatcher) monitor(agentID string, cmd *exec.Cmd, stdout, stderr io.Reader) {
	monLogger := d.logger.With("agent_id", agentID)

	var (
		mu         sync.Mutex
		lastResult string
		gotResult  bool
		stderrBuf  strings.Builder
	)

	var readers sync.WaitGroup
	readers.Add(2)

	go func() {
		defer readers.Done()
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			msg, ok := protocol.ParseLine(line)
			if !ok {
				// Plain diagnostic text, by contract never an error.
				monLogger.Debug("child stdout", "line", string(line))
				continue
			}
			switch msg.Kind {
			case protocol.KindReasoning:
				reasoning := msg.Text
				if _, err := d.store.Update(agentID, state.Update{LastReasoning: &reasoning}); err != nil {
					monLogger.Warn("reasoning update rejected", "error", err)
				}
				d.publish(events.TypeReasoning, agentID, map[string]string{"text": msg.Text})
			case protocol.KindResult:
				// The record's result field stays empty until the terminal
				// transition; remember the payload for it here.
				mu.Lock()
				lastResult = msg.Text
				gotResult = true
				mu.Unlock()
			}
		}
		if err := scanner.Err(); err != nil {
			monLogger.Debug("stdout closed", "error", err)
		}
	}()

	go func() {
		defer readers.Done()
		limit := d.cfg.Service.MaxStderrBytes
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			monLogger.Debug("child stderr", "line", line)
			mu.Lock()
			if stderrBuf.Len() < limit {
				remaining := limit - stderrBuf.Len()
				if len(line)+1 > remaining {
					line = line[:remaining]
				}
				stderrBuf.WriteString(line)
				stderrBuf.WriteByte('\n')
			}
			mu.Unlock()
		}
	}()

	// Readers must drain before Wait closes the pipes under them.
	readers.Wait()

	exitCode := 0
	if err := cmd.Wait(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			monLogger.Error("wait for child failed", "error", err)
			exitCode = -1
		}
	}

	mu.Lock()
	result := lastResult
	sawResult := gotResult
	diagnostics := strings.TrimSuffix(stderrBuf.String(), "\n")
	mu.Unlock()

	if exitCode == 0 {
		if !sawResult {
			// Recoverable anomaly: a clean exit should have flushed a result line.
			monLogger.Warn("child exited 0 without a result message")
		}
		if _, err := d.finalize(agentID, state.StatusCompleted, result, &exitCode); err != nil {
			monLogger.Error("completion transition failed", "error", err)
		}
		return
	}

	// A structured result preempts raw stderr as the reported error text.
	errText := result
	if !sawResult {
		errText = diagnostics
	}
	if _, err := d.finalize(agentID, state.StatusErrored, errText, &exitCode); err != nil {
		monLogger.Error("error transition failed", "error", err)
	}
}
