package rbuild

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTailBufferKeepsLastLines(t *testing.T) {
	tb := newTailBuffer(3)
	tb.Write([]byte("one\ntwo\nthree\nfour\nfive\n"))
	assert.Equal(t, "three\nfour\nfive", tb.String())
}

func TestTailBufferPartialLine(t *testing.T) {
	tb := newTailBuffer(10)
	tb.Write([]byte("complete\nincom"))
	tb.Write([]byte("plete"))
	assert.Equal(t, "complete\nincomplete", tb.String())
}

func TestExecutorRunSuccess(t *testing.T) {
	e := &Executor{Context: context.Background()}
	cmd := exec.Command("true")
	assert.NoError(t, e.Run(cmd))
}

func TestExecutorRunFailure(t *testing.T) {
	e := &Executor{Context: context.Background()}
	cmd := exec.Command("false")
	assert.Error(t, e.Run(cmd))
}

func TestExecutorRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{Context: ctx}

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := e.Run(exec.Command("sleep", "30"))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "cancellation must kill the child promptly")
	assert.Contains(t, err.Error(), "aborted")
}

func TestRunLoggedCapturesOutputAndTail(t *testing.T) {
	e := &Executor{Context: context.Background()}
	logPath := filepath.Join(t.TempDir(), "unit.log")

	cmd := exec.Command("sh", "-c", "echo building; echo 'fatal error: boom' >&2; exit 3")
	err := e.RunLogged(cmd, logPath)
	require.Error(t, err)

	// The captured tool output is surfaced verbatim in the error.
	assert.Contains(t, err.Error(), "fatal error: boom")
	assert.Contains(t, err.Error(), logPath)

	data, readErr := os.ReadFile(logPath)
	require.NoError(t, readErr)
	assert.Contains(t, string(data), "building")
	assert.Contains(t, string(data), "boom")
	// The invocation itself is recorded at the top of the log.
	assert.True(t, strings.HasPrefix(string(data), "+ sh -c"))
}

func TestRunLoggedSuccess(t *testing.T) {
	e := &Executor{Context: context.Background()}
	logPath := filepath.Join(t.TempDir(), "unit.log")

	require.NoError(t, e.RunLogged(exec.Command("sh", "-c", "echo ok"), logPath))

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ok")
}
