package rbuild

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// Executor provides a consistent interface for executing external build
// tools (configure, make, compiler probes). Everything rbuild shells out
// to goes through here so the invocations stay cancellable and testable.
type Executor struct {
	Context context.Context // The context to use for cancellation
	Stdout  io.Writer       // Optional: redirect output to this writer (e.g., a build log)
	Stderr  io.Writer
}

func NewExecutor(ctx context.Context) *Executor {
	return &Executor{Context: ctx}
}

// Run executes the given command. It wires up stdio, isolates the child
// in its own process group, and kills the whole group on cancellation so
// a make fan-out does not outlive an interrupted run.
func (e *Executor) Run(cmd *exec.Cmd) error {
	// --- Phase 0: wire up stdio ---
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	if cmd.Stdout == nil {
		if e.Stdout != nil {
			cmd.Stdout = e.Stdout
		} else {
			cmd.Stdout = os.Stdout
		}
	}
	if cmd.Stderr == nil {
		if e.Stderr != nil {
			cmd.Stderr = e.Stderr
		} else {
			cmd.Stderr = os.Stderr
		}
	}

	// --- Phase 1: rebuild under our context ---
	finalCmd := exec.CommandContext(e.Context, cmd.Path, cmd.Args[1:]...)
	finalCmd.Dir = cmd.Dir

	// preserve or inherit the environment
	if len(cmd.Env) > 0 {
		finalCmd.Env = cmd.Env
	} else {
		finalCmd.Env = os.Environ()
	}

	// carry over stdio
	finalCmd.Stdin = cmd.Stdin
	finalCmd.Stdout = cmd.Stdout
	finalCmd.Stderr = cmd.Stderr

	// --- Phase 2: isolate process group for context-based cleanup ---
	finalCmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// --- Phase 3: start and watch for cancel ---
	if err := finalCmd.Start(); err != nil {
		return fmt.Errorf("failed to start command: %w", err)
	}

	pgid := finalCmd.Process.Pid

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-e.Context.Done():
			syscall.Kill(-pgid, syscall.SIGKILL)
		case <-done:
		}
	}()

	// --- Phase 4: wait and return ---
	if waitErr := finalCmd.Wait(); waitErr != nil {
		if e.Context.Err() != nil {
			time.Sleep(100 * time.Millisecond)
			return fmt.Errorf("command aborted: %v", e.Context.Err())
		}
		return waitErr
	}
	return nil
}

// tailBuffer keeps the last maxLines lines written to it, so a failed
// configure or make can be surfaced without holding the full log in memory.
type tailBuffer struct {
	maxLines int
	lines    []string
	partial  strings.Builder
}

func newTailBuffer(maxLines int) *tailBuffer {
	return &tailBuffer{maxLines: maxLines}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		if b == '\n' {
			t.lines = append(t.lines, t.partial.String())
			t.partial.Reset()
			if len(t.lines) > t.maxLines {
				t.lines = t.lines[len(t.lines)-t.maxLines:]
			}
			continue
		}
		t.partial.WriteByte(b)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	out := t.lines
	if t.partial.Len() > 0 {
		out = append(out, t.partial.String())
	}
	return strings.Join(out, "\n")
}

// RunLogged executes cmd with combined output tee'd to logPath. On failure
// the returned error carries the tail of the tool output verbatim, which is
// the only diagnostic the user gets for a native build failure.
func (e *Executor) RunLogged(cmd *exec.Cmd, logPath string) error {
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open build log %s: %w", logPath, err)
	}
	defer logFile.Close()

	tail := newTailBuffer(40)
	sink := io.MultiWriter(logFile, tail)

	logged := *cmd
	logged.Stdin = strings.NewReader("")
	logged.Stdout = sink
	logged.Stderr = sink

	fmt.Fprintf(logFile, "+ %s\n", strings.Join(cmd.Args, " "))

	if err := e.Run(&logged); err != nil {
		return fmt.Errorf("%s failed: %w\nlog: %s\n--- last output ---\n%s",
			cmd.Args[0], err, logPath, tail.String())
	}
	return nil
}
