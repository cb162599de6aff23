package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// RunResult is the raw outcome of one program execution.
type RunResult struct {
	Stdout   string
	Stderr   string
	TimedOut bool
}

// ProgramRunner executes a contestant program once against one input.
// Implementations must enforce the wall clock limit themselves.
type ProgramRunner interface {
	Run(ctx context.Context, programPath, input string, timeout time.Duration) (*RunResult, error)
}

// ProcessRunner runs the program as a fresh OS process per call. The process
// gets its own process group so a timeout kill also reaps anything it forked.
type ProcessRunner struct {
	// MaxOutputBytes caps captured stdout/stderr per stream. Zero means the
	// default of 1 MiB.
	MaxOutputBytes int64
}

const defaultMaxOutputBytes = 1 << 20

// NewProcessRunner creates a runner with default limits.
func NewProcessRunner() *ProcessRunner {
	return &ProcessRunner{MaxOutputBytes: defaultMaxOutputBytes}
}

// Run starts programPath, feeds input on stdin, then closes it and waits up
// to timeout. On timeout the whole process group is killed with SIGKILL and
// TimedOut is set; partial output is still returned. A non-nil error means
// the run itself could not be performed, not that the program misbehaved.
func (r *ProcessRunner) Run(ctx context.Context, programPath, input string, timeout time.Duration) (*RunResult, error) {
	if programPath == "" {
		return nil, errors.New("program path is required")
	}
	if timeout <= 0 {
		return nil, errors.New("timeout is required")
	}

	cmd := exec.Command(programPath)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	maxBytes := r.MaxOutputBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxOutputBytes
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &cappedWriter{buf: &stdout, limit: maxBytes}
	cmd.Stderr = &cappedWriter{buf: &stderr, limit: maxBytes}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("start program: %w", err)
	}

	// Feed the whole input, then close stdin so programs that read until EOF
	// terminate. A program ignoring stdin can make the write block, so it
	// runs concurrently with the wait below.
	go func() {
		io.WriteString(stdin, input)
		stdin.Close()
	}()

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	result := &RunResult{}
	select {
	case <-waitErr:
		// Non-zero exit status is not an error here; judging looks at stderr.
	case <-timer.C:
		r.killGroup(cmd)
		<-waitErr
		result.TimedOut = true
	case <-ctx.Done():
		r.killGroup(cmd)
		<-waitErr
		return nil, ctx.Err()
	}

	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	return result, nil
}

func (r *ProcessRunner) killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid := cmd.Process.Pid
	if err := unix.Kill(-pgid, unix.SIGKILL); err != nil {
		// Group may be gone already; fall back to the process itself.
		_ = cmd.Process.Kill()
	}
}

// cappedWriter keeps only the first limit bytes and silently discards the
// rest, so a runaway program cannot exhaust memory.
type cappedWriter struct {
	buf   *bytes.Buffer
	limit int64
}

func (w *cappedWriter) Write(p []byte) (int, error) {
	remaining := w.limit - int64(w.buf.Len())
	if remaining <= 0 {
		return len(p), nil
	}
	if int64(len(p)) > remaining {
		w.buf.Write(p[:remaining])
		return len(p), nil
	}
	return w.buf.Write(p)
}
