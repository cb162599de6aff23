package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "program")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestRunEchoesStdout(t *testing.T) {
	path := writeScript(t, "read n; echo $((n*n))")
	r := NewProcessRunner()

	res, err := r.Run(context.Background(), path, "7\n", 2*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.TimedOut {
		t.Fatal("unexpected timeout")
	}
	if got := strings.TrimSpace(res.Stdout); got != "49" {
		t.Errorf("stdout = %q, want %q", got, "49")
	}
	if res.Stderr != "" {
		t.Errorf("stderr = %q, want empty", res.Stderr)
	}
}

func TestRunClosesStdin(t *testing.T) {
	// cat reads until EOF; the run only finishes if stdin gets closed.
	path := writeScript(t, "cat")
	r := NewProcessRunner()

	res, err := r.Run(context.Background(), path, "hello\n", 2*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.TimedOut {
		t.Fatal("run timed out, stdin was not closed")
	}
	if got := strings.TrimSpace(res.Stdout); got != "hello" {
		t.Errorf("stdout = %q, want %q", got, "hello")
	}
}

func TestRunTimeout(t *testing.T) {
	path := writeScript(t, "echo before; sleep 30; echo after")
	r := NewProcessRunner()

	start := time.Now()
	res, err := r.Run(context.Background(), path, "", 500*time.Millisecond)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.TimedOut {
		t.Fatal("expected timeout")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("kill took too long: %v", elapsed)
	}
	if got := strings.TrimSpace(res.Stdout); got != "before" {
		t.Errorf("partial stdout = %q, want %q", got, "before")
	}
}

func TestRunCapturesStderr(t *testing.T) {
	path := writeScript(t, "echo warming up >&2; echo boom: division by zero >&2")
	r := NewProcessRunner()

	res, err := r.Run(context.Background(), path, "", 2*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(res.Stderr, "division by zero") {
		t.Errorf("stderr = %q, want it to contain the error", res.Stderr)
	}
}

func TestRunContextCancel(t *testing.T) {
	path := writeScript(t, "sleep 30")
	r := NewProcessRunner()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, err := r.Run(ctx, path, "", time.Minute); err == nil {
		t.Fatal("expected context error")
	}
}

func TestRunMissingProgram(t *testing.T) {
	r := NewProcessRunner()
	if _, err := r.Run(context.Background(), filepath.Join(t.TempDir(), "nope"), "", time.Second); err == nil {
		t.Fatal("expected start error")
	}
}

func TestCappedWriterTruncates(t *testing.T) {
	path := writeScript(t, "yes x | head -c 100000")
	r := &ProcessRunner{MaxOutputBytes: 1024}

	res, err := r.Run(context.Background(), path, "", 5*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Stdout) != 1024 {
		t.Errorf("stdout length = %d, want 1024", len(res.Stdout))
	}
}
