package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// stderrTailSize bounds the diagnostic text kept by Stream.
const stderrTailSize = 4 << 10

// Result is the outcome of one external process.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success reports whether the process exited with status zero.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Runner executes external commands synchronously.
//
// A non-zero exit status is not an error: it is reported in Result.ExitCode
// as-is. The returned error is non-nil only when the process could not be
// started or waited on, in which case ExitCode is -1.
type Runner interface {
	// Run blocks until the process exits and captures both output streams.
	Run(ctx context.Context, line *Line) (Result, error)

	// Stream blocks until the process exits, mirroring its output to w
	// instead of capturing it. Only a bounded tail of stderr is kept.
	Stream(ctx context.Context, line *Line, w io.Writer) (Result, error)
}

// Compile-time check that ExecRunner implements Runner.
var _ Runner = (*ExecRunner)(nil)

// ExecRunner implements Runner with os/exec.
type ExecRunner struct{}

// NewExecRunner creates an ExecRunner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run implements Runner.Run.
func (r *ExecRunner) Run(ctx context.Context, line *Line) (Result, error) {
	// #nosec G204 - program and arguments are composed by the pipeline, never a shell string
	cmd := exec.CommandContext(ctx, line.Program, line.Args()...)
	cmd.Dir = line.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	return finish(res, err, line)
}

// Stream implements Runner.Stream.
func (r *ExecRunner) Stream(ctx context.Context, line *Line, w io.Writer) (Result, error) {
	if w == nil {
		w = io.Discard
	}
	// #nosec G204 - program and arguments are composed by the pipeline, never a shell string
	cmd := exec.CommandContext(ctx, line.Program, line.Args()...)
	cmd.Dir = line.Dir

	// os/exec copies each stream on its own goroutine.
	out := &syncWriter{w: w}
	tail := &tailBuffer{max: stderrTailSize}
	cmd.Stdout = out
	cmd.Stderr = io.MultiWriter(out, tail)

	err := cmd.Run()
	res := Result{Stderr: tail.String()}
	return finish(res, err, line)
}

func finish(res Result, err error, line *Line) (Result, error) {
	if err == nil {
		return res, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	res.ExitCode = -1
	return res, fmt.Errorf("run %s: %w", line.Program, err)
}

// syncWriter serializes writes to w.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
