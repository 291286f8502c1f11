// Package commandtest provides a scripted command.Runner for tests.
package commandtest

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/maauso/motiontransfer/internal/command"
)

// Response is the scripted outcome of one command.
type Response struct {
	Result command.Result
	Err    error
	// Output is written to the stream writer by Stream.
	Output string
}

// Runner records every command it is asked to run and answers with the
// first Response whose key is a substring of the rendered command line.
// Commands that match nothing succeed with empty output.
type Runner struct {
	mu        sync.Mutex
	responses []keyed
	calls     []*command.Line
}

type keyed struct {
	key string
	res Response
}

var _ command.Runner = (*Runner)(nil)

// New creates an empty Runner.
func New() *Runner {
	return &Runner{}
}

// On scripts the response for commands whose rendering contains key.
func (r *Runner) On(key string, res Response) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, keyed{key: key, res: res})
	return r
}

// Run implements command.Runner.
func (r *Runner) Run(_ context.Context, line *command.Line) (command.Result, error) {
	res := r.record(line)
	return res.Result, res.Err
}

// Stream implements command.Runner.
func (r *Runner) Stream(_ context.Context, line *command.Line, w io.Writer) (command.Result, error) {
	res := r.record(line)
	if w != nil && res.Output != "" {
		_, _ = io.WriteString(w, res.Output)
	}
	out := res.Result
	out.Stdout = ""
	return out, res.Err
}

// Calls returns the rendered command lines in execution order.
func (r *Runner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.String()
	}
	return out
}

// Lines returns the recorded command lines in execution order.
func (r *Runner) Lines() []*command.Line {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*command.Line, len(r.calls))
	copy(out, r.calls)
	return out
}

// Called reports whether any recorded command contains key.
func (r *Runner) Called(key string) bool {
	for _, c := range r.Calls() {
		if strings.Contains(c, key) {
			return true
		}
	}
	return false
}

func (r *Runner) record(line *command.Line) Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, line)

	rendered := line.String()
	for _, k := range r.responses {
		if strings.Contains(rendered, k.key) {
			return k.res
		}
	}
	return Response{}
}
