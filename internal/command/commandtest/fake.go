// Package commandtest provides a scripted command.Executor for tests.
package commandtest

import (
	"context"
	"strings"
	"sync"

	"github.com/cochaviz/vagrantizer/internal/command"
)

// Response is returned for command lines matching a rule.
type Response struct {
	ExitCode int
	Output   string
	Err      error // Returned as-is, bypassing exit code handling.
}

type rule struct {
	contains string
	queue    []Response
	sticky   Response
}

// Call records one Run invocation.
type Call struct {
	Cmdline string
	Options command.Options
}

// Runner records every command line and answers from scripted rules. Rules
// are matched by substring in registration order; unmatched commands succeed
// with empty output.
type Runner struct {
	mu    sync.Mutex
	rules []*rule
	calls []Call
}

var _ command.Executor = (*Runner)(nil)

// On registers a sticky response for commands containing substr.
func (f *Runner) On(substr string, resp Response) *Runner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, &rule{contains: substr, sticky: resp})
	return f
}

// Sequence registers responses consumed one per matching call; the last one
// sticks once the queue is drained.
func (f *Runner) Sequence(substr string, responses ...Response) *Runner {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := &rule{contains: substr}
	if len(responses) > 0 {
		r.queue = responses[:len(responses)-1]
		r.sticky = responses[len(responses)-1]
	}
	f.rules = append(f.rules, r)
	return f
}

// Matches reports whether a rule applies to cmdline.
func (f *Runner) Matches(cmdline string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rules {
		if strings.Contains(cmdline, r.contains) {
			return true
		}
	}
	return false
}

// Run implements command.Executor.
func (f *Runner) Run(ctx context.Context, cmdline string, opts ...command.Option) (command.Result, error) {
	o := command.NewOptions(opts...)

	f.mu.Lock()
	f.calls = append(f.calls, Call{Cmdline: cmdline, Options: o})
	resp := Response{}
	for _, r := range f.rules {
		if !strings.Contains(cmdline, r.contains) {
			continue
		}
		if len(r.queue) > 0 {
			resp = r.queue[0]
			r.queue = r.queue[1:]
		} else {
			resp = r.sticky
		}
		break
	}
	f.mu.Unlock()

	if resp.Err != nil {
		return command.Result{}, resp.Err
	}
	result := command.Result{ExitCode: resp.ExitCode, Output: resp.Output}
	if resp.ExitCode != 0 && !o.AllowFailure {
		return result, &command.ExecutionError{Command: cmdline, ExitCode: resp.ExitCode, Output: resp.Output}
	}
	return result, nil
}

// Calls returns a copy of the recorded invocations.
func (f *Runner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Commands returns the recorded command lines.
func (f *Runner) Commands() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Cmdline
	}
	return out
}

// Count returns how many recorded command lines contain substr.
func (f *Runner) Count(substr string) int {
	n := 0
	for _, c := range f.Commands() {
		if strings.Contains(c, substr) {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls but keeps the rules.
func (f *Runner) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}
