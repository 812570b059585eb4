// Package lxctest simulates the lxc-* tools so pipeline code can be tested
// without a container runtime.
package lxctest

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/cochaviz/vagrantizer/internal/command"
	"github.com/cochaviz/vagrantizer/internal/command/commandtest"
)

// Runtime is a command.Executor that keeps container state in memory and
// answers lxc-create, lxc-start, lxc-stop, lxc-destroy, lxc-ls, lxc-info and
// lxc-attach like the real tools. Rules registered with On or Sequence take
// precedence; other commands succeed with empty output.
type Runtime struct {
	mu         sync.Mutex
	containers map[string]string
	pid        int

	script commandtest.Runner
	calls  []string
}

var _ command.Executor = (*Runtime)(nil)

// New returns an empty runtime.
func New() *Runtime {
	return &Runtime{containers: make(map[string]string), pid: 4000}
}

// Seed registers a container in the given state ("STOPPED" or "RUNNING").
func (r *Runtime) Seed(name, state string) *Runtime {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.containers[name] = state
	return r
}

// State returns the simulated state, or "ABSENT".
func (r *Runtime) State(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.containers[name]; ok {
		return state
	}
	return "ABSENT"
}

// On scripts a response for commands containing substr.
func (r *Runtime) On(substr string, resp commandtest.Response) *Runtime {
	r.script.On(substr, resp)
	return r
}

// Sequence scripts consecutive responses for commands containing substr.
func (r *Runtime) Sequence(substr string, responses ...commandtest.Response) *Runtime {
	r.script.Sequence(substr, responses...)
	return r
}

// Commands returns every command line seen.
func (r *Runtime) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// Count returns how many command lines contain substr.
func (r *Runtime) Count(substr string) int {
	n := 0
	for _, c := range r.Commands() {
		if strings.Contains(c, substr) {
			n++
		}
	}
	return n
}

// Run implements command.Executor.
func (r *Runtime) Run(ctx context.Context, cmdline string, opts ...command.Option) (command.Result, error) {
	if err := ctx.Err(); err != nil {
		return command.Result{}, err
	}
	r.mu.Lock()
	r.calls = append(r.calls, cmdline)
	r.mu.Unlock()

	if r.script.Matches(cmdline) {
		return r.script.Run(ctx, cmdline, opts...)
	}

	o := command.NewOptions(opts...)
	code, output := r.simulate(cmdline)
	result := command.Result{ExitCode: code, Output: output}
	if code != 0 && !o.AllowFailure {
		return result, &command.ExecutionError{Command: cmdline, ExitCode: code, Output: output}
	}
	return result, nil
}

func (r *Runtime) simulate(cmdline string) (int, string) {
	fields := strings.Fields(cmdline)
	tool, name := "", ""
	for i, f := range fields {
		if f == "--" {
			break
		}
		if tool == "" && strings.HasPrefix(f, "lxc-") {
			tool = f
		}
		if f == "-n" && i+1 < len(fields) {
			name = strings.Trim(fields[i+1], "'")
		}
	}
	if tool == "" {
		return 0, ""
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	state, exists := r.containers[name]

	switch tool {
	case "lxc-ls":
		names := make([]string, 0, len(r.containers))
		for n := range r.containers {
			names = append(names, n)
		}
		slices.Sort(names)
		if len(names) == 0 {
			return 0, ""
		}
		return 0, strings.Join(names, "\n") + "\n"
	case "lxc-info":
		if !exists {
			return 1, fmt.Sprintf("%s doesn't exist\n", name)
		}
		if slices.Contains(fields, "-p") {
			if state != "RUNNING" {
				return 0, ""
			}
			return 0, fmt.Sprintf("%d\n", r.pid)
		}
		return 0, fmt.Sprintf("State:          %s\n", state)
	case "lxc-create":
		if exists {
			return 1, fmt.Sprintf("Container already exists: %s\n", name)
		}
		r.containers[name] = "STOPPED"
		return 0, "Downloading the image index\nUnpacking the rootfs\n"
	case "lxc-start":
		if !exists {
			return 1, fmt.Sprintf("No container config specified for %s\n", name)
		}
		if state == "RUNNING" {
			return 1, fmt.Sprintf("Container \"%s\" is already running\n", name)
		}
		r.pid++
		r.containers[name] = "RUNNING"
		return 0, ""
	case "lxc-stop":
		if !exists || state != "RUNNING" {
			return 2, fmt.Sprintf("%s is not running\n", name)
		}
		r.containers[name] = "STOPPED"
		return 0, ""
	case "lxc-destroy":
		if !exists {
			return 1, fmt.Sprintf("Container is not defined: %s\n", name)
		}
		if state == "RUNNING" {
			return 1, fmt.Sprintf("Container \"%s\" is running\n", name)
		}
		delete(r.containers, name)
		return 0, ""
	case "lxc-attach":
		if !exists || state != "RUNNING" {
			return 1, fmt.Sprintf("Failed to get init pid of %s\n", name)
		}
		return 0, ""
	}
	return 0, ""
}
