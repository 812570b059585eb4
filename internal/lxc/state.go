package lxc

import (
	"errors"
	"fmt"
	"strings"
)

// State is the runtime state of a container.
type State string

const (
	StateAbsent  State = "ABSENT"
	StateStopped State = "STOPPED"
	StateRunning State = "RUNNING"
)

var (
	ErrUnknownState = errors.New("unrecognized container state")
	ErrCreateFailed = errors.New("container creation failed")
)

// UnknownStateError carries the lxc-info output that could not be classified.
type UnknownStateError struct {
	Container string
	Output    string
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("container %s: %v: %q", e.Container, ErrUnknownState, strings.TrimSpace(e.Output))
}

func (e *UnknownStateError) Unwrap() error { return ErrUnknownState }

// parseState classifies lxc-info -s output.
func parseState(output string) (State, bool) {
	switch {
	case strings.Contains(output, string(StateStopped)):
		return StateStopped, true
	case strings.Contains(output, string(StateRunning)):
		return StateRunning, true
	default:
		return "", false
	}
}
