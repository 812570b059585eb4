// Package lxc drives containers through the lxc-* command line tools.
//
// A Container is a handle: it derives names and paths from its target and
// asks the runtime for state on every call instead of remembering it.
package lxc
