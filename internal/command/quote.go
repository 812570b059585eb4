package command

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Quote returns s quoted for a POSIX shell command line.
func Quote(s string) string {
	quoted, err := syntax.Quote(s, syntax.LangPOSIX)
	if err != nil {
		// Non-printable input; plain single quotes still pass the bytes
		// through unchanged.
		return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
	}
	return quoted
}

// Join quotes every argument and joins them with spaces.
func Join(args ...string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = Quote(arg)
	}
	return strings.Join(quoted, " ")
}
