package command

import "time"

// Options tunes a single Run call.
type Options struct {
	Timeout      time.Duration // Overrides Runner.DefaultTimeout when non-zero.
	Dir          string        // Working directory; the process cwd when empty.
	Env          []string      // Extra KEY=VALUE pairs appended to the runner environment.
	AllowFailure bool          // Return non-zero exit codes in Result instead of an error.
	CaptureOnly  bool          // Collect output without echoing it.
}

// Option mutates Options.
type Option func(*Options)

// NewOptions applies opts in order to a zero Options value.
func NewOptions(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithTimeout sets the deadline used when timeouts are enforced.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// InDir runs the command from dir.
func InDir(dir string) Option {
	return func(o *Options) { o.Dir = dir }
}

// WithEnv adds environment variables for this command only.
func WithEnv(env ...string) Option {
	return func(o *Options) { o.Env = append(o.Env, env...) }
}

// AllowFailure lets the caller branch on the exit code.
func AllowFailure() Option {
	return func(o *Options) { o.AllowFailure = true }
}

// CaptureOnly suppresses the live echo of output lines.
func CaptureOnly() Option {
	return func(o *Options) { o.CaptureOnly = true }
}
