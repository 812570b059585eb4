// Package readiness decides when a freshly started container can reach the
// network.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var ErrNotReady = errors.New("container network not ready")

// Subject is the container being waited on.
type Subject interface {
	Name() string
	PID(ctx context.Context) (int, error)
}

// Waiter blocks until the subject's network is usable.
type Waiter interface {
	Wait(ctx context.Context, subject Subject) error
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Delay waits a fixed amount of time.
type Delay struct {
	Duration time.Duration
	Logger   *slog.Logger
}

func (d Delay) Wait(ctx context.Context, subject Subject) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("waiting for network", "container", subject.Name(), "delay", d.Duration)
	return Sleep(ctx, d.Duration)
}

// None does not wait. Used for dry runs.
type None struct{}

func (None) Wait(context.Context, Subject) error { return nil }

// Backoff calls check until it reports true, sleeping base, 2*base, 4*base
// and so on (capped at ceiling) between attempts. It gives up at timeout.
func Backoff(ctx context.Context, timeout, base, ceiling time.Duration, check func() (bool, error)) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	wait := base
	for attempt := 1; ; attempt++ {
		ok, err := check()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if err := Sleep(ctx, wait); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("%w after %d attempts", ErrNotReady, attempt)
			}
			return err
		}
		wait *= 2
		if wait > ceiling {
			wait = ceiling
		}
	}
}
