package readiness

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vishvananda/netlink"
)

type stubSubject struct {
	pid int
	err error
}

func (s stubSubject) Name() string                     { return "debian-10-bare" }
func (s stubSubject) PID(context.Context) (int, error) { return s.pid, s.err }

type countingWaiter struct{ calls atomic.Int32 }

func (w *countingWaiter) Wait(context.Context, Subject) error {
	w.calls.Add(1)
	return nil
}

func TestDelayWaits(t *testing.T) {
	t.Parallel()

	start := time.Now()
	require.NoError(t, Delay{Duration: 50 * time.Millisecond}.Wait(context.Background(), stubSubject{}))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestSleepHonoursCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}

func TestBackoffSucceedsEventually(t *testing.T) {
	t.Parallel()

	attempts := 0
	err := Backoff(context.Background(), time.Second, time.Millisecond, 4*time.Millisecond, func() (bool, error) {
		attempts++
		return attempts == 4, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, attempts)
}

func TestBackoffTimesOut(t *testing.T) {
	t.Parallel()

	err := Backoff(context.Background(), 30*time.Millisecond, 5*time.Millisecond, 10*time.Millisecond, func() (bool, error) {
		return false, nil
	})
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestProbeFallsBackWithoutPrivileges(t *testing.T) {
	t.Parallel()

	fallback := &countingWaiter{}
	probe := &Probe{
		Fallback:   fallback,
		Privileged: func() bool { return false },
		Check:      func(int) (bool, error) { t.Fatal("check must not run"); return false, nil },
	}
	require.NoError(t, probe.Wait(context.Background(), stubSubject{pid: 42}))
	assert.EqualValues(t, 1, fallback.calls.Load())
}

func TestProbeFallsBackWithoutPID(t *testing.T) {
	t.Parallel()

	fallback := &countingWaiter{}
	probe := &Probe{Fallback: fallback, Privileged: func() bool { return true }}
	require.NoError(t, probe.Wait(context.Background(), stubSubject{pid: 0}))
	assert.EqualValues(t, 1, fallback.calls.Load())
}

func TestProbePollsUntilReady(t *testing.T) {
	t.Parallel()

	fallback := &countingWaiter{}
	var seenPID int
	attempts := 0
	probe := &Probe{
		Fallback:    fallback,
		BaseBackoff: time.Millisecond,
		Privileged:  func() bool { return true },
		Check: func(pid int) (bool, error) {
			seenPID = pid
			attempts++
			return attempts >= 3, nil
		},
	}
	require.NoError(t, probe.Wait(context.Background(), stubSubject{pid: 4001}))
	assert.Equal(t, 4001, seenPID)
	assert.Equal(t, 3, attempts)
	assert.Zero(t, fallback.calls.Load())
}

func TestProbeUnavailableUsesFallback(t *testing.T) {
	t.Parallel()

	fallback := &countingWaiter{}
	probe := &Probe{
		Fallback:   fallback,
		Privileged: func() bool { return true },
		Check:      func(int) (bool, error) { return false, ErrProbeUnavailable },
	}
	require.NoError(t, probe.Wait(context.Background(), stubSubject{pid: 7}))
	assert.EqualValues(t, 1, fallback.calls.Load())
}

func TestProbePropagatesPIDError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	probe := &Probe{Privileged: func() bool { return true }}
	assert.ErrorIs(t, probe.Wait(context.Background(), stubSubject{err: boom}), boom)
}

func TestAddressAndRouteClassification(t *testing.T) {
	t.Parallel()

	loopback := netlink.Addr{IPNet: &net.IPNet{IP: net.ParseIP("127.0.0.1"), Mask: net.CIDRMask(8, 32)}}
	lease := netlink.Addr{IPNet: &net.IPNet{IP: net.ParseIP("10.0.3.57"), Mask: net.CIDRMask(24, 32)}}
	assert.False(t, hasGlobalAddr([]netlink.Addr{loopback}))
	assert.True(t, hasGlobalAddr([]netlink.Addr{loopback, lease}))

	link := netlink.Route{Dst: &net.IPNet{IP: net.ParseIP("10.0.3.0").To4(), Mask: net.CIDRMask(24, 32)}}
	def := netlink.Route{Gw: net.ParseIP("10.0.3.1")}
	explicit := netlink.Route{Gw: net.ParseIP("10.0.3.1"), Dst: &net.IPNet{IP: net.IPv4zero, Mask: net.CIDRMask(0, 32)}}
	assert.False(t, hasDefaultRoute([]netlink.Route{link}))
	assert.True(t, hasDefaultRoute([]netlink.Route{link, def}))
	assert.True(t, hasDefaultRoute([]netlink.Route{explicit}))
}
