package readiness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"
	"golang.org/x/sys/unix"
)

// ErrProbeUnavailable is returned by a Check that cannot inspect the
// container, e.g. for lack of privileges.
var ErrProbeUnavailable = errors.New("network probe unavailable")

// Probe polls the container's network namespace for a non-loopback IPv4
// address and a default route. When probing is not possible it defers to
// Fallback.
type Probe struct {
	Timeout     time.Duration // Defaults to one minute.
	BaseBackoff time.Duration // Defaults to 250ms.
	MaxBackoff  time.Duration // Defaults to 4s.
	Fallback    Waiter
	Logger      *slog.Logger

	// Check inspects the namespace of pid. Defaults to NamespaceReady.
	Check func(pid int) (bool, error)
	// Privileged reports whether namespaces can be entered. Defaults to an
	// effective uid check.
	Privileged func() bool
}

func (p *Probe) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *Probe) Wait(ctx context.Context, subject Subject) error {
	privileged := p.Privileged
	if privileged == nil {
		privileged = func() bool { return unix.Geteuid() == 0 }
	}
	if !privileged() {
		p.logger().Debug("network probe needs root, falling back", "container", subject.Name())
		return p.fallback(ctx, subject)
	}

	pid, err := subject.PID(ctx)
	if err != nil {
		return err
	}
	if pid == 0 {
		p.logger().Debug("no init pid, falling back", "container", subject.Name())
		return p.fallback(ctx, subject)
	}

	check := p.Check
	if check == nil {
		check = NamespaceReady
	}
	start := time.Now()
	err = Backoff(ctx, or(p.Timeout, time.Minute), or(p.BaseBackoff, 250*time.Millisecond), or(p.MaxBackoff, 4*time.Second),
		func() (bool, error) { return check(pid) })
	if errors.Is(err, ErrProbeUnavailable) {
		p.logger().Debug("network probe failed, falling back", "container", subject.Name(), "error", err)
		return p.fallback(ctx, subject)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", subject.Name(), err)
	}
	p.logger().Info("container network ready", "container", subject.Name(), "after", time.Since(start).Round(time.Millisecond))
	return nil
}

func (p *Probe) fallback(ctx context.Context, subject Subject) error {
	if p.Fallback == nil {
		return nil
	}
	return p.Fallback.Wait(ctx, subject)
}

func or(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}

// NamespaceReady reports whether the network namespace of pid has a
// non-loopback IPv4 address and an IPv4 default route.
func NamespaceReady(pid int) (bool, error) {
	ns, err := netns.GetFromPid(pid)
	if err != nil {
		return false, fmt.Errorf("%w: open netns of pid %d: %v", ErrProbeUnavailable, pid, err)
	}
	defer ns.Close()

	handle, err := netlink.NewHandleAt(ns)
	if err != nil {
		return false, fmt.Errorf("%w: netlink handle: %v", ErrProbeUnavailable, err)
	}
	defer handle.Close()

	addrs, err := handle.AddrList(nil, unix.AF_INET)
	if err != nil {
		return false, fmt.Errorf("list addresses: %w", err)
	}
	if !hasGlobalAddr(addrs) {
		return false, nil
	}

	routes, err := handle.RouteList(nil, unix.AF_INET)
	if err != nil {
		return false, fmt.Errorf("list routes: %w", err)
	}
	return hasDefaultRoute(routes), nil
}

func hasGlobalAddr(addrs []netlink.Addr) bool {
	for _, addr := range addrs {
		if addr.IPNet != nil && !addr.IP.IsLoopback() && !addr.IP.IsLinkLocalUnicast() {
			return true
		}
	}
	return false
}

func hasDefaultRoute(routes []netlink.Route) bool {
	for _, route := range routes {
		if route.Gw == nil {
			continue
		}
		if route.Dst == nil {
			return true
		}
		if ones, _ := route.Dst.Mask.Size(); ones == 0 && route.Dst.IP.Equal(net.IPv4zero) {
			return true
		}
	}
	return false
}
