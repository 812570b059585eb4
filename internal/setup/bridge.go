package setup

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// Bridge describes the host bridge lxc attaches container veths to.
type Bridge struct {
	Name        string
	GatewayCIDR string
}

// DefaultBridge matches the lxc-net defaults.
var DefaultBridge = Bridge{
	Name:        "lxcbr0",
	GatewayCIDR: "10.0.3.1/24",
}

// CheckBridge reports whether the bridge exists and is up.
func CheckBridge(b Bridge) error {
	link, err := netlink.LinkByName(b.Name)
	if err != nil {
		return fmt.Errorf("bridge %s not found: %w", b.Name, err)
	}
	if link.Attrs().Flags&net.FlagUp == 0 {
		return fmt.Errorf("bridge %s is down", b.Name)
	}
	return nil
}

// EnsureBridge creates the bridge when missing, assigns the gateway address
// and brings it up. Requires root.
func EnsureBridge(b Bridge) error {
	if err := requireRoot(); err != nil {
		return err
	}
	gateway, err := netlink.ParseAddr(b.GatewayCIDR)
	if err != nil {
		return fmt.Errorf("parse gateway %s: %w", b.GatewayCIDR, err)
	}

	getLogger().Info("ensuring bridge", "bridge", b.Name, "gateway", b.GatewayCIDR)
	link, err := netlink.LinkByName(b.Name)
	if err != nil {
		if !isLinkNotFound(err) {
			return fmt.Errorf("get bridge %s: %w", b.Name, err)
		}
		br := &netlink.Bridge{
			LinkAttrs: netlink.LinkAttrs{
				Name: b.Name,
			},
		}
		if err := netlink.LinkAdd(br); err != nil && !errors.Is(err, syscall.EEXIST) {
			return fmt.Errorf("create bridge %s: %w", b.Name, err)
		}
		if link, err = netlink.LinkByName(b.Name); err != nil {
			return fmt.Errorf("get bridge %s: %w", b.Name, err)
		}
	}
	if err := ensureAddress(link, gateway); err != nil {
		return err
	}
	if err := netlink.LinkSetUp(link); err != nil {
		return fmt.Errorf("bring %s up: %w", b.Name, err)
	}
	return nil
}

func requireRoot() error {
	if unix.Geteuid() != 0 {
		return errors.New("run me as root")
	}
	return nil
}

func ensureAddress(link netlink.Link, addr *netlink.Addr) error {
	existing, err := netlink.AddrList(link, unix.AF_INET)
	if err != nil {
		return fmt.Errorf("list addresses: %w", err)
	}
	for _, a := range existing {
		if sameAddr(a, addr) {
			return nil
		}
	}
	if err := netlink.AddrAdd(link, addr); err != nil && !errors.Is(err, syscall.EEXIST) {
		return fmt.Errorf("add %s to %s: %w", addr, link.Attrs().Name, err)
	}
	return nil
}

func sameAddr(a netlink.Addr, b *netlink.Addr) bool {
	if a.IPNet == nil || b.IPNet == nil {
		return false
	}
	return a.IP.Equal(b.IP) && a.Mask.String() == b.Mask.String()
}

func isLinkNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOENT) {
		return true
	}
	var notFound netlink.LinkNotFoundError
	return errors.As(err, &notFound)
}
