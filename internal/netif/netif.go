// Package netif enumerates the host's usable IPv4 network interfaces.
package netif

import (
	"net"
	"strings"

	"github.com/vishvananda/netlink"

	"github.com/lanscope/discoveryd/internal/logging"
	"github.com/lanscope/discoveryd/internal/model"
)

// linkLocal is the 169.254.0.0/16 block, always excluded per the interface
// filter: addresses here are autoconfigured and never routable peers.
var linkLocal = &net.IPNet{IP: net.IPv4(169, 254, 0, 0), Mask: net.CIDRMask(16, 32)}

// Enumerator lists the interfaces a discovery run should probe against.
type Enumerator struct {
	log *logging.Logger
}

// NewEnumerator builds an Enumerator logging through log.
func NewEnumerator(log *logging.Logger) *Enumerator {
	return &Enumerator{log: log.WithComponent("netif")}
}

// Enumerate returns every interface with a usable IPv4 address: no loopback,
// no link-local, only addresses with a parseable netmask. It tries netlink
// first for driver-accurate link state and falls back to the portable
// net.Interfaces/net.InterfaceAddrs pair when netlink can't be used (missing
// CAP_NET_ADMIN, non-Linux, sandboxed namespace). Both paths share the same
// filter, so the result is identical regardless of source. Enumerate never
// fails: an empty return is a valid (if discouraging) result, per the
// engine's "terminal warning, not an error" contract.
func (e *Enumerator) Enumerate() []model.Interface {
	if ifaces, ok := e.enumerateNetlink(); ok {
		return ifaces
	}
	e.log.Debug("netlink unavailable, falling back to net.Interfaces")
	return e.enumerateStdlib()
}

func (e *Enumerator) enumerateNetlink() ([]model.Interface, bool) {
	links, err := netlink.LinkList()
	if err != nil {
		e.log.Warn("netlink link list failed", "error", err)
		return nil, false
	}

	var out []model.Interface
	for _, link := range links {
		attrs := link.Attrs()
		if attrs == nil || isLoopbackName(attrs.Name) {
			continue
		}
		addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
		if err != nil {
			e.log.Warn("netlink addr list failed", "iface", attrs.Name, "error", err)
			continue
		}
		for _, addr := range addrs {
			if iface, ok := toInterface(attrs.Name, addr.IPNet); ok {
				out = append(out, iface)
			}
		}
	}
	return out, true
}

func (e *Enumerator) enumerateStdlib() []model.Interface {
	ifaces, err := net.Interfaces()
	if err != nil {
		e.log.Warn("net.Interfaces failed", "error", err)
		return nil
	}

	var out []model.Interface
	for _, nic := range ifaces {
		if isLoopbackName(nic.Name) || nic.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := nic.Addrs()
		if err != nil {
			e.log.Warn("interface addr list failed", "iface", nic.Name, "error", err)
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if iface, ok := toInterface(nic.Name, ipNet); ok {
				out = append(out, iface)
			}
		}
	}
	return out
}

// toInterface applies the shared filter (IPv4 only, no link-local, valid
// netmask) and computes the interface's CIDR.
func toInterface(name string, ipNet *net.IPNet) (model.Interface, bool) {
	if ipNet == nil || ipNet.IP == nil {
		return model.Interface{}, false
	}
	ip4 := ipNet.IP.To4()
	if ip4 == nil {
		return model.Interface{}, false
	}
	if len(ipNet.Mask) == 0 {
		return model.Interface{}, false
	}
	if linkLocal.Contains(ip4) {
		return model.Interface{}, false
	}
	network := &net.IPNet{IP: ip4.Mask(ipNet.Mask), Mask: ipNet.Mask}
	return model.Interface{Name: name, IP: ip4, Net: network}, true
}

func isLoopbackName(name string) bool {
	return name == "lo" || strings.HasPrefix(name, "lo:")
}
