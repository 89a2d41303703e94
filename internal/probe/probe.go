// Package probe implements the five discovery protocols (ARP, ICMP, SSDP,
// mDNS, Port) behind one polymorphic contract. Each probe is a small value
// implementing Prober; there is no shared base type because the probes vary
// by protocol, not by platform — OS variation lives inside a single probe
// (e.g. the ARP cache-fallback reader) as a thin shim, never as a hierarchy.
package probe

import (
	"context"
	"time"

	"github.com/lanscope/discoveryd/internal/model"
)

// Target is whatever a probe runs against: a whole Interface for
// broadcast/multicast probes, or a single host address for unicast probes.
type Target struct {
	Interface *model.Interface
	Address   string
}

// InterfaceTarget builds a Target for a broadcast/multicast probe.
func InterfaceTarget(iface model.Interface) Target {
	return Target{Interface: &iface}
}

// AddressTarget builds a Target for a unicast probe.
func AddressTarget(addr string) Target {
	return Target{Address: addr}
}

// Prober is the common contract every discovery protocol implements.
//
// Implementations must: respect deadline (abandon I/O past it and return
// whatever partial Observations were gathered); never panic or return a Go
// error across this boundary (operational failures become an empty result
// plus a non-OK model.ProbeStatus); tag every Observation they emit with
// their own model.Source; and be safe to run concurrently with any other
// Prober, including another instance of themselves against a different
// target.
type Prober interface {
	Probe(ctx context.Context, target Target, deadline time.Time) ([]model.Observation, model.ProbeStatus)
}

// withDeadline derives a context bounded by both ctx's existing deadline (if
// any) and deadline, whichever is sooner — mirroring the phase-vs-probe
// timeout relationship in the engine (per-probe timeouts are always
// strictly smaller than or equal to the phase deadline that bounds them).
func withDeadline(ctx context.Context, deadline time.Time) (context.Context, context.CancelFunc) {
	return context.WithDeadline(ctx, deadline)
}
