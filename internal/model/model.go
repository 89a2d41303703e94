// Package model defines the value types that flow through a discovery run:
// interfaces, observations, the per-IP device record, and the run snapshot.
package model

import (
	"net"
	"time"
)

// Source identifies which probe produced an Observation.
type Source string

const (
	SourceARP  Source = "ARP"
	SourceICMP Source = "ICMP"
	SourceSSDP Source = "SSDP"
	SourceMDNS Source = "MDNS"
	SourcePort Source = "PORT"
)

// Status is a device's last-known reachability as reported by a probe.
type Status string

const (
	StatusOnline     Status = "ONLINE"
	StatusNoResponse Status = "NO_RESPONSE"
)

// Interface describes one usable IPv4 network interface for the duration of
// a run. Immutable once enumerated.
type Interface struct {
	Name string
	IP   net.IP
	Net  *net.IPNet // CIDR derived from the interface's address and netmask
}

// CIDR renders the interface's network in "A.B.C.D/N" form.
func (i Interface) CIDR() string {
	if i.Net == nil {
		return ""
	}
	return i.Net.String()
}

// Observation is immutable evidence that a device was seen via one probe.
// Exactly one Source is set per Observation.
type Observation struct {
	IP        string
	Source    Source
	Timestamp time.Time
	Iface     string
	MAC       string
	Hostname  string
	Vendor    string
	Services  []string
	Status    Status
	Raw       any
}

// DeviceRecord is the per-IP aggregated view owned exclusively by the
// discovery store. Field mutation happens only through the store's merge
// rule; callers must treat a returned DeviceRecord as a snapshot copy.
type DeviceRecord struct {
	IP            string
	Hostname      string
	MAC           string
	Vendor        string
	Iface         string
	Services      []string
	DiscoveredVia []Source
	Status        Status
	FirstSeen     time.Time
	LastSeen      time.Time
	DeviceType    string
	Confidence    float64
}

// Meta carries run-level timing and host information for a Snapshot.
type Meta struct {
	OS         string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Summary reports aggregate counts over the devices in a Snapshot.
type Summary struct {
	TotalDevices  int
	WithHostnames int
	WithMACs      int
	WithVendor    int
}

// Snapshot is the frozen output of one discovery run.
type Snapshot struct {
	Meta       Meta
	Interfaces []Interface
	Devices    []DeviceRecord
	Summary    Summary
}

// ProbeStatus reports how a probe's attempt concluded, independent of
// whatever partial Observation slice it returns alongside it. Probes never
// propagate errors; a non-OK status is the entire error-signaling channel.
type ProbeStatus int

const (
	// StatusOK indicates the probe ran to completion (or deadline) normally.
	StatusOK ProbeStatus = iota
	// StatusPrivilegeDenied indicates a raw-socket operation was refused.
	StatusPrivilegeDenied
	// StatusDependencyMissing indicates an optional external capability
	// (e.g. a packet-capture driver) was not available.
	StatusDependencyMissing
	// StatusTimeout indicates the probe's deadline elapsed before any reply.
	StatusTimeout
	// StatusParseError indicates malformed peer data was skipped.
	StatusParseError
)

func (s ProbeStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusPrivilegeDenied:
		return "PRIVILEGE_DENIED"
	case StatusDependencyMissing:
		return "DEPENDENCY_MISSING"
	case StatusTimeout:
		return "TIMEOUT"
	case StatusParseError:
		return "PARSE_ERROR"
	default:
		return "UNKNOWN"
	}
}
