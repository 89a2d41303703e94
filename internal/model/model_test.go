package model

import (
	"net"
	"testing"
)

func TestInterfaceCIDRRendersNetwork(t *testing.T) {
	_, n, _ := net.ParseCIDR("192.168.1.0/24")
	iface := Interface{Name: "eth0", IP: net.ParseIP("192.168.1.5"), Net: n}
	if got := iface.CIDR(); got != "192.168.1.0/24" {
		t.Errorf("CIDR() = %q", got)
	}
}

func TestInterfaceCIDRHandlesNilNet(t *testing.T) {
	iface := Interface{Name: "eth0"}
	if got := iface.CIDR(); got != "" {
		t.Errorf("CIDR() = %q, want empty for a nil Net", got)
	}
}

func TestProbeStatusString(t *testing.T) {
	cases := map[ProbeStatus]string{
		StatusOK:                "OK",
		StatusPrivilegeDenied:   "PRIVILEGE_DENIED",
		StatusDependencyMissing: "DEPENDENCY_MISSING",
		StatusTimeout:           "TIMEOUT",
		StatusParseError:        "PARSE_ERROR",
		ProbeStatus(99):         "UNKNOWN",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", status, got, want)
		}
	}
}
