package testutil

import (
	"os"
	"testing"
)

// RequirePrivilegedNet skips the test unless DISCOVERYD_NET_TEST is set.
// Raw ARP sends and privileged ICMP need CAP_NET_RAW or root; CI sandboxes
// rarely grant either, so those tests are opt-in.
func RequirePrivilegedNet(t *testing.T) {
	t.Helper()
	if os.Getenv("DISCOVERYD_NET_TEST") == "" {
		t.Skip("skipping test: requires DISCOVERYD_NET_TEST environment")
	}
}
