package probe

import (
	"net"
	"testing"
)

func TestBuildAndParseARPRoundTrip(t *testing.T) {
	src := net.HardwareAddr{0x3c, 0x6d, 0x66, 0x24, 0x69, 0x6c}
	request := buildARPRequest(src, net.ParseIP("192.168.1.1"), net.ParseIP("192.168.1.180"))

	// Flip the request into a reply as a peer would: swap op, swap
	// sender/target, to validate our own parser against our own builder.
	reply := make([]byte, len(request))
	copy(reply, request)
	reply[20] = 0
	reply[21] = 2 // ARP opcode: reply
	copy(reply[14+8:14+14], src)
	copy(reply[14+14:14+18], net.ParseIP("192.168.1.180").To4())

	ip, mac, ok := parseARPReply(reply)
	if !ok {
		t.Fatal("expected reply to parse")
	}
	if ip != "192.168.1.180" {
		t.Errorf("ip = %q", ip)
	}
	if mac != src.String() {
		t.Errorf("mac = %q, want %q", mac, src.String())
	}
}

func TestParseARPReplyRejectsRequest(t *testing.T) {
	src := net.HardwareAddr{0x3c, 0x6d, 0x66, 0x24, 0x69, 0x6c}
	request := buildARPRequest(src, net.ParseIP("192.168.1.1"), net.ParseIP("192.168.1.180"))
	_, _, ok := parseARPReply(request)
	if ok {
		t.Fatal("expected a request frame to be rejected")
	}
}

func TestIsUsableMAC(t *testing.T) {
	cases := map[string]bool{
		"aa:bb:cc:dd:ee:ff": true,
		"ff:ff:ff:ff:ff:ff": false,
		"00:00:00:00:00:00": false,
		"01:00:5e:00:00:01": false,
		"bad-mac":           false,
	}
	for mac, want := range cases {
		if got := isUsableMAC(mac); got != want {
			t.Errorf("isUsableMAC(%q) = %v, want %v", mac, got, want)
		}
	}
}

func TestIsUsableIP(t *testing.T) {
	cases := map[string]bool{
		"192.168.1.180": true,
		"224.0.0.251":   false,
		"239.255.255.250": false,
		"255.255.255.255": false,
		"255.0.0.1":     false,
		"10.0.0.1":      true,
	}
	for ip, want := range cases {
		if got := isUsableIP(net.ParseIP(ip)); got != want {
			t.Errorf("isUsableIP(%q) = %v, want %v", ip, got, want)
		}
	}
}

func TestHostsInNetExcludesNetworkAndBroadcast(t *testing.T) {
	_, n, err := net.ParseCIDR("192.168.1.0/30")
	if err != nil {
		t.Fatalf("ParseCIDR: %v", err)
	}
	hosts := hostsInNet(n)
	if len(hosts) != 2 {
		t.Fatalf("got %d hosts, want 2", len(hosts))
	}
	for _, h := range hosts {
		last := h[len(h)-1]
		if last == 0 || last == 3 {
			t.Errorf("host %v should have been excluded", h)
		}
	}
}
