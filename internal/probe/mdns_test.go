package probe

import (
	"net"
	"testing"

	"golang.org/x/net/dns/dnsmessage"
)

func buildMDNSResponse(t *testing.T, name string, ip net.IP) []byte {
	t.Helper()
	b := dnsmessage.NewBuilder(nil, dnsmessage.Header{Response: true})
	if err := b.StartAnswers(); err != nil {
		t.Fatalf("StartAnswers: %v", err)
	}
	var ipArr [4]byte
	copy(ipArr[:], ip.To4())
	err := b.AResource(
		dnsmessage.ResourceHeader{
			Name:  dnsmessage.MustNewName(name),
			Type:  dnsmessage.TypeA,
			Class: dnsmessage.ClassINET,
		},
		dnsmessage.AResource{A: ipArr},
	)
	if err != nil {
		t.Fatalf("AResource: %v", err)
	}
	data, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	return data
}

func TestParseMDNSResponseExtractsAddress(t *testing.T) {
	data := buildMDNSResponse(t, "device-1.local.", net.ParseIP("192.168.1.40"))

	result, err := parseMDNSResponse(data, net.ParseIP("192.168.1.40"))
	if err != nil {
		t.Fatalf("parseMDNSResponse: %v", err)
	}
	if len(result.addrs) != 1 || result.addrs[0] != "192.168.1.40" {
		t.Fatalf("addrs = %v", result.addrs)
	}
}

func buildMDNSServicePTRResponse(t *testing.T, serviceType, instance string, ip net.IP) []byte {
	t.Helper()
	b := dnsmessage.NewBuilder(nil, dnsmessage.Header{Response: true})
	if err := b.StartAnswers(); err != nil {
		t.Fatalf("StartAnswers: %v", err)
	}
	err := b.PTRResource(
		dnsmessage.ResourceHeader{
			Name:  dnsmessage.MustNewName(serviceType),
			Type:  dnsmessage.TypePTR,
			Class: dnsmessage.ClassINET,
		},
		dnsmessage.PTRResource{PTR: dnsmessage.MustNewName(instance)},
	)
	if err != nil {
		t.Fatalf("PTRResource: %v", err)
	}
	var ipArr [4]byte
	copy(ipArr[:], ip.To4())
	err = b.AResource(
		dnsmessage.ResourceHeader{
			Name:  dnsmessage.MustNewName(instance),
			Type:  dnsmessage.TypeA,
			Class: dnsmessage.ClassINET,
		},
		dnsmessage.AResource{A: ipArr},
	)
	if err != nil {
		t.Fatalf("AResource: %v", err)
	}
	data, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	return data
}

func TestParseMDNSResponseExtractsInstanceLabelFromServicePTR(t *testing.T) {
	data := buildMDNSServicePTRResponse(t, "_http._tcp.local.", "Kitchen Printer._http._tcp.local.", net.ParseIP("192.168.1.50"))

	result, err := parseMDNSResponse(data, net.ParseIP("192.168.1.50"))
	if err != nil {
		t.Fatalf("parseMDNSResponse: %v", err)
	}
	if result.hostname != "Kitchen Printer" {
		t.Errorf("hostname = %q, want %q", result.hostname, "Kitchen Printer")
	}
	if len(result.services) != 1 || result.services[0] != "_http._tcp.local" {
		t.Errorf("services = %v", result.services)
	}
}

func TestParseMDNSResponseIgnoresEnumerationMetaPTRForHostname(t *testing.T) {
	data := buildMDNSServicePTRResponse(t, "_services._dns-sd._udp.local.", "_http._tcp.local.", net.ParseIP("192.168.1.51"))

	result, err := parseMDNSResponse(data, net.ParseIP("192.168.1.51"))
	if err != nil {
		t.Fatalf("parseMDNSResponse: %v", err)
	}
	if result.hostname != "" {
		t.Errorf("hostname = %q, want empty for the bare enumeration meta-query", result.hostname)
	}
}

func TestMergeUniqueDedupes(t *testing.T) {
	got := mergeUnique([]string{"a", "b"}, []string{"b", "c"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("mergeUnique = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("mergeUnique = %v, want %v", got, want)
		}
	}
}
