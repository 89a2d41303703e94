package probe

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"os"
	"strings"
	"time"

	"github.com/mdlayher/packet"

	"github.com/lanscope/discoveryd/internal/clock"
	"github.com/lanscope/discoveryd/internal/logging"
	"github.com/lanscope/discoveryd/internal/model"
)

const (
	etherTypeARP = 0x0806
	arpHwEthernet = 1
	arpProtoIPv4  = 0x0800
	arpOpRequest  = 1
	arpOpReply    = 2
)

var (
	broadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	zeroMAC      = net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
)

// arpRetries is the number of broadcast retransmissions after the first send.
const arpRetries = 2

// ARPProbe resolves IP-to-MAC mappings on one interface's subnet. It is a
// per-interface Phase A probe (and is also reused unicast-style in Phase B
// to refresh a single already-known IP).
type ARPProbe struct {
	log   *logging.Logger
	clock clock.Clock
}

// NewARPProbe builds an ARPProbe.
func NewARPProbe(log *logging.Logger, clk clock.Clock) *ARPProbe {
	return &ARPProbe{log: log.WithComponent("probe.arp"), clock: clk}
}

// Probe broadcasts ARP requests for every host in target.Interface's CIDR
// (or, when target.Address is set, a single host — the Phase B unicast
// refresh case) over a raw L2 socket, retransmitting arpRetries times, and
// collects replies until deadline. If the raw socket can't be opened (no
// CAP_NET_RAW, no packet-capture driver), it falls back to reading the
// kernel ARP cache and returns whatever matching entries it finds.
func (p *ARPProbe) Probe(ctx context.Context, target Target, deadline time.Time) ([]model.Observation, model.ProbeStatus) {
	if target.Interface == nil {
		return nil, model.StatusParseError
	}
	iface := *target.Interface

	var only net.IP
	if target.Address != "" {
		only = net.ParseIP(target.Address)
		if only == nil {
			return nil, model.StatusParseError
		}
	}

	obs, status, err := p.probeRaw(ctx, iface, deadline, only)
	if err == nil {
		return obs, status
	}
	p.log.Debug("raw ARP unavailable, falling back to ARP cache", "iface", iface.Name, "error", err)

	obs = p.probeCache(iface, only)
	return obs, model.StatusPrivilegeDenied
}

// probeRaw sends broadcast ARP requests and listens for replies on a raw
// AF_PACKET socket. Returning a non-nil error means the caller should fall
// back to the cache reader (permission denied, no such driver, etc.). When
// only is non-nil, a single host is queried instead of the whole subnet.
func (p *ARPProbe) probeRaw(ctx context.Context, iface model.Interface, deadline time.Time, only net.IP) ([]model.Observation, model.ProbeStatus, error) {
	nic, err := net.InterfaceByName(iface.Name)
	if err != nil {
		return nil, model.StatusParseError, err
	}

	conn, err := packet.Listen(nic, packet.Raw, etherTypeARP, nil)
	if err != nil {
		return nil, model.StatusPrivilegeDenied, err
	}
	defer conn.Close()

	ctx, cancel := withDeadline(ctx, deadline)
	defer cancel()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	_ = conn.SetDeadline(deadline)

	hosts := hostsInNet(iface.Net)
	if only != nil {
		hosts = []net.IP{only}
	}
	frame := func(dst net.IP) []byte {
		return buildARPRequest(nic.HardwareAddr, iface.IP, dst)
	}

	addr := &packet.Addr{HardwareAddr: broadcastMAC}
	for attempt := 0; attempt <= arpRetries; attempt++ {
		for _, host := range hosts {
			if _, err := conn.WriteTo(frame(host), addr); err != nil {
				break
			}
		}
		select {
		case <-ctx.Done():
		default:
		}
	}

	seen := make(map[string]model.Observation)
	buf := make([]byte, 1500)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			break
		}
		ip, mac, ok := parseARPReply(buf[:n])
		if !ok {
			continue
		}
		seen[ip] = model.Observation{
			IP:        ip,
			Source:    model.SourceARP,
			Timestamp: p.clock.Now(),
			Iface:     iface.Name,
			MAC:       mac,
		}
	}

	out := make([]model.Observation, 0, len(seen))
	for _, o := range seen {
		out = append(out, o)
	}
	return out, model.StatusOK, nil
}

// probeCache reads /proc/net/arp and returns entries inside iface.Net (or,
// when only is non-nil, just that one address), filtered per the documented
// rule: exclude broadcast, zero, and IPv4-multicast (01:00:5e:*) hardware
// addresses, and exclude multicast (224.0.0.0/4) or broadcast (255.0.0.0/8)
// IP addresses regardless of the hardware address recorded against them.
func (p *ARPProbe) probeCache(iface model.Interface, only net.IP) []model.Observation {
	f, err := os.Open("/proc/net/arp")
	if err != nil {
		return nil
	}
	defer f.Close()

	var out []model.Observation
	scanner := bufio.NewScanner(f)
	scanner.Scan() // header line
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		ipStr, macStr := fields[0], strings.ToLower(fields[3])
		ip := net.ParseIP(ipStr)
		if ip == nil {
			continue
		}
		if only != nil {
			if !ip.Equal(only) {
				continue
			}
		} else if iface.Net == nil || !iface.Net.Contains(ip) {
			continue
		}
		if !isUsableMAC(macStr) || !isUsableIP(ip) {
			continue
		}
		out = append(out, model.Observation{
			IP:        ipStr,
			Source:    model.SourceARP,
			Timestamp: p.clock.Now(),
			Iface:     iface.Name,
			MAC:       macStr,
		})
	}
	return out
}

func isUsableMAC(mac string) bool {
	if len(mac) != 17 {
		return false
	}
	if mac == "ff:ff:ff:ff:ff:ff" || mac == "00:00:00:00:00:00" {
		return false
	}
	if strings.HasPrefix(mac, "01:00:5e:") {
		return false
	}
	return true
}

// isUsableIP rejects IPv4-multicast (224.0.0.0/4) and broadcast (255.0.0.0/8)
// addresses, which a kernel ARP cache can carry regardless of the recorded
// hardware address.
func isUsableIP(ip net.IP) bool {
	v4 := ip.To4()
	if v4 == nil {
		return true
	}
	return v4[0]&0xf0 != 0xe0 && v4[0] != 0xff
}

// hostsInNet enumerates every host address in net (excluding the network and
// broadcast addresses for /24-or-smaller blocks).
func hostsInNet(n *net.IPNet) []net.IP {
	if n == nil {
		return nil
	}
	ones, bits := n.Mask.Size()
	skipEdges := bits-ones <= 8
	network := n.IP.Mask(n.Mask)
	broadcast := cloneIP(network)
	for i := range broadcast {
		broadcast[i] |= ^n.Mask[len(n.Mask)-len(broadcast)+i]
	}

	var out []net.IP
	for ip := cloneIP(network); n.Contains(ip); incIP(ip) {
		if skipEdges && (ip.Equal(network) || ip.Equal(broadcast)) {
			continue
		}
		host := cloneIP(ip)
		out = append(out, host)
		if len(out) > 4096 {
			break // guard against accidental huge CIDRs
		}
	}
	return out
}

func cloneIP(ip net.IP) net.IP {
	c := make(net.IP, len(ip))
	copy(c, ip)
	return c
}

func incIP(ip net.IP) {
	for j := len(ip) - 1; j >= 0; j-- {
		ip[j]++
		if ip[j] > 0 {
			break
		}
	}
}

// buildARPRequest constructs an IEEE 802.3 Ethernet frame carrying an ARP
// request broadcast from srcMAC/srcIP asking who has dstIP.
func buildARPRequest(srcMAC net.HardwareAddr, srcIP net.IP, dstIP net.IP) []byte {
	var buf bytes.Buffer
	buf.Write(broadcastMAC)
	buf.Write(srcMAC)
	binary.Write(&buf, binary.BigEndian, uint16(etherTypeARP))

	binary.Write(&buf, binary.BigEndian, uint16(arpHwEthernet))
	binary.Write(&buf, binary.BigEndian, uint16(arpProtoIPv4))
	buf.WriteByte(6) // hardware address length
	buf.WriteByte(4) // protocol address length
	binary.Write(&buf, binary.BigEndian, uint16(arpOpRequest))
	buf.Write(srcMAC)
	buf.Write(srcIP.To4())
	buf.Write(zeroMAC)
	buf.Write(dstIP.To4())

	return buf.Bytes()
}

// parseARPReply extracts (ip, mac) from a raw Ethernet+ARP reply frame.
func parseARPReply(frame []byte) (ip string, mac string, ok bool) {
	const ethHeaderLen = 14
	if len(frame) < ethHeaderLen+28 {
		return "", "", false
	}
	arp := frame[ethHeaderLen:]
	op := binary.BigEndian.Uint16(arp[6:8])
	if op != arpOpReply {
		return "", "", false
	}
	srcMAC := net.HardwareAddr(arp[8:14])
	srcIP := net.IP(arp[14:18])
	return srcIP.String(), srcMAC.String(), true
}
