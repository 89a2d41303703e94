package probe

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/textproto"
	"strings"
	"time"

	"github.com/lanscope/discoveryd/internal/clock"
	"github.com/lanscope/discoveryd/internal/logging"
	"github.com/lanscope/discoveryd/internal/model"
)

const (
	ssdpAddr = "239.255.255.250"
	ssdpPort = 1900
)

// SSDPProbe sends one UDP M-SEARCH datagram per interface and collects
// HTTP-style replies until the deadline. It is a per-interface Phase A
// probe (the inverse of an SSDP responder: here the host is the client).
type SSDPProbe struct {
	log   *logging.Logger
	clock clock.Clock
}

// NewSSDPProbe builds an SSDPProbe.
func NewSSDPProbe(log *logging.Logger, clk clock.Clock) *SSDPProbe {
	return &SSDPProbe{log: log.WithComponent("probe.ssdp"), clock: clk}
}

// Probe sends M-SEARCH from target.Interface's address and returns one
// Observation per reply received (not merged across replies from the same
// peer — merging is the store's job).
func (p *SSDPProbe) Probe(ctx context.Context, target Target, deadline time.Time) ([]model.Observation, model.ProbeStatus) {
	if target.Interface == nil {
		return nil, model.StatusParseError
	}
	iface := *target.Interface

	localAddr := &net.UDPAddr{IP: iface.IP, Port: 0}
	conn, err := net.ListenUDP("udp4", localAddr)
	if err != nil {
		p.log.Debug("ssdp socket open failed", "iface", iface.Name, "error", err)
		return nil, model.StatusDependencyMissing
	}
	defer conn.Close()

	remote := &net.UDPAddr{IP: net.ParseIP(ssdpAddr), Port: ssdpPort}
	msearch := fmt.Sprintf(
		"M-SEARCH * HTTP/1.1\r\n"+
			"HOST: %s:%d\r\n"+
			"MAN: \"ssdp:discover\"\r\n"+
			"ST: ssdp:all\r\n"+
			"MX: 3\r\n\r\n",
		ssdpAddr, ssdpPort)

	if _, err := conn.WriteToUDP([]byte(msearch), remote); err != nil {
		p.log.Debug("ssdp send failed", "iface", iface.Name, "error", err)
		return nil, model.StatusOK
	}

	_ = conn.SetReadDeadline(deadline)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	var out []model.Observation
	buf := make([]byte, 2048)
	for {
		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			break
		}
		obs, ok := parseSSDPReply(buf[:n], peer.IP.String())
		if !ok {
			continue
		}
		obs.Iface = iface.Name
		obs.Timestamp = p.clock.Now()
		out = append(out, obs)
	}
	return out, model.StatusOK
}

// parseSSDPReply extracts vendor/hostname/service info from one SSDP
// HTTP-style response, case-insensitively.
func parseSSDPReply(data []byte, peerIP string) (model.Observation, bool) {
	reader := bufio.NewReader(strings.NewReader(string(data)))
	statusLine, err := reader.ReadString('\n')
	if err != nil || !strings.HasPrefix(strings.ToUpper(statusLine), "HTTP/1.1 200") {
		return model.Observation{}, false
	}

	headers, err := textproto.NewReader(reader).ReadMIMEHeader()
	if err != nil && len(headers) == 0 {
		return model.Observation{}, false
	}

	obs := model.Observation{IP: peerIP, Source: model.SourceSSDP}
	if server := headers.Get("Server"); server != "" {
		obs.Vendor = server
		obs.Hostname = server
	}

	st := headers.Get("St")
	nt := headers.Get("Nt")
	switch {
	case st != "":
		obs.Services = append(obs.Services, "SSDP:"+st)
	case nt != "":
		obs.Services = append(obs.Services, "SSDP:"+nt)
	}
	if usn := headers.Get("Usn"); usn != "" {
		obs.Services = append(obs.Services, "USN:"+usn)
	}
	return obs, true
}
