package probe

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/net/dns/dnsmessage"

	"github.com/lanscope/discoveryd/internal/clock"
	"github.com/lanscope/discoveryd/internal/logging"
	"github.com/lanscope/discoveryd/internal/model"
)

const (
	mdnsAddr = "224.0.0.251"
	mdnsPort = 5353
)

// wellKnownServiceTypes is the fixed set of DNS-SD service types queried on
// every mDNS probe run, plus the enumeration meta-type.
var wellKnownServiceTypes = []string{
	"_services._dns-sd._udp.local.",
	"_http._tcp.local.",
	"_ssh._tcp.local.",
	"_workstation._tcp.local.",
}

// discoveryWindow bounds how long the probe listens for responses once its
// queries are sent, independent of (but never exceeding) the phase deadline.
const discoveryWindow = 3 * time.Second

// MDNSProbe queries well-known DNS-SD service types over IPv4 multicast and
// collects responses for a fixed discovery window. It is a per-interface
// Phase A probe.
type MDNSProbe struct {
	log   *logging.Logger
	clock clock.Clock
}

// NewMDNSProbe builds an MDNSProbe.
func NewMDNSProbe(log *logging.Logger, clk clock.Clock) *MDNSProbe {
	return &MDNSProbe{log: log.WithComponent("probe.mdns"), clock: clk}
}

// Probe joins the mDNS multicast group on target.Interface, sends a query
// for each well-known service type, and collects A-record-bearing
// responses for up to discoveryWindow (bounded by deadline).
func (p *MDNSProbe) Probe(ctx context.Context, target Target, deadline time.Time) ([]model.Observation, model.ProbeStatus) {
	if target.Interface == nil {
		return nil, model.StatusParseError
	}
	iface := *target.Interface

	nic, err := net.InterfaceByName(iface.Name)
	if err != nil {
		return nil, model.StatusParseError
	}

	group := &net.UDPAddr{IP: net.ParseIP(mdnsAddr), Port: mdnsPort}
	conn, err := net.ListenMulticastUDP("udp4", nic, group)
	if err != nil {
		p.log.Debug("mdns multicast join failed", "iface", iface.Name, "error", err)
		return nil, model.StatusDependencyMissing
	}
	defer conn.Close()

	window := deadline
	if cutoff := time.Now().Add(discoveryWindow); cutoff.Before(window) {
		window = cutoff
	}
	_ = conn.SetDeadline(window)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for _, svc := range wellKnownServiceTypes {
		if err := sendQuery(conn, group, svc); err != nil {
			p.log.Debug("mdns query send failed", "iface", iface.Name, "service", svc, "error", err)
		}
	}

	seen := make(map[string]model.Observation)
	buf := make([]byte, 4096)
	for {
		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			break
		}
		parsed, err := parseMDNSResponse(buf[:n], peer.IP)
		if err != nil || parsed == nil || len(parsed.addrs) == 0 {
			continue
		}
		for _, addr := range parsed.addrs {
			obs := model.Observation{
				IP:        addr,
				Source:    model.SourceMDNS,
				Timestamp: p.clock.Now(),
				Iface:     iface.Name,
				Hostname:  parsed.hostname,
				Services:  parsed.services,
			}
			if prior, ok := seen[addr]; ok {
				obs.Services = mergeUnique(prior.Services, obs.Services)
				if obs.Hostname == "" {
					obs.Hostname = prior.Hostname
				}
			}
			seen[addr] = obs
		}
	}

	out := make([]model.Observation, 0, len(seen))
	for _, o := range seen {
		out = append(out, o)
	}
	return out, model.StatusOK
}

// sendQuery builds and sends one DNS-SD PTR query for serviceType using
// miekg/dns for message construction.
func sendQuery(conn *net.UDPConn, dst *net.UDPAddr, serviceType string) error {
	msg := new(dns.Msg)
	msg.SetQuestion(serviceType, dns.TypePTR)
	msg.RecursionDesired = false
	raw, err := msg.Pack()
	if err != nil {
		return err
	}
	_, err = conn.WriteToUDP(raw, dst)
	return err
}

type mdnsResult struct {
	hostname string
	services []string
	addrs    []string
}

// parseMDNSResponse extracts hostnames, service types, and A-record
// addresses from a raw mDNS packet using golang.org/x/net/dns/dnsmessage,
// the same low-level parser the multicast reflector this was grounded on
// uses for its own record extraction.
func parseMDNSResponse(data []byte, peerIP net.IP) (*mdnsResult, error) {
	var parser dnsmessage.Parser
	if _, err := parser.Start(data); err != nil {
		return nil, err
	}
	if err := parser.SkipAllQuestions(); err != nil {
		return nil, err
	}

	result := &mdnsResult{}
	addrSet := map[string]bool{}
	svcSet := map[string]bool{}

	for _, section := range []func() (dnsmessage.Resource, error){parser.Answer, parser.Authority, parser.Additional} {
		for {
			rr, err := section()
			if err == dnsmessage.ErrSectionDone {
				break
			}
			if err != nil {
				return result, nil
			}
			switch body := rr.Body.(type) {
			case *dnsmessage.AResource:
				ip := net.IP(body.A[:]).String()
				if !addrSet[ip] {
					addrSet[ip] = true
					result.addrs = append(result.addrs, ip)
				}
			case *dnsmessage.PTRResource:
				name := rr.Header.Name.String()
				if strings.Contains(name, "_tcp") || strings.Contains(name, "_udp") {
					svc := strings.TrimSuffix(name, ".")
					if !svcSet[svc] {
						svcSet[svc] = true
						result.services = append(result.services, svc)
					}
					// Every service-type PTR (other than the bare enumeration
					// meta-query) answers with an instance name of the form
					// "label._service._tcp.local.": take the label.
					if name != "_services._dns-sd._udp.local." && result.hostname == "" {
						instance := strings.TrimSuffix(body.PTR.String(), ".")
						if label, _, ok := strings.Cut(instance, "."); ok {
							result.hostname = label
						}
					}
				} else if result.hostname == "" {
					result.hostname = strings.TrimSuffix(body.PTR.String(), ".")
				}
			}
		}
	}

	return result, nil
}

func mergeUnique(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	out := append([]string(nil), existing...)
	for _, s := range existing {
		seen[s] = true
	}
	for _, s := range incoming {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
