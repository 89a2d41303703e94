package probe

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/lanscope/discoveryd/internal/clock"
	"github.com/lanscope/discoveryd/internal/logging"
	"github.com/lanscope/discoveryd/internal/model"
)

// CommonPort is one well-known service port the Port probe checks.
type CommonPort struct {
	Number int
	Name   string
}

// CommonPorts is the curated list of ports worth an unprivileged connect
// scan during Phase B. Order only affects the order of services within one
// Observation; the store dedupes regardless.
var CommonPorts = []CommonPort{
	{22, "ssh"}, {80, "http"}, {443, "https"}, {21, "ftp"}, {25, "smtp"},
	{53, "dns"}, {110, "pop3"}, {143, "imap"}, {445, "smb"}, {993, "imaps"},
	{995, "pop3s"}, {3306, "mysql"}, {5432, "postgresql"}, {6379, "redis"},
	{27017, "mongodb"}, {8080, "http-alt"}, {8443, "https-alt"}, {3389, "rdp"},
	{5900, "vnc"}, {32400, "plex"}, {8096, "jellyfin"}, {9000, "portainer"},
	{51820, "wireguard"}, {1194, "openvpn"}, {25565, "minecraft"},
}

// PortProbe performs an unprivileged TCP connect scan of CommonPorts
// against a single host. It is a unicast Phase B probe.
type PortProbe struct {
	log     *logging.Logger
	clock   clock.Clock
	timeout time.Duration
	workers int
}

// NewPortProbe builds a PortProbe. timeout bounds each individual dial;
// workers caps how many ports are dialed concurrently per host.
func NewPortProbe(log *logging.Logger, clk clock.Clock, timeout time.Duration, workers int) *PortProbe {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if workers <= 0 {
		workers = len(CommonPorts)
	}
	return &PortProbe{log: log.WithComponent("probe.port"), clock: clk, timeout: timeout, workers: workers}
}

// Probe scans target.Address for open CommonPorts, returning one
// Observation carrying every open port found as a "tcp/<port>:<name>"
// service string, or a single empty Observation slice if none are open. A
// host that refuses every connection is not an error: it is simply offline
// from this probe's point of view, so status is reported as OK with zero
// Observations rather than StatusTimeout.
func (p *PortProbe) Probe(ctx context.Context, target Target, deadline time.Time) ([]model.Observation, model.ProbeStatus) {
	if target.Address == "" {
		return nil, model.StatusParseError
	}
	ctx, cancel := withDeadline(ctx, deadline)
	defer cancel()

	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var services []string

	for _, port := range CommonPorts {
		select {
		case <-ctx.Done():
			wg.Wait()
			return p.result(target.Address, services), model.StatusOK
		default:
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(port CommonPort) {
			defer wg.Done()
			defer func() { <-sem }()
			if p.isOpen(ctx, target.Address, port.Number) {
				mu.Lock()
				services = append(services, fmt.Sprintf("tcp/%d:%s", port.Number, port.Name))
				mu.Unlock()
			}
		}(port)
	}
	wg.Wait()

	return p.result(target.Address, services), model.StatusOK
}

func (p *PortProbe) result(ip string, services []string) []model.Observation {
	if len(services) == 0 {
		return nil
	}
	return []model.Observation{{
		IP:        ip,
		Source:    model.SourcePort,
		Timestamp: p.clock.Now(),
		Services:  services,
	}}
}

func (p *PortProbe) isOpen(ctx context.Context, ip string, port int) bool {
	dialer := net.Dialer{Timeout: p.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", ip, port))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
