package probe

import (
	"context"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/lanscope/discoveryd/internal/clock"
	"github.com/lanscope/discoveryd/internal/logging"
	"github.com/lanscope/discoveryd/internal/model"
)

// ICMPProbe sends a single ICMP Echo Request to a host and reports
// reachability. It is a unicast Phase B probe.
type ICMPProbe struct {
	log   *logging.Logger
	clock clock.Clock
}

// NewICMPProbe builds an ICMPProbe.
func NewICMPProbe(log *logging.Logger, clk clock.Clock) *ICMPProbe {
	return &ICMPProbe{log: log.WithComponent("probe.icmp"), clock: clk}
}

// Probe pings target.Address once with a one-second internal timeout
// (strictly inside the phase deadline) and always returns exactly one
// Observation: ONLINE on reply, NO_RESPONSE on timeout. A pinger that can't
// even be constructed (e.g. no raw-socket capability and no unprivileged
// ICMP datagram support on this platform) reports StatusPrivilegeDenied
// with no Observations rather than failing the whole probe fan-out.
func (p *ICMPProbe) Probe(ctx context.Context, target Target, deadline time.Time) ([]model.Observation, model.ProbeStatus) {
	if target.Address == "" {
		return nil, model.StatusParseError
	}

	pinger, err := probing.NewPinger(target.Address)
	if err != nil {
		p.log.Debug("pinger construction failed", "ip", target.Address, "error", err)
		return nil, model.StatusPrivilegeDenied
	}
	pinger.Count = 1
	pinger.Timeout = 1 * time.Second
	if budget := time.Until(deadline); budget > 0 && budget < pinger.Timeout {
		pinger.Timeout = budget
	}
	pinger.SetPrivileged(false)

	done := make(chan error, 1)
	go func() { done <- pinger.Run() }()

	select {
	case <-ctx.Done():
		pinger.Stop()
		return p.observation(target.Address, model.StatusNoResponse), model.StatusOK
	case err := <-done:
		if err != nil {
			p.log.Debug("ping failed", "ip", target.Address, "error", err)
			return p.observation(target.Address, model.StatusNoResponse), model.StatusOK
		}
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return p.observation(target.Address, model.StatusNoResponse), model.StatusOK
	}
	return p.observation(target.Address, model.StatusOnline), model.StatusOK
}

func (p *ICMPProbe) observation(ip string, status model.Status) []model.Observation {
	return []model.Observation{{
		IP:        ip,
		Source:    model.SourceICMP,
		Timestamp: p.clock.Now(),
		Status:    status,
	}}
}
