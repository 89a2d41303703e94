// Package engine runs one end-to-end discovery pass: enumerate interfaces,
// fan out passive then active probes, merge their observations into the
// store, classify, and freeze a snapshot. It is the one place that knows the
// full phase order; every other package only knows its own slice of it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lanscope/discoveryd/internal/classify"
	"github.com/lanscope/discoveryd/internal/clock"
	"github.com/lanscope/discoveryd/internal/config"
	"github.com/lanscope/discoveryd/internal/logging"
	"github.com/lanscope/discoveryd/internal/metrics"
	"github.com/lanscope/discoveryd/internal/model"
	"github.com/lanscope/discoveryd/internal/netif"
	"github.com/lanscope/discoveryd/internal/probe"
	"github.com/lanscope/discoveryd/internal/store"
)

// Phase is one state in the engine's run state machine.
type Phase string

const (
	PhaseIdle        Phase = "IDLE"
	PhaseEnumerating Phase = "ENUMERATING"
	PhaseA           Phase = "PHASE_A"
	PhaseMergeA      Phase = "MERGE"
	PhaseB           Phase = "PHASE_B"
	PhaseMergeB      Phase = "MERGE"
	PhaseClassify    Phase = "CLASSIFY"
	PhaseSnapshot    Phase = "SNAPSHOT"
	PhaseDone        Phase = "DONE"
	PhaseAborted     Phase = "ABORTED"
)

// Transition is one state-machine step, published to every registered
// Listener and logged at info level.
type Transition struct {
	RunID   string
	Phase   Phase
	At      time.Time
	Elapsed time.Duration
}

// Listener receives every Transition published during a run. Used by the
// HTTP façade's websocket stream; implementations must not block.
type Listener func(Transition)

// Sentinel errors the façade distinguishes with errors.Is.
var (
	ErrInterfaceEnumerationEmpty = errors.New("no usable network interfaces")
	ErrFatalIO                   = errors.New("fatal I/O error")
	ErrAlreadyRunning            = errors.New("discovery already running")
)

// Enumerator lists the interfaces a run probes against. Satisfied by
// *netif.Enumerator; a narrow interface so tests can substitute a fixed
// interface list without real network access.
type Enumerator interface {
	Enumerate() []model.Interface
}

// Engine owns every prober and dependency a run needs, and serializes runs:
// only one may be in flight at a time (the façade returns 409 for a second).
type Engine struct {
	log   *logging.Logger
	clock clock.Clock

	interfaces Enumerator
	arp        probe.Prober
	icmp       probe.Prober
	ssdp       probe.Prober
	mdns       probe.Prober
	port       probe.Prober
	classifier classify.Classifier
	metrics    *metrics.Registry

	mu        sync.Mutex
	running   bool
	listeners []Listener
}

// New wires an Engine from its dependencies, using the real network-facing
// probes and interface enumerator.
func New(log *logging.Logger, clk clock.Clock, classifier classify.Classifier) *Engine {
	return newEngine(log, clk, classifier, netif.NewEnumerator(log),
		probe.NewARPProbe(log, clk), probe.NewICMPProbe(log, clk),
		probe.NewSSDPProbe(log, clk), probe.NewMDNSProbe(log, clk),
		probe.NewPortProbe(log, clk, 2*time.Second, 32))
}

// newEngine wires an Engine from arbitrary Enumerator/Prober implementations,
// letting tests exercise the phase state machine and merge semantics without
// touching a real network.
func newEngine(log *logging.Logger, clk clock.Clock, classifier classify.Classifier, enum Enumerator, arp, icmp, ssdp, mdns, port probe.Prober) *Engine {
	return &Engine{
		log:        log.WithComponent("engine"),
		clock:      clk,
		interfaces: enum,
		arp:        arp,
		icmp:       icmp,
		ssdp:       ssdp,
		mdns:       mdns,
		port:       port,
		classifier: classifier,
		metrics:    metrics.Get(),
	}
}

// Subscribe registers l to receive every future Transition. Returns an
// unsubscribe function.
func (e *Engine) Subscribe(l Listener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
	idx := len(e.listeners) - 1
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.listeners[idx] = nil
	}
}

func (e *Engine) publish(t Transition) {
	e.log.Info("phase transition", "run_id", t.RunID, "phase", string(t.Phase), "elapsed", t.Elapsed)
	e.mu.Lock()
	listeners := append([]Listener(nil), e.listeners...)
	e.mu.Unlock()
	for _, l := range listeners {
		if l != nil {
			l(t)
		}
	}
}

// IsRunning reports whether a run is currently in flight.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Run executes one full discovery pass. It returns ErrAlreadyRunning
// (unwrapped, check with errors.Is) if another run is already in flight.
// An empty interface list or an empty device list are both valid, non-error
// results per §7's user-visible contract: "no devices found" is normal.
func (e *Engine) Run(ctx context.Context, cfg config.Config) (model.Snapshot, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return model.Snapshot{}, ErrAlreadyRunning
	}
	e.running = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	runID := uuid.NewString()
	started := e.clock.Now()
	phaseStart := started
	transition := func(p Phase) {
		now := e.clock.Now()
		elapsed := now.Sub(phaseStart)
		e.metrics.PhaseDuration.WithLabelValues(string(p)).Observe(elapsed.Seconds())
		e.publish(Transition{RunID: runID, Phase: p, At: now, Elapsed: elapsed})
		phaseStart = now
	}

	transition(PhaseEnumerating)
	ifaces := e.interfaces.Enumerate()
	if len(ifaces) == 0 {
		e.log.Warn("no usable network interfaces found", "run_id", runID)
		transition(PhaseSnapshot)
		snap := model.Snapshot{Meta: model.Meta{OS: runtime.GOOS, StartedAt: started, FinishedAt: e.clock.Now()}}
		transition(PhaseDone)
		return snap, nil
	}

	st := store.New()
	for _, iface := range ifaces {
		st.AddInterface(iface)
	}

	select {
	case <-ctx.Done():
		transition(PhaseAborted)
		return model.Snapshot{}, fmt.Errorf("run aborted before phase A: %w", ctx.Err())
	default:
	}

	transition(PhaseA)
	e.runPhaseA(ctx, ifaces, cfg.PassiveTimeout, st, runID)
	if err := ctx.Err(); err != nil {
		transition(PhaseAborted)
		return model.Snapshot{}, fmt.Errorf("run aborted during phase A: %w", err)
	}

	transition(PhaseMergeA)
	transition(PhaseB)
	e.runPhaseB(ctx, ifaces, st.IPs(), cfg.ActiveTimeout, cfg.ActiveWorkers, st, runID)
	if err := ctx.Err(); err != nil {
		transition(PhaseAborted)
		return model.Snapshot{}, fmt.Errorf("run aborted during phase B: %w", err)
	}

	transition(PhaseMergeB)
	transition(PhaseClassify)
	for _, ip := range st.IPs() {
		rec, ok := st.Get(ip)
		if !ok {
			continue
		}
		deviceType, confidence := e.classifier.Infer(rec)
		st.SetClassification(ip, deviceType, confidence)
	}

	transition(PhaseSnapshot)
	finished := e.clock.Now()
	interfacesOut, devices := st.Snapshot()
	snap := model.Snapshot{
		Meta:       model.Meta{OS: runtime.GOOS, StartedAt: started, FinishedAt: finished},
		Interfaces: interfacesOut,
		Devices:    devices,
		Summary:    st.Summary(),
	}
	e.metrics.DevicesLastRun.Set(float64(len(devices)))
	transition(PhaseDone)
	e.log.Audit("discovery_run", runID, map[string]any{"devices": len(devices), "interfaces": len(interfacesOut)})

	return snap, nil
}

// runPhaseA fans an ARP, SSDP, and mDNS probe out per interface, all bounded
// by timeout, and absorbs every returned Observation into st.
func (e *Engine) runPhaseA(ctx context.Context, ifaces []model.Interface, timeout time.Duration, st *store.Store, runID string) {
	deadline := e.clock.Now().Add(timeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	type job struct {
		name  string
		prber probe.Prober
	}
	var wg sync.WaitGroup
	for _, iface := range ifaces {
		target := probe.InterfaceTarget(iface)
		for _, j := range []job{
			{"ARP", e.arp}, {"SSDP", e.ssdp}, {"MDNS", e.mdns},
		} {
			wg.Add(1)
			go func(j job, target probe.Target, ifaceName string) {
				defer wg.Done()
				obs, status := j.prber.Probe(ctx, target, deadline)
				e.metrics.ProbeTotal.WithLabelValues(j.name, status.String()).Inc()
				for _, o := range obs {
					st.Upsert(o)
				}
			}(j, target, iface.Name)
		}
	}
	wg.Wait()
}

// runPhaseB fans an ICMP probe, a Port probe, and a unicast ARP refresh out
// per known IP, bounded by timeout and a worker pool capped at workers.
func (e *Engine) runPhaseB(ctx context.Context, ifaces []model.Interface, ips []string, timeout time.Duration, workers int, st *store.Store, runID string) {
	if workers <= 0 {
		workers = 64
	}
	deadline := e.clock.Now().Add(timeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	ownerOf := func(ip string) *model.Interface {
		parsed := net.ParseIP(ip)
		if parsed == nil {
			return nil
		}
		for i := range ifaces {
			if ifaces[i].Net != nil && ifaces[i].Net.Contains(parsed) {
				return &ifaces[i]
			}
		}
		return nil
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for _, ip := range ips {
		ip := ip
		iface := ownerOf(ip)

		for _, j := range []struct {
			name  string
			prber probe.Prober
			tgt   probe.Target
		}{
			{"ICMP", e.icmp, probe.AddressTarget(ip)},
			{"PORT", e.port, probe.AddressTarget(ip)},
		} {
			wg.Add(1)
			sem <- struct{}{}
			go func(name string, p probe.Prober, target probe.Target) {
				defer wg.Done()
				defer func() { <-sem }()
				obs, status := p.Probe(ctx, target, deadline)
				e.metrics.ProbeTotal.WithLabelValues(name, status.String()).Inc()
				for _, o := range obs {
					st.Upsert(o)
				}
			}(j.name, j.prber, j.tgt)
		}

		if iface != nil {
			wg.Add(1)
			sem <- struct{}{}
			go func(iface model.Interface, ip string) {
				defer wg.Done()
				defer func() { <-sem }()
				target := probe.Target{Interface: &iface, Address: ip}
				obs, status := e.arp.Probe(ctx, target, deadline)
				e.metrics.ProbeTotal.WithLabelValues("ARP", status.String()).Inc()
				for _, o := range obs {
					st.Upsert(o)
				}
			}(*iface, ip)
		}
	}
	wg.Wait()
}
