// Package httpapi serves the external façade the spec describes: a small
// REST surface plus an optional websocket stream, wrapping an
// internal/engine.Engine. It never probes a network itself; it only
// triggers a run, serves the last snapshot, and republishes phase
// transitions.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lanscope/discoveryd/internal/clock"
	"github.com/lanscope/discoveryd/internal/config"
	"github.com/lanscope/discoveryd/internal/engine"
	"github.com/lanscope/discoveryd/internal/identity"
	"github.com/lanscope/discoveryd/internal/logging"
	"github.com/lanscope/discoveryd/internal/model"
	"github.com/lanscope/discoveryd/internal/snapshot"
)

// allowedOrigins is the fixed localhost origin set the façade's CORS policy
// permits, covering both the dev-server default ports and their 127.0.0.1
// equivalents.
var allowedOrigins = map[string]bool{
	"http://localhost:3000": true,
	"http://localhost:5173": true,
	"http://localhost:5174": true,
	"http://127.0.0.1:3000": true,
	"http://127.0.0.1:5173": true,
	"http://127.0.0.1:5174": true,
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowedOrigins[origin]
	},
}

// runner is the slice of *engine.Engine the façade depends on, kept narrow
// so tests can drive the handlers against a fake run without a real engine
// or network access.
type runner interface {
	Run(ctx context.Context, cfg config.Config) (model.Snapshot, error)
	Subscribe(l engine.Listener) func()
}

// identityWriter is the slice of *identity.Store the façade depends on to
// persist an operator's alias/device-type override.
type identityWriter interface {
	Set(mac, alias, deviceType string, now time.Time) (identity.Identity, error)
}

// Server wires an Engine and an identity store to the HTTP handlers the
// façade exposes.
type Server struct {
	eng        runner
	identities identityWriter
	clock      clock.Clock
	cfg        config.Config
	log        *logging.Logger
}

// New builds a Server around eng and identities, writing snapshots to
// cfg.SnapshotPath.
func New(eng *engine.Engine, identities *identity.Store, cfg config.Config, log *logging.Logger) *Server {
	return &Server{eng: eng, identities: identities, clock: &clock.RealClock{}, cfg: cfg, log: log.WithComponent("httpapi")}
}

// newServer builds a Server around any runner/identityWriter, letting tests
// substitute a fake engine and identity store.
func newServer(eng runner, identities identityWriter, clk clock.Clock, cfg config.Config, log *logging.Logger) *Server {
	return &Server{eng: eng, identities: identities, clock: clk, cfg: cfg, log: log.WithComponent("httpapi")}
}

// Handler builds the façade's routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleHealth)
	mux.HandleFunc("POST /run-discovery", s.handleRunDiscovery)
	mux.HandleFunc("GET /discovery.json", s.handleSnapshot)
	mux.HandleFunc("POST /identities", s.handleSetIdentity)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws", s.handleWebsocket)
	return withCORS(mux)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "running",
		"service": "Device Discovery API",
		"endpoints": map[string]string{
			"run_discovery": "POST /run-discovery",
			"discovery":     "GET /discovery.json",
			"identities":    "POST /identities",
			"metrics":       "GET /metrics",
			"stream":        "GET /ws",
		},
	})
}

type runDiscoveryResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	DeviceCount int    `json:"deviceCount"`
}

// handleRunDiscovery runs one discovery pass in-process and persists the
// resulting snapshot before responding, so a client's next GET /discovery.json
// sees it immediately.
func (s *Server) handleRunDiscovery(w http.ResponseWriter, r *http.Request) {
	snap, err := s.eng.Run(r.Context(), s.cfg)
	if err != nil {
		if errors.Is(err, engine.ErrAlreadyRunning) {
			writeJSON(w, http.StatusConflict, runDiscoveryResponse{
				Success: false,
				Message: "discovery already running",
			})
			return
		}
		s.log.Error("discovery run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, runDiscoveryResponse{
			Success: false,
			Message: fmt.Sprintf("discovery failed: %v", err),
		})
		return
	}

	if err := snapshot.Write(snap, s.cfg.SnapshotPath); err != nil {
		s.log.Error("failed to persist snapshot", "error", err, "path", s.cfg.SnapshotPath)
		writeJSON(w, http.StatusInternalServerError, runDiscoveryResponse{
			Success: false,
			Message: fmt.Sprintf("failed to write snapshot: %v", err),
		})
		return
	}

	writeJSON(w, http.StatusOK, runDiscoveryResponse{
		Success:     true,
		Message:     "Discovery completed",
		DeviceCount: len(snap.Devices),
	})
}

type setIdentityRequest struct {
	MAC        string `json:"mac"`
	Alias      string `json:"alias"`
	DeviceType string `json:"device_type"`
}

// handleSetIdentity records an operator's alias/device-type correction for a
// MAC address, so the classifier (via classify.NewOverrideClassifier) picks
// it up on every future run without the operator re-entering it.
func (s *Server) handleSetIdentity(w http.ResponseWriter, r *http.Request) {
	var req setIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}
	if req.MAC == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "mac is required"})
		return
	}

	rec, err := s.identities.Set(req.MAC, req.Alias, req.DeviceType, s.clock.Now())
	if err != nil {
		s.log.Error("failed to persist identity override", "error", err, "mac", req.MAC)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to persist identity"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleSnapshot serves the on-disk snapshot file verbatim, or the empty
// snapshot payload if no run has completed yet. Always 200: an absent
// snapshot is a normal pre-first-run state, not an error.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := os.ReadFile(s.cfg.SnapshotPath)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("failed to read snapshot file", "error", err, "path", s.cfg.SnapshotPath)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(snapshot.EmptyJSON))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleWebsocket upgrades the connection and streams every future phase
// transition as a newline-delimited JSON object until the client
// disconnects or the server shuts down.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events := make(chan engine.Transition, 16)
	unsubscribe := s.eng.Subscribe(func(t engine.Transition) {
		select {
		case events <- t:
		default: // a slow reader drops events rather than blocking the run
		}
	})
	defer unsubscribe()

	go s.drainPings(cancel, conn)

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-events:
			if err := conn.WriteJSON(wireTransition{
				RunID:   t.RunID,
				Phase:   string(t.Phase),
				At:      t.At.Format(time.RFC3339Nano),
				Elapsed: t.Elapsed.Seconds(),
			}); err != nil {
				return
			}
		}
	}
}

// drainPings reads (and discards) every client message so gorilla's
// connection-close detection fires, and cancels cancel once the read side
// errors (client disconnect or server close) so the write loop in
// handleWebsocket stops blocking on a connection nobody is reading from.
// The stream is one-directional; no inbound messages are otherwise expected.
func (s *Server) drainPings(cancel context.CancelFunc, conn *websocket.Conn) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

type wireTransition struct {
	RunID   string  `json:"run_id"`
	Phase   string  `json:"phase"`
	At      string  `json:"at"`
	Elapsed float64 `json:"elapsed_seconds"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
