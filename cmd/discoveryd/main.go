// Command discoveryd runs the device-discovery engine behind a small HTTP
// façade: POST /run-discovery to trigger a pass, GET /discovery.json to read
// the last snapshot, GET /metrics for Prometheus, GET /ws for a live stream
// of phase transitions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/lanscope/discoveryd/internal/classify"
	"github.com/lanscope/discoveryd/internal/clock"
	"github.com/lanscope/discoveryd/internal/config"
	"github.com/lanscope/discoveryd/internal/engine"
	"github.com/lanscope/discoveryd/internal/httpapi"
	"github.com/lanscope/discoveryd/internal/identity"
	"github.com/lanscope/discoveryd/internal/logging"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "HCL configuration file")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogConfig())
	logging.SetDefault(log)

	// HOST and PORT, when set, override the host and port of the configured
	// HTTP bind address.
	host, port, err := net.SplitHostPort(cfg.HTTPBindAddress)
	if err != nil {
		log.Error("invalid HTTP bind address", "addr", cfg.HTTPBindAddress, "error", err)
		os.Exit(1)
	}
	if v := os.Getenv("HOST"); v != "" {
		host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port = v
	}
	cfg.HTTPBindAddress = net.JoinHostPort(host, port)

	identityDB, err := bolt.Open(cfg.IdentityDBPath, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		log.Error("failed to open identity database", "path", cfg.IdentityDBPath, "error", err)
		os.Exit(1)
	}
	defer identityDB.Close()

	identityStore, err := identity.Open(identityDB, log)
	if err != nil {
		log.Error("failed to load identity store", "error", err)
		os.Exit(1)
	}
	defer identityStore.Close()

	classifier := classify.NewOverrideClassifier(classify.NewKeywordClassifier(), identityStore)
	eng := engine.New(log, &clock.RealClock{}, classifier)

	srv := httpapi.New(eng, identityStore, cfg, log)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPBindAddress,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", httpSrv.Addr)
	if err != nil {
		log.Error("failed to bind HTTP listener", "addr", httpSrv.Addr, "error", err)
		os.Exit(1)
	}

	go func() {
		log.Info("discoveryd listening", "addr", httpSrv.Addr, "config", *configPath)
		if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
