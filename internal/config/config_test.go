package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsFullyPopulated(t *testing.T) {
	cfg := Default()
	if cfg.HTTPBindAddress == "" || cfg.SnapshotPath == "" || cfg.IdentityDBPath == "" {
		t.Fatalf("Default() left a required field empty: %+v", cfg)
	}
	if cfg.PassiveTimeout != 5*time.Second || cfg.ActiveTimeout != 10*time.Second {
		t.Fatalf("unexpected default timeouts: %+v", cfg)
	}
	if cfg.Logging.Level != "info" {
		t.Fatalf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoadFileMissingDefaultPathIsNotAnError(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadFile(DefaultPath)
	if err != nil {
		t.Fatalf("LoadFile on a missing default path should not error, got %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults back, got %+v", cfg)
	}
}

func TestLoadFileMissingExplicitPathIsAnError(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "does-not-exist.hcl"))
	if err == nil {
		t.Fatal("expected an error for a missing explicitly-requested config path")
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "discoveryd.hcl")
	contents := `
http_bind_address       = "127.0.0.1:9090"
passive_timeout_seconds = 2
active_timeout_seconds  = 20
active_workers          = 8
snapshot_path           = "/tmp/out.json"
identity_db_path        = "/tmp/identity.db"

logging {
  level = "debug"
  json  = true
}
`
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.HTTPBindAddress != "127.0.0.1:9090" {
		t.Errorf("HTTPBindAddress = %q", cfg.HTTPBindAddress)
	}
	if cfg.PassiveTimeout != 2*time.Second || cfg.ActiveTimeout != 20*time.Second {
		t.Errorf("timeouts = %v / %v", cfg.PassiveTimeout, cfg.ActiveTimeout)
	}
	if cfg.ActiveWorkers != 8 {
		t.Errorf("ActiveWorkers = %d", cfg.ActiveWorkers)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.JSON {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoadFilePartialOverrideKeepsOtherDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "discoveryd.hcl")
	if err := os.WriteFile(path, []byte(`active_workers = 4`), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.ActiveWorkers != 4 {
		t.Errorf("ActiveWorkers = %d", cfg.ActiveWorkers)
	}
	if cfg.SnapshotPath != "discovery.json" {
		t.Errorf("SnapshotPath = %q, want the default to survive a partial file", cfg.SnapshotPath)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want default info when the block is omitted", cfg.Logging.Level)
	}
}

func TestLogConfigMapsLevels(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "warn"
	logCfg := cfg.LogConfig()
	if logCfg.Level.Level() != 4 { // slog.LevelWarn == 4
		t.Errorf("LogConfig level = %v, want warn", logCfg.Level)
	}
}
