// Package config loads the engine's runtime configuration from a small HCL
// file, in the same vein as the firewall's HCL config layer but with a tenth
// of the knobs: this domain has a handful of timers and paths, not a
// zone/policy/DNS tree.
package config

import (
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/lanscope/discoveryd/internal/logging"
)

// fileConfig is the HCL-decodable shape. Durations aren't natively
// supported by gohcl's tag decoding, so the file expresses them as whole
// seconds and Config converts them.
type fileConfig struct {
	HTTPBindAddress       string        `hcl:"http_bind_address,optional"`
	PassiveTimeoutSeconds int           `hcl:"passive_timeout_seconds,optional"`
	ActiveTimeoutSeconds  int           `hcl:"active_timeout_seconds,optional"`
	ActiveWorkers         int           `hcl:"active_workers,optional"`
	SnapshotPath          string         `hcl:"snapshot_path,optional"`
	IdentityDBPath        string         `hcl:"identity_db_path,optional"`
	Logging               *LoggingConfig `hcl:"logging,block"`
}

// LoggingConfig mirrors logging.Config's HCL-facing fields.
type LoggingConfig struct {
	Level string `hcl:"level,optional"`
	JSON  bool   `hcl:"json,optional"`
}

// Config holds every tunable the engine and façade need at startup.
type Config struct {
	HTTPBindAddress string
	PassiveTimeout  time.Duration
	ActiveTimeout   time.Duration
	ActiveWorkers   int
	SnapshotPath    string
	IdentityDBPath  string
	Logging         LoggingConfig
}

// DefaultPath is the config file discoveryd looks for when -config is not
// given.
const DefaultPath = "discoveryd.hcl"

func defaultFileConfig() fileConfig {
	return fileConfig{
		HTTPBindAddress:       ":8080",
		PassiveTimeoutSeconds: 5,
		ActiveTimeoutSeconds:  10,
		ActiveWorkers:         64,
		SnapshotPath:          "discovery.json",
		IdentityDBPath:        "identity.db",
		Logging:               &LoggingConfig{Level: "info", JSON: false},
	}
}

// Default returns a fully populated Config usable with no file at all.
func Default() Config {
	return toConfig(defaultFileConfig())
}

func toConfig(fc fileConfig) Config {
	logCfg := LoggingConfig{Level: "info"}
	if fc.Logging != nil {
		logCfg = *fc.Logging
	}
	return Config{
		HTTPBindAddress: fc.HTTPBindAddress,
		PassiveTimeout:  time.Duration(fc.PassiveTimeoutSeconds) * time.Second,
		ActiveTimeout:   time.Duration(fc.ActiveTimeoutSeconds) * time.Second,
		ActiveWorkers:   fc.ActiveWorkers,
		SnapshotPath:    fc.SnapshotPath,
		IdentityDBPath:  fc.IdentityDBPath,
		Logging:         logCfg,
	}
}

// LoadFile reads and decodes an HCL config file at path, merging whatever it
// sets over Default(). A missing file at the default path is not an error —
// only a missing file at an explicitly requested path is.
func LoadFile(path string) (Config, error) {
	fc := defaultFileConfig()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && path == DefaultPath {
			return toConfig(fc), nil
		}
		return Config{}, err
	}

	if err := hclsimple.DecodeFile(path, nil, &fc); err != nil {
		return Config{}, err
	}
	if fc.Logging != nil && fc.Logging.Level == "" {
		fc.Logging.Level = "info"
	}
	return toConfig(fc), nil
}

// LogConfig converts to a logging.Config the engine can hand to logging.New.
func (c Config) LogConfig() logging.Config {
	level := logging.LevelInfo
	switch c.Logging.Level {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	return logging.Config{
		Level:      level,
		JSON:       c.Logging.JSON,
		TimeFormat: time.RFC3339,
	}
}
