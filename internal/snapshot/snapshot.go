// Package snapshot serializes a discovery run's result to the on-disk JSON
// file the external HTTP façade reads.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lanscope/discoveryd/internal/model"
)

// wireMeta mirrors model.Meta with the on-disk field names and the
// float-unix timestamp encoding the façade contract specifies.
type wireMeta struct {
	OS         string  `json:"os"`
	StartedAt  float64 `json:"started_at"`
	FinishedAt float64 `json:"finished_at"`
}

type wireInterface struct {
	Name    string `json:"name"`
	IP      string `json:"ip"`
	Network string `json:"network"`
}

type wireDevice struct {
	IP            string   `json:"ip"`
	Hostname      *string  `json:"hostname"`
	MAC           *string  `json:"mac"`
	Vendor        *string  `json:"vendor"`
	Iface         *string  `json:"iface"`
	Services      []string `json:"services"`
	DiscoveredVia []string `json:"discovered_via"`
	Status        *string  `json:"status"`
	DeviceType    *string  `json:"device_type"`
	Confidence    *float64 `json:"confidence"`
}

type wireSummary struct {
	TotalDevices  int `json:"total_devices"`
	WithHostnames int `json:"with_hostnames"`
	WithMACs      int `json:"with_macs"`
	WithVendor    int `json:"with_vendor"`
}

type wireSnapshot struct {
	Meta       wireMeta        `json:"meta"`
	Interfaces []wireInterface `json:"interfaces"`
	Devices    []wireDevice    `json:"devices"`
	Summary    wireSummary     `json:"summary"`
}

// nullableString returns nil for an empty string so it serializes as JSON
// null rather than an empty string, matching the façade's string|null schema.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toWire(snap model.Snapshot) wireSnapshot {
	w := wireSnapshot{
		Meta: wireMeta{
			OS:         snap.Meta.OS,
			StartedAt:  float64(snap.Meta.StartedAt.UnixNano()) / 1e9,
			FinishedAt: float64(snap.Meta.FinishedAt.UnixNano()) / 1e9,
		},
		Interfaces: make([]wireInterface, 0, len(snap.Interfaces)),
		Devices:    make([]wireDevice, 0, len(snap.Devices)),
		Summary: wireSummary{
			TotalDevices:  snap.Summary.TotalDevices,
			WithHostnames: snap.Summary.WithHostnames,
			WithMACs:      snap.Summary.WithMACs,
			WithVendor:    snap.Summary.WithVendor,
		},
	}

	for _, iface := range snap.Interfaces {
		w.Interfaces = append(w.Interfaces, wireInterface{
			Name:    iface.Name,
			IP:      iface.IP.String(),
			Network: iface.CIDR(),
		})
	}

	for _, dev := range snap.Devices {
		via := make([]string, 0, len(dev.DiscoveredVia))
		for _, src := range dev.DiscoveredVia {
			via = append(via, string(src))
		}
		services := dev.Services
		if services == nil {
			services = []string{}
		}

		wd := wireDevice{
			IP:            dev.IP,
			Hostname:      nullableString(dev.Hostname),
			MAC:           nullableString(dev.MAC),
			Vendor:        nullableString(dev.Vendor),
			Iface:         nullableString(dev.Iface),
			Services:      services,
			DiscoveredVia: via,
			Status:        nullableString(string(dev.Status)),
			DeviceType:    nullableString(dev.DeviceType),
		}
		if dev.DeviceType != "" {
			confidence := dev.Confidence
			wd.Confidence = &confidence
		}
		w.Devices = append(w.Devices, wd)
	}

	return w
}

// Write serializes snap to path as pretty-printed JSON, atomically: it
// writes to a temp file in the same directory, fsyncs, then renames over
// path. A failed write never corrupts a snapshot already on disk.
func Write(snap model.Snapshot, path string) error {
	data, err := json.MarshalIndent(toWire(snap), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".discovery-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync temp snapshot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	return nil
}

// EmptyJSON is what GET /discovery.json returns when no run has completed
// yet: {"devices": []}, per the façade contract.
const EmptyJSON = `{"devices": []}`
