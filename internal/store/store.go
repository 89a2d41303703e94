// Package store holds the discovery run's only shared mutable state: the
// per-IP DeviceRecord table, merged from Observations under a single lock.
package store

import (
	"sync"

	"github.com/lanscope/discoveryd/internal/model"
)

// Store merges Observations into per-IP DeviceRecords. A single
// sync.RWMutex over the whole table is sufficient at this engine's scale
// (hundreds of IPs per run, never millions); the lock is held only across a
// field merge, never across I/O.
type Store struct {
	mu         sync.RWMutex
	devices    map[string]*model.DeviceRecord
	interfaces []model.Interface
}

// New creates an empty Store.
func New() *Store {
	return &Store{devices: make(map[string]*model.DeviceRecord)}
}

// AddInterface appends iface to the run's interface list.
func (s *Store) AddInterface(iface model.Interface) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interfaces = append(s.interfaces, iface)
}

// Upsert finds or creates the record for obs.IP, applies the field-by-field
// merge rule, and returns a copy of the updated record. Absorbing the same
// Observation twice is idempotent. Every Upsert, whatever its IP, takes the
// one store-wide lock, so concurrent calls are serialized.
func (s *Store) Upsert(obs model.Observation) model.DeviceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.devices[obs.IP]
	if !exists {
		rec = &model.DeviceRecord{
			IP:        obs.IP,
			FirstSeen: obs.Timestamp,
			LastSeen:  obs.Timestamp,
		}
		s.devices[obs.IP] = rec
	}

	mergeScalars(rec, obs)
	rec.Services = mergeOrderedSet(rec.Services, obs.Services)
	rec.DiscoveredVia = mergeSource(rec.DiscoveredVia, obs.Source)
	if obs.Timestamp.After(rec.LastSeen) {
		rec.LastSeen = obs.Timestamp
	}

	out := *rec
	out.Services = append([]string(nil), rec.Services...)
	out.DiscoveredVia = append([]model.Source(nil), rec.DiscoveredVia...)
	return out
}

// mergeScalars applies the "first non-empty wins" rule for identity fields,
// with the vendor refinement: a strictly longer non-empty value replaces a
// shorter one, since a verbose SSDP SERVER string is more informative than
// a bare OUI vendor name. hostname and mac, once set, are never overwritten.
func mergeScalars(rec *model.DeviceRecord, obs model.Observation) {
	if rec.Hostname == "" && obs.Hostname != "" {
		rec.Hostname = obs.Hostname
	}
	if rec.MAC == "" && obs.MAC != "" {
		rec.MAC = obs.MAC
	}
	if obs.Vendor != "" && len(obs.Vendor) > len(rec.Vendor) {
		rec.Vendor = obs.Vendor
	}
	if rec.Iface == "" && obs.Iface != "" {
		rec.Iface = obs.Iface
	}
	if rec.Status == "" && obs.Status != "" {
		rec.Status = obs.Status
	}
}

// mergeOrderedSet unions incoming into existing, preserving first-seen
// insertion order and dropping duplicates.
func mergeOrderedSet(existing, incoming []string) []string {
	if len(incoming) == 0 {
		return existing
	}
	seen := make(map[string]bool, len(existing))
	for _, s := range existing {
		seen[s] = true
	}
	for _, s := range incoming {
		if !seen[s] {
			seen[s] = true
			existing = append(existing, s)
		}
	}
	return existing
}

func mergeSource(existing []model.Source, src model.Source) []model.Source {
	if src == "" {
		return existing
	}
	for _, s := range existing {
		if s == src {
			return existing
		}
	}
	return append(existing, src)
}

// Get returns a copy of the record for ip, if any.
func (s *Store) Get(ip string) (model.DeviceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.devices[ip]
	if !ok {
		return model.DeviceRecord{}, false
	}
	return *rec, true
}

// IPs returns every IP currently known to the store, in no particular
// order — used by the engine to fan Phase B out over.
func (s *Store) IPs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.devices))
	for ip := range s.devices {
		out = append(out, ip)
	}
	return out
}

// SetClassification writes a classifier's verdict onto an existing record.
// It is the only mutation path outside of Upsert, used by the Classify
// phase after all probes have joined.
func (s *Store) SetClassification(ip, deviceType string, confidence float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.devices[ip]; ok {
		rec.DeviceType = deviceType
		rec.Confidence = confidence
	}
}

// Snapshot freezes a consistent view of the store. Callers must ensure no
// Upsert calls are in flight; the engine guarantees this by calling
// Snapshot only after every probe phase has joined.
func (s *Store) Snapshot() (interfaces []model.Interface, devices []model.DeviceRecord) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	interfaces = append([]model.Interface(nil), s.interfaces...)
	devices = make([]model.DeviceRecord, 0, len(s.devices))
	for _, rec := range s.devices {
		cp := *rec
		cp.Services = append([]string(nil), rec.Services...)
		cp.DiscoveredVia = append([]model.Source(nil), rec.DiscoveredVia...)
		devices = append(devices, cp)
	}
	return interfaces, devices
}

// Summary computes aggregate counts over the current record set.
func (s *Store) Summary() model.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum model.Summary
	sum.TotalDevices = len(s.devices)
	for _, rec := range s.devices {
		if rec.Hostname != "" {
			sum.WithHostnames++
		}
		if rec.MAC != "" {
			sum.WithMACs++
		}
		if rec.Vendor != "" {
			sum.WithVendor++
		}
	}
	return sum
}
