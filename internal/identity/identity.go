// Package identity persists operator-assigned device aliases and device-type
// overrides, keyed by MAC address, across discovery runs. Discovery itself
// starts from a fresh in-memory store every run, but an operator's "this is
// my NAS" correction should survive that.
package identity

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/lanscope/discoveryd/internal/logging"
)

var bucketIdentities = []byte("identities") // mac -> Identity

// Identity is an operator's correction or annotation for one MAC address.
type Identity struct {
	ID         string    `json:"id"`
	MAC        string    `json:"mac"`
	Alias      string    `json:"alias,omitempty"`
	DeviceType string    `json:"device_type,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store is a bbolt-backed, MAC-keyed Identity table with an in-process read
// cache guarded by a mutex, so DeviceType lookups from the classifier's hot
// path never touch disk.
type Store struct {
	db  *bolt.DB
	log *logging.Logger

	mu    sync.RWMutex
	cache map[string]Identity
}

// Open creates (or reuses) the identities bucket in db and loads every
// record into the in-memory cache.
func Open(db *bolt.DB, log *logging.Logger) (*Store, error) {
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketIdentities)
		return err
	}); err != nil {
		return nil, fmt.Errorf("creating identities bucket: %w", err)
	}

	s := &Store{db: db, log: log, cache: make(map[string]Identity)}
	if err := s.loadAll(); err != nil {
		return nil, fmt.Errorf("loading identities: %w", err)
	}
	return s, nil
}

func (s *Store) loadAll() error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketIdentities)
		return b.ForEach(func(k, v []byte) error {
			var rec Identity
			if err := json.Unmarshal(v, &rec); err == nil {
				s.cache[rec.MAC] = rec
			}
			return nil
		})
	})
}

// normalize lower-cases and trims a MAC so lookups are insensitive to case
// and surrounding whitespace from API callers.
func normalize(mac string) string {
	return strings.ToLower(strings.TrimSpace(mac))
}

// DeviceType returns the operator-assigned override for mac, if any. It
// satisfies classify.IdentityLookup.
func (s *Store) DeviceType(mac string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.cache[normalize(mac)]
	if !ok || rec.DeviceType == "" {
		return "", false
	}
	return rec.DeviceType, true
}

// Get returns a copy of the stored record for mac, if any.
func (s *Store) Get(mac string) (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.cache[normalize(mac)]
	return rec, ok
}

// All returns every stored identity, in no particular order.
func (s *Store) All() []Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Identity, 0, len(s.cache))
	for _, rec := range s.cache {
		out = append(out, rec)
	}
	return out
}

// Set creates or updates the alias/device-type override for mac and persists
// it to disk before returning. This is the one operator-visible write this
// system has outside of a discovery run, so it is always audit-logged.
func (s *Store) Set(mac, alias, deviceType string, now time.Time) (Identity, error) {
	mac = normalize(mac)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, existed := s.cache[mac]
	if !existed {
		rec = Identity{ID: uuid.NewString(), MAC: mac, CreatedAt: now}
	}
	rec.Alias = alias
	rec.DeviceType = deviceType
	rec.UpdatedAt = now

	data, err := json.Marshal(rec)
	if err != nil {
		return Identity{}, fmt.Errorf("marshal identity: %w", err)
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIdentities).Put([]byte(mac), data)
	}); err != nil {
		return Identity{}, fmt.Errorf("persist identity: %w", err)
	}

	s.cache[mac] = rec
	if s.log != nil {
		s.log.Audit("identity_override", mac, map[string]any{"alias": alias, "device_type": deviceType})
	}
	return rec, nil
}

// Close releases the underlying bbolt handle.
func (s *Store) Close() error {
	return s.db.Close()
}
