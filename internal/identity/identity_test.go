package identity

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/lanscope/discoveryd/internal/logging"
)

func testDB(t *testing.T) *bolt.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "identity.db")
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: logging.LevelError, Output: io.Discard})
}

func TestSetThenDeviceTypeReturnsOverride(t *testing.T) {
	s, err := Open(testDB(t), testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	now := time.Now()
	if _, err := s.Set("AA:BB:CC:DD:EE:FF", "Living Room NAS", "NAS", now); err != nil {
		t.Fatalf("Set: %v", err)
	}

	deviceType, ok := s.DeviceType("aa:bb:cc:dd:ee:ff")
	if !ok || deviceType != "NAS" {
		t.Fatalf("DeviceType = (%q, %v), want (NAS, true)", deviceType, ok)
	}
}

func TestDeviceTypeUnknownMACReturnsFalse(t *testing.T) {
	s, err := Open(testDB(t), testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := s.DeviceType("00:11:22:33:44:55"); ok {
		t.Fatal("expected no override for an unknown MAC")
	}
}

func TestSetPreservesCreatedAtAcrossUpdates(t *testing.T) {
	s, err := Open(testDB(t), testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t0 := time.Now()
	first, err := s.Set("aa:bb:cc:dd:ee:ff", "NAS", "NAS", t0)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}

	t1 := t0.Add(time.Hour)
	second, err := s.Set("aa:bb:cc:dd:ee:ff", "Renamed NAS", "NAS", t1)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}

	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("CreatedAt changed across update: %v vs %v", first.CreatedAt, second.CreatedAt)
	}
	if !second.UpdatedAt.Equal(t1) {
		t.Fatalf("UpdatedAt = %v, want %v", second.UpdatedAt, t1)
	}
	if second.ID != first.ID {
		t.Fatalf("ID changed across update: %q vs %q", first.ID, second.ID)
	}
}

func TestOpenReloadsPersistedRecordsIntoCache(t *testing.T) {
	db := testDB(t)
	s1, err := Open(db, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s1.Set("aa:bb:cc:dd:ee:ff", "NAS", "NAS", time.Now()); err != nil {
		t.Fatalf("Set: %v", err)
	}

	s2, err := Open(db, testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, ok := s2.DeviceType("aa:bb:cc:dd:ee:ff"); !ok {
		t.Fatal("expected the record set before reopening to still be cached")
	}
}

func TestAllReturnsEveryRecord(t *testing.T) {
	s, err := Open(testDB(t), testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Set("aa:bb:cc:dd:ee:ff", "A", "NAS", time.Now())
	s.Set("11:22:33:44:55:66", "B", "Printer", time.Now())

	all := s.All()
	if len(all) != 2 {
		t.Fatalf("All() returned %d records, want 2", len(all))
	}
}
