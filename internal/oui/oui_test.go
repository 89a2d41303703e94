package oui

import "testing"

func TestLookupMatchesRegisteredPrefix(t *testing.T) {
	r := NewResolver()
	vendor, ok := r.Lookup("3c:6d:66:24:69:6c")
	if !ok || vendor != "Espressif Inc." {
		t.Fatalf("Lookup() = %q, %v; want Espressif Inc., true", vendor, ok)
	}
}

func TestLookupNormalizesDelimiters(t *testing.T) {
	r := NewResolver()
	want, ok := r.Lookup("3c:6d:66:24:69:6c")
	if !ok {
		t.Fatal("expected a match for the colon-delimited form")
	}
	got, ok := r.Lookup("3C-6D-66-24-69-6C")
	if !ok || got != want {
		t.Fatalf("Lookup(dash-delimited) = %q, %v; want %q, true", got, ok, want)
	}
}

func TestLookupRandomMAC(t *testing.T) {
	r := NewResolver()
	vendor, ok := r.Lookup("02:00:00:00:00:01")
	if !ok || vendor != "Random MAC" {
		t.Fatalf("Lookup() = %q, %v; want Random MAC, true", vendor, ok)
	}
}

func TestLookupUnknownPrefix(t *testing.T) {
	r := NewResolver()
	_, ok := r.Lookup("00:00:00:00:00:00")
	if ok {
		t.Fatal("expected no match for an unregistered prefix")
	}
}

func TestLookupMalformed(t *testing.T) {
	r := NewResolver()
	_, ok := r.Lookup("not-a-mac")
	if ok {
		t.Fatal("expected no match for a malformed address")
	}
}

func TestLookupLongestPrefixWins(t *testing.T) {
	table := map[string]string{
		"A8BBCC":    "Short Block Vendor",
		"A8BBCCD":   "Medium Block Vendor",
		"A8BBCCDDE": "Long Block Vendor",
	}
	r := NewResolverFromTable(table)
	got, ok := r.Lookup("a8:bb:cc:dd:ee:ff")
	if !ok || got != "Long Block Vendor" {
		t.Fatalf("Lookup() = %q, %v; want Long Block Vendor, true", got, ok)
	}
}
