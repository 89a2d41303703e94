// Package oui resolves the vendor that registered a hardware address's prefix.
package oui

import "strings"

// Resolver maps MAC address prefixes to vendor names via a static table.
// It performs no network I/O and is safe for concurrent use.
type Resolver struct {
	entries map[string]string // uppercase hex prefix -> manufacturer
}

// NewResolver builds a Resolver from the built-in vendor table.
func NewResolver() *Resolver {
	return &Resolver{entries: builtinTable}
}

// NewResolverFromTable builds a Resolver from a caller-supplied table, keyed by
// uppercase hex prefix (6, 7, or 9 hex characters for MA-L/MA-M/MA-S blocks).
func NewResolverFromTable(table map[string]string) *Resolver {
	return &Resolver{entries: table}
}

// Lookup returns the registered organization for mac, trying the longest
// registered prefix block first (MA-S/36-bit, then MA-M/28-bit, then
// MA-L/24-bit). ok is false if mac is malformed or no entry matches.
func (r *Resolver) Lookup(mac string) (vendor string, ok bool) {
	raw := normalizeHex(mac)
	if len(raw) < 6 {
		return "", false
	}

	if isLocallyAdministered(raw) {
		return "Random MAC", true
	}

	for _, n := range [3]int{9, 7, 6} {
		if len(raw) < n {
			continue
		}
		if v, found := r.entries[raw[:n]]; found {
			return v, true
		}
	}
	return "", false
}

// normalizeHex strips MAC delimiters and upper-cases the remaining hex digits.
func normalizeHex(mac string) string {
	raw := strings.NewReplacer(":", "", "-", "", ".", "").Replace(mac)
	return strings.ToUpper(raw)
}

// isLocallyAdministered reports whether the second hex digit marks mac as
// locally administered (i.e. randomized), per the U/L bit in the first octet.
func isLocallyAdministered(raw string) bool {
	if len(raw) < 2 {
		return false
	}
	switch raw[1] {
	case '2', '6', 'A', 'E':
		return true
	default:
		return false
	}
}
