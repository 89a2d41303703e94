// Package classify infers a coarse device type and confidence from a
// DeviceRecord's accumulated signals.
package classify

import (
	"strings"

	"github.com/lanscope/discoveryd/internal/model"
)

// Classifier is a pure inference function the engine takes as a dependency
// so it can be swapped out entirely (e.g. in tests, or for a future
// ML-backed classifier).
type Classifier interface {
	Infer(rec model.DeviceRecord) (deviceType string, confidence float64)
}

// signal pairs a set of substrings with the label and confidence they
// imply. Table order is the match priority: first match wins.
type signal struct {
	substrings []string
	label      string
	confidence float64
}

var table = []signal{
	{[]string{"esp", "tuya"}, "IoT Device", 0.90},
	{[]string{"windows", "smb"}, "Desktop / Laptop", 0.85},
	{[]string{"printer", "_ipp._tcp"}, "Printer", 0.95},
	{[]string{"ipcamera", "rtsp"}, "Security Camera", 0.90},
}

const (
	unknownLabel      = "Unknown Device"
	unknownConfidence = 0.30
)

// KeywordClassifier matches substrings over the lower-cased concatenation
// of a record's vendor, hostname, and services.
type KeywordClassifier struct{}

// NewKeywordClassifier builds the default table-driven Classifier.
func NewKeywordClassifier() KeywordClassifier {
	return KeywordClassifier{}
}

// Infer returns the label for the first table row with any substring
// present in the concatenated signal text; Unknown Device is the fallback.
func (KeywordClassifier) Infer(rec model.DeviceRecord) (string, float64) {
	text := strings.ToLower(rec.Vendor + " " + rec.Hostname + " " + strings.Join(rec.Services, " "))

	for _, row := range table {
		for _, substr := range row.substrings {
			if strings.Contains(text, substr) {
				return row.label, row.confidence
			}
		}
	}
	return unknownLabel, unknownConfidence
}

// IdentityLookup is the subset of internal/identity.Store the override
// classifier needs, kept narrow to avoid a dependency on bbolt from this
// package's tests.
type IdentityLookup interface {
	DeviceType(mac string) (string, bool)
}

// OverrideClassifier wraps an inner Classifier (normally KeywordClassifier)
// and lets a persisted operator override win on the label while the inner
// classifier's confidence still reflects automatic signal strength.
type OverrideClassifier struct {
	Inner    Classifier
	Identity IdentityLookup
}

// NewOverrideClassifier builds a Classifier that consults identity before
// falling back to inner.
func NewOverrideClassifier(inner Classifier, identity IdentityLookup) OverrideClassifier {
	return OverrideClassifier{Inner: inner, Identity: identity}
}

// Infer returns the identity-assigned type for rec.MAC, if any, alongside
// the inner classifier's confidence; otherwise it defers entirely to inner.
func (c OverrideClassifier) Infer(rec model.DeviceRecord) (string, float64) {
	label, confidence := c.Inner.Infer(rec)
	if rec.MAC == "" || c.Identity == nil {
		return label, confidence
	}
	if override, ok := c.Identity.DeviceType(rec.MAC); ok && override != "" {
		return override, confidence
	}
	return label, confidence
}
