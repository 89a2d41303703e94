package classify

import (
	"testing"

	"github.com/lanscope/discoveryd/internal/model"
)

func TestInferPrinterByHostnameAndService(t *testing.T) {
	c := NewKeywordClassifier()
	label, confidence := c.Infer(model.DeviceRecord{
		Hostname: "OfficePrinter.local",
		Services: []string{"_ipp._tcp.local"},
	})
	if label != "Printer" || confidence != 0.95 {
		t.Fatalf("got (%q, %v), want (Printer, 0.95)", label, confidence)
	}
}

func TestInferIoTByVendorOnly(t *testing.T) {
	c := NewKeywordClassifier()
	label, confidence := c.Infer(model.DeviceRecord{Vendor: "Espressif Inc."})
	if label != "IoT Device" || confidence != 0.90 {
		t.Fatalf("got (%q, %v), want (IoT Device, 0.90)", label, confidence)
	}
}

func TestInferUnknownWithNoSignals(t *testing.T) {
	c := NewKeywordClassifier()
	label, confidence := c.Infer(model.DeviceRecord{IP: "10.0.0.5"})
	if label != unknownLabel || confidence != unknownConfidence {
		t.Fatalf("got (%q, %v), want (%q, %v)", label, confidence, unknownLabel, unknownConfidence)
	}
}

func TestInferFirstTableRowWins(t *testing.T) {
	c := NewKeywordClassifier()
	// Matches both the IoT row (esp) and the printer row (_ipp._tcp); IoT
	// is earlier in the table and must win.
	label, _ := c.Infer(model.DeviceRecord{Vendor: "Espressif", Services: []string{"_ipp._tcp.local"}})
	if label != "IoT Device" {
		t.Fatalf("label = %q, want IoT Device (table order)", label)
	}
}

type fakeIdentity map[string]string

func (f fakeIdentity) DeviceType(mac string) (string, bool) {
	t, ok := f[mac]
	return t, ok
}

func TestOverrideClassifierPrefersIdentity(t *testing.T) {
	c := NewOverrideClassifier(NewKeywordClassifier(), fakeIdentity{"aa:bb:cc:dd:ee:ff": "Game Console"})
	label, confidence := c.Infer(model.DeviceRecord{MAC: "aa:bb:cc:dd:ee:ff", Vendor: "Espressif Inc."})
	if label != "Game Console" {
		t.Fatalf("label = %q, want override to win", label)
	}
	if confidence != 0.90 {
		t.Fatalf("confidence = %v, want the inner classifier's 0.90 to still surface", confidence)
	}
}

func TestOverrideClassifierFallsBackWithoutRecord(t *testing.T) {
	c := NewOverrideClassifier(NewKeywordClassifier(), fakeIdentity{})
	label, _ := c.Infer(model.DeviceRecord{MAC: "aa:bb:cc:dd:ee:ff", Vendor: "Espressif Inc."})
	if label != "IoT Device" {
		t.Fatalf("label = %q, want inner classifier's result", label)
	}
}

func TestOverrideClassifierHandlesNilIdentity(t *testing.T) {
	c := NewOverrideClassifier(NewKeywordClassifier(), nil)
	label, _ := c.Infer(model.DeviceRecord{MAC: "aa:bb:cc:dd:ee:ff", Vendor: "Espressif Inc."})
	if label != "IoT Device" {
		t.Fatalf("label = %q, want inner classifier's result", label)
	}
}
