package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGetReturnsTheSameRegistryEveryCall(t *testing.T) {
	a := Get()
	b := Get()
	if a != b {
		t.Fatal("Get() should return the same singleton on repeated calls")
	}
}

func TestProbeTotalIncrementsByLabel(t *testing.T) {
	r := Get()
	r.ProbeTotal.WithLabelValues("ARP", "OK").Inc()

	got := testutil.ToFloat64(r.ProbeTotal.WithLabelValues("ARP", "OK"))
	if got < 1 {
		t.Fatalf("ProbeTotal{ARP,OK} = %v, want >= 1", got)
	}
}

func TestDevicesLastRunGaugeSet(t *testing.T) {
	r := Get()
	r.DevicesLastRun.Set(7)
	if got := testutil.ToFloat64(r.DevicesLastRun); got != 7 {
		t.Fatalf("DevicesLastRun = %v, want 7", got)
	}
}
