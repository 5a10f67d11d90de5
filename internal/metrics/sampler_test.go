package metrics

import (
	"os"
	"testing"
)

func TestSampleOwnProcessReturnsNonNegative(t *testing.T) {
	s := NewSampler(os.Getpid())
	cpu, mem := s.Sample()
	if cpu < 0 {
		t.Fatalf("cpu = %f, want >= 0", cpu)
	}
	if mem <= 0 {
		t.Fatalf("mem = %f, want > 0 for a live process", mem)
	}
}

func TestSampleUnknownPIDReturnsZero(t *testing.T) {
	s := NewSampler(-1)
	cpu, mem := s.Sample()
	if cpu != 0 || mem != 0 {
		t.Fatalf("Sample() for invalid pid = (%f, %f), want (0, 0)", cpu, mem)
	}
}
