package shm

import (
	"path/filepath"
	"testing"
)

func TestPoolWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool")
	p, err := OpenPool(path, 4, 32)
	if err != nil {
		t.Fatalf("OpenPool: %v", err)
	}
	defer p.Close()

	payload := []byte("small payload")
	if ok := p.TryWrite(2, payload); !ok {
		t.Fatal("TryWrite reported false for payload within limit")
	}

	got, ok := p.TryRead(2)
	if !ok {
		t.Fatal("TryRead reported false after a write")
	}
	if string(got) != string(payload) {
		t.Fatalf("round trip mismatch: got %q want %q", got, payload)
	}

	// Slot cleared after read.
	if _, ok := p.TryRead(2); ok {
		t.Fatal("TryRead should report false on an already-consumed slot")
	}
}

func TestPoolTryWriteRejectsOversized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool")
	p, err := OpenPool(path, 2, 8)
	if err != nil {
		t.Fatalf("OpenPool: %v", err)
	}
	defer p.Close()

	if ok := p.TryWrite(0, make([]byte, 9)); ok {
		t.Fatal("TryWrite should reject a payload larger than smallObjSize")
	}
}

func TestPoolSlotsAreIndependent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool")
	p, err := OpenPool(path, 3, 16)
	if err != nil {
		t.Fatalf("OpenPool: %v", err)
	}
	defer p.Close()

	p.TryWrite(0, []byte("a"))
	p.TryWrite(1, []byte("bb"))

	if _, ok := p.TryRead(2); ok {
		t.Fatal("untouched slot should report not occupied")
	}
	got0, _ := p.TryRead(0)
	got1, _ := p.TryRead(1)
	if string(got0) != "a" || string(got1) != "bb" {
		t.Fatalf("cross-slot contamination: slot0=%q slot1=%q", got0, got1)
	}
}
