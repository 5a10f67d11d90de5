package shm

import (
	"path/filepath"
	"testing"
)

func TestOpenRegionCreatesAndZeroFills(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region")
	r, err := OpenRegion(path, 64)
	if err != nil {
		t.Fatalf("OpenRegion: %v", err)
	}
	defer r.Close()

	for i, b := range r.Bytes() {
		if b != 0 {
			t.Fatalf("byte %d not zero-filled: %d", i, b)
		}
	}
}

func TestRegionReopenPreservesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region")
	r1, err := OpenRegion(path, 16)
	if err != nil {
		t.Fatalf("OpenRegion: %v", err)
	}
	copy(r1.Bytes(), []byte("hello world!!!!!"))
	if err := r1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r2, err := OpenRegion(path, 16)
	if err != nil {
		t.Fatalf("reopen OpenRegion: %v", err)
	}
	defer r2.Close()
	if string(r2.Bytes()) != "hello world!!!!!" {
		t.Fatalf("content not preserved: %q", r2.Bytes())
	}
}

func TestUnlinkRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region")
	r, err := OpenRegion(path, 8)
	if err != nil {
		t.Fatalf("OpenRegion: %v", err)
	}
	r.Close()

	if err := Unlink(path); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	// Unlinking twice must not error.
	if err := Unlink(path); err != nil {
		t.Fatalf("second Unlink: %v", err)
	}
}
