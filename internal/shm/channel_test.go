package shm

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestChannelArgsSmallPathRoundTrip(t *testing.T) {
	dir := t.TempDir()
	pool, err := OpenPool(filepath.Join(dir, "pool"), 4, 32)
	if err != nil {
		t.Fatalf("OpenPool: %v", err)
	}
	defer pool.Close()
	ch := NewChannel(pool, dir, 12010)

	args := []byte("small args")
	if err := ch.WriteArgs(1, args); err != nil {
		t.Fatalf("WriteArgs: %v", err)
	}
	got, err := ch.ReadArgs(1)
	if err != nil {
		t.Fatalf("ReadArgs: %v", err)
	}
	if !bytes.Equal(got, args) {
		t.Fatalf("ReadArgs = %q, want %q", got, args)
	}
}

func TestChannelFallsBackToNamedSegmentWhenOversized(t *testing.T) {
	dir := t.TempDir()
	pool, err := OpenPool(filepath.Join(dir, "pool"), 4, 4)
	if err != nil {
		t.Fatalf("OpenPool: %v", err)
	}
	defer pool.Close()
	ch := NewChannel(pool, dir, 12010)

	large := bytes.Repeat([]byte("x"), 64)
	if err := ch.WriteArgs(2, large); err != nil {
		t.Fatalf("WriteArgs: %v", err)
	}
	got, err := ch.ReadArgs(2)
	if err != nil {
		t.Fatalf("ReadArgs: %v", err)
	}
	if !bytes.Equal(got, large) {
		t.Fatal("large payload round trip mismatch via named segment")
	}
}

func TestChannelArgsThenResultShareSlotSequentially(t *testing.T) {
	dir := t.TempDir()
	pool, err := OpenPool(filepath.Join(dir, "pool"), 2, 32)
	if err != nil {
		t.Fatalf("OpenPool: %v", err)
	}
	defer pool.Close()
	ch := NewChannel(pool, dir, 12010)

	ch.WriteArgs(0, []byte("the args"))
	args, err := ch.ReadArgs(0)
	if err != nil {
		t.Fatalf("ReadArgs: %v", err)
	}
	if string(args) != "the args" {
		t.Fatalf("ReadArgs = %q", args)
	}

	ch.WriteResult(0, []byte("the result"))
	result, err := ch.ReadResult(0)
	if err != nil {
		t.Fatalf("ReadResult: %v", err)
	}
	if string(result) != "the result" {
		t.Fatalf("ReadResult = %q", result)
	}
}
