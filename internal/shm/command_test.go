package shm

import (
	"path/filepath"
	"testing"
)

func TestCommandRegionWriteReadPerWorkerSlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "command")
	c, err := OpenCommandRegion(path, 3)
	if err != nil {
		t.Fatalf("OpenCommandRegion: %v", err)
	}
	defer c.Close()

	c.WriteCommand(1, 42, 7)
	callID, functionID := c.ReadCommand(1)
	if callID != 42 || functionID != 7 {
		t.Fatalf("ReadCommand(1) = (%d, %d), want (42, 7)", callID, functionID)
	}

	// Untouched slots stay zeroed.
	callID, functionID = c.ReadCommand(0)
	if callID != 0 || functionID != 0 {
		t.Fatalf("ReadCommand(0) = (%d, %d), want (0, 0)", callID, functionID)
	}
}
