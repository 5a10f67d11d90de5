package shm

import (
	"testing"
	"time"
)

func newTestCompletionArray(t *testing.T, maxCallID, semsPerSet int) *CompletionArray {
	t.Helper()
	c, err := NewCompletionArray(testKey(), maxCallID, semsPerSet)
	if err != nil {
		t.Fatalf("NewCompletionArray: %v", err)
	}
	t.Cleanup(func() { c.Remove() })
	return c
}

func TestCompletionArraySignalWait(t *testing.T) {
	c := newTestCompletionArray(t, 4, 4)

	if err := c.Signal(2); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	if err := c.Wait(2); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestCompletionArraySpansMultipleSets(t *testing.T) {
	// semsPerSet=2 with maxCallID=5 forces 3 backing SemSets; call-id 4
	// lives alone in the third set.
	c := newTestCompletionArray(t, 5, 2)
	if len(c.sets) != 3 {
		t.Fatalf("expected 3 backing sets, got %d", len(c.sets))
	}

	if err := c.Signal(4); err != nil {
		t.Fatalf("Signal on last set: %v", err)
	}
	ok, err := c.TryWait(4)
	if err != nil {
		t.Fatalf("TryWait: %v", err)
	}
	if !ok {
		t.Fatal("TryWait reported false after Signal")
	}
}

func TestCompletionArrayWaitBlocksUntilSignal(t *testing.T) {
	c := newTestCompletionArray(t, 2, 2)

	done := make(chan error, 1)
	go func() { done <- c.Wait(1) }()

	select {
	case <-done:
		t.Fatal("Wait returned before Signal")
	case <-time.After(50 * time.Millisecond):
	}

	c.Signal(1)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after Signal")
	}
}

func TestCompletionArrayRejectsOutOfRangeCallID(t *testing.T) {
	c := newTestCompletionArray(t, 2, 2)
	if err := c.Signal(2); err == nil {
		t.Fatal("expected error for call-id beyond maxCallID")
	}
	if err := c.Wait(-1); err == nil {
		t.Fatal("expected error for negative call-id")
	}
}
