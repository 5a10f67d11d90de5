package shm

import (
	"os"
	"sync/atomic"
	"testing"
	"time"
)

// testKey hands out SysV IPC keys unique to this test process, so repeated
// test runs never collide with a set a previous run failed to remove.
var testKeyCounter int32

func testKey() int {
	return os.Getpid()*1000 + int(atomic.AddInt32(&testKeyCounter, 1))
}

func newTestSemSet(t *testing.T, nsems int) *SemSet {
	t.Helper()
	set, err := NewSemSet(testKey(), nsems)
	if err != nil {
		t.Fatalf("NewSemSet: %v", err)
	}
	t.Cleanup(func() { set.Remove() })
	return set
}

func TestSemSetPostThenWaitDoesNotBlock(t *testing.T) {
	set := newTestSemSet(t, 1)
	if err := set.Post(0); err != nil {
		t.Fatalf("Post: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- set.Wait(0) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait blocked despite a prior Post")
	}
}

func TestSemSetWaitBlocksUntilPost(t *testing.T) {
	set := newTestSemSet(t, 1)

	done := make(chan error, 1)
	go func() { done <- set.Wait(0) }()

	select {
	case <-done:
		t.Fatal("Wait returned before any Post")
	case <-time.After(50 * time.Millisecond):
	}

	if err := set.Post(0); err != nil {
		t.Fatalf("Post: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after Post")
	}
}

func TestSemSetTryWaitReportsFalseWhenEmpty(t *testing.T) {
	set := newTestSemSet(t, 1)

	ok, err := set.TryWait(0)
	if err != nil {
		t.Fatalf("TryWait: %v", err)
	}
	if ok {
		t.Fatal("TryWait reported true on an unposted semaphore")
	}

	set.Post(0)
	ok, err = set.TryWait(0)
	if err != nil {
		t.Fatalf("TryWait after Post: %v", err)
	}
	if !ok {
		t.Fatal("TryWait reported false despite a prior Post")
	}
}

func TestSemSetSlotsAreIndependent(t *testing.T) {
	set := newTestSemSet(t, 2)
	set.Post(0)

	ok, _ := set.TryWait(1)
	if ok {
		t.Fatal("slot 1 should be unaffected by a Post to slot 0")
	}
	ok, _ = set.TryWait(0)
	if !ok {
		t.Fatal("slot 0 should have been posted")
	}
}
