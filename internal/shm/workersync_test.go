package shm

import (
	"testing"
	"time"
)

func newTestWorkerSync(t *testing.T, numWorkers int) *WorkerSync {
	t.Helper()
	w, err := NewWorkerSync(testKey(), numWorkers)
	if err != nil {
		t.Fatalf("NewWorkerSync: %v", err)
	}
	t.Cleanup(func() { w.Remove() })
	return w
}

func TestFindAvailWorkerReturnsMarkedWorker(t *testing.T) {
	w := newTestWorkerSync(t, 4)
	if err := w.MarkAvailable(2); err != nil {
		t.Fatalf("MarkAvailable: %v", err)
	}

	got, err := w.FindAvailWorker(32)
	if err != nil {
		t.Fatalf("FindAvailWorker: %v", err)
	}
	if got != 2 {
		t.Fatalf("FindAvailWorker = %d, want 2 (the only marked worker)", got)
	}
}

func TestFindAvailWorkerConsumesAvailFlag(t *testing.T) {
	w := newTestWorkerSync(t, 1)
	w.MarkAvailable(0)

	if _, err := w.FindAvailWorker(8); err != nil {
		t.Fatalf("first FindAvailWorker: %v", err)
	}

	// The single worker's avail flag was consumed; a second call must block
	// until it is marked available again.
	done := make(chan int, 1)
	go func() {
		worker, _ := w.FindAvailWorker(8)
		done <- worker
	}()

	select {
	case <-done:
		t.Fatal("second FindAvailWorker returned without a fresh MarkAvailable")
	case <-time.After(100 * time.Millisecond):
	}

	w.MarkAvailable(0)
	select {
	case worker := <-done:
		if worker != 0 {
			t.Fatalf("FindAvailWorker = %d, want 0", worker)
		}
	case <-time.After(time.Second):
		t.Fatal("FindAvailWorker did not unblock after MarkAvailable")
	}
}

func TestWorkerSyncNotifyAndWaitForWork(t *testing.T) {
	w := newTestWorkerSync(t, 2)

	done := make(chan error, 1)
	go func() { done <- w.WaitForWork(1) }()

	select {
	case <-done:
		t.Fatal("WaitForWork returned before NotifyWork")
	case <-time.After(50 * time.Millisecond):
	}

	if err := w.NotifyWork(1); err != nil {
		t.Fatalf("NotifyWork: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitForWork: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForWork did not unblock after NotifyWork")
	}
}
