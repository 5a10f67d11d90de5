package tasks

import (
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestEnqueueAssignsMonotonicIDs(t *testing.T) {
	r := New(100, time.Hour, fixedClock(time.Unix(0, 0)))
	a := r.Enqueue()
	b := r.Enqueue()
	if b.ID != a.ID+1 {
		t.Fatalf("task ids not monotonic: a=%d b=%d", a.ID, b.ID)
	}
}

func TestWaitBlocksUntilFinish(t *testing.T) {
	r := New(10, time.Hour, fixedClock(time.Unix(0, 0)))
	task := r.Enqueue()

	done := make(chan struct{})
	var ok bool
	var result []byte
	go func() {
		ok, result, _ = task.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before Finish")
	case <-time.After(50 * time.Millisecond):
	}

	task.Finish(true, []byte("payload"), "")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after Finish")
	}
	if !ok || string(result) != "payload" {
		t.Fatalf("Wait returned ok=%v result=%q", ok, result)
	}
}

func TestGetReturnsFalseForUnknownID(t *testing.T) {
	r := New(10, time.Hour, fixedClock(time.Unix(0, 0)))
	if _, ok := r.Get(999); ok {
		t.Fatal("Get should report false for an id that was never enqueued")
	}
}

func TestFIFOBoundEvictsOldestFinishedTask(t *testing.T) {
	r := New(2, time.Hour, fixedClock(time.Unix(0, 0)))
	first := r.Enqueue()
	first.Finish(true, []byte("one"), "")

	r.Enqueue()
	r.Enqueue() // third reply: FIFO now over max_tasks=2, triggers head-trim

	if _, ok := r.Get(first.ID); ok {
		t.Fatalf("oldest finished task %d should have been evicted once the FIFO exceeded max_tasks", first.ID)
	}
	if r.Len() > 2 {
		t.Fatalf("Len() = %d, want <= 2 after trim", r.Len())
	}
}

func TestUnfinishedHeadBlocksFurtherTrim(t *testing.T) {
	r := New(1, time.Hour, fixedClock(time.Unix(0, 0)))
	first := r.Enqueue() // never finished
	second := r.Enqueue()
	third := r.Enqueue()

	// first is still unfinished, so trimming cannot drop it even though the
	// FIFO is now well over max_tasks=1.
	if _, ok := r.Get(first.ID); !ok {
		t.Fatal("unfinished head task must not be evicted")
	}
	if _, ok := r.Get(second.ID); !ok {
		t.Fatal("second task should still be reachable while blocked behind an unfinished head")
	}
	if _, ok := r.Get(third.ID); !ok {
		t.Fatal("third task should still be reachable while blocked behind an unfinished head")
	}
}

func TestAgeBoundEvictsOldFinishedTask(t *testing.T) {
	base := time.Unix(0, 0)
	current := base
	clock := func() time.Time { return current }
	r := New(1000, time.Minute, clock)

	first := r.Enqueue()
	first.Finish(true, nil, "")

	current = base.Add(2 * time.Minute)
	r.Enqueue() // triggers trim with the advanced clock

	if _, ok := r.Get(first.ID); ok {
		t.Fatal("task older than max_timeout_seconds should have been evicted")
	}
}
