package shm

import (
	"fmt"
	"math/rand"
)

// WorkerSync is the per-worker avail/func-ready semaphore handshake of
// §4.C. Each worker owns two binary semaphores in one SemSet: "avail" is
// held (non-zero) while the worker is idle and waiting for work, and
// "funcReady" is posted by the front end once it has written a call into
// the worker's command slot. The front end's FindAvailWorker consumes a
// worker's avail as it picks that worker, so a second caller racing for the
// same worker sees it as busy until the worker re-posts avail.
type WorkerSync struct {
	set        *SemSet
	numWorkers int
}

func availSlot(worker int) int     { return worker * 2 }
func funcReadySlot(worker int) int { return worker*2 + 1 }

// NewWorkerSync creates (or opens) the semaphore set for numWorkers
// workers.
func NewWorkerSync(key, numWorkers int) (*WorkerSync, error) {
	set, err := NewSemSet(key, numWorkers*2)
	if err != nil {
		return nil, fmt.Errorf("creating worker sync set: %w", err)
	}
	return &WorkerSync{set: set, numWorkers: numWorkers}, nil
}

// MarkAvailable is called by a worker as it enters its idle wait.
func (w *WorkerSync) MarkAvailable(worker int) error {
	return w.set.Post(availSlot(worker))
}

// WaitForWork blocks a worker until the front end has posted a call into
// its command slot. It does not touch the worker's avail flag.
func (w *WorkerSync) WaitForWork(worker int) error {
	if err := w.set.Wait(funcReadySlot(worker)); err != nil {
		return err
	}
	return nil
}

// NotifyWork posts funcReady for worker, waking its WaitForWork.
func (w *WorkerSync) NotifyWork(worker int) error {
	return w.set.Post(funcReadySlot(worker))
}

// FindAvailWorker implements the front end's worker selection: a handful of
// random non-blocking probes across the pool, falling back to a blocking
// wait on the last probed worker if every probe misses. The returned
// worker's avail flag has already been consumed by this call.
func (w *WorkerSync) FindAvailWorker(probes int) (int, error) {
	worker := rand.Intn(w.numWorkers)
	for i := 0; i < probes; i++ {
		worker = rand.Intn(w.numWorkers)
		ok, err := w.set.TryWait(availSlot(worker))
		if err != nil {
			return 0, fmt.Errorf("probing worker %d: %w", worker, err)
		}
		if ok {
			return worker, nil
		}
	}
	if err := w.set.Wait(availSlot(worker)); err != nil {
		return 0, fmt.Errorf("blocking wait on worker %d: %w", worker, err)
	}
	return worker, nil
}

// Remove destroys the backing semaphore set. Parent-only, at teardown.
func (w *WorkerSync) Remove() error { return w.set.Remove() }
