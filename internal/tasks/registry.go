// Package tasks implements the bounded FIFO of outstanding reply tasks
// (§3 "Task", §4.E): a reply call enqueues a task immediately and returns
// its id; a background goroutine fills in the result once the owning
// worker finishes, and update_placeholder blocks on that task's condition
// variable until it does. Old entries are trimmed lazily, from the head,
// by the next caller to enqueue.
package tasks

import (
	"sync"
	"time"
)

// Task is a durable record of one in-flight reply call.
type Task struct {
	ID       int64
	Enqueued time.Time

	mu       sync.Mutex
	cond     *sync.Cond
	finished bool
	ok       bool
	result   []byte
	message  string
}

func newTask(id int64, now time.Time) *Task {
	t := &Task{ID: id, Enqueued: now}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Finish records the task's outcome and wakes every waiter. Calling Finish
// more than once is a programmer error but does not panic; the first call
// wins.
func (t *Task) Finish(ok bool, result []byte, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return
	}
	t.ok = ok
	t.result = result
	t.message = message
	t.finished = true
	t.cond.Broadcast()
}

// Wait blocks until the task finishes, then returns its outcome.
func (t *Task) Wait() (ok bool, result []byte, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for !t.finished {
		t.cond.Wait()
	}
	return t.ok, t.result, t.message
}

// Registry is the task FIFO: a head pointer trimmed lazily on Enqueue, a
// map for O(1) lookup by id, and a monotonic id counter. tailMu guards id
// allocation; headMu guards the FIFO and the map, so appending a new task
// waits for a trim or lookup in progress, while the trim itself is skipped
// when headMu is already held.
type Registry struct {
	headMu sync.Mutex
	tailMu sync.Mutex

	maxTasks       int
	maxAge         time.Duration
	order          []int64 // FIFO order of live ids, oldest first
	byID           map[int64]*Task
	next           int64
	now            func() time.Time
}

// New creates a registry bounding the FIFO to maxTasks entries, each
// evicted once its age exceeds maxAge. now is injectable for deterministic
// tests; production callers pass time.Now.
func New(maxTasks int, maxAge time.Duration, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		maxTasks: maxTasks,
		maxAge:   maxAge,
		byID:     make(map[int64]*Task),
		now:      now,
	}
}

// Enqueue allocates a new task-id, registers the task, and trims the head of
// the FIFO before returning if a try-lock on headMu succeeds. This is the only place an
// eviction happens, matching the "lazy, under a try-lock by the next reply
// caller" removal policy.
func (r *Registry) Enqueue() *Task {
	r.tailMu.Lock()
	id := r.next
	r.next++
	task := newTask(id, r.now())
	r.tailMu.Unlock()

	r.headMu.Lock()
	r.order = append(r.order, id)
	r.byID[id] = task
	r.headMu.Unlock()

	if r.headMu.TryLock() {
		r.trimLocked()
		r.headMu.Unlock()
	}

	return task
}

// trimLocked must be called with headMu held. It drops entries from the
// front of order while the FIFO exceeds maxTasks or the oldest surviving
// entry is older than maxAge. Only finished tasks are ever dropped: an
// in-flight task at the head blocks further trimming, since dropping it
// would strand its Wait()ers with no path to the result.
func (r *Registry) trimLocked() {
	now := r.now()
	for len(r.order) > 0 {
		id := r.order[0]
		task := r.byID[id]
		overCount := r.maxTasks > 0 && len(r.order) > r.maxTasks
		overAge := r.maxAge > 0 && now.Sub(task.Enqueued) > r.maxAge
		if !overCount && !overAge {
			break
		}
		task.mu.Lock()
		finished := task.finished
		task.mu.Unlock()
		if !finished {
			break
		}
		r.order = r.order[1:]
		delete(r.byID, id)
	}
}

// Get looks up a task by id. The second return is false for both "never
// existed" and "evicted" ids, matching the façade's collapsed (false, "")
// response for both cases.
func (r *Registry) Get(id int64) (*Task, bool) {
	r.headMu.Lock()
	defer r.headMu.Unlock()
	task, ok := r.byID[id]
	return task, ok
}

// Len reports the current FIFO size, for diagnostics and tests.
func (r *Registry) Len() int {
	r.headMu.Lock()
	defer r.headMu.Unlock()
	return len(r.order)
}
