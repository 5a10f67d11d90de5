// Package dispatch is the front-end side of the front-end/worker split
// (§4.D): the agent routing table and the two call flavors (owned-worker,
// free-worker) used to reach a worker's function dispatch over the shared
// channel built in internal/shm.
package dispatch

import (
	"errors"
	"fmt"
	"sync"

	"github.com/agentscope/agentserver/internal/shm"
)

// ErrAgentNotRouted is returned by CallOwnedWorkerFunc when agentID has no
// entry in the routing table, distinguishing "no such agent" from other
// dispatch failures for callers that need to report it as a transport-level
// error rather than folding it into an in-band result.
var ErrAgentNotRouted = errors.New("agent has no routing entry")

// probesPerWorkerMultiplier is the "up to 4*num_workers" random-probe bound from
// §4.D, expressed here as a per-worker multiplier applied by the caller.
const probesPerWorkerMultiplier = 4

// RoutingTable maps agent_id to the worker_id that owns it, with the
// invariants from §3: unique across workers, exclusive writes, shared
// reads.
type RoutingTable struct {
	mu    sync.RWMutex
	byID  map[string]int
}

func NewRoutingTable() *RoutingTable {
	return &RoutingTable{byID: make(map[string]int)}
}

func (t *RoutingTable) Insert(agentID string, worker int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID[agentID] = worker
}

func (t *RoutingTable) Lookup(agentID string) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	w, ok := t.byID[agentID]
	return w, ok
}

func (t *RoutingTable) Erase(agentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byID, agentID)
}

func (t *RoutingTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID = make(map[string]int)
}

// Dispatcher is the front end's view of the shared-memory channel: it
// allocates call-ids, posts commands into worker slots, and blocks for
// results.
type Dispatcher struct {
	numWorkers int
	callIDs    *shm.CallIDPool
	channel    *shm.Channel
	cmd        *shm.CommandRegion
	workerSync *shm.WorkerSync
	done       *shm.CompletionArray
	routing    *RoutingTable
}

func NewDispatcher(numWorkers int, callIDs *shm.CallIDPool, channel *shm.Channel, cmd *shm.CommandRegion, workerSync *shm.WorkerSync, done *shm.CompletionArray, routing *RoutingTable) *Dispatcher {
	return &Dispatcher{
		numWorkers: numWorkers,
		callIDs:    callIDs,
		channel:    channel,
		cmd:        cmd,
		workerSync: workerSync,
		done:       done,
		routing:    routing,
	}
}

// FindAvailWorker picks an available worker by random probing, consuming
// its available-slot, per §4.D.
func (d *Dispatcher) FindAvailWorker() (int, error) {
	return d.workerSync.FindAvailWorker(probesPerWorkerMultiplier * d.numWorkers)
}

// CallWorkerFunc posts functionID/args to worker and blocks for the
// result, following the full call-id lifecycle: acquire, write args, post
// command, notify, wait completion, read result, release. This is the
// shared body of both the owned-worker and free-worker flavors; the only
// difference between them is how the caller obtained worker (a routing
// table lookup vs. FindAvailWorker), which is opaque to this method.
func (d *Dispatcher) CallWorkerFunc(worker, functionID int, args []byte) ([]byte, error) {
	callID := d.callIDs.Acquire()
	defer d.callIDs.Release(callID)

	if args != nil {
		if err := d.channel.WriteArgs(callID, args); err != nil {
			return nil, fmt.Errorf("writing args for call %d: %w", callID, err)
		}
	}
	d.cmd.WriteCommand(worker, callID, functionID)
	if err := d.workerSync.NotifyWork(worker); err != nil {
		return nil, fmt.Errorf("notifying worker %d: %w", worker, err)
	}

	return d.AwaitResult(callID)
}

// AcquireCallID draws an id from the shared call-id pool without posting
// any command. It is used directly by reply's asynchronous second phase,
// which needs a callback-id the worker will later write a result into,
// independent of the call-id used for the reply command itself.
func (d *Dispatcher) AcquireCallID() int { return d.callIDs.Acquire() }

// ReleaseCallID returns an id acquired via AcquireCallID to the pool.
func (d *Dispatcher) ReleaseCallID(id int) { d.callIDs.Release(id) }

// AwaitResult blocks on callID's completion semaphore and then reads its
// result, without writing or posting anything — the counterpart to
// AcquireCallID for callers that already know a worker will eventually
// post this id's completion on its own (the reply callback-id flow).
func (d *Dispatcher) AwaitResult(callID int) ([]byte, error) {
	if err := d.done.Wait(callID); err != nil {
		return nil, fmt.Errorf("waiting for call %d: %w", callID, err)
	}
	result, err := d.channel.ReadResult(callID)
	if err != nil {
		return nil, fmt.Errorf("reading result for call %d: %w", callID, err)
	}
	return result, nil
}

// CallOwnedWorkerFunc dispatches to the worker already recorded in the
// routing table for agentID, without consulting worker availability: the
// owning worker is guaranteed to be servicing requests.
func (d *Dispatcher) CallOwnedWorkerFunc(agentID string, functionID int, args []byte) ([]byte, error) {
	worker, ok := d.routing.Lookup(agentID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotRouted, agentID)
	}
	return d.CallWorkerFunc(worker, functionID, args)
}

// CallFreeWorkerFunc dispatches to any available worker, for calls with no
// fixed owner (create_agent, server_info).
func (d *Dispatcher) CallFreeWorkerFunc(functionID int, args []byte) (worker int, result []byte, err error) {
	worker, err = d.FindAvailWorker()
	if err != nil {
		return 0, nil, fmt.Errorf("finding available worker: %w", err)
	}
	result, err = d.CallWorkerFunc(worker, functionID, args)
	return worker, result, err
}

// Routing exposes the dispatcher's routing table for the façade layer's
// insert/erase bookkeeping.
func (d *Dispatcher) Routing() *RoutingTable { return d.routing }

// NumWorkers reports the configured shard count.
func (d *Dispatcher) NumWorkers() int { return d.numWorkers }

// Broadcast sends functionID/args to every worker and collects the
// results, used by delete_all_agents and set_model_configs.
func (d *Dispatcher) Broadcast(functionID int, args []byte) ([][]byte, error) {
	results := make([][]byte, d.numWorkers)
	var firstErr error
	for i := 0; i < d.numWorkers; i++ {
		result, err := d.CallWorkerFunc(i, functionID, args)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		results[i] = result
	}
	return results, firstErr
}
