package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentscope/agentserver/internal/agenthost"
	"github.com/agentscope/agentserver/internal/callproto"
	"github.com/agentscope/agentserver/internal/logging"
	"github.com/agentscope/agentserver/internal/shm"
	"github.com/agentscope/agentserver/internal/worker"
)

var dispatchTestKeyCounter int32

func dispatchTestKey() int {
	return os.Getpid()*1000000 + int(atomic.AddInt32(&dispatchTestKeyCounter, 1))
}

// fixture wires a real Dispatcher to numWorkers real in-process Worker
// goroutines sharing the same shm primitives, the closest this test suite
// gets to the reference two-process topology without actually forking.
type fixture struct {
	dispatcher *Dispatcher
	cancel     context.CancelFunc
}

func newFixture(t *testing.T, numWorkers int) *fixture {
	t.Helper()
	dir := t.TempDir()
	maxCallID := 64

	pool, err := shm.OpenPool(filepath.Join(dir, "pool"), maxCallID, 256)
	if err != nil {
		t.Fatalf("OpenPool: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	channel := shm.NewChannel(pool, dir, 12010)

	cmd, err := shm.OpenCommandRegion(filepath.Join(dir, "cmd"), numWorkers)
	if err != nil {
		t.Fatalf("OpenCommandRegion: %v", err)
	}
	t.Cleanup(func() { cmd.Close() })

	ws, err := shm.NewWorkerSync(dispatchTestKey(), numWorkers)
	if err != nil {
		t.Fatalf("NewWorkerSync: %v", err)
	}
	t.Cleanup(func() { ws.Remove() })

	done, err := shm.NewCompletionArray(dispatchTestKey(), maxCallID, maxCallID)
	if err != nil {
		t.Fatalf("NewCompletionArray: %v", err)
	}
	t.Cleanup(func() { done.Remove() })

	callIDs := shm.NewCallIDPool(maxCallID)
	routing := NewRoutingTable()
	d := NewDispatcher(numWorkers, callIDs, channel, cmd, ws, done, routing)

	ctx, cancel := context.WithCancel(context.Background())
	logger := logging.New(os.Stderr, "dispatch-test", false)
	for i := 0; i < numWorkers; i++ {
		host := agenthost.NewReferenceHost()
		w := worker.New(i, "test-server", host, channel, cmd, ws, done, logger)
		go w.Run(ctx)
	}
	// Give every worker a moment to post its initial available flag.
	time.Sleep(20 * time.Millisecond)

	return &fixture{dispatcher: d, cancel: cancel}
}

func TestDispatcherFreeWorkerCreateAgentThenOwnedCall(t *testing.T) {
	f := newFixture(t, 3)
	defer f.cancel()

	args, _ := callproto.Marshal(callproto.CreateAgentArgs{AgentID: "a1"})
	worker, result, err := f.dispatcher.CallFreeWorkerFunc(callproto.FuncCreateAgent, args)
	if err != nil {
		t.Fatalf("CallFreeWorkerFunc: %v", err)
	}
	var created callproto.GenericResult
	callproto.Unmarshal(result, &created)
	if !created.OK {
		t.Fatalf("create_agent failed: %s", created.Message)
	}
	f.dispatcher.Routing().Insert("a1", worker)

	memArgs, _ := callproto.Marshal(callproto.AgentIDArgs{AgentID: "a1"})
	memResultBytes, err := f.dispatcher.CallOwnedWorkerFunc("a1", callproto.FuncGetAgentMemory, memArgs)
	if err != nil {
		t.Fatalf("CallOwnedWorkerFunc: %v", err)
	}
	var memResult callproto.MemoryResult
	callproto.Unmarshal(memResultBytes, &memResult)
	if !memResult.OK {
		t.Fatalf("get_agent_memory failed: %s", memResult.Message)
	}
}

func TestDispatcherOwnedCallUnknownAgentFails(t *testing.T) {
	f := newFixture(t, 2)
	defer f.cancel()

	_, err := f.dispatcher.CallOwnedWorkerFunc("ghost", callproto.FuncGetAgentMemory, nil)
	if err == nil {
		t.Fatal("expected an error looking up an agent with no routing entry")
	}
}

func TestDispatcherBroadcastReachesEveryWorker(t *testing.T) {
	f := newFixture(t, 3)
	defer f.cancel()

	results, err := f.dispatcher.Broadcast(callproto.FuncDeleteAllAgents, nil)
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Broadcast returned %d results, want 3", len(results))
	}
	for i, r := range results {
		var res callproto.GenericResult
		if err := callproto.Unmarshal(r, &res); err != nil {
			t.Fatalf("decoding result %d: %v", i, err)
		}
		if !res.OK {
			t.Fatalf("worker %d delete_all_agents failed", i)
		}
	}
}

func TestDispatcherConcurrentCallsOnDistinctAgentsDoNotDeadlock(t *testing.T) {
	f := newFixture(t, 4)
	defer f.cancel()

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func(i int) {
			args, _ := callproto.Marshal(callproto.CreateAgentArgs{AgentID: string(rune('a' + i))})
			_, _, err := f.dispatcher.CallFreeWorkerFunc(callproto.FuncCreateAgent, args)
			done <- err
		}(i)
	}
	for i := 0; i < 8; i++ {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("concurrent create_agent failed: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for concurrent create_agent calls")
		}
	}
}
