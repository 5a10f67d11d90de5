package worker

import (
	"context"
	"os"

	"github.com/agentscope/agentserver/internal/agenthost"
	"github.com/agentscope/agentserver/internal/callproto"
	"github.com/agentscope/agentserver/internal/logging"
	"github.com/agentscope/agentserver/internal/metrics"
	"github.com/agentscope/agentserver/internal/shm"
	"github.com/agentscope/agentserver/internal/tasks"
)

func fieldWorker(index int) logging.Field { return logging.F("worker", index) }

// Worker is one shard's child-process state (§4.C): its agent pool, its
// view of the shared-memory channel, and the synchronization primitives
// it shares with the front end.
type Worker struct {
	index    int
	serverID string

	pool    *AgentPool
	channel *shm.Channel
	cmd     *shm.CommandRegion
	sync    *shm.WorkerSync
	done    *shm.CompletionArray
	tasks   *tasks.Registry
	logger  *logging.Logger
	metrics *metrics.Sampler
}

// New constructs a worker shard bound to the given shared resources. It
// leaves the Worker's tasks field nil: tasks live only in the front end.
func New(index int, serverID string, host agenthost.Host, channel *shm.Channel, cmd *shm.CommandRegion, sync *shm.WorkerSync, done *shm.CompletionArray, logger *logging.Logger) *Worker {
	return &Worker{
		index:    index,
		serverID: serverID,
		pool:     NewAgentPool(host),
		channel:  channel,
		cmd:      cmd,
		sync:     sync,
		done:     done,
		logger:   logger,
		metrics:  metrics.NewSampler(os.Getpid()),
	}
}

func (w *Worker) pid() int { return os.Getpid() }

// Run is the worker's main loop (§4.C): mark available, wait for work,
// dispatch, re-arm, repeat. It returns ctx's error when it finds ctx
// cancelled before a wait, or the error of a failed mark-available or
// wait; a wait already in progress is not interrupted by cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.sync.MarkAvailable(w.index); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := w.sync.WaitForWork(w.index); err != nil {
			return err
		}
		callID, functionID := w.cmd.ReadCommand(w.index)
		go w.handle(ctx, callID, functionID)
		if err := w.sync.MarkAvailable(w.index); err != nil {
			w.logger.Error("re-arming worker availability failed", fieldWorker(w.index), logging.F("err", err))
		}
	}
}

// handle runs one dispatched call to completion, including the two-phase
// reply flow, and finishes by posting the call's own completion semaphore
// once the call's result is written. delete_all_agents, get_agent_list and
// server_info are posted without an args payload, so no args are read for
// them.
func (w *Worker) handle(ctx context.Context, callID, functionID int) {
	if functionID == callproto.FuncReply {
		w.handleReplyTwoPhase(ctx, callID)
		return
	}

	var argBytes []byte
	var err error
	if functionID != callproto.FuncDeleteAllAgents && functionID != callproto.FuncGetAgentList && functionID != callproto.FuncServerInfo {
		argBytes, err = w.channel.ReadArgs(callID)
	}
	if err != nil {
		w.logger.Error("reading call args failed", fieldWorker(w.index), logging.F("call_id", callID), logging.F("err", err))
		return
	}

	result, err := w.dispatch(ctx, functionID, argBytes)
	if err != nil {
		w.logger.Error("dispatch failed", fieldWorker(w.index), logging.F("call_id", callID), logging.F("function_id", functionID), logging.F("err", err))
		result, _ = callproto.Marshal(callproto.GenericResult{OK: false, Message: []byte(err.Error())})
	}

	if err := w.channel.WriteResult(callID, result); err != nil {
		w.logger.Error("writing call result failed", fieldWorker(w.index), logging.F("call_id", callID), logging.F("err", err))
		return
	}
	if err := w.done.Signal(callID); err != nil {
		w.logger.Error("signaling completion failed", fieldWorker(w.index), logging.F("call_id", callID), logging.F("err", err))
	}
}

// handleReplyTwoPhase implements function 7's dispatch contract (§4.C):
// the call's own result is set to the echoed task-id immediately, before
// the agent's reply even starts, so the front end can hand the caller a
// placeholder right away; the actual reply result lands later on the
// callback-id's own channel slot and completion semaphore.
func (w *Worker) handleReplyTwoPhase(ctx context.Context, callID int) {
	argBytes, err := w.channel.ReadArgs(callID)
	if err != nil {
		w.logger.Error("reading reply args failed", fieldWorker(w.index), logging.F("call_id", callID), logging.F("err", err))
		return
	}
	var args callproto.ReplyArgs
	if err := callproto.Unmarshal(argBytes, &args); err != nil {
		w.logger.Error("decoding reply args failed", fieldWorker(w.index), logging.F("call_id", callID), logging.F("err", err))
		return
	}

	taskIDResult, _ := callproto.Marshal(args.TaskID)
	if err := w.channel.WriteResult(callID, taskIDResult); err != nil {
		w.logger.Error("writing reply placeholder failed", fieldWorker(w.index), logging.F("call_id", callID), logging.F("err", err))
		return
	}
	if err := w.done.Signal(callID); err != nil {
		w.logger.Error("signaling reply placeholder failed", fieldWorker(w.index), logging.F("call_id", callID), logging.F("err", err))
		return
	}

	result := callproto.GenericResult{OK: true}
	var replyResult []byte
	err = w.pool.WithWriteLock(args.AgentID, func() error {
		var replyErr error
		replyResult, replyErr = w.pool.Host().Reply(ctx, args.AgentID, args.Msg)
		return replyErr
	})
	if err != nil {
		result.OK = false
		result.Message = []byte(err.Error())
	} else {
		result.Message = replyResult
	}

	resultBytes, _ := callproto.Marshal(result)
	if err := w.channel.WriteResult(args.CallbackID, resultBytes); err != nil {
		w.logger.Error("writing reply result failed", fieldWorker(w.index), logging.F("callback_id", args.CallbackID), logging.F("err", err))
		return
	}
	if err := w.done.Signal(args.CallbackID); err != nil {
		w.logger.Error("signaling reply completion failed", fieldWorker(w.index), logging.F("callback_id", args.CallbackID), logging.F("err", err))
	}
}
