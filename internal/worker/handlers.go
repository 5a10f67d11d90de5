package worker

import (
	"context"
	"fmt"

	"github.com/agentscope/agentserver/internal/callproto"
)

// dispatch runs the handler for functionID against argBytes and returns
// the serialized result to publish back through the channel. Errors
// returned here are transient/IPC-level (bad encoding); agent-raised
// errors are captured inside the handler and folded into the result
// payload's ok=false per §7.
func (w *Worker) dispatch(ctx context.Context, functionID int, argBytes []byte) ([]byte, error) {
	switch functionID {
	case callproto.FuncCreateAgent:
		return w.handleCreateAgent(ctx, argBytes)
	case callproto.FuncDeleteAgent:
		return w.handleDeleteAgent(ctx, argBytes)
	case callproto.FuncDeleteAllAgents:
		return w.handleDeleteAllAgents(ctx)
	case callproto.FuncCloneAgent:
		return w.handleCloneAgent(ctx, argBytes)
	case callproto.FuncGetAgentList:
		return w.handleGetAgentList(ctx)
	case callproto.FuncSetModelConfigs:
		return w.handleSetModelConfigs(ctx, argBytes)
	case callproto.FuncGetAgentMemory:
		return w.handleGetAgentMemory(ctx, argBytes)
	case callproto.FuncObserve:
		return w.handleObserve(ctx, argBytes)
	case callproto.FuncServerInfo:
		return w.handleServerInfo(ctx)
	default:
		return nil, fmt.Errorf("unknown function id %d", functionID)
	}
}

func (w *Worker) handleCreateAgent(ctx context.Context, argBytes []byte) ([]byte, error) {
	var args callproto.CreateAgentArgs
	if err := callproto.Unmarshal(argBytes, &args); err != nil {
		return nil, fmt.Errorf("decoding create_agent args: %w", err)
	}
	result := callproto.GenericResult{OK: true}
	err := w.pool.WithWriteLock(args.AgentID, func() error {
		return w.pool.Host().Create(ctx, args.AgentID, args.InitBytes, args.SourceBytes)
	})
	if err != nil {
		result.OK = false
		result.Message = []byte(err.Error())
	}
	return callproto.Marshal(result)
}

func (w *Worker) handleDeleteAgent(ctx context.Context, argBytes []byte) ([]byte, error) {
	var args callproto.AgentIDArgs
	if err := callproto.Unmarshal(argBytes, &args); err != nil {
		return nil, fmt.Errorf("decoding delete_agent args: %w", err)
	}
	result := callproto.GenericResult{OK: true}
	err := w.pool.WithWriteLock(args.AgentID, func() error {
		return w.pool.Host().Delete(ctx, args.AgentID)
	})
	if err != nil {
		result.OK = false
		result.Message = []byte(err.Error())
	} else {
		w.pool.Forget(args.AgentID)
	}
	return callproto.Marshal(result)
}

func (w *Worker) handleDeleteAllAgents(ctx context.Context) ([]byte, error) {
	ids, err := w.pool.Host().List(ctx)
	if err != nil {
		return callproto.Marshal(callproto.GenericResult{OK: false, Message: []byte(err.Error())})
	}
	for _, id := range ids {
		w.pool.WithWriteLock(id, func() error {
			return w.pool.Host().Delete(ctx, id)
		})
		w.pool.Forget(id)
	}
	return callproto.Marshal(callproto.GenericResult{OK: true})
}

func (w *Worker) handleCloneAgent(ctx context.Context, argBytes []byte) ([]byte, error) {
	var args callproto.AgentIDArgs
	if err := callproto.Unmarshal(argBytes, &args); err != nil {
		return nil, fmt.Errorf("decoding clone_agent args: %w", err)
	}
	var newID string
	err := w.pool.WithWriteLock(args.AgentID, func() error {
		var cloneErr error
		newID, cloneErr = w.pool.Host().Clone(ctx, args.AgentID)
		return cloneErr
	})
	if err != nil {
		return callproto.Marshal(callproto.CloneAgentResult{OK: false, Message: err.Error()})
	}
	return callproto.Marshal(callproto.CloneAgentResult{OK: true, NewID: newID})
}

func (w *Worker) handleGetAgentList(ctx context.Context) ([]byte, error) {
	ids, err := w.pool.Host().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	reprs := make([]string, 0, len(ids))
	for _, id := range ids {
		var repr string
		w.pool.WithReadLock(id, func() error {
			var reprErr error
			repr, reprErr = w.pool.Host().Repr(ctx, id)
			return reprErr
		})
		reprs = append(reprs, repr)
	}
	return callproto.Marshal(callproto.AgentListResult{Reprs: reprs})
}

func (w *Worker) handleSetModelConfigs(ctx context.Context, argBytes []byte) ([]byte, error) {
	var args callproto.SetModelConfigsArgs
	if err := callproto.Unmarshal(argBytes, &args); err != nil {
		return nil, fmt.Errorf("decoding set_model_configs args: %w", err)
	}
	result := callproto.GenericResult{OK: true}
	if err := w.pool.Host().SetModelConfigs(ctx, args.ConfigJSON); err != nil {
		result.OK = false
		result.Message = []byte(err.Error())
	} else {
		w.logger.Info("set_model_configs applied", fieldWorker(w.index))
	}
	return callproto.Marshal(result)
}

func (w *Worker) handleGetAgentMemory(ctx context.Context, argBytes []byte) ([]byte, error) {
	var args callproto.AgentIDArgs
	if err := callproto.Unmarshal(argBytes, &args); err != nil {
		return nil, fmt.Errorf("decoding get_agent_memory args: %w", err)
	}
	var mem []byte
	err := w.pool.WithReadLock(args.AgentID, func() error {
		var memErr error
		mem, memErr = w.pool.Host().Memory(ctx, args.AgentID)
		return memErr
	})
	if err != nil {
		return callproto.Marshal(callproto.MemoryResult{OK: false, Message: err.Error()})
	}
	return callproto.Marshal(callproto.MemoryResult{OK: true, Memory: mem})
}

func (w *Worker) handleObserve(ctx context.Context, argBytes []byte) ([]byte, error) {
	var args callproto.ObserveArgs
	if err := callproto.Unmarshal(argBytes, &args); err != nil {
		return nil, fmt.Errorf("decoding observe args: %w", err)
	}
	result := callproto.GenericResult{OK: true}
	err := w.pool.WithWriteLock(args.AgentID, func() error {
		return w.pool.Host().Observe(ctx, args.AgentID, args.Msgs)
	})
	if err != nil {
		result.OK = false
		result.Message = []byte(err.Error())
	}
	return callproto.Marshal(result)
}

func (w *Worker) handleServerInfo(ctx context.Context) ([]byte, error) {
	info := callproto.ServerInfo{PID: w.pid(), ID: w.serverID}
	info.CPU, info.MemMB = w.metrics.Sample()
	return callproto.Marshal(info)
}
