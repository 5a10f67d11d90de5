// Package rpcserver implements the RPC façade (§4.F): a thin adapter
// mapping the service methods of §6 onto the front-end dispatch layer,
// the task registry, and local filesystem access for download_file.
package rpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/agentscope/agentserver/internal/callproto"
	"github.com/agentscope/agentserver/internal/dispatch"
	"github.com/agentscope/agentserver/internal/logging"
	"github.com/agentscope/agentserver/internal/rpcapi"
	"github.com/agentscope/agentserver/internal/tasks"
)

// downloadChunkSize is the fixed streaming chunk size from §6 ("chunks
// <=1 MiB").
const downloadChunkSize = 1 << 20

// Server implements rpcapi.Server on top of a Dispatcher and a task
// Registry.
type Server struct {
	serverID   string
	dispatcher *dispatch.Dispatcher
	tasks      *tasks.Registry
	logger     *logging.Logger
	stopFunc   func()
}

func New(serverID string, d *dispatch.Dispatcher, registry *tasks.Registry, logger *logging.Logger, stopFunc func()) *Server {
	return &Server{serverID: serverID, dispatcher: d, tasks: registry, logger: logger, stopFunc: stopFunc}
}

func (s *Server) IsAlive(ctx context.Context, _ *rpcapi.Empty) (*rpcapi.GeneralResponse, error) {
	return &rpcapi.GeneralResponse{OK: true}, nil
}

func (s *Server) Stop(ctx context.Context, _ *rpcapi.Empty) (*rpcapi.GeneralResponse, error) {
	if s.stopFunc != nil {
		go s.stopFunc()
	}
	return &rpcapi.GeneralResponse{OK: true, Message: "stopping"}, nil
}

func (s *Server) CreateAgent(ctx context.Context, req *rpcapi.CreateAgentRequest) (*rpcapi.GeneralResponse, error) {
	if _, exists := s.dispatcher.Routing().Lookup(req.AgentID); exists {
		return &rpcapi.GeneralResponse{OK: false, Message: fmt.Sprintf("agent %s already exists", req.AgentID)}, nil
	}
	args, err := callproto.Marshal(callproto.CreateAgentArgs{
		AgentID:     req.AgentID,
		InitBytes:   req.InitArgsBytes,
		SourceBytes: req.SourceCodeBytes,
	})
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "encoding create_agent args: %v", err)
	}

	worker, resultBytes, err := s.dispatcher.CallFreeWorkerFunc(callproto.FuncCreateAgent, args)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "dispatching create_agent: %v", err)
	}
	var result callproto.GenericResult
	if err := callproto.Unmarshal(resultBytes, &result); err != nil {
		return nil, status.Errorf(codes.Internal, "decoding create_agent result: %v", err)
	}
	if result.OK {
		s.dispatcher.Routing().Insert(req.AgentID, worker)
	}
	return &rpcapi.GeneralResponse{OK: result.OK, Message: string(result.Message)}, nil
}

func (s *Server) DeleteAgent(ctx context.Context, req *rpcapi.ValueRequest) (*rpcapi.GeneralResponse, error) {
	args, _ := callproto.Marshal(callproto.AgentIDArgs{AgentID: req.Value})
	resultBytes, err := s.dispatcher.CallOwnedWorkerFunc(req.Value, callproto.FuncDeleteAgent, args)
	if err != nil {
		return &rpcapi.GeneralResponse{OK: false, Message: err.Error()}, nil
	}
	var result callproto.GenericResult
	callproto.Unmarshal(resultBytes, &result)
	if result.OK {
		s.dispatcher.Routing().Erase(req.Value)
	}
	return &rpcapi.GeneralResponse{OK: result.OK, Message: string(result.Message)}, nil
}

func (s *Server) DeleteAllAgents(ctx context.Context, _ *rpcapi.Empty) (*rpcapi.GeneralResponse, error) {
	_, err := s.dispatcher.Broadcast(callproto.FuncDeleteAllAgents, nil)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "broadcasting delete_all_agents: %v", err)
	}
	s.dispatcher.Routing().Clear()
	return &rpcapi.GeneralResponse{OK: true}, nil
}

func (s *Server) CloneAgent(ctx context.Context, req *rpcapi.ValueRequest) (*rpcapi.CloneAgentResponse, error) {
	args, _ := callproto.Marshal(callproto.AgentIDArgs{AgentID: req.Value})
	worker, ok := s.dispatcher.Routing().Lookup(req.Value)
	if !ok {
		return &rpcapi.CloneAgentResponse{OK: false, Message: fmt.Sprintf("agent %s not found", req.Value)}, nil
	}
	resultBytes, err := s.dispatcher.CallWorkerFunc(worker, callproto.FuncCloneAgent, args)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "dispatching clone_agent: %v", err)
	}
	var result callproto.CloneAgentResult
	callproto.Unmarshal(resultBytes, &result)
	if result.OK {
		s.dispatcher.Routing().Insert(result.NewID, worker)
		return &rpcapi.CloneAgentResponse{OK: true, Message: result.NewID}, nil
	}
	return &rpcapi.CloneAgentResponse{OK: false, Message: result.Message}, nil
}

func (s *Server) GetAgentList(ctx context.Context, _ *rpcapi.Empty) (*rpcapi.AgentListResponse, error) {
	results, err := s.dispatcher.Broadcast(callproto.FuncGetAgentList, nil)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "dispatching get_agent_list: %v", err)
	}
	reprs := []string{}
	for _, resultBytes := range results {
		var result callproto.AgentListResult
		if err := callproto.Unmarshal(resultBytes, &result); err != nil {
			return nil, status.Errorf(codes.Internal, "decoding get_agent_list result: %v", err)
		}
		reprs = append(reprs, result.Reprs...)
	}
	encoded, _ := json.Marshal(reprs)
	return &rpcapi.AgentListResponse{OK: true, Message: string(encoded)}, nil
}

func (s *Server) GetServerInfo(ctx context.Context, _ *rpcapi.Empty) (*rpcapi.GeneralResponse, error) {
	_, resultBytes, err := s.dispatcher.CallFreeWorkerFunc(callproto.FuncServerInfo, nil)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "dispatching get_server_info: %v", err)
	}
	var info callproto.ServerInfo
	if err := callproto.Unmarshal(resultBytes, &info); err != nil {
		return nil, status.Errorf(codes.Internal, "decoding get_server_info result: %v", err)
	}
	info.ID = s.serverID
	encoded, _ := json.Marshal(info)
	return &rpcapi.GeneralResponse{OK: true, Message: string(encoded)}, nil
}

func (s *Server) SetModelConfigs(ctx context.Context, req *rpcapi.ValueRequest) (*rpcapi.GeneralResponse, error) {
	args, _ := callproto.Marshal(callproto.SetModelConfigsArgs{ConfigJSON: []byte(req.Value)})
	results, err := s.dispatcher.Broadcast(callproto.FuncSetModelConfigs, args)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "broadcasting set_model_configs: %v", err)
	}
	for i, resultBytes := range results {
		var result callproto.GenericResult
		callproto.Unmarshal(resultBytes, &result)
		if !result.OK {
			s.logger.Error("set_model_configs failed on worker", logging.F("worker", i), logging.F("message", string(result.Message)))
		}
	}
	return &rpcapi.GeneralResponse{OK: true}, nil
}

func (s *Server) GetAgentMemory(ctx context.Context, req *rpcapi.ValueRequest) (*rpcapi.GeneralResponse, error) {
	args, _ := callproto.Marshal(callproto.AgentIDArgs{AgentID: req.Value})
	resultBytes, err := s.dispatcher.CallOwnedWorkerFunc(req.Value, callproto.FuncGetAgentMemory, args)
	if err != nil {
		return &rpcapi.GeneralResponse{OK: false, Message: err.Error()}, nil
	}
	var result callproto.MemoryResult
	callproto.Unmarshal(resultBytes, &result)
	if !result.OK {
		return &rpcapi.GeneralResponse{OK: false, Message: result.Message}, nil
	}
	return &rpcapi.GeneralResponse{OK: true, Message: string(result.Memory)}, nil
}

func (s *Server) CallAgentFunc(ctx context.Context, req *rpcapi.CallAgentFuncRequest) (*rpcapi.GeneralResponse, error) {
	switch req.TargetFunc {
	case "_reply":
		return s.callReply(ctx, req)
	case "_observe":
		return s.callObserve(ctx, req)
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown target_func %q", req.TargetFunc)
	}
}

// callReply implements §4.D/§4.E's reply flow: allocate a task, dispatch
// the worker's two-phase reply call (whose own result is just the
// echoed task-id), spawn a detached waiter on the callback-id that fills
// in the task once the agent finishes, and return the placeholder
// immediately.
func (s *Server) callReply(ctx context.Context, req *rpcapi.CallAgentFuncRequest) (*rpcapi.GeneralResponse, error) {
	worker, ok := s.dispatcher.Routing().Lookup(req.AgentID)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "Try to reply a non-existent agent [%s].", req.AgentID)
	}

	task := s.tasks.Enqueue()
	callbackID := s.dispatcher.AcquireCallID()

	args, _ := callproto.Marshal(callproto.ReplyArgs{AgentID: req.AgentID, Msg: req.Value, TaskID: task.ID, CallbackID: callbackID})
	resultBytes, err := s.dispatcher.CallWorkerFunc(worker, callproto.FuncReply, args)
	if err != nil {
		s.dispatcher.ReleaseCallID(callbackID)
		return nil, status.Errorf(codes.Internal, "dispatching reply: %v", err)
	}
	var echoedTaskID int64
	if err := callproto.Unmarshal(resultBytes, &echoedTaskID); err != nil {
		s.dispatcher.ReleaseCallID(callbackID)
		return nil, status.Errorf(codes.Internal, "decoding reply placeholder: %v", err)
	}

	go s.awaitCallback(callbackID, task)

	placeholder, _ := json.Marshal(map[string]int64{"task_id": echoedTaskID})
	return &rpcapi.GeneralResponse{OK: true, Message: string(placeholder)}, nil
}

// awaitCallback is the detached helper thread of §4.E: it blocks on
// get_result(callback_id), stores the bytes into the task, marks it
// finished, and releases the callback-id back to the shared pool.
func (s *Server) awaitCallback(callbackID int, task *tasks.Task) {
	defer s.dispatcher.ReleaseCallID(callbackID)
	resultBytes, err := s.dispatcher.AwaitResult(callbackID)
	if err != nil {
		task.Finish(false, nil, err.Error())
		return
	}
	var result callproto.GenericResult
	callproto.Unmarshal(resultBytes, &result)
	task.Finish(result.OK, result.Message, "")
}

func (s *Server) callObserve(ctx context.Context, req *rpcapi.CallAgentFuncRequest) (*rpcapi.GeneralResponse, error) {
	args, _ := callproto.Marshal(callproto.ObserveArgs{AgentID: req.AgentID, Msgs: req.Value})
	resultBytes, err := s.dispatcher.CallOwnedWorkerFunc(req.AgentID, callproto.FuncObserve, args)
	if err != nil {
		if errors.Is(err, dispatch.ErrAgentNotRouted) {
			return nil, status.Errorf(codes.InvalidArgument, "Try to observe a non-existent agent [%s].", req.AgentID)
		}
		return nil, status.Errorf(codes.Internal, "dispatching observe: %v", err)
	}
	var result callproto.GenericResult
	callproto.Unmarshal(resultBytes, &result)
	return &rpcapi.GeneralResponse{OK: result.OK, Message: string(result.Message)}, nil
}

func (s *Server) UpdatePlaceholder(ctx context.Context, req *rpcapi.UpdatePlaceholderRequest) (*rpcapi.GeneralResponse, error) {
	task, ok := s.tasks.Get(req.TaskID)
	if !ok {
		return &rpcapi.GeneralResponse{OK: false, Message: fmt.Sprintf("Task %d not exists.", req.TaskID)}, nil
	}
	ok, result, message := task.Wait()
	if !ok && message == "" {
		return &rpcapi.GeneralResponse{OK: false}, nil
	}
	if message != "" {
		return &rpcapi.GeneralResponse{OK: ok, Message: message}, nil
	}
	return &rpcapi.GeneralResponse{OK: ok, Message: string(result)}, nil
}

func (s *Server) DownloadFile(req *rpcapi.ValueRequest, stream rpcapi.DownloadFileServer) error {
	f, err := os.Open(req.Value)
	if err != nil {
		if os.IsNotExist(err) {
			return status.Errorf(codes.NotFound, "file %s not found", req.Value)
		}
		return status.Errorf(codes.Internal, "opening %s: %v", req.Value, err)
	}
	defer f.Close()

	buf := make([]byte, downloadChunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if sendErr := stream.Send(&rpcapi.ByteMsg{Data: append([]byte(nil), buf[:n]...)}); sendErr != nil {
				return status.Errorf(codes.Aborted, "sending chunk: %v", sendErr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return status.Errorf(codes.Internal, "reading %s: %v", req.Value, err)
		}
	}
	// Explicit empty final chunk: the resolved Open Question from §9 avoids
	// relying on stream close alone to signal end-of-file to every client.
	if err := stream.Send(&rpcapi.ByteMsg{Data: nil}); err != nil {
		return status.Errorf(codes.Aborted, "sending final chunk: %v", err)
	}
	return nil
}
