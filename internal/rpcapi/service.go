package rpcapi

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the gRPC service path segment used by both server
// registration and client Invoke/NewStream calls.
const ServiceName = "agentscope.agentserver.AgentServer"

// Server is the set of RPC methods the façade implements (§6). Handlers
// live in internal/rpcserver; this package only describes the wire
// contract and wires it to grpc.ServiceDesc by hand, since there is no
// protoc-generated stub to do it for us.
type Server interface {
	IsAlive(ctx context.Context, req *Empty) (*GeneralResponse, error)
	Stop(ctx context.Context, req *Empty) (*GeneralResponse, error)
	CreateAgent(ctx context.Context, req *CreateAgentRequest) (*GeneralResponse, error)
	DeleteAgent(ctx context.Context, req *ValueRequest) (*GeneralResponse, error)
	DeleteAllAgents(ctx context.Context, req *Empty) (*GeneralResponse, error)
	CloneAgent(ctx context.Context, req *ValueRequest) (*CloneAgentResponse, error)
	GetAgentList(ctx context.Context, req *Empty) (*AgentListResponse, error)
	GetServerInfo(ctx context.Context, req *Empty) (*GeneralResponse, error)
	SetModelConfigs(ctx context.Context, req *ValueRequest) (*GeneralResponse, error)
	GetAgentMemory(ctx context.Context, req *ValueRequest) (*GeneralResponse, error)
	CallAgentFunc(ctx context.Context, req *CallAgentFuncRequest) (*GeneralResponse, error)
	UpdatePlaceholder(ctx context.Context, req *UpdatePlaceholderRequest) (*GeneralResponse, error)
	DownloadFile(req *ValueRequest, stream DownloadFileServer) error
}

// DownloadFileServer is the server-side handle for download_file's
// server-streaming response.
type DownloadFileServer interface {
	Send(*ByteMsg) error
	grpc.ServerStream
}

type downloadFileServer struct{ grpc.ServerStream }

func (s *downloadFileServer) Send(msg *ByteMsg) error { return s.ServerStream.SendMsg(msg) }

func isAliveHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(Empty)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).IsAlive(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/is_alive"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).IsAlive(ctx, req.(*Empty))
	}
	return interceptor(ctx, req, info, handler)
}

func stopHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(Empty)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Stop(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/stop"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).Stop(ctx, req.(*Empty))
	}
	return interceptor(ctx, req, info, handler)
}

func createAgentHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(CreateAgentRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).CreateAgent(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/create_agent"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).CreateAgent(ctx, req.(*CreateAgentRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func deleteAgentHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(ValueRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).DeleteAgent(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/delete_agent"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).DeleteAgent(ctx, req.(*ValueRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func deleteAllAgentsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(Empty)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).DeleteAllAgents(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/delete_all_agents"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).DeleteAllAgents(ctx, req.(*Empty))
	}
	return interceptor(ctx, req, info, handler)
}

func cloneAgentHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(ValueRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).CloneAgent(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/clone_agent"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).CloneAgent(ctx, req.(*ValueRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func getAgentListHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(Empty)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).GetAgentList(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/get_agent_list"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).GetAgentList(ctx, req.(*Empty))
	}
	return interceptor(ctx, req, info, handler)
}

func getServerInfoHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(Empty)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).GetServerInfo(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/get_server_info"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).GetServerInfo(ctx, req.(*Empty))
	}
	return interceptor(ctx, req, info, handler)
}

func setModelConfigsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(ValueRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).SetModelConfigs(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/set_model_configs"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).SetModelConfigs(ctx, req.(*ValueRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func getAgentMemoryHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(ValueRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).GetAgentMemory(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/get_agent_memory"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).GetAgentMemory(ctx, req.(*ValueRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func callAgentFuncHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(CallAgentFuncRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).CallAgentFunc(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/call_agent_func"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).CallAgentFunc(ctx, req.(*CallAgentFuncRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func updatePlaceholderHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	req := new(UpdatePlaceholderRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).UpdatePlaceholder(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ServiceName + "/update_placeholder"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).UpdatePlaceholder(ctx, req.(*UpdatePlaceholderRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func downloadFileStreamHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(ValueRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(Server).DownloadFile(req, &downloadFileServer{ServerStream: stream})
}

// ServiceDesc is the hand-written stand-in for a protoc-generated
// _grpc.pb.go service descriptor.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "is_alive", Handler: isAliveHandler},
		{MethodName: "stop", Handler: stopHandler},
		{MethodName: "create_agent", Handler: createAgentHandler},
		{MethodName: "delete_agent", Handler: deleteAgentHandler},
		{MethodName: "delete_all_agents", Handler: deleteAllAgentsHandler},
		{MethodName: "clone_agent", Handler: cloneAgentHandler},
		{MethodName: "get_agent_list", Handler: getAgentListHandler},
		{MethodName: "get_server_info", Handler: getServerInfoHandler},
		{MethodName: "set_model_configs", Handler: setModelConfigsHandler},
		{MethodName: "get_agent_memory", Handler: getAgentMemoryHandler},
		{MethodName: "call_agent_func", Handler: callAgentFuncHandler},
		{MethodName: "update_placeholder", Handler: updatePlaceholderHandler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "download_file",
			Handler:       downloadFileStreamHandler,
			ServerStreams: true,
		},
	},
	Metadata: "agentserver.proto",
}

// RegisterServer attaches srv's implementation to s under ServiceDesc.
func RegisterServer(s grpc.ServiceRegistrar, srv Server) {
	s.RegisterService(&ServiceDesc, srv)
}
