package rpcapi

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

// Client is a thin typed wrapper around a grpc.ClientConn for this
// service, used by integration tests and any future Go client of the
// server.
type Client struct {
	cc *grpc.ClientConn
}

func NewClient(cc *grpc.ClientConn) *Client { return &Client{cc: cc} }

func method(name string) string { return "/" + ServiceName + "/" + name }

func (c *Client) IsAlive(ctx context.Context) (*GeneralResponse, error) {
	resp := new(GeneralResponse)
	if err := c.cc.Invoke(ctx, method("is_alive"), new(Empty), resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Stop(ctx context.Context) (*GeneralResponse, error) {
	resp := new(GeneralResponse)
	if err := c.cc.Invoke(ctx, method("stop"), new(Empty), resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) CreateAgent(ctx context.Context, req *CreateAgentRequest) (*GeneralResponse, error) {
	resp := new(GeneralResponse)
	if err := c.cc.Invoke(ctx, method("create_agent"), req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) DeleteAgent(ctx context.Context, agentID string) (*GeneralResponse, error) {
	resp := new(GeneralResponse)
	if err := c.cc.Invoke(ctx, method("delete_agent"), &ValueRequest{Value: agentID}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) DeleteAllAgents(ctx context.Context) (*GeneralResponse, error) {
	resp := new(GeneralResponse)
	if err := c.cc.Invoke(ctx, method("delete_all_agents"), new(Empty), resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) CloneAgent(ctx context.Context, agentID string) (*CloneAgentResponse, error) {
	resp := new(CloneAgentResponse)
	if err := c.cc.Invoke(ctx, method("clone_agent"), &ValueRequest{Value: agentID}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetAgentList(ctx context.Context) (*AgentListResponse, error) {
	resp := new(AgentListResponse)
	if err := c.cc.Invoke(ctx, method("get_agent_list"), new(Empty), resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetServerInfo(ctx context.Context) (*GeneralResponse, error) {
	resp := new(GeneralResponse)
	if err := c.cc.Invoke(ctx, method("get_server_info"), new(Empty), resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) SetModelConfigs(ctx context.Context, configJSON string) (*GeneralResponse, error) {
	resp := new(GeneralResponse)
	if err := c.cc.Invoke(ctx, method("set_model_configs"), &ValueRequest{Value: configJSON}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetAgentMemory(ctx context.Context, agentID string) (*GeneralResponse, error) {
	resp := new(GeneralResponse)
	if err := c.cc.Invoke(ctx, method("get_agent_memory"), &ValueRequest{Value: agentID}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) CallAgentFunc(ctx context.Context, req *CallAgentFuncRequest) (*GeneralResponse, error) {
	resp := new(GeneralResponse)
	if err := c.cc.Invoke(ctx, method("call_agent_func"), req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) UpdatePlaceholder(ctx context.Context, taskID int64) (*GeneralResponse, error) {
	resp := new(GeneralResponse)
	if err := c.cc.Invoke(ctx, method("update_placeholder"), &UpdatePlaceholderRequest{TaskID: taskID}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// DownloadFileClient is the client-side handle for download_file's
// server-streaming response.
type DownloadFileClient interface {
	Recv() (*ByteMsg, error)
	grpc.ClientStream
}

type downloadFileClient struct{ grpc.ClientStream }

func (c *downloadFileClient) Recv() (*ByteMsg, error) {
	msg := new(ByteMsg)
	if err := c.ClientStream.RecvMsg(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (c *Client) DownloadFile(ctx context.Context, path string) (DownloadFileClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], method("download_file"))
	if err != nil {
		return nil, fmt.Errorf("opening download_file stream: %w", err)
	}
	if err := stream.SendMsg(&ValueRequest{Value: path}); err != nil {
		return nil, fmt.Errorf("sending download_file request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("closing download_file send side: %w", err)
	}
	return &downloadFileClient{ClientStream: stream}, nil
}
