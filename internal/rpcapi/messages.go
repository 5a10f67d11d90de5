// Package rpcapi defines the wire messages and service descriptor for the
// RPC façade (§4.F, §6): plain Go structs carried by a JSON codec
// registered under gRPC's "proto" codec name, and a hand-written
// grpc.ServiceDesc in service.go standing in for protoc-generated code.
package rpcapi

// GeneralResponse is the uniform response shape for every unary method
// except get_agent_list (AgentListResponse) and clone_agent
// (CloneAgentResponse), per §6.
type GeneralResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

type Empty struct{}

// CreateAgentRequest is create_agent's request.
type CreateAgentRequest struct {
	AgentID        string `json:"agent_id"`
	InitArgsBytes  []byte `json:"init_args_bytes"`
	SourceCodeBytes []byte `json:"source_code_bytes"`
}

// ValueRequest carries a single opaque string value, used by
// delete_agent, clone_agent, set_model_configs, get_agent_memory, and
// download_file.
type ValueRequest struct {
	Value string `json:"value"`
}

// CloneAgentResponse is clone_agent's response: message carries the new
// agent id, per §6.
type CloneAgentResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// AgentListResponse is get_agent_list's response.
type AgentListResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"` // serialized list of agent reprs
}

// CallAgentFuncRequest is call_agent_func's request; TargetFunc is
// "_reply" or "_observe" per §6.
type CallAgentFuncRequest struct {
	AgentID    string `json:"agent_id"`
	TargetFunc string `json:"target_func"`
	Value      []byte `json:"value"`
}

// UpdatePlaceholderRequest is update_placeholder's request.
type UpdatePlaceholderRequest struct {
	TaskID int64 `json:"task_id"`
}

// ByteMsg is one chunk of a download_file stream (§6).
type ByteMsg struct {
	Data []byte `json:"data"`
}
