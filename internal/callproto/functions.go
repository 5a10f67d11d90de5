// Package callproto defines the wire contract shared by the front-end
// dispatch layer and the worker child process: the stable function-id
// enumeration of §4.C and the CBOR argument/result shapes carried over
// the shared-memory channel for each one. CBOR, not JSON, is the codec
// here because these payloads travel through the fixed-size small-object
// pool in internal/shm: a more compact encoding means more calls stay on
// the fast path instead of falling back to a named segment.
package callproto

import "github.com/fxamacker/cbor/v2"

// Function ids, stable integer codes 0-9 per §4.C.
const (
	FuncCreateAgent     = 0
	FuncDeleteAgent     = 1
	FuncDeleteAllAgents = 2
	FuncCloneAgent      = 3
	FuncGetAgentList    = 4
	FuncSetModelConfigs = 5
	FuncGetAgentMemory  = 6
	FuncReply           = 7
	FuncObserve         = 8
	FuncServerInfo      = 9
)

// Marshal encodes v as CBOR for transport over the shared-memory channel.
func Marshal(v any) ([]byte, error) { return cbor.Marshal(v) }

// Unmarshal decodes a CBOR payload produced by Marshal.
func Unmarshal(data []byte, v any) error { return cbor.Unmarshal(data, v) }

// CreateAgentArgs is function 0's argument payload.
type CreateAgentArgs struct {
	AgentID     string `cbor:"agent_id"`
	InitBytes   []byte `cbor:"init_bytes"`
	SourceBytes []byte `cbor:"source_bytes"`
}

// AgentIDArgs carries a bare agent id, used by functions 1, 3, 6.
type AgentIDArgs struct {
	AgentID string `cbor:"agent_id"`
}

// SetModelConfigsArgs is function 5's argument payload.
type SetModelConfigsArgs struct {
	ConfigJSON []byte `cbor:"config_json"`
}

// ReplyArgs is function 7's argument payload. TaskID and CallbackID are
// allocated by the front end before the call is posted: the worker uses
// CallbackID to post the asynchronous result once the agent's reply
// completes, and echoes TaskID back as the call's own (synchronous)
// result so the front end can hand it to the caller as a placeholder.
type ReplyArgs struct {
	AgentID    string `cbor:"agent_id"`
	Msg        []byte `cbor:"msg"`
	TaskID     int64  `cbor:"task_id"`
	CallbackID int    `cbor:"callback_id"`
}

// ObserveArgs is function 8's argument payload.
type ObserveArgs struct {
	AgentID string `cbor:"agent_id"`
	Msgs    []byte `cbor:"msgs"`
}

// GenericResult is the uniform (ok, message-or-payload) result shape used
// by create_agent, delete_agent, delete_all_agents, set_model_configs and
// observe, by reply's callback result, and by the worker when a handler
// fails. clone_agent, get_agent_list, get_agent_memory and server_info
// have their own result shapes, and reply's own result is the bare task-id.
type GenericResult struct {
	OK      bool   `cbor:"ok"`
	Message []byte `cbor:"message"`
}

// CloneAgentResult is function 3's result payload.
type CloneAgentResult struct {
	OK      bool   `cbor:"ok"`
	NewID   string `cbor:"new_id"`
	Message string `cbor:"message,omitempty"`
}

// AgentListResult is function 4's result payload.
type AgentListResult struct {
	Reprs []string `cbor:"reprs"`
}

// MemoryResult is function 6's result payload: a structured (ok,
// serialized-memory) pair per the resolved Open Question in §9, not a
// bare string.
type MemoryResult struct {
	OK      bool   `cbor:"ok"`
	Memory  []byte `cbor:"memory"`
	Message string `cbor:"message,omitempty"`
}

// ServerInfo is function 9's result payload.
type ServerInfo struct {
	PID   int     `cbor:"pid" json:"pid"`
	ID    string  `cbor:"id" json:"id"`
	CPU   float64 `cbor:"cpu" json:"cpu"`
	MemMB float64 `cbor:"mem_mb" json:"mem"`
}
