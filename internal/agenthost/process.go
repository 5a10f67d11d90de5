package agenthost

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"
)

// command is one line of the newline-delimited JSON protocol spoken to the
// external agent runtime process: one command in, one response line out.
// This keeps the wire shape of the reference design's persistent
// interpreter connection (a single long-lived socket, line-buffered)
// without hard-coding the target runtime's language.
type command struct {
	Op         string          `json:"op"`
	AgentID    string          `json:"agent_id,omitempty"`
	InitArgs   json.RawMessage `json:"init_args,omitempty"`
	SourceCode json.RawMessage `json:"source_code,omitempty"`
	Msg        json.RawMessage `json:"msg,omitempty"`
	ConfigJSON json.RawMessage `json:"config,omitempty"`
}

type response struct {
	OK      bool            `json:"ok"`
	Error   string          `json:"error,omitempty"`
	NewID   string          `json:"new_id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Repr    string          `json:"repr,omitempty"`
	AgentIDs []string       `json:"agent_ids,omitempty"`
}

// ProcessHost drives an external agent runtime over a single persistent
// TCP connection, one request at a time. Commands are serialized so only
// one is ever in flight, matching the reference runtime's single-threaded
// interpreter behind the socket.
type ProcessHost struct {
	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// DialProcessHost connects to an agent runtime process listening at
// addr, with a bounded dial timeout.
func DialProcessHost(addr string) (*ProcessHost, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dialing agent runtime at %s: %w", addr, err)
	}
	return &ProcessHost{conn: conn, reader: bufio.NewReader(conn)}, nil
}

// DialProcessHostWithRetry dials addr with exponential backoff, for workers
// that come up before an external agent runtime has finished starting.
// Gives up and returns the last dial error once maxAttempts is reached.
func DialProcessHostWithRetry(ctx context.Context, addr string, maxAttempts int) (*ProcessHost, error) {
	delay := time.Second
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		host, err := DialProcessHost(addr)
		if err == nil {
			return host, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay < 10*time.Second {
			delay *= 2
		}
	}
	return nil, fmt.Errorf("dialing agent runtime at %s after %d attempts: %w", addr, maxAttempts, lastErr)
}

func (h *ProcessHost) roundTrip(_ context.Context, cmd command) (response, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	encoded, err := json.Marshal(cmd)
	if err != nil {
		return response{}, fmt.Errorf("encoding command %s: %w", cmd.Op, err)
	}
	if _, err := h.conn.Write(append(encoded, '\n')); err != nil {
		return response{}, fmt.Errorf("writing command %s: %w", cmd.Op, err)
	}

	line, err := h.reader.ReadString('\n')
	if err != nil {
		return response{}, fmt.Errorf("reading response to %s: %w", cmd.Op, err)
	}
	var resp response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return response{}, fmt.Errorf("decoding response to %s: %w", cmd.Op, err)
	}
	return resp, nil
}

func (h *ProcessHost) asHostError(agentID string, resp response) error {
	switch resp.Error {
	case "not_found":
		return &NotFoundError{AgentID: agentID}
	case "already_exists":
		return &AlreadyExistsError{AgentID: agentID}
	case "":
		return nil
	default:
		return fmt.Errorf("agent runtime: %s", resp.Error)
	}
}

func (h *ProcessHost) Create(ctx context.Context, agentID string, initArgs, sourceCode []byte) error {
	resp, err := h.roundTrip(ctx, command{Op: "create", AgentID: agentID, InitArgs: initArgs, SourceCode: sourceCode})
	if err != nil {
		return err
	}
	if !resp.OK {
		return h.asHostError(agentID, resp)
	}
	return nil
}

func (h *ProcessHost) Delete(ctx context.Context, agentID string) error {
	resp, err := h.roundTrip(ctx, command{Op: "delete", AgentID: agentID})
	if err != nil {
		return err
	}
	if !resp.OK {
		return h.asHostError(agentID, resp)
	}
	return nil
}

func (h *ProcessHost) Clone(ctx context.Context, agentID string) (string, error) {
	resp, err := h.roundTrip(ctx, command{Op: "clone", AgentID: agentID})
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", h.asHostError(agentID, resp)
	}
	return resp.NewID, nil
}

func (h *ProcessHost) Reply(ctx context.Context, agentID string, msg []byte) ([]byte, error) {
	resp, err := h.roundTrip(ctx, command{Op: "reply", AgentID: agentID, Msg: msg})
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, h.asHostError(agentID, resp)
	}
	return resp.Result, nil
}

func (h *ProcessHost) Observe(ctx context.Context, agentID string, msgs []byte) error {
	resp, err := h.roundTrip(ctx, command{Op: "observe", AgentID: agentID, Msg: msgs})
	if err != nil {
		return err
	}
	if !resp.OK {
		return h.asHostError(agentID, resp)
	}
	return nil
}

func (h *ProcessHost) Memory(ctx context.Context, agentID string) ([]byte, error) {
	resp, err := h.roundTrip(ctx, command{Op: "memory", AgentID: agentID})
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, h.asHostError(agentID, resp)
	}
	return resp.Result, nil
}

func (h *ProcessHost) Repr(ctx context.Context, agentID string) (string, error) {
	resp, err := h.roundTrip(ctx, command{Op: "repr", AgentID: agentID})
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", h.asHostError(agentID, resp)
	}
	return resp.Repr, nil
}

func (h *ProcessHost) List(ctx context.Context) ([]string, error) {
	resp, err := h.roundTrip(ctx, command{Op: "list"})
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, h.asHostError("", resp)
	}
	return resp.AgentIDs, nil
}

func (h *ProcessHost) SetModelConfigs(ctx context.Context, configJSON []byte) error {
	resp, err := h.roundTrip(ctx, command{Op: "set_model_configs", ConfigJSON: configJSON})
	if err != nil {
		return err
	}
	if !resp.OK {
		return h.asHostError("", resp)
	}
	return nil
}

// Close closes the underlying connection.
func (h *ProcessHost) Close() error { return h.conn.Close() }
