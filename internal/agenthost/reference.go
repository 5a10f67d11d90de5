package agenthost

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// record is the reference host's notion of an agent: everything the core
// is told never to interpret, kept opaque behind byte slices and strings.
type record struct {
	initArgs   []byte
	sourceCode []byte
	memory     []byte
}

// ReferenceHost is a dependency-free, in-memory Host used by tests and by
// any deployment that wants agent semantics without an external runtime
// process. Reply and Observe here simply echo/accumulate, since the core
// never inspects the bytes it carries.
type ReferenceHost struct {
	mu      sync.RWMutex
	records map[string]*record
}

func NewReferenceHost() *ReferenceHost {
	return &ReferenceHost{records: make(map[string]*record)}
}

func (h *ReferenceHost) Create(_ context.Context, agentID string, initArgs, sourceCode []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.records[agentID]; exists {
		return &AlreadyExistsError{AgentID: agentID}
	}
	h.records[agentID] = &record{initArgs: append([]byte(nil), initArgs...), sourceCode: append([]byte(nil), sourceCode...)}
	return nil
}

func (h *ReferenceHost) Delete(_ context.Context, agentID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.records[agentID]; !exists {
		return &NotFoundError{AgentID: agentID}
	}
	delete(h.records, agentID)
	return nil
}

func (h *ReferenceHost) Clone(_ context.Context, agentID string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	src, exists := h.records[agentID]
	if !exists {
		return "", &NotFoundError{AgentID: agentID}
	}
	newID := uuid.NewString()
	h.records[newID] = &record{
		initArgs:   append([]byte(nil), src.initArgs...),
		sourceCode: append([]byte(nil), src.sourceCode...),
	}
	return newID, nil
}

func (h *ReferenceHost) Reply(_ context.Context, agentID string, msg []byte) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, exists := h.records[agentID]
	if !exists {
		return nil, &NotFoundError{AgentID: agentID}
	}
	r.memory = append(r.memory, msg...)
	return msg, nil
}

func (h *ReferenceHost) Observe(_ context.Context, agentID string, msgs []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, exists := h.records[agentID]
	if !exists {
		return &NotFoundError{AgentID: agentID}
	}
	r.memory = append(r.memory, msgs...)
	return nil
}

func (h *ReferenceHost) Memory(_ context.Context, agentID string) ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, exists := h.records[agentID]
	if !exists {
		return nil, &NotFoundError{AgentID: agentID}
	}
	return append([]byte(nil), r.memory...), nil
}

func (h *ReferenceHost) Repr(_ context.Context, agentID string) (string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, exists := h.records[agentID]; !exists {
		return "", &NotFoundError{AgentID: agentID}
	}
	return fmt.Sprintf("Agent(id=%s)", agentID), nil
}

func (h *ReferenceHost) List(_ context.Context) ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.records))
	for id := range h.records {
		ids = append(ids, id)
	}
	return ids, nil
}

func (h *ReferenceHost) SetModelConfigs(_ context.Context, _ []byte) error {
	return nil
}
