// Package agenthost defines the narrow interface the core uses to drive
// the actual agent runtime (§1: "The agent runtime itself ... The core
// invokes these as opaque operations through an agent host interface").
// The core never interprets agent state; it only serializes and
// deserializes through the Host it is given.
package agenthost

import "context"

// NotFoundError is returned by Host methods addressing an unknown agent id.
type NotFoundError struct{ AgentID string }

func (e *NotFoundError) Error() string { return "agent " + e.AgentID + " not found" }

// AlreadyExistsError is returned by Create for a duplicate agent id.
type AlreadyExistsError struct{ AgentID string }

func (e *AlreadyExistsError) Error() string { return "agent " + e.AgentID + " already exists" }

// Host is the opaque agent runtime adapter. Every method is invoked from a
// single worker process on behalf of the agents resident in that worker's
// pool; the core neither constructs agent state directly nor reaches into
// it beyond these calls.
type Host interface {
	// Create constructs a new agent from initArgs (opaque, host-decoded)
	// and sourceCode (opaque, e.g. a class body or config blob), binding it
	// to agentID. Returns AlreadyExistsError if agentID is already live in
	// this host.
	Create(ctx context.Context, agentID string, initArgs, sourceCode []byte) error

	// Delete removes agentID from the host. Returns NotFoundError if
	// absent.
	Delete(ctx context.Context, agentID string) error

	// Clone constructs a new agent under a freshly generated id from
	// agentID's stored init settings (init args and source code), and
	// returns the new id.
	Clone(ctx context.Context, agentID string) (newAgentID string, err error)

	// Reply invokes the agent's reply(msg) -> msg and returns the
	// serialized response. This is the long-running call that the task
	// registry tracks asynchronously; the Host itself is synchronous, the
	// asynchrony is layered on top by the caller.
	Reply(ctx context.Context, agentID string, msg []byte) ([]byte, error)

	// Observe invokes the agent's observe(msgs) with no reply expected.
	Observe(ctx context.Context, agentID string, msgs []byte) error

	// Memory returns the serialized contents of the agent's memory store,
	// or an error if the agent exposes none.
	Memory(ctx context.Context, agentID string) ([]byte, error)

	// Repr returns a human-readable, serializable representation of the
	// agent (its class, id, and init settings), used for get_agent_list.
	Repr(ctx context.Context, agentID string) (string, error)

	// List returns the ids of every agent currently live in this host.
	List(ctx context.Context) ([]string, error)

	// SetModelConfigs broadcasts a model configuration blob to every agent
	// class this host knows about. The blob's structure is opaque to the
	// core; the host decodes it.
	SetModelConfigs(ctx context.Context, configJSON []byte) error
}
