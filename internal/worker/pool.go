// Package worker implements the per-shard child process: the function-id
// dispatch loop of §4.C and the agent pool it holds.
package worker

import (
	"sync"

	"github.com/agentscope/agentserver/internal/agenthost"
)

// AgentPool is the per-worker map of resident agent ids, matched with a
// per-agent lock so calls targeting the same agent serialize (writers
// exclusive) while calls on distinct agents in the same worker proceed in
// parallel, per §5.
type AgentPool struct {
	host agenthost.Host

	mu    sync.RWMutex
	locks map[string]*sync.RWMutex
}

// NewAgentPool wraps host, the worker's agent runtime adapter.
func NewAgentPool(host agenthost.Host) *AgentPool {
	return &AgentPool{host: host, locks: make(map[string]*sync.RWMutex)}
}

func (p *AgentPool) lockFor(agentID string) *sync.RWMutex {
	p.mu.RLock()
	l, ok := p.locks[agentID]
	p.mu.RUnlock()
	if ok {
		return l
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.locks[agentID]; ok {
		return l
	}
	l = &sync.RWMutex{}
	p.locks[agentID] = l
	return l
}

// WithWriteLock runs fn with agentID's lock held exclusively, for
// mutating calls (create, delete, reply, observe).
func (p *AgentPool) WithWriteLock(agentID string, fn func() error) error {
	l := p.lockFor(agentID)
	l.Lock()
	defer l.Unlock()
	return fn()
}

// WithReadLock runs fn with agentID's lock held for reading, for
// non-mutating calls (memory, repr).
func (p *AgentPool) WithReadLock(agentID string, fn func() error) error {
	l := p.lockFor(agentID)
	l.RLock()
	defer l.RUnlock()
	return fn()
}

// Forget drops agentID's lock entry once the agent is deleted, so the
// lock map does not grow unbounded across create/delete churn.
func (p *AgentPool) Forget(agentID string) {
	p.mu.Lock()
	delete(p.locks, agentID)
	p.mu.Unlock()
}

// Host returns the underlying agent runtime adapter.
func (p *AgentPool) Host() agenthost.Host { return p.host }
