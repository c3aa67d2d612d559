package core

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// WoroninBody records that a peer has been isolated and blocks further
// transactions with it, mirroring a fungal Woronin body sealing a damaged
// hypha.
type WoroninBody struct {
	Node               NodeId
	ActivatedAt        Timestamp
	Reason             string
	BlockedTransactions uint64
}

func NewWoroninBody(node NodeId, reason string, now Timestamp) *WoroninBody {
	return &WoroninBody{Node: node, ActivatedAt: now, Reason: reason}
}

func (b *WoroninBody) RecordBlocked() { b.BlockedTransactions++ }

func (b *WoroninBody) DurationActive(now Timestamp) Duration {
	return Millis(now.Millis - b.ActivatedAt.Millis)
}

// WoroninManager owns every active WoroninBody.
type WoroninManager struct {
	mu     sync.RWMutex
	bodies map[NodeId]*WoroninBody
	log    *logrus.Entry
}

func NewWoroninManager() *WoroninManager {
	return &WoroninManager{bodies: make(map[NodeId]*WoroninBody), log: logrus.WithField("component", "woronin")}
}

func (m *WoroninManager) Activate(node NodeId, reason string, now Timestamp) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.bodies[node]; exists {
		return
	}
	m.bodies[node] = NewWoroninBody(node, reason, now)
	m.log.WithFields(logrus.Fields{"node": node, "reason": reason}).Warn("woronin body activated")
}

func (m *WoroninManager) Deactivate(node NodeId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bodies, node)
}

func (m *WoroninManager) IsIsolated(node NodeId) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.bodies[node]
	return ok
}

func (m *WoroninManager) Get(node NodeId) (*WoroninBody, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bodies[node]
	return b, ok
}

func (m *WoroninManager) IsolatedNodes() []NodeId {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]NodeId, 0, len(m.bodies))
	for n := range m.bodies {
		out = append(out, n)
	}
	return out
}

func (m *WoroninManager) RecordBlocked(node NodeId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bodies[node]; ok {
		b.RecordBlocked()
	}
}

// ShouldBlock reports whether a transaction touching either endpoint should
// be refused because one of them is currently isolated.
func (m *WoroninManager) ShouldBlock(from, to NodeId) bool {
	return m.IsIsolated(from) || m.IsIsolated(to)
}
