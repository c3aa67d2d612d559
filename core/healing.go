package core

// HealthChecker probes a peer and reports its current HealthStatus; the
// embedder supplies the concrete implementation.
type HealthChecker interface {
	CheckHealth(node NodeId) HealthStatus
}

// RecoveryResult names the outcome of one HealingManager.AttemptRecovery
// call.
type RecoveryResult int

const (
	RecoveryNotNeeded RecoveryResult = iota
	RecoveryTooSoon
	RecoveryStillClosed
	RecoveryEnteredHalfOpen
	RecoveryRecovered
	RecoveryFailed
	RecoveryProbePending
)

// HealingManager periodically probes isolated peers and advances their gate
// through HalfOpen back to Open when healthy.
type HealingManager struct {
	checker       HealthChecker
	lastCheck     map[NodeId]Timestamp
	checkInterval Duration
}

func NewHealingManager(checker HealthChecker, checkInterval Duration) *HealingManager {
	return &HealingManager{checker: checker, lastCheck: make(map[NodeId]Timestamp), checkInterval: checkInterval}
}

// ShouldCheck reports whether enough time has passed since the last probe of
// node to run another one.
func (h *HealingManager) ShouldCheck(node NodeId, now Timestamp) bool {
	last, ok := h.lastCheck[node]
	if !ok {
		return true
	}
	return now.Millis-last.Millis >= h.checkInterval.Millis
}

// AttemptRecovery runs one healing step against gate, delegating the state
// change itself to TransitionGate: a Closed gate past its recovery timeout
// advances to HalfOpen; a HalfOpen gate is probed via the local checker and
// moves to Open or back to Closed on the result. Without a local checker the
// half-open decision is left to a remote probe response.
func (h *HealingManager) AttemptRecovery(gate *SeptalGate, woronin *WoroninManager, cfg SeptalGateConfig, now Timestamp) RecoveryResult {
	if !h.ShouldCheck(gate.Node, now) {
		return RecoveryTooSoon
	}
	h.lastCheck[gate.Node] = now

	if gate.State == GateOpen {
		return RecoveryNotNeeded
	}
	if gate.State == GateHalfOpen && h.checker == nil {
		return RecoveryProbePending
	}

	var health HealthStatus
	if gate.State == GateHalfOpen {
		health = h.checker.CheckHealth(gate.Node)
	}

	transition := TransitionGate(gate, cfg, health, now, nil)
	if transition == nil {
		return RecoveryStillClosed
	}
	switch transition.ToState {
	case GateHalfOpen:
		return RecoveryEnteredHalfOpen
	case GateOpen:
		woronin.Deactivate(gate.Node)
		return RecoveryRecovered
	default:
		return RecoveryFailed
	}
}
