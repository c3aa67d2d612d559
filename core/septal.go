package core

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Septal gate constants.
const (
	FailureThreshold       = 5
	RecoveryTimeoutMs      = 60_000
	HalfOpenTestIntervalMs = 10_000
	IsolationThreshold     = 0.7
	PingTimeoutMs          = 5_000
	HealthCheckIntervalMs  = 10_000
)

// SeptalGateState is the three-state circuit breaker state.
type SeptalGateState int

const (
	GateOpen SeptalGateState = iota
	GateHalfOpen
	GateClosed
)

func (s SeptalGateState) IsOpen() bool { return s == GateOpen }

func (s SeptalGateState) IsClosed() bool { return s == GateClosed }

func (s SeptalGateState) IsHalfOpen() bool { return s == GateHalfOpen }

func (s SeptalGateState) AllowsTraffic() bool { return s != GateClosed }

// SeptalGate is a per-peer circuit breaker.
type SeptalGate struct {
	Node           NodeId
	State          SeptalGateState
	FailureCount   int
	LastFailure    Timestamp
	IsolationStart Timestamp
}

func NewSeptalGate(node NodeId) *SeptalGate {
	return &SeptalGate{Node: node, State: GateOpen}
}

func (g *SeptalGate) ShouldTrip() bool { return g.FailureCount >= FailureThreshold }

// RecordFailure increments the failure counter and trips the gate if the
// threshold is reached.
func (g *SeptalGate) RecordFailure(now Timestamp) {
	g.FailureCount++
	g.LastFailure = now
	if g.ShouldTrip() {
		g.Trip(now)
	}
}

func (g *SeptalGate) RecordSuccess() {
	g.FailureCount = 0
}

func (g *SeptalGate) Trip(now Timestamp) {
	g.State = GateClosed
	g.IsolationStart = now
}

// AttemptHalfOpen advances Closed→HalfOpen once the recovery timeout has
// elapsed since isolation began.
func (g *SeptalGate) AttemptHalfOpen(now Timestamp) bool {
	if g.State != GateClosed {
		return false
	}
	if now.Millis-g.IsolationStart.Millis < RecoveryTimeoutMs {
		return false
	}
	g.State = GateHalfOpen
	return true
}

func (g *SeptalGate) Recover() {
	g.State = GateOpen
	g.FailureCount = 0
}

func (g *SeptalGate) FailRecovery(now Timestamp) {
	g.State = GateClosed
	g.IsolationStart = now
}

// SeptalGateConfig weighs the three signals contributing to a HealthStatus
// score; the three weights must sum to 1.0.
type SeptalGateConfig struct {
	TimeoutWeight          float64
	TimeoutThreshold       Duration
	CreditDefaultWeight    float64
	CreditDefaultThreshold Credits
	ReputationWeight       float64
	ReputationThreshold    float64
}

func DefaultSeptalGateConfig() SeptalGateConfig {
	return SeptalGateConfig{
		TimeoutWeight:          0.4,
		TimeoutThreshold:       Seconds(30),
		CreditDefaultWeight:    0.3,
		CreditDefaultThreshold: NewCredits(100),
		ReputationWeight:       0.3,
		ReputationThreshold:    0.5,
	}
}

func (c SeptalGateConfig) IsValid() bool {
	sum := c.TimeoutWeight + c.CreditDefaultWeight + c.ReputationWeight
	return sum > 0.999 && sum < 1.001
}

// HealthStatus aggregates the three risk signals into an isolate/don't
// isolate decision.
type HealthStatus struct {
	IsHealthy       bool
	TimeoutScore    float64
	CreditScore     float64
	ReputationScore float64
	LastCheck       Timestamp
}

func (h HealthStatus) WeightedScore(cfg SeptalGateConfig) float64 {
	return h.TimeoutScore*cfg.TimeoutWeight + h.CreditScore*cfg.CreditDefaultWeight + h.ReputationScore*cfg.ReputationWeight
}

func (h HealthStatus) ShouldIsolate(cfg SeptalGateConfig) bool {
	return h.WeightedScore(cfg) >= IsolationThreshold
}

// SeptalGateTransition records one state change for auditing.
type SeptalGateTransition struct {
	FromState SeptalGateState
	ToState   SeptalGateState
	Reason    string
	Timestamp Timestamp
}

// TransitionGate runs the full gate state machine, given the current
// health signal, and returns the transition actually taken (if any).
func TransitionGate(gate *SeptalGate, cfg SeptalGateConfig, health HealthStatus, now Timestamp, log *logrus.Entry) *SeptalGateTransition {
	from := gate.State

	switch gate.State {
	case GateOpen:
		if health.ShouldIsolate(cfg) {
			gate.RecordFailure(now)
		} else {
			gate.RecordSuccess()
		}
	case GateClosed:
		gate.AttemptHalfOpen(now)
	case GateHalfOpen:
		if health.IsHealthy && !health.ShouldIsolate(cfg) {
			gate.Recover()
		} else {
			gate.FailRecovery(now)
		}
	}

	if from == gate.State {
		return nil
	}

	t := &SeptalGateTransition{FromState: from, ToState: gate.State, Reason: fmt.Sprintf("health_score=%.3f", health.WeightedScore(cfg)), Timestamp: now}
	if log != nil {
		log.WithFields(logrus.Fields{"node": gate.Node, "from": from, "to": gate.State}).Info("septal gate transition")
	}
	return t
}

// GateRegistry is the coordinator's "gates" cell: one SeptalGate per observed
// peer, lazily created on first failure.
type GateRegistry struct {
	mu    sync.RWMutex
	gates map[NodeId]*SeptalGate
	log   *logrus.Entry
}

func NewGateRegistry() *GateRegistry {
	return &GateRegistry{gates: make(map[NodeId]*SeptalGate), log: logrus.WithField("component", "septal")}
}

func (r *GateRegistry) Gate(node NodeId) *SeptalGate {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.gates[node]
	if !ok {
		g = NewSeptalGate(node)
		r.gates[node] = g
	}
	return g
}

func (r *GateRegistry) State(node NodeId) SeptalGateState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if g, ok := r.gates[node]; ok {
		return g.State
	}
	return GateOpen
}

func (r *GateRegistry) IsIsolated(node NodeId) bool {
	return r.State(node) == GateClosed
}

// UnhealthyGates returns every gate not currently Open, for the healing
// manager's periodic probe sweep.
func (r *GateRegistry) UnhealthyGates() []*SeptalGate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*SeptalGate
	for _, g := range r.gates {
		if g.State != GateOpen {
			out = append(out, g)
		}
	}
	return out
}

func (r *GateRegistry) RecordFailure(node NodeId, now Timestamp) *SeptalGateTransition {
	g := r.Gate(node)
	r.mu.Lock()
	defer r.mu.Unlock()
	before := g.State
	g.RecordFailure(now)
	if before != g.State {
		r.log.WithFields(logrus.Fields{"node": node}).Warn("septal gate tripped")
		return &SeptalGateTransition{FromState: before, ToState: g.State, Reason: "failure_threshold", Timestamp: now}
	}
	return nil
}
