package core

import "sync"

// DecompositionPhase is one step of the five-phase node teardown sequence.
// Advance is monotonic; a phase can never be skipped or reversed.
type DecompositionPhase int

const (
	PhaseCreditsFrozen DecompositionPhase = iota
	PhaseReservationsReleased
	PhaseStateReclaimed
	PhaseTopologyUpdated
	PhaseComplete
)

// Next returns the phase following p, or (p, false) once already Complete.
func (p DecompositionPhase) Next() (DecompositionPhase, bool) {
	if p == PhaseComplete {
		return p, false
	}
	return p + 1, true
}

func (p DecompositionPhase) IsComplete() bool { return p == PhaseComplete }

// DecompositionState tracks one node's progress through teardown.
type DecompositionState struct {
	Node          NodeId
	Phase         DecompositionPhase
	FrozenCredits Credits
	StartTime     Timestamp
	EventsEmitted []RevivalEvent
}

func NewDecompositionState(node NodeId, frozenCredits Credits, now Timestamp) *DecompositionState {
	return &DecompositionState{Node: node, Phase: PhaseCreditsFrozen, FrozenCredits: frozenCredits, StartTime: now}
}

// Advance moves the state to its next phase, returning false if already
// Complete.
func (s *DecompositionState) Advance() bool {
	next, ok := s.Phase.Next()
	s.Phase = next
	return ok
}

func (s *DecompositionState) AddEvent(event RevivalEvent) {
	s.EventsEmitted = append(s.EventsEmitted, event)
}

// Decomposer tracks every node currently being torn down.
type Decomposer struct {
	mu     sync.Mutex
	states map[NodeId]*DecompositionState
}

func NewDecomposer() *Decomposer {
	return &Decomposer{states: make(map[NodeId]*DecompositionState)}
}

func (d *Decomposer) IsDecomposing(node NodeId) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.states[node]
	return ok
}

func (d *Decomposer) StartDecomposition(node NodeId, frozenCredits Credits, now Timestamp) *DecompositionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := NewDecompositionState(node, frozenCredits, now)
	d.states[node] = s
	return s
}

func (d *Decomposer) GetState(node NodeId) (*DecompositionState, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.states[node]
	return s, ok
}

// CompleteDecomposition removes node's tracked state and returns the events
// it accumulated, if any.
func (d *Decomposer) CompleteDecomposition(node NodeId) ([]RevivalEvent, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.states[node]
	if !ok {
		return nil, false
	}
	delete(d.states, node)
	return s.EventsEmitted, true
}

func (d *Decomposer) ActiveDecompositions() []NodeId {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]NodeId, 0, len(d.states))
	for n := range d.states {
		out = append(out, n)
	}
	return out
}

// HeldReservation is one of a node's outstanding reservations, as reported
// by the ledger at decomposition time.
type HeldReservation struct {
	Id       ReservationId
	Amount   Credits
	IsActive bool
}

// StoredItem is one piece of a node's locally-stored data and whether any
// replica of it survives elsewhere.
type StoredItem struct {
	Key          string
	IsReplicated bool
}

// DecompositionContext abstracts the node/ledger/storage operations
// DecomposeFailedNode needs, so the algorithm itself stays independent of
// the concrete ledger and topology wiring.
type DecompositionContext interface {
	ConfirmFailure(node NodeId) bool
	FreezeNodeCredits(node NodeId) Credits
	GetHeldReservations(node NodeId) []HeldReservation
	GetStoredItems(node NodeId) []StoredItem
	EstimateStorageCredits(key string) Credits
}

// DecomposeFailedNode runs the reclaim sequence for a node confirmed dead:
// it freezes the node's credits through ctx and returns an audit trail of
// RevivalEvents (freeze, a ReservationExpired event per active held
// reservation, a GarbageCollected event per unreplicated stored item, and
// complete). It does not move reservation or storage credits itself; the
// caller acts on those events. Topology
// update (phase 4) is the caller's responsibility once this returns, since it
// requires the topology manager rather than ledger/storage state.
func DecomposeFailedNode(ctx DecompositionContext, node NodeId, now Timestamp) []RevivalEvent {
	var events []RevivalEvent

	if !ctx.ConfirmFailure(node) {
		return events
	}

	ctx.FreezeNodeCredits(node)
	events = append(events, NodeFailureEvent(node, now).WithMetadata("phase", "freeze"))

	for _, r := range ctx.GetHeldReservations(node) {
		if r.IsActive {
			events = append(events, ReservationExpiredEvent(node, r.Amount, r.Id, now))
		}
	}

	for _, item := range ctx.GetStoredItems(node) {
		if !item.IsReplicated {
			cost := ctx.EstimateStorageCredits(item.Key)
			events = append(events, GarbageCollectedEvent(node, cost, item.Key, now))
		}
	}

	events = append(events, NodeFailureEvent(node, now).WithMetadata("phase", "complete"))
	return events
}
