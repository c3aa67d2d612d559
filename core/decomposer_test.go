package core

import "testing"

func TestDecompositionPhaseOrderIsMonotone(t *testing.T) {
	order := []DecompositionPhase{
		PhaseCreditsFrozen, PhaseReservationsReleased, PhaseStateReclaimed, PhaseTopologyUpdated, PhaseComplete,
	}
	phase := order[0]
	for _, want := range order[1:] {
		next, ok := phase.Next()
		if !ok || next != want {
			t.Fatalf("got %v (ok=%v), want %v", next, ok, want)
		}
		phase = next
	}
	if _, ok := phase.Next(); ok {
		t.Fatal("Complete must not advance further")
	}
	if !phase.IsComplete() {
		t.Fatal("expected the final phase to report complete")
	}
}

func TestDecomposerTracksStateUntilCompletion(t *testing.T) {
	d := NewDecomposer()
	node := NodeId{0x01}
	now := Timestamp{Millis: 1}

	if d.IsDecomposing(node) {
		t.Fatal("a node should not be tracked before StartDecomposition")
	}
	state := d.StartDecomposition(node, NewCredits(50), now)
	if !d.IsDecomposing(node) {
		t.Fatal("expected the node to be tracked after StartDecomposition")
	}
	if state.Phase != PhaseCreditsFrozen {
		t.Fatalf("got initial phase %v, want PhaseCreditsFrozen", state.Phase)
	}

	state.AddEvent(NodeFailureEvent(node, now))
	events, ok := d.CompleteDecomposition(node)
	if !ok || len(events) != 1 {
		t.Fatalf("got events=%v ok=%v, want 1 event", events, ok)
	}
	if d.IsDecomposing(node) {
		t.Fatal("node should no longer be tracked after completion")
	}
}

type fakeDecompositionContext struct {
	confirmed   bool
	frozen      Credits
	reserved    []HeldReservation
	stored      []StoredItem
	storageCost Credits
}

func (f fakeDecompositionContext) ConfirmFailure(NodeId) bool { return f.confirmed }

func (f fakeDecompositionContext) FreezeNodeCredits(NodeId) Credits { return f.frozen }

func (f fakeDecompositionContext) GetHeldReservations(NodeId) []HeldReservation { return f.reserved }

func (f fakeDecompositionContext) GetStoredItems(NodeId) []StoredItem { return f.stored }

func (f fakeDecompositionContext) EstimateStorageCredits(string) Credits { return f.storageCost }

func TestDecomposeFailedNodeReturnsEmptyWhenFailureUnconfirmed(t *testing.T) {
	ctx := fakeDecompositionContext{confirmed: false}
	events := DecomposeFailedNode(ctx, NodeId{0x01}, Timestamp{Millis: 1})
	if len(events) != 0 {
		t.Fatalf("got %d events, want 0 when failure is not confirmed", len(events))
	}
}

func TestDecomposeFailedNodeEmitsFullAuditTrail(t *testing.T) {
	ctx := fakeDecompositionContext{
		confirmed: true,
		frozen:    NewCredits(500),
		reserved: []HeldReservation{
			{Id: 1, Amount: NewCredits(50), IsActive: true},
			{Id: 2, Amount: NewCredits(20), IsActive: false},
		},
		stored: []StoredItem{
			{Key: "a", IsReplicated: false},
			{Key: "b", IsReplicated: true},
		},
		storageCost: NewCredits(5),
	}
	events := DecomposeFailedNode(ctx, NodeId{0x01}, Timestamp{Millis: 1})

	// freeze, one active reservation, one unreplicated item, complete.
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4: %+v", len(events), events)
	}
	if events[0].EventType != EventNodeFailure || events[0].Metadata["phase"] != "freeze" {
		t.Fatalf("got first event %+v, want node_failure/freeze", events[0])
	}
	if events[1].EventType != EventReservationExpired {
		t.Fatalf("got second event %+v, want reservation_expired", events[1])
	}
	if events[2].EventType != EventGarbageCollected || events[2].Metadata["key"] != "a" {
		t.Fatalf("got third event %+v, want garbage_collected for key a", events[2])
	}
	if events[3].EventType != EventNodeFailure || events[3].Metadata["phase"] != "complete" {
		t.Fatalf("got fourth event %+v, want node_failure/complete", events[3])
	}
}
