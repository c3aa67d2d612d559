package core

import "testing"

func TestRevivalEventTypeStrings(t *testing.T) {
	cases := map[RevivalEventType]string{
		EventNodeFailure:        "node_failure",
		EventReservationExpired: "reservation_expired",
		EventGarbageCollected:   "garbage_collected",
		EventEntropyTax:         "entropy_tax",
		EventSeptalIsolation:    "septal_isolation",
		EventVoluntaryExit:      "voluntary_exit",
	}
	for typ, want := range cases {
		if got := typ.String(); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}

func TestWithMetadataDoesNotMutateOriginal(t *testing.T) {
	base := NodeFailureEvent(NodeId{0x01}, Timestamp{Millis: 1})
	derived := base.WithMetadata("phase", "freeze")

	if _, ok := base.Metadata["phase"]; ok {
		t.Fatal("WithMetadata must not mutate the receiver's metadata map")
	}
	if derived.Metadata["phase"] != "freeze" {
		t.Fatalf("got %q, want \"freeze\"", derived.Metadata["phase"])
	}
}

func TestReservationExpiredEventCarriesReservationId(t *testing.T) {
	e := ReservationExpiredEvent(NodeId{0x01}, NewCredits(50), ReservationId(7), Timestamp{Millis: 1})
	if e.Metadata["reservation_id"] != "7" {
		t.Fatalf("got %q, want \"7\"", e.Metadata["reservation_id"])
	}
	if e.Credits.Amount != 50 {
		t.Fatalf("got credits %d, want 50", e.Credits.Amount)
	}
}

func TestGarbageCollectedEventCarriesKey(t *testing.T) {
	e := GarbageCollectedEvent(NodeId{0x01}, NewCredits(3), "blob-42", Timestamp{Millis: 1})
	if e.Metadata["key"] != "blob-42" {
		t.Fatalf("got %q, want \"blob-42\"", e.Metadata["key"])
	}
}

func TestSeptalIsolationEventCarriesReason(t *testing.T) {
	e := SeptalIsolationEvent(NodeId{0x01}, "failure_threshold", Timestamp{Millis: 1})
	if e.Metadata["reason"] != "failure_threshold" {
		t.Fatalf("got %q, want \"failure_threshold\"", e.Metadata["reason"])
	}
}
