package core

import "strconv"

// RevivalEventType enumerates the kinds of events the revival subsystem
// emits as it reclaims a failed node's state.
type RevivalEventType int

const (
	EventNodeFailure RevivalEventType = iota
	EventReservationExpired
	EventGarbageCollected
	EventEntropyTax
	EventSeptalIsolation
	EventVoluntaryExit
)

func (t RevivalEventType) String() string {
	switch t {
	case EventNodeFailure:
		return "node_failure"
	case EventReservationExpired:
		return "reservation_expired"
	case EventGarbageCollected:
		return "garbage_collected"
	case EventEntropyTax:
		return "entropy_tax"
	case EventSeptalIsolation:
		return "septal_isolation"
	case EventVoluntaryExit:
		return "voluntary_exit"
	default:
		return "unknown"
	}
}

// RevivalEvent is an immutable audit record of one revival-subsystem action.
type RevivalEvent struct {
	EventType RevivalEventType
	Source    NodeId
	Credits   Credits
	Timestamp Timestamp
	Metadata  map[string]string
}

// WithMetadata returns a copy of e with key=value added to its metadata.
func (e RevivalEvent) WithMetadata(key, value string) RevivalEvent {
	meta := make(map[string]string, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		meta[k] = v
	}
	meta[key] = value
	e.Metadata = meta
	return e
}

func NodeFailureEvent(source NodeId, now Timestamp) RevivalEvent {
	return RevivalEvent{EventType: EventNodeFailure, Source: source, Timestamp: now, Metadata: map[string]string{}}
}

func ReservationExpiredEvent(source NodeId, credits Credits, reservationID ReservationId, now Timestamp) RevivalEvent {
	e := RevivalEvent{EventType: EventReservationExpired, Source: source, Credits: credits, Timestamp: now, Metadata: map[string]string{}}
	return e.WithMetadata("reservation_id", strconv.FormatUint(uint64(reservationID), 10))
}

func GarbageCollectedEvent(source NodeId, credits Credits, key string, now Timestamp) RevivalEvent {
	e := RevivalEvent{EventType: EventGarbageCollected, Source: source, Credits: credits, Timestamp: now, Metadata: map[string]string{}}
	return e.WithMetadata("key", key)
}

func EntropyTaxEvent(source NodeId, credits Credits, now Timestamp) RevivalEvent {
	return RevivalEvent{EventType: EventEntropyTax, Source: source, Credits: credits, Timestamp: now, Metadata: map[string]string{}}
}

func SeptalIsolationEvent(source NodeId, reason string, now Timestamp) RevivalEvent {
	e := RevivalEvent{EventType: EventSeptalIsolation, Source: source, Timestamp: now, Metadata: map[string]string{}}
	return e.WithMetadata("reason", reason)
}

func VoluntaryExitEvent(source NodeId, now Timestamp) RevivalEvent {
	return RevivalEvent{EventType: EventVoluntaryExit, Source: source, Timestamp: now, Metadata: map[string]string{}}
}
