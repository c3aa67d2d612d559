package bridge

import "errors"

// Sentinel errors for the bridge's transport/wire-level taxonomy.
// Gossip-level errors (Serialization, MessageExpired, UnknownTopic,
// InvalidMessage) never propagate past the bridge's receive loop, which logs
// them at debug level and drops the message; no count of them is kept.
var (
	ErrNotConnected     = errors.New("bridge: transport not connected")
	ErrNetworkFailure   = errors.New("bridge: publish failed")
	ErrSerialization    = errors.New("bridge: failed to encode message")
	ErrDeserialization  = errors.New("bridge: failed to decode message")
	ErrMessageExpired   = errors.New("bridge: message timestamp too stale")
	ErrUnknownTopic     = errors.New("bridge: unrecognized topic")
	ErrInvalidMessage   = errors.New("bridge: message kind does not match topic")
	ErrUnsignedRejected = errors.New("bridge: unsigned message rejected by policy")
	ErrBadSignature     = errors.New("bridge: signature verification failed")
)
