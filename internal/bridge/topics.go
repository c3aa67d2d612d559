// Package bridge wires the ENR subsystems in core/ to a gossip transport: it
// is the single owner of shared coordinator state and the only package that
// touches the gossip surface.
package bridge

import "strings"

// Gossip topic strings. A prefix check distinguishes ENR traffic
// from host traffic sharing the same transport.
const (
	TopicGradient = "/enr/gradient/1.0"
	TopicElection = "/enr/election/1.0"
	TopicCredit   = "/enr/credit/1.0"
	TopicSeptal   = "/enr/septal/1.0"

	TopicPrefix = "/enr/"
)

// Topics lists every topic the bridge subscribes to in Start.
var Topics = []string{TopicGradient, TopicElection, TopicCredit, TopicSeptal}

// IsEnrTopic reports whether topic falls under the ENR prefix.
func IsEnrTopic(topic string) bool {
	return strings.HasPrefix(topic, TopicPrefix)
}
