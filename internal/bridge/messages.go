package bridge

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"enr-network/core"
)

// MessageKind tags the payload carried by an EnrMessage envelope: Gradient,
// the Election family, the Credit family, or the Septal family.
type MessageKind int

const (
	KindGradient MessageKind = iota
	KindElectionAnnouncement
	KindElectionCandidacy
	KindElectionVote
	KindElectionResult
	KindCreditTransfer
	KindCreditConfirmation
	KindCreditStateSync
	KindCreditBalanceQuery
	KindCreditBalanceResponse
	KindSeptalFailureReport
	KindSeptalIsolation
	KindSeptalHealingProbe
	KindSeptalHealingResponse
	KindSeptalRecovery
)

func (k MessageKind) String() string {
	switch k {
	case KindGradient:
		return "gradient"
	case KindElectionAnnouncement:
		return "election.announcement"
	case KindElectionCandidacy:
		return "election.candidacy"
	case KindElectionVote:
		return "election.vote"
	case KindElectionResult:
		return "election.result"
	case KindCreditTransfer:
		return "credit.transfer"
	case KindCreditConfirmation:
		return "credit.confirmation"
	case KindCreditStateSync:
		return "credit.state_sync"
	case KindCreditBalanceQuery:
		return "credit.balance_query"
	case KindCreditBalanceResponse:
		return "credit.balance_response"
	case KindSeptalFailureReport:
		return "septal.failure_report"
	case KindSeptalIsolation:
		return "septal.isolation"
	case KindSeptalHealingProbe:
		return "septal.healing_probe"
	case KindSeptalHealingResponse:
		return "septal.healing_response"
	case KindSeptalRecovery:
		return "septal.recovery"
	default:
		return "unknown"
	}
}

// Topic returns the gossip topic an envelope of this kind travels on.
func (k MessageKind) Topic() string {
	switch k {
	case KindGradient:
		return TopicGradient
	case KindElectionAnnouncement, KindElectionCandidacy, KindElectionVote, KindElectionResult:
		return TopicElection
	case KindCreditTransfer, KindCreditConfirmation, KindCreditStateSync, KindCreditBalanceQuery, KindCreditBalanceResponse:
		return TopicCredit
	case KindSeptalFailureReport, KindSeptalIsolation, KindSeptalHealingProbe, KindSeptalHealingResponse, KindSeptalRecovery:
		return TopicSeptal
	default:
		return ""
	}
}

// Signature is an opaque 64-byte blob; all-zero denotes "unsigned".
type Signature [64]byte

func (s Signature) IsUnsigned() bool { return s == Signature{} }

// EnrMessage is the top-level wire envelope: a tagged union over the four
// topic families, gob-encoded. ENR messages are internal wire traffic, not
// externally audited data, so a single stable Go-native codec serves instead
// of hand-rolled binary layout code.
type EnrMessage struct {
	Kind      MessageKind
	Sender    core.NodeId
	Timestamp core.Timestamp
	Signature Signature
	Payload   []byte
}

// Encode serializes the envelope for handoff to the transport's Publish.
func (m EnrMessage) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return buf.Bytes(), nil
}

// DecodeEnrMessage parses bytes received off the wire back into an envelope.
func DecodeEnrMessage(data []byte) (EnrMessage, error) {
	var m EnrMessage
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return EnrMessage{}, fmt.Errorf("%w: %v", ErrDeserialization, err)
	}
	return m, nil
}

// encodePayload/decodePayload gob-encode the kind-specific payload carried in
// EnrMessage.Payload.
func encodePayload(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return buf.Bytes(), nil
}

func decodePayload(data []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrDeserialization, err)
	}
	return nil
}

// GradientPayload carries one node's self-reported gradient broadcast.
type GradientPayload struct {
	Node     core.NodeId
	Gradient core.ResourceGradient
	Weight   float64
}

// ElectionId is 32 bytes, chosen by the initiator to be collision-resistant
// within an epoch.
type ElectionId [32]byte

type ElectionAnnouncementPayload struct {
	ElectionId  ElectionId
	Region      string
	InitiatedBy core.NodeId
}

type ElectionCandidacyPayload struct {
	ElectionId ElectionId
	Candidate  core.NexusCandidate
}

type ElectionVotePayload struct {
	ElectionId ElectionId
	Voter      core.NodeId
	VoteFor    core.NodeId
}

type ElectionResultPayload struct {
	ElectionId ElectionId
	Region     string
	Winner     core.NodeId
}

type CreditTransferPayload struct {
	TransferId  core.TransferId
	From        core.AccountId
	To          core.AccountId
	Amount      core.Credits
	EntropyCost core.Credits
	Nonce       uint64
}

type CreditConfirmationPayload struct {
	TransferId core.TransferId
	Success    bool
	Reason     string
}

type CreditStateSyncPayload struct {
	Node    core.NodeId
	Balance core.Credits
}

type CreditBalanceQueryPayload struct {
	Requester core.NodeId
	Account   core.AccountId
}

type CreditBalanceResponsePayload struct {
	Account core.AccountId
	Balance core.Credits
}

type SeptalFailureReportPayload struct {
	Reporter core.NodeId
	Peer     core.NodeId
	Reason   string
}

type SeptalIsolationPayload struct {
	Node   core.NodeId
	Reason string
}

type SeptalHealingProbePayload struct {
	Prober core.NodeId
	Target core.NodeId
}

type SeptalHealingResponsePayload struct {
	Target core.NodeId
	Status core.HealthStatus
}

type SeptalRecoveryPayload struct {
	Node core.NodeId
}
