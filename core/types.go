// Package core implements the Entropy-Nexus-Revival economic primitive: a
// conserved credit ledger, an entropy-driven pricing model, a nexus topology
// with elections and market making, and septal-gate fault isolation feeding a
// revival pool.
package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"
)

// NodeId is a 32-byte opaque node identifier.
type NodeId [32]byte

// NodeIdFromBytes builds a NodeId from a 32-byte array.
func NodeIdFromBytes(b [32]byte) NodeId {
	return NodeId(b)
}

// NodeIdFromHex parses a 64-character hex string into a NodeId.
func NodeIdFromHex(s string) (NodeId, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return NodeId{}, fmt.Errorf("decode node id: %w", err)
	}
	if len(b) != 32 {
		return NodeId{}, fmt.Errorf("node id must be 32 bytes, got %d", len(b))
	}
	var id NodeId
	copy(id[:], b)
	return id, nil
}

func (n NodeId) String() string { return hex.EncodeToString(n[:]) }

// Less gives a total order over NodeId, used to break election ties
// lexicographically.
func (n NodeId) Less(other NodeId) bool {
	for i := range n {
		if n[i] != other[i] {
			return n[i] < other[i]
		}
	}
	return false
}

// AccountType distinguishes the three kinds of account an AccountId can name.
type AccountType int

const (
	AccountTypeNode AccountType = iota
	AccountTypeRevivalPool
	AccountTypeTreasury
)

func (t AccountType) String() string {
	switch t {
	case AccountTypeNode:
		return "node"
	case AccountTypeRevivalPool:
		return "revival_pool"
	case AccountTypeTreasury:
		return "treasury"
	default:
		return "unknown"
	}
}

// AccountId names an account: a node plus the purse it refers to.
type AccountId struct {
	Node        NodeId
	AccountType AccountType
}

// NodeAccount builds the AccountId for a node's own balance.
func NodeAccount(node NodeId) AccountId {
	return AccountId{Node: node, AccountType: AccountTypeNode}
}

// RevivalPoolAccount and TreasuryAccount are process-wide singleton accounts;
// the Node field is the zero NodeId by convention.
var (
	RevivalPoolAccount = AccountId{AccountType: AccountTypeRevivalPool}
	TreasuryAccount    = AccountId{AccountType: AccountTypeTreasury}
)

// Timestamp is a millisecond monotonic wall-clock value.
type Timestamp struct {
	Millis uint64
}

// Now returns the current wall-clock time as a Timestamp.
func Now() Timestamp {
	return Timestamp{Millis: uint64(time.Now().UnixMilli())}
}

func (t Timestamp) Before(other Timestamp) bool { return t.Millis < other.Millis }

func (t Timestamp) Add(d Duration) Timestamp { return Timestamp{Millis: t.Millis + d.Millis} }

// Duration is a millisecond span.
type Duration struct {
	Millis uint64
}

func Millis(m uint64) Duration  { return Duration{Millis: m} }
func Seconds(s uint64) Duration { return Duration{Millis: s * 1000} }
func Minutes(m uint64) Duration { return Duration{Millis: m * 60 * 1000} }
func Hours(h uint64) Duration   { return Duration{Millis: h * 60 * 60 * 1000} }
func Days(d uint64) Duration    { return Duration{Millis: d * 24 * 60 * 60 * 1000} }

// Credits is the conserved, non-negative unit of value.
type Credits struct {
	Amount uint64
}

// ZeroCredits is the additive identity.
var ZeroCredits = Credits{Amount: 0}

func NewCredits(amount uint64) Credits { return Credits{Amount: amount} }

func (c Credits) IsZero() bool { return c.Amount == 0 }

func (c Credits) String() string { return fmt.Sprintf("%d credits", c.Amount) }

// CheckedAdd returns (sum, true) or (_, false) on overflow.
func (c Credits) CheckedAdd(other Credits) (Credits, bool) {
	sum := c.Amount + other.Amount
	if sum < c.Amount {
		return Credits{}, false
	}
	return Credits{Amount: sum}, true
}

// CheckedSub returns (diff, true) or (_, false) if it would go negative.
func (c Credits) CheckedSub(other Credits) (Credits, bool) {
	if other.Amount > c.Amount {
		return Credits{}, false
	}
	return Credits{Amount: c.Amount - other.Amount}, true
}

func (c Credits) SaturatingAdd(other Credits) Credits {
	sum := c.Amount + other.Amount
	if sum < c.Amount {
		return Credits{Amount: ^uint64(0)}
	}
	return Credits{Amount: sum}
}

func (c Credits) SaturatingSub(other Credits) Credits {
	if other.Amount > c.Amount {
		return ZeroCredits
	}
	return Credits{Amount: c.Amount - other.Amount}
}

// ReservationId uniquely identifies a CreditReservation within a process.
type ReservationId uint64

// TransferId is a 32-byte deterministic idempotency key for a transfer.
type TransferId [32]byte

func (t TransferId) String() string { return hex.EncodeToString(t[:]) }

// NewTransferId derives a deterministic TransferId by hashing the transfer's
// defining fields, so the same (from, to, amount, nonce) always maps to the
// same idempotency key.
func NewTransferId(from, to AccountId, amount Credits, nonce uint64) TransferId {
	h := sha256.New()
	h.Write(from.Node[:])
	binary.Write(h, binary.BigEndian, uint8(from.AccountType))
	h.Write(to.Node[:])
	binary.Write(h, binary.BigEndian, uint8(to.AccountType))
	binary.Write(h, binary.BigEndian, amount.Amount)
	binary.Write(h, binary.BigEndian, nonce)
	var id TransferId
	copy(id[:], h.Sum(nil))
	return id
}

// CreditTransfer is a record of one completed or pending transfer.
type CreditTransfer struct {
	From        AccountId
	To          AccountId
	Amount      Credits
	EntropyCost Credits
	Timestamp   Timestamp
}

// TotalCost is the amount actually debited from the sender.
func (t CreditTransfer) TotalCost() Credits {
	return t.Amount.SaturatingAdd(t.EntropyCost)
}

// CreditState enumerates the legal states of a reservation's credits.
type CreditState int

const (
	CreditStateActive CreditState = iota
	CreditStateReserved
	CreditStateConsumed
	CreditStateReleased
	CreditStateInRevival
)

func (s CreditState) String() string {
	switch s {
	case CreditStateActive:
		return "active"
	case CreditStateReserved:
		return "reserved"
	case CreditStateConsumed:
		return "consumed"
	case CreditStateReleased:
		return "released"
	case CreditStateInRevival:
		return "in_revival"
	default:
		return "unknown"
	}
}

// CanTransition reports whether moving from s to next is one of the legal
// credit-state transitions.
func (s CreditState) CanTransition(next CreditState) bool {
	switch s {
	case CreditStateActive:
		return next == CreditStateReserved
	case CreditStateReserved:
		return next == CreditStateConsumed || next == CreditStateReleased
	case CreditStateReleased:
		return next == CreditStateActive
	case CreditStateConsumed:
		return next == CreditStateInRevival
	case CreditStateInRevival:
		return next == CreditStateActive
	default:
		return false
	}
}

// CreditReservation holds credits aside for a bounded time.
type CreditReservation struct {
	Id        ReservationId
	Account   AccountId
	Amount    Credits
	CreatedAt Timestamp
	TTL       Duration
	State     CreditState
}

// NewCreditReservation starts a reservation in the Reserved state.
func NewCreditReservation(id ReservationId, account AccountId, amount Credits, ttl Duration) CreditReservation {
	return CreditReservation{
		Id:        id,
		Account:   account,
		Amount:    amount,
		CreatedAt: Now(),
		TTL:       ttl,
		State:     CreditStateReserved,
	}
}

func (r CreditReservation) IsValid() bool { return r.TTL.Millis > 0 }

func (r CreditReservation) IsExpired(now Timestamp) bool {
	return now.Millis > r.CreatedAt.Millis+r.TTL.Millis
}
