package core

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

// entropyTaxRate is the default fraction of a transfer's amount routed to the
// revival pool's entropy_tax bucket when the caller does not specify an
// explicit entropy cost.
const entropyTaxRate = 0.02

// seenTransferCacheSize bounds the recipient-side duplicate-transfer guard
// so a replayed incoming transfer with a known id is rejected.
const seenTransferCacheSize = 4096

// Ledger owns all account balances and outstanding reservations. Every change
// to balances and reservations is made under the single mutex;
// ReleaseToRevivalPool and SweepExpired release it before calling out.
type Ledger struct {
	mu            sync.Mutex
	balances      map[AccountId]Credits
	reservations  map[ReservationId]*CreditReservation
	nextReservID  ReservationId
	seenTransfers *lru.Cache[TransferId, struct{}]
	pool          *RevivalPool
	log           *logrus.Entry
}

// NewLedger constructs an empty ledger backed by the given revival pool (tax
// and recycled credits are routed there).
func NewLedger(pool *RevivalPool) *Ledger {
	cache, err := lru.New[TransferId, struct{}](seenTransferCacheSize)
	if err != nil {
		panic(fmt.Sprintf("ledger: failed to allocate transfer cache: %v", err))
	}
	return &Ledger{
		balances:      make(map[AccountId]Credits),
		reservations:  make(map[ReservationId]*CreditReservation),
		seenTransfers: cache,
		pool:          pool,
		log:           logrus.WithField("component", "ledger"),
	}
}

// Balance returns the Active balance of an account (zero if never credited).
func (l *Ledger) Balance(account AccountId) Credits {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account]
}

// Credit adds amount to account's balance. Used for genesis issuance and
// crediting the receiving side of a transfer.
func (l *Ledger) Credit(account AccountId, amount Credits) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] = l.balances[account].SaturatingAdd(amount)
}

// Transfer moves amount plus an entropy cost from `from` to `to`, routing the
// entropy cost into the revival pool's entropy-tax bucket.
// isIsolated reports whether the given account's node is currently isolated
// by a septal gate; Transfer refuses to run if either endpoint is
// isolated (testable property 7, "transaction safety under isolation").
func (l *Ledger) Transfer(transferId TransferId, from, to AccountId, amount Credits, entropyCost *Credits, isIsolated func(NodeId) bool) (CreditTransfer, error) {
	if amount.IsZero() {
		return CreditTransfer{}, ErrZeroAmount
	}
	if from == to {
		return CreditTransfer{}, ErrSelfTransfer
	}
	if isIsolated != nil && (isIsolated(from.Node) || isIsolated(to.Node)) {
		return CreditTransfer{}, ErrNodeIsolated
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, seen := l.seenTransfers.Get(transferId); seen {
		return CreditTransfer{}, ErrDuplicateTransfer
	}

	cost := amount
	if entropyCost != nil {
		cost = *entropyCost
	} else {
		cost = NewCredits(uint64(float64(amount.Amount) * entropyTaxRate))
	}

	required := amount.SaturatingAdd(cost)
	available := l.balances[from]
	if available.Amount < required.Amount {
		return CreditTransfer{}, fmt.Errorf("%w: required %d, available %d", ErrInsufficientCredits, required.Amount, available.Amount)
	}

	l.balances[from] = available.SaturatingSub(required)
	l.balances[to] = l.balances[to].SaturatingAdd(amount)
	if l.pool != nil {
		l.pool.AddTax(cost)
	}
	l.seenTransfers.Add(transferId, struct{}{})

	l.log.WithFields(logrus.Fields{
		"from": from.Node, "to": to.Node, "amount": amount.Amount, "entropy_cost": cost.Amount,
	}).Info("credit transfer applied")

	return CreditTransfer{From: from, To: to, Amount: amount, EntropyCost: cost, Timestamp: Now()}, nil
}

// Reserve deducts amount from account's Active balance into a new
// reservation with the given TTL.
func (l *Ledger) Reserve(account AccountId, amount Credits, ttl Duration) (ReservationId, error) {
	if ttl.Millis == 0 {
		return 0, fmt.Errorf("%w: ttl must be > 0", ErrInvalidStateTransition)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	available := l.balances[account]
	if available.Amount < amount.Amount {
		return 0, fmt.Errorf("%w: required %d, available %d", ErrInsufficientCredits, amount.Amount, available.Amount)
	}

	l.nextReservID++
	id := l.nextReservID
	l.balances[account] = available.SaturatingSub(amount)
	res := NewCreditReservation(id, account, amount, ttl)
	l.reservations[id] = &res

	l.log.WithFields(logrus.Fields{"account": account.Node, "amount": amount.Amount, "reservation": id}).Info("reservation created")
	return id, nil
}

// Consume finalizes a reservation: its credits move to the Consumed state and
// are credited to `to`.
func (l *Ledger) Consume(id ReservationId, to AccountId) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.reservations[id]
	if !ok {
		return ErrReservationNotFound
	}
	if res.State == CreditStateConsumed {
		return ErrReservationAlreadyConsumed
	}
	if res.IsExpired(Now()) {
		return ErrReservationExpired
	}
	if !res.State.CanTransition(CreditStateConsumed) {
		return ErrInvalidStateTransition
	}

	res.State = CreditStateConsumed
	l.balances[to] = l.balances[to].SaturatingAdd(res.Amount)
	return nil
}

// Release restores a reservation's credits to its holder. A reservation
// already released (its credits restored, so back in Active) or Consumed is
// a no-op, so a release is idempotent after the first observation.
func (l *Ledger) Release(id ReservationId) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, ok := l.reservations[id]
	if !ok {
		return ErrReservationNotFound
	}
	if res.State == CreditStateReleased || res.State == CreditStateConsumed || res.State == CreditStateActive {
		return nil
	}
	if !res.State.CanTransition(CreditStateReleased) {
		return ErrInvalidStateTransition
	}

	res.State = CreditStateReleased
	l.balances[res.Account] = l.balances[res.Account].SaturatingAdd(res.Amount)
	res.State = CreditStateActive
	return nil
}

// ReleaseToRevivalPool finalizes a reservation as Released without returning
// its credits to the holder, routing them to the revival pool's recycled
// bucket instead. Used by the decomposer: a failed
// node's held reservations return their credits via the revival pool, not to
// the now-frozen account.
func (l *Ledger) ReleaseToRevivalPool(id ReservationId, pool *RevivalPool) error {
	l.mu.Lock()
	res, ok := l.reservations[id]
	if !ok {
		l.mu.Unlock()
		return ErrReservationNotFound
	}
	if res.State == CreditStateReleased || res.State == CreditStateConsumed {
		l.mu.Unlock()
		return nil
	}
	if !res.State.CanTransition(CreditStateReleased) {
		l.mu.Unlock()
		return ErrInvalidStateTransition
	}
	res.State = CreditStateReleased
	amount := res.Amount
	l.mu.Unlock()

	pool.AddRecycled(amount)
	return nil
}

// SweepExpired releases every reservation past its TTL that has not yet been
// observed as expired, returning the ids released.
func (l *Ledger) SweepExpired() []ReservationId {
	l.mu.Lock()
	now := Now()
	var expired []ReservationId
	for id, res := range l.reservations {
		if res.State == CreditStateReserved && res.IsExpired(now) {
			expired = append(expired, id)
		}
	}
	l.mu.Unlock()

	for _, id := range expired {
		_ = l.Release(id)
	}
	return expired
}

// Reservation returns a copy of a reservation's current state.
func (l *Ledger) Reservation(id ReservationId) (CreditReservation, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	res, ok := l.reservations[id]
	if !ok {
		return CreditReservation{}, false
	}
	return *res, true
}

// HeldReservations returns every reservation currently held by account,
// feeding the decomposer's "release held reservations" step.
func (l *Ledger) HeldReservations(account AccountId) []CreditReservation {
	l.mu.Lock()
	defer l.mu.Unlock()
	var held []CreditReservation
	for _, res := range l.reservations {
		if res.Account == account && res.State == CreditStateReserved {
			held = append(held, *res)
		}
	}
	return held
}

// FreezeAccount zeroes an account's Active balance and returns what was
// frozen, used by the decomposer's CreditsFrozen phase.
func (l *Ledger) FreezeAccount(account AccountId) Credits {
	l.mu.Lock()
	defer l.mu.Unlock()
	frozen := l.balances[account]
	l.balances[account] = ZeroCredits
	return frozen
}

// TotalBalance sums every account's Active balance plus every outstanding
// reservation, for conservation checks (testable property 1).
func (l *Ledger) TotalBalance() Credits {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total uint64
	for _, b := range l.balances {
		total += b.Amount
	}
	for _, r := range l.reservations {
		if r.State == CreditStateReserved {
			total += r.Amount.Amount
		}
	}
	return NewCredits(total)
}
