package core

import (
	"testing"
	"time"
)

func newTestLedger() (*Ledger, *RevivalPool) {
	pool := NewRevivalPool()
	return NewLedger(pool), pool
}

// TestTransferValidation walks the precondition failures one by one, then a
// transfer that should go through.
func TestTransferValidation(t *testing.T) {
	ledger, _ := newTestLedger()
	self := NodeAccount(NodeId{0x01})
	peer := NodeAccount(NodeId{0x02})
	ledger.Credit(self, NewCredits(1000))

	if _, err := ledger.Transfer(TransferId{1}, self, self, NewCredits(100), nil, nil); err != ErrSelfTransfer {
		t.Fatalf("self transfer: got %v, want ErrSelfTransfer", err)
	}
	if _, err := ledger.Transfer(TransferId{2}, self, peer, NewCredits(0), nil, nil); err != ErrZeroAmount {
		t.Fatalf("zero amount: got %v, want ErrZeroAmount", err)
	}
	if _, err := ledger.Transfer(TransferId{3}, self, peer, NewCredits(2000), nil, nil); err == nil {
		t.Fatalf("expected insufficient-balance error for over-limit transfer")
	}

	zero := NewCredits(0)
	record, err := ledger.Transfer(TransferId{4}, self, peer, NewCredits(100), &zero, nil)
	if err != nil {
		t.Fatalf("valid transfer failed: %v", err)
	}
	if record.Amount.Amount != 100 {
		t.Fatalf("got amount %d, want 100", record.Amount.Amount)
	}
	if got := ledger.Balance(self).Amount; got != 900 {
		t.Fatalf("got balance %d, want 900", got)
	}
}

func TestTransferEntropyTaxRoutesToPool(t *testing.T) {
	ledger, pool := newTestLedger()
	self := NodeAccount(NodeId{0x01})
	peer := NodeAccount(NodeId{0x02})
	ledger.Credit(self, NewCredits(1000))

	if _, err := ledger.Transfer(TransferId{1}, self, peer, NewCredits(100), nil, nil); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	wantTax := CalculateEntropyTax(NewCredits(100))
	if got := pool.EntropyTaxCollected; got != wantTax {
		t.Fatalf("got tax %+v, want %+v", got, wantTax)
	}
	if got := ledger.Balance(self).Amount; got != 1000-100-wantTax.Amount {
		t.Fatalf("got balance %d, want %d", got, 1000-100-wantTax.Amount)
	}
}

func TestTransferDuplicateIdRejected(t *testing.T) {
	ledger, _ := newTestLedger()
	self := NodeAccount(NodeId{0x01})
	peer := NodeAccount(NodeId{0x02})
	ledger.Credit(self, NewCredits(1000))

	id := TransferId{9}
	if _, err := ledger.Transfer(id, self, peer, NewCredits(10), nil, nil); err != nil {
		t.Fatalf("first transfer: %v", err)
	}
	if _, err := ledger.Transfer(id, self, peer, NewCredits(10), nil, nil); err != ErrDuplicateTransfer {
		t.Fatalf("got %v, want ErrDuplicateTransfer", err)
	}
}

func TestTransferRefusedWhenEndpointIsolated(t *testing.T) {
	ledger, _ := newTestLedger()
	self := NodeAccount(NodeId{0x01})
	peer := NodeAccount(NodeId{0x02})
	ledger.Credit(self, NewCredits(1000))

	isolated := func(n NodeId) bool { return n == peer.Node }
	if _, err := ledger.Transfer(TransferId{1}, self, peer, NewCredits(10), nil, isolated); err != ErrNodeIsolated {
		t.Fatalf("got %v, want ErrNodeIsolated", err)
	}
}

func TestReservationLifecycle(t *testing.T) {
	ledger, _ := newTestLedger()
	account := NodeAccount(NodeId{0x01})
	ledger.Credit(account, NewCredits(500))

	id, err := ledger.Reserve(account, NewCredits(200), Seconds(60))
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if got := ledger.Balance(account).Amount; got != 300 {
		t.Fatalf("got active balance %d, want 300 after reserve", got)
	}

	res, ok := ledger.Reservation(id)
	if !ok || res.State != CreditStateReserved {
		t.Fatalf("expected reservation in Reserved state, got %+v (ok=%v)", res, ok)
	}

	consumer := NodeAccount(NodeId{0x02})
	if err := ledger.Consume(id, consumer); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got := ledger.Balance(consumer).Amount; got != 200 {
		t.Fatalf("got consumer balance %d, want 200", got)
	}
	if err := ledger.Consume(id, consumer); err != ErrReservationAlreadyConsumed {
		t.Fatalf("double consume: got %v, want ErrReservationAlreadyConsumed", err)
	}
}

func TestReservationReleaseIsIdempotent(t *testing.T) {
	ledger, _ := newTestLedger()
	account := NodeAccount(NodeId{0x01})
	ledger.Credit(account, NewCredits(500))

	id, err := ledger.Reserve(account, NewCredits(100), Seconds(60))
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := ledger.Release(id); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if got := ledger.Balance(account).Amount; got != 500 {
		t.Fatalf("got balance %d, want 500 restored", got)
	}
	if err := ledger.Release(id); err != nil {
		t.Fatalf("second release should be a no-op, got error: %v", err)
	}
}

func TestReserveRejectsZeroTTL(t *testing.T) {
	ledger, _ := newTestLedger()
	account := NodeAccount(NodeId{0x01})
	ledger.Credit(account, NewCredits(10))
	if _, err := ledger.Reserve(account, NewCredits(1), Seconds(0)); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

// TestConservationAcrossTransfer is testable property 1.
func TestConservationAcrossTransfer(t *testing.T) {
	ledger, pool := newTestLedger()
	self := NodeAccount(NodeId{0x01})
	peer := NodeAccount(NodeId{0x02})
	ledger.Credit(self, NewCredits(1000))

	before := ledger.TotalBalance().Amount + pool.TotalBalance().Amount
	if _, err := ledger.Transfer(TransferId{1}, self, peer, NewCredits(100), nil, nil); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	after := ledger.TotalBalance().Amount + pool.TotalBalance().Amount
	if before != after {
		t.Fatalf("conservation violated: before=%d after=%d", before, after)
	}
}

func TestSweepExpiredReleasesStaleReservations(t *testing.T) {
	ledger, _ := newTestLedger()
	account := NodeAccount(NodeId{0x01})
	ledger.Credit(account, NewCredits(100))

	id, err := ledger.Reserve(account, NewCredits(50), Millis(1))
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	// Sleeping well past the 1ms TTL makes the reservation expired when the
	// sweep runs.
	time.Sleep(5 * time.Millisecond)
	released := ledger.SweepExpired()
	if len(released) != 1 || released[0] != id {
		t.Fatalf("got released %v, want [%d]", released, id)
	}
	if got := ledger.Balance(account).Amount; got != 100 {
		t.Fatalf("got balance %d, want 100 restored", got)
	}
}

func TestFreezeAccountZeroesBalance(t *testing.T) {
	ledger, _ := newTestLedger()
	account := NodeAccount(NodeId{0x01})
	ledger.Credit(account, NewCredits(321))

	frozen := ledger.FreezeAccount(account)
	if frozen.Amount != 321 {
		t.Fatalf("got frozen %d, want 321", frozen.Amount)
	}
	if got := ledger.Balance(account).Amount; got != 0 {
		t.Fatalf("got balance %d after freeze, want 0", got)
	}
}

func TestReleaseToRevivalPoolRoutesCreditsToPoolNotHolder(t *testing.T) {
	ledger, pool := newTestLedger()
	account := NodeAccount(NodeId{0x01})
	ledger.Credit(account, NewCredits(500))

	id, err := ledger.Reserve(account, NewCredits(200), Seconds(30))
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	frozen := ledger.FreezeAccount(account)
	if frozen.Amount != 300 {
		t.Fatalf("got frozen %d, want 300 (500-200 reserved)", frozen.Amount)
	}

	if err := ledger.ReleaseToRevivalPool(id, pool); err != nil {
		t.Fatalf("release to revival pool: %v", err)
	}
	if got := ledger.Balance(account).Amount; got != 0 {
		t.Fatalf("got holder balance %d after decomposition release, want 0 (credits go to the pool, not the frozen account)", got)
	}
	if got := pool.RecycledCredits.Amount; got != 200 {
		t.Fatalf("got pool recycled credits %d, want 200", got)
	}

	// Idempotent: a second release is a no-op, matching Release's contract.
	if err := ledger.ReleaseToRevivalPool(id, pool); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if got := pool.RecycledCredits.Amount; got != 200 {
		t.Fatalf("got pool recycled credits %d after duplicate release, want unchanged 200", got)
	}
}
