package core

import "testing"

func TestCalculateEntropyTaxIsTwoPercentFloored(t *testing.T) {
	got := CalculateEntropyTax(NewCredits(150))
	if got.Amount != 3 {
		t.Fatalf("got %d, want 3 (2%% of 150)", got.Amount)
	}
	got = CalculateEntropyTax(NewCredits(149))
	if got.Amount != 2 {
		t.Fatalf("got %d, want floor(149*0.02)=2", got.Amount)
	}
}

func TestRedistributionAllocationPercentagesSumToOne(t *testing.T) {
	sum := NetworkMaintenanceAllocation + NewNodeSubsidyAllocation + LowBalanceSupportAllocation + ReserveBufferAllocation
	if diff := sum - 1.0; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("allocation percentages sum to %v, want 1.0", sum)
	}
}

type fakeRevivalMetrics struct {
	all, nexus, newNodes []NodeId
	uptime, reputation   map[NodeId]float64
	balance              map[NodeId]Credits
	healthy              map[NodeId]bool
}

func (f fakeRevivalMetrics) AllNodes() []NodeId { return f.all }

func (f fakeRevivalMetrics) NexusNodes() []NodeId { return f.nexus }

func (f fakeRevivalMetrics) NewNodes() []NodeId { return f.newNodes }

func (f fakeRevivalMetrics) Uptime(n NodeId) float64 { return f.uptime[n] }

func (f fakeRevivalMetrics) Reputation(n NodeId) float64 { return f.reputation[n] }

func (f fakeRevivalMetrics) Balance(n NodeId) Credits { return f.balance[n] }

func (f fakeRevivalMetrics) IsHealthy(n NodeId) bool { return f.healthy[n] }

func TestPlanRedistributionEmptyPoolYieldsEmptyPlan(t *testing.T) {
	pool := NewRevivalPool()
	plan := PlanRedistribution(pool, fakeRevivalMetrics{})
	if plan.TotalDistributed().Amount != 0 {
		t.Fatalf("expected an empty plan for an empty pool, got %+v", plan)
	}
}

func TestPlanRedistributionSplitsAcrossBuckets(t *testing.T) {
	pool := NewRevivalPool()
	pool.AddRecycled(NewCredits(600))
	pool.AddTax(NewCredits(400))
	// Available = 1000: maintenance=400, subsidy=250, support=200, reserve=150.

	nexusA, nexusB := NodeId{0x01}, NodeId{0x02}
	newNode := NodeId{0x03}
	struggler := NodeId{0x04}

	metrics := fakeRevivalMetrics{
		all:        []NodeId{nexusA, nexusB, newNode, struggler},
		nexus:      []NodeId{nexusA, nexusB},
		newNodes:   []NodeId{newNode},
		uptime:     map[NodeId]float64{nexusA: 0.99, nexusB: 0.80},
		reputation: map[NodeId]float64{struggler: 0.9},
		balance: map[NodeId]Credits{
			nexusA: NewCredits(10_000), nexusB: NewCredits(10_000),
			newNode: NewCredits(10_000), struggler: NewCredits(10),
		},
		healthy: map[NodeId]bool{newNode: true},
	}

	plan := PlanRedistribution(pool, metrics)

	if len(plan.MaintenanceRecipients) != 1 || plan.MaintenanceRecipients[0].Node != nexusA {
		t.Fatalf("expected only nexusA (uptime >= 0.95) to receive maintenance funds, got %+v", plan.MaintenanceRecipients)
	}
	if plan.MaintenanceRecipients[0].Credits.Amount != 400 {
		t.Fatalf("got maintenance amount %d, want 400 (sole eligible recipient)", plan.MaintenanceRecipients[0].Credits.Amount)
	}

	if len(plan.SubsidyRecipients) != 1 || plan.SubsidyRecipients[0].Node != newNode {
		t.Fatalf("expected newNode to receive the subsidy, got %+v", plan.SubsidyRecipients)
	}
	if plan.SubsidyRecipients[0].Credits.Amount != 250 {
		t.Fatalf("got subsidy amount %d, want 250", plan.SubsidyRecipients[0].Credits.Amount)
	}

	if len(plan.SupportRecipients) != 1 || plan.SupportRecipients[0].Node != struggler {
		t.Fatalf("expected struggler (balance<100, reputation>=0.5) to receive support, got %+v", plan.SupportRecipients)
	}
	if plan.SupportRecipients[0].Credits.Amount != 200 {
		t.Fatalf("got support amount %d, want 200", plan.SupportRecipients[0].Credits.Amount)
	}

	if plan.ReserveAddition.Amount != 150 {
		t.Fatalf("got reserve addition %d, want 150", plan.ReserveAddition.Amount)
	}
}

func TestPlanRedistributionRoutesAllTruncationRemaindersToReserve(t *testing.T) {
	pool := NewRevivalPool()
	pool.AddRecycled(NewCredits(1001))
	// Available = 1001: maintenance=400 (truncated from 400.4), subsidy=250
	// (truncated from 250.25), support=200 (truncated from 200.2), reserve=150
	// (truncated from 150.15) — 1000 allocated, 1 lost to cross-bucket
	// truncation. The three nexus nodes split 400 unevenly (133 each,
	// remainder 1); subsidy and support each have exactly one recipient so
	// their splits are exact and isolate the effect under test.

	nexusA, nexusB, nexusC := NodeId{0x01}, NodeId{0x02}, NodeId{0x03}
	newNode := NodeId{0x04}
	struggler := NodeId{0x05}

	metrics := fakeRevivalMetrics{
		all:        []NodeId{nexusA, nexusB, nexusC, struggler},
		nexus:      []NodeId{nexusA, nexusB, nexusC},
		newNodes:   []NodeId{newNode},
		uptime:     map[NodeId]float64{nexusA: 0.99, nexusB: 0.99, nexusC: 0.99},
		reputation: map[NodeId]float64{struggler: 0.9},
		balance:    map[NodeId]Credits{struggler: NewCredits(10)},
		healthy:    map[NodeId]bool{newNode: true},
	}

	plan := PlanRedistribution(pool, metrics)

	// maintenanceBudget=400 split across 3 nodes: 133 each, remainder 1.
	if len(plan.MaintenanceRecipients) != 3 {
		t.Fatalf("expected 3 maintenance recipients, got %+v", plan.MaintenanceRecipients)
	}
	for _, nc := range plan.MaintenanceRecipients {
		if nc.Credits.Amount != 133 {
			t.Fatalf("got maintenance share %d, want 133 (400/3 truncated)", nc.Credits.Amount)
		}
	}

	if len(plan.SubsidyRecipients) != 1 || plan.SubsidyRecipients[0].Credits.Amount != 250 {
		t.Fatalf("got subsidy recipients %+v, want sole newNode receiving 250", plan.SubsidyRecipients)
	}
	if len(plan.SupportRecipients) != 1 || plan.SupportRecipients[0].Credits.Amount != 200 {
		t.Fatalf("got support recipients %+v, want sole struggler receiving 200", plan.SupportRecipients)
	}

	// Cross-bucket truncation loses 1 (1001 - 1000), plus the maintenance
	// split drops 400%3=1. Total reserve = 150 + 1 (cross-bucket) + 1 (split)
	// = 152.
	wantReserve := uint64(152)
	if plan.ReserveAddition.Amount != wantReserve {
		t.Fatalf("got reserve addition %d, want %d", plan.ReserveAddition.Amount, wantReserve)
	}

	if plan.TotalDistributed().Amount != 1001 {
		t.Fatalf("got total distributed %d, want all 1001 available credits accounted for", plan.TotalDistributed().Amount)
	}
}

func TestApplyRedistributionCreditsRecipientsAndClearsPools(t *testing.T) {
	pool := NewRevivalPool()
	ledger := NewLedger(pool)
	pool.AddTax(NewCredits(1000))

	plan := RedistributionPlan{
		MaintenanceRecipients: []NodeCredit{{Node: NodeId{0x01}, Credits: NewCredits(400)}},
		ReserveAddition:       NewCredits(150),
	}
	ApplyRedistribution(plan, ledger, pool, nil)

	if got := ledger.Balance(NodeAccount(NodeId{0x01})).Amount; got != 400 {
		t.Fatalf("got recipient balance %d, want 400", got)
	}
	if got := pool.ReserveBuffer.Amount; got != 150 {
		t.Fatalf("got reserve buffer %d, want 150", got)
	}
	if pool.EntropyTaxCollected.Amount != 0 || pool.RecycledCredits.Amount != 0 {
		t.Fatalf("redistribution pools should be cleared after applying, got tax=%d recycled=%d",
			pool.EntropyTaxCollected.Amount, pool.RecycledCredits.Amount)
	}
}
