package core

import (
	"math"
	"sync"

	"github.com/sirupsen/logrus"
)

// Tax rate and redistribution allocation percentages.
const (
	EntropyTaxRate = 0.02

	NetworkMaintenanceAllocation = 0.40
	NewNodeSubsidyAllocation     = 0.25
	LowBalanceSupportAllocation  = 0.20
	ReserveBufferAllocation      = 0.15

	SubsidyThreshold            = 100
	MinNexusUptimeForMaintenance = 0.95
	MinReputationForSupport     = 0.5
)

// CalculateEntropyTax is floor(amount * 2%).
func CalculateEntropyTax(amount Credits) Credits {
	return NewCredits(uint64(math.Floor(float64(amount.Amount) * EntropyTaxRate)))
}

// RevivalPool holds reclaimed and taxed credits pending redistribution.
// Guarded by its own mutex; in the coordinator's fixed lock order it is
// mutated alongside balances and locked after gates.
type RevivalPool struct {
	mu                  sync.Mutex
	RecycledCredits     Credits
	EntropyTaxCollected Credits
	MaintenanceFund     Credits
	ReserveBuffer       Credits
}

func NewRevivalPool() *RevivalPool { return &RevivalPool{} }

func (p *RevivalPool) TotalBalance() Credits {
	p.mu.Lock()
	defer p.mu.Unlock()
	return NewCredits(p.RecycledCredits.Amount + p.EntropyTaxCollected.Amount + p.MaintenanceFund.Amount + p.ReserveBuffer.Amount)
}

func (p *RevivalPool) AvailableForRedistribution() Credits {
	p.mu.Lock()
	defer p.mu.Unlock()
	return NewCredits(p.RecycledCredits.Amount + p.EntropyTaxCollected.Amount)
}

func (p *RevivalPool) AddRecycled(amount Credits) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RecycledCredits = p.RecycledCredits.SaturatingAdd(amount)
}

func (p *RevivalPool) AddTax(amount Credits) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EntropyTaxCollected = p.EntropyTaxCollected.SaturatingAdd(amount)
}

func (p *RevivalPool) AddMaintenance(amount Credits) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.MaintenanceFund = p.MaintenanceFund.SaturatingAdd(amount)
}

func (p *RevivalPool) AddReserve(amount Credits) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ReserveBuffer = p.ReserveBuffer.SaturatingAdd(amount)
}

// ClearRedistributionPools zeroes the two redistributable buckets after a
// plan has been applied.
func (p *RevivalPool) ClearRedistributionPools() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RecycledCredits = ZeroCredits
	p.EntropyTaxCollected = ZeroCredits
}

// RedistributionPlan is the result of PlanRedistribution: a proposed
// allocation that does not execute until the caller applies it.
type RedistributionPlan struct {
	MaintenanceRecipients []NodeCredit
	SubsidyRecipients     []NodeCredit
	SupportRecipients     []NodeCredit
	ReserveAddition       Credits
}

// NodeCredit pairs a recipient with the amount it is due.
type NodeCredit struct {
	Node    NodeId
	Credits Credits
}

func (p RedistributionPlan) TotalDistributed() Credits {
	var total uint64
	for _, nc := range p.MaintenanceRecipients {
		total += nc.Credits.Amount
	}
	for _, nc := range p.SubsidyRecipients {
		total += nc.Credits.Amount
	}
	for _, nc := range p.SupportRecipients {
		total += nc.Credits.Amount
	}
	total += p.ReserveAddition.Amount
	return NewCredits(total)
}

// NodeMetricsProvider abstracts the metrics source PlanRedistribution reads
// from.
type NodeMetricsProvider interface {
	AllNodes() []NodeId
	NexusNodes() []NodeId
	NewNodes() []NodeId
	Uptime(node NodeId) float64
	Reputation(node NodeId) float64
	Balance(node NodeId) Credits
	IsHealthy(node NodeId) bool
}

// PlanRedistribution computes a RedistributionPlan from the pool's available
// balance, following the 40/25/20/15 split.
func PlanRedistribution(pool *RevivalPool, metrics NodeMetricsProvider) RedistributionPlan {
	totalAvailable := pool.AvailableForRedistribution().Amount
	if totalAvailable == 0 {
		return RedistributionPlan{}
	}

	maintenanceBudget := uint64(float64(totalAvailable) * NetworkMaintenanceAllocation)
	subsidyBudget := uint64(float64(totalAvailable) * NewNodeSubsidyAllocation)
	supportBudget := uint64(float64(totalAvailable) * LowBalanceSupportAllocation)
	reserveBudget := uint64(float64(totalAvailable) * ReserveBufferAllocation)

	// Every truncation along the way accrues to reserve, so the plan always
	// accounts for the full available balance.
	leftover := totalAvailable - (maintenanceBudget + subsidyBudget + supportBudget + reserveBudget)

	var nexusNodes []NodeId
	for _, n := range metrics.NexusNodes() {
		if metrics.Uptime(n) >= MinNexusUptimeForMaintenance {
			nexusNodes = append(nexusNodes, n)
		}
	}
	maintenanceRecipients, rem := splitEqually(nexusNodes, maintenanceBudget)
	leftover += rem

	var newNodes []NodeId
	for _, n := range metrics.NewNodes() {
		if metrics.IsHealthy(n) {
			newNodes = append(newNodes, n)
		}
	}
	subsidyRecipients, rem := splitEqually(newNodes, subsidyBudget)
	leftover += rem

	var strugglingNodes []NodeId
	for _, n := range metrics.AllNodes() {
		if metrics.Balance(n).Amount < SubsidyThreshold && metrics.Reputation(n) >= MinReputationForSupport {
			strugglingNodes = append(strugglingNodes, n)
		}
	}
	supportRecipients, rem := splitEqually(strugglingNodes, supportBudget)
	leftover += rem

	return RedistributionPlan{
		MaintenanceRecipients: maintenanceRecipients,
		SubsidyRecipients:     subsidyRecipients,
		SupportRecipients:     supportRecipients,
		ReserveAddition:       NewCredits(reserveBudget + leftover),
	}
}

// splitEqually divides budget evenly across nodes, returning the per-node
// credits and the remainder that integer division dropped on the floor; the
// caller routes that remainder to the reserve buffer.
func splitEqually(nodes []NodeId, budget uint64) ([]NodeCredit, uint64) {
	if len(nodes) == 0 {
		return nil, budget
	}
	per := budget / uint64(len(nodes))
	out := make([]NodeCredit, len(nodes))
	for i, n := range nodes {
		out[i] = NodeCredit{Node: n, Credits: NewCredits(per)}
	}
	return out, budget % uint64(len(nodes))
}

// ApplyRedistribution credits every recipient in the plan via ledger, adds
// the reserve addition to the pool, and clears the redistributable buckets.
func ApplyRedistribution(plan RedistributionPlan, ledger *Ledger, pool *RevivalPool, log *logrus.Entry) {
	apply := func(recipients []NodeCredit) {
		for _, nc := range recipients {
			if nc.Credits.IsZero() {
				continue
			}
			ledger.Credit(NodeAccount(nc.Node), nc.Credits)
		}
	}
	apply(plan.MaintenanceRecipients)
	apply(plan.SubsidyRecipients)
	apply(plan.SupportRecipients)
	pool.AddReserve(plan.ReserveAddition)
	pool.ClearRedistributionPools()
	if log != nil {
		log.WithField("total_distributed", plan.TotalDistributed().Amount).Info("revival pool redistribution applied")
	}
}
