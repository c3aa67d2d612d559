package core

import "sort"

// Nexus eligibility thresholds and election weights.
const (
	minNexusUptime     = 0.95
	minNexusBandwidth  = 10_000_000 // 10 Mbps, bytes/s
	minNexusReputation = 0.7

	MinLeavesPerNexus = 5
	MaxLeavesPerNexus = 50

	uptimeWeight       = 0.3
	bandwidthWeight    = 0.3
	reputationWeight   = 0.2
	connectivityWeight = 0.2

	// optimalLeafCount is the midpoint of the 5..50 serviceable leaf range.
	optimalLeafCount = 27.5
)

// NormalizeBandwidth maps bandwidth to [0,1], saturating at 100 Mbps.
func NormalizeBandwidth(bandwidth uint64) float64 {
	const maxExpected = 100_000_000.0
	v := float64(bandwidth) / maxExpected
	if v > 1.0 {
		return 1.0
	}
	return v
}

// NormalizeConnectivity scores proximity to the optimal mid-range leaf count.
func NormalizeConnectivity(leafCount uint32) float64 {
	distance := float64(leafCount) - optimalLeafCount
	if distance < 0 {
		distance = -distance
	}
	const maxDistance = float64(MaxLeavesPerNexus)
	return 1.0 - distance/maxDistance
}

// CalculateElectionScore combines uptime, normalized bandwidth, reputation,
// and connectivity into a candidate's weighted score.
func CalculateElectionScore(c NexusCandidate) float64 {
	return c.Uptime*uptimeWeight +
		NormalizeBandwidth(c.Bandwidth)*bandwidthWeight +
		c.Reputation*reputationWeight +
		NormalizeConnectivity(c.CurrentLeafCount)*connectivityWeight
}

// IsNexusEligible is the hard eligibility filter a candidate must pass
// before scoring.
func IsNexusEligible(uptime float64, bandwidth uint64, reputation float64) bool {
	return uptime >= minNexusUptime && bandwidth >= minNexusBandwidth && reputation >= minNexusReputation
}

// NodeMetrics supplies the raw signals an elector scores candidates on.
type NodeMetrics interface {
	Uptime(node NodeId) float64
	Bandwidth(node NodeId) uint64
	Reputation(node NodeId) float64
	ConnectionCount(node NodeId) uint32
}

// NexusElector runs the election procedure over a Region.
type NexusElector struct {
	metrics NodeMetrics
}

func NewNexusElector(metrics NodeMetrics) *NexusElector {
	return &NexusElector{metrics: metrics}
}

func (e *NexusElector) buildCandidate(node NodeId) NexusCandidate {
	return NexusCandidate{
		Node:             node,
		Uptime:           e.metrics.Uptime(node),
		Bandwidth:        e.metrics.Bandwidth(node),
		Reputation:       e.metrics.Reputation(node),
		CurrentLeafCount: e.metrics.ConnectionCount(node),
	}
}

// Elect filters, scores, and picks the region's winner, or returns
// (NodeId{}, false) if the region has no nodes to elect from.
func (e *NexusElector) Elect(region *Region) (NodeId, bool) {
	if len(region.Nodes) == 0 {
		return NodeId{}, false
	}

	var candidates []NexusCandidate
	for _, n := range region.Nodes {
		c := e.buildCandidate(n)
		if IsNexusEligible(c.Uptime, c.Bandwidth, c.Reputation) {
			candidates = append(candidates, c)
		}
	}

	if len(candidates) == 0 {
		var all []NexusCandidate
		for _, n := range region.Nodes {
			all = append(all, e.buildCandidate(n))
		}
		sort.Slice(all, func(i, j int) bool { return all[i].Reputation > all[j].Reputation })
		if len(all) > 3 {
			all = all[:3]
		}
		candidates = all
	}

	if len(candidates) == 0 {
		return NodeId{}, false
	}

	for i := range candidates {
		candidates[i].ElectionScore = CalculateElectionScore(candidates[i])
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.ElectionScore > best.ElectionScore ||
			(c.ElectionScore == best.ElectionScore && c.Node.Less(best.Node)) {
			best = c
		}
	}
	return best.Node, true
}
