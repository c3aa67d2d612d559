package core

// NexusRoleType enumerates a node's position in the topology.
type NexusRoleType int

const (
	RoleLeaf NexusRoleType = iota
	RoleNexus
	RolePoteauMitan
)

// NexusRole describes a node's role and its parent/children links. Links are
// stored as NodeId values the topology map resolves, never mutual object
// references.
type NexusRole struct {
	RoleType NexusRoleType
	Parent   *NodeId
	Children []NodeId
}

func LeafRole(parent NodeId) NexusRole {
	return NexusRole{RoleType: RoleLeaf, Parent: &parent}
}

func NexusRoleOf(parent *NodeId, children []NodeId) NexusRole {
	return NexusRole{RoleType: RoleNexus, Parent: parent, Children: children}
}

func PoteauMitanRole(children []NodeId) NexusRole {
	return NexusRole{RoleType: RolePoteauMitan, Children: children}
}

func (r NexusRole) IsLeaf() bool { return r.RoleType == RoleLeaf }

func (r NexusRole) IsNexus() bool { return r.RoleType == RoleNexus }

func (r NexusRole) IsPoteauMitan() bool { return r.RoleType == RolePoteauMitan }

// ResourceType names the kind of resource an order book trades.
type ResourceType int

const (
	ResourceCPU ResourceType = iota
	ResourceMemory
	ResourceGPU
	ResourceStorage
	ResourceBandwidth
)

// ResourceGradient is a node's self-reported availability vector.
type ResourceGradient struct {
	CPUAvailable       float64
	MemoryAvailable    float64
	GPUAvailable       float64
	StorageAvailable   float64
	BandwidthAvailable float64
	CreditBalance      float64
}

func ZeroGradient() ResourceGradient { return ResourceGradient{} }

func (g ResourceGradient) IsValid() bool {
	return frac01(g.CPUAvailable) && frac01(g.MemoryAvailable) && frac01(g.GPUAvailable) &&
		frac01(g.StorageAvailable) && frac01(g.BandwidthAvailable)
}

func frac01(v float64) bool { return v >= 0 && v <= 1 }

// NexusTopology is one node's full topology record.
type NexusTopology struct {
	Node               NodeId
	Role               NexusRole
	AggregatedGradient ResourceGradient
	LeafCount          uint32
	LastElection       Timestamp
}

// GossipPathType names how a message is routed to its target.
type GossipPathType int

const (
	PathDirect GossipPathType = iota
	PathViaHub
	PathViaSuperHub
)

// GossipPath is the resolved route for a message.
type GossipPath struct {
	PathType         GossipPathType
	Hops             []NodeId
	EstimatedEntropy float64
}

func DirectPath(target NodeId, entropy float64) GossipPath {
	return GossipPath{PathType: PathDirect, Hops: []NodeId{target}, EstimatedEntropy: entropy}
}

func ViaHubPath(hub, target NodeId, entropy float64) GossipPath {
	return GossipPath{PathType: PathViaHub, Hops: []NodeId{hub, target}, EstimatedEntropy: entropy}
}

// LeafGradientReport is one leaf's broadcast gradient, weighted for
// aggregation.
type LeafGradientReport struct {
	Node      NodeId
	Gradient  ResourceGradient
	Weight    float64
	Timestamp Timestamp
}

// Region groups nodes eligible for a single nexus election.
type Region struct {
	ID           string
	Nodes        []NodeId
	CurrentNexus *NodeId
}

func NewRegion(id string, nodes []NodeId) *Region {
	return &Region{ID: id, Nodes: nodes}
}

// NexusCandidate is a scored election candidate.
type NexusCandidate struct {
	Node             NodeId
	Uptime           float64
	Bandwidth        uint64
	Reputation       float64
	CurrentLeafCount uint32
	ElectionScore    float64
}

// Order is one resting order in an OrderBook.
type Order struct {
	Price     Credits
	Quantity  uint64
	Node      NodeId
	Timestamp Timestamp
}

// OrderBook holds resting bids (sorted descending by price) and asks
// (sorted ascending) for one resource.
type OrderBook struct {
	Resource ResourceType
	Bids     []Order
	Asks     []Order
}

func NewOrderBook(resource ResourceType) OrderBook {
	return OrderBook{Resource: resource}
}

func (b OrderBook) BestBid() (Credits, bool) {
	if len(b.Bids) == 0 {
		return Credits{}, false
	}
	return b.Bids[0].Price, true
}

func (b OrderBook) BestAsk() (Credits, bool) {
	if len(b.Asks) == 0 {
		return Credits{}, false
	}
	return b.Asks[0].Price, true
}

// TotalInventory is the total ask-side quantity, the "current inventory"
// the market maker's imbalance term measures.
func (b OrderBook) TotalInventory() uint64 {
	var total uint64
	for _, o := range b.Asks {
		total += o.Quantity
	}
	return total
}

func (b OrderBook) Spread() (Credits, bool) {
	ask, hasAsk := b.BestAsk()
	bid, hasBid := b.BestBid()
	if hasAsk && hasBid && ask.Amount > bid.Amount {
		return NewCredits(ask.Amount - bid.Amount), true
	}
	return Credits{}, false
}

// MarketMakerConfig parameterizes spread derivation.
type MarketMakerConfig struct {
	MinimumSpread       float64
	VolatilityFactor    float64
	InventoryFactor     float64
	EntropySpreadFactor float64
	TargetInventory     uint64
}

func DefaultMarketMakerConfig() MarketMakerConfig {
	return MarketMakerConfig{
		MinimumSpread:       0.01,
		VolatilityFactor:    0.5,
		InventoryFactor:     0.3,
		EntropySpreadFactor: 0.1,
		TargetInventory:     1000,
	}
}
