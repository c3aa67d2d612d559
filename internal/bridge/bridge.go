package bridge

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"enr-network/core"
)

// SignatureVerifier delegates cryptographic verification to the host; ENR
// never implements signing itself.
type SignatureVerifier func(messageBytes []byte, sig Signature, node core.NodeId) bool

// PendingTransfer is one transfer the local node initiated and is awaiting a
// CreditConfirmation for.
type PendingTransfer struct {
	TransferId core.TransferId
	To         core.AccountId
	Amount     core.Credits
	CreatedAt  core.Timestamp
}

// electionRound tracks one in-flight election this node is either running or
// participating in.
type electionRound struct {
	Region      string
	InitiatedBy core.NodeId
	Deadline    core.Timestamp
	Candidacies []ElectionCandidacyPayload
}

// Bridge is the coordinator: the single owner of every piece of mutable ENR
// state, and the only component that touches the gossip Transport. Each
// field below is its own cell, guarded by its own lock; nested acquisition
// follows the fixed order topology, gradients, gates, balances, pending.
type Bridge struct {
	localNode NodeSelf
	config    EnrBridgeConfig
	transport Transport
	verifySig SignatureVerifier

	ledger      *core.Ledger
	pool        *core.RevivalPool
	topology    *core.TopologyManager // topology cell
	elector     *core.NexusElector
	gates       *core.GateRegistry // gates cell
	woronin     *core.WoroninManager
	healing     *core.HealingManager
	decomposer  *core.Decomposer
	entropyCalc *core.EntropyCalculator

	gradientsMu   sync.RWMutex // gradients cell
	gradients     map[core.NodeId]core.ResourceGradient
	localGradient core.ResourceGradient

	balanceMu     sync.RWMutex // balances cell
	knownBalances map[core.NodeId]core.Credits

	pendingMu sync.Mutex // pending cell
	pending   map[core.TransferId]PendingTransfer

	electionMu sync.Mutex
	elections  map[ElectionId]*electionRound
	results    map[string]core.NodeId

	metricsMu sync.RWMutex
	metrics   core.NodeMetrics

	cancels []context.CancelFunc
	wg      sync.WaitGroup

	timerMu sync.Mutex
	timers  []*time.Timer

	log *logrus.Entry
}

// NodeSelf is what the Bridge needs to know about the node it runs on.
type NodeSelf struct {
	Id     core.NodeId
	Region string
}

// NewBridge constructs a Bridge over already-built subsystems. Callers
// assemble the subsystems (ledger, pool, topology, ...) themselves so tests
// can substitute fakes for any one of them.
func NewBridge(self NodeSelf, cfg EnrBridgeConfig, transport Transport, ledger *core.Ledger, pool *core.RevivalPool, topology *core.TopologyManager, elector *core.NexusElector, gates *core.GateRegistry, woronin *core.WoroninManager, healing *core.HealingManager, decomposer *core.Decomposer, verifySig SignatureVerifier) *Bridge {
	return &Bridge{
		localNode:     self,
		config:        cfg,
		transport:     transport,
		verifySig:     verifySig,
		ledger:        ledger,
		pool:          pool,
		topology:      topology,
		elector:       elector,
		gates:         gates,
		woronin:       woronin,
		healing:       healing,
		decomposer:    decomposer,
		entropyCalc:   core.NewEntropyCalculatorWithWeights(cfg.EntropyWeights),
		gradients:     make(map[core.NodeId]core.ResourceGradient),
		knownBalances: make(map[core.NodeId]core.Credits),
		pending:       make(map[core.TransferId]PendingTransfer),
		elections:     make(map[ElectionId]*electionRound),
		results:       make(map[string]core.NodeId),
		log:           logrus.WithField("component", "bridge").WithField("node", self.Id),
	}
}

// Start joins every ENR topic, begins routing inbound messages to
// handleMessage, and spawns the periodic broadcasters.
func (b *Bridge) Start(ctx context.Context) error {
	if b.transport == nil {
		return ErrNotConnected
	}
	for _, topic := range Topics {
		ch, err := b.transport.Subscribe(topic)
		if err != nil {
			return fmt.Errorf("bridge: subscribe %s: %w", topic, err)
		}
		b.spawnLoop(ctx, func(ctx context.Context) {
			b.receiveLoop(ctx, topic, ch)
		})
	}
	b.spawnTicker(ctx, b.config.GradientInterval, b.broadcastGradient)
	b.spawnTicker(ctx, b.config.CreditSyncInterval, b.broadcastCreditStateSync)
	b.spawnTicker(ctx, b.config.HealthCheckInterval, b.runHealingCycle)
	return nil
}

// Stop cancels every background task and waits for each to exit before
// returning.
func (b *Bridge) Stop() error {
	for _, cancel := range b.cancels {
		cancel()
	}
	b.timerMu.Lock()
	for _, t := range b.timers {
		t.Stop()
	}
	b.timers = nil
	b.timerMu.Unlock()
	b.wg.Wait()
	if b.transport != nil {
		return b.transport.Close()
	}
	return nil
}

func (b *Bridge) spawnLoop(parent context.Context, fn func(context.Context)) {
	ctx, cancel := context.WithCancel(parent)
	b.cancels = append(b.cancels, cancel)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn(ctx)
	}()
}

// spawnTicker runs fn on a fixed interval; a zero interval disables the
// task. A missed tick is not redelivered in a burst; time.Ticker drops ticks
// the receiver doesn't read in time.
func (b *Bridge) spawnTicker(parent context.Context, interval core.Duration, fn func()) {
	if interval.Millis == 0 {
		return
	}
	b.spawnLoop(parent, func(ctx context.Context) {
		ticker := time.NewTicker(time.Duration(interval.Millis) * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	})
}

// afterFunc schedules fn to run once after d; Stop cancels pending timers.
func (b *Bridge) afterFunc(d core.Duration, fn func()) {
	t := time.AfterFunc(time.Duration(d.Millis)*time.Millisecond, fn)
	b.timerMu.Lock()
	b.timers = append(b.timers, t)
	b.timerMu.Unlock()
}

func (b *Bridge) receiveLoop(ctx context.Context, topic string, ch <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-ch:
			if !ok {
				return
			}
			if err := b.handleMessage(topic, data); err != nil {
				b.log.WithError(err).WithField("topic", topic).Debug("dropped inbound message")
			}
		}
	}
}

// publish encodes and hands an envelope to the transport. The transport may
// block, so callers must not hold any write lock while this runs.
func (b *Bridge) publish(msg EnrMessage) error {
	if b.transport == nil {
		return ErrNotConnected
	}
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	if err := b.transport.Publish(msg.Kind.Topic(), data); err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	return nil
}

func (b *Bridge) envelope(kind MessageKind, payload interface{}) (EnrMessage, error) {
	data, err := encodePayload(payload)
	if err != nil {
		return EnrMessage{}, err
	}
	return EnrMessage{Kind: kind, Sender: b.localNode.Id, Timestamp: core.Now(), Payload: data}, nil
}

// handleMessage deserializes an inbound payload, applies the staleness and
// isolation checks, and dispatches to the owning handler. Gossip-level
// errors (unknown topic, decode failure, kind/topic mismatch, stale
// timestamp, signature policy) are returned to the caller, which logs and
// drops them; a message from an isolated sender is dropped with a nil error.
func (b *Bridge) handleMessage(topic string, data []byte) error {
	if !IsEnrTopic(topic) {
		return ErrUnknownTopic
	}

	msg, err := DecodeEnrMessage(data)
	if err != nil {
		return err
	}
	if msg.Kind.Topic() != topic {
		return ErrInvalidMessage
	}

	age := core.Now().Millis - msg.Timestamp.Millis
	if age > b.config.MaxMessageAge.Millis {
		return ErrMessageExpired
	}

	if b.config.RequireSignatures && msg.Signature.IsUnsigned() {
		return ErrUnsignedRejected
	}
	if b.verifySig != nil && !msg.Signature.IsUnsigned() {
		if !b.verifySig(msg.Payload, msg.Signature, msg.Sender) {
			return ErrBadSignature
		}
	}

	if b.gates != nil && b.gates.IsIsolated(msg.Sender) {
		return nil // isolated sender, silently dropped
	}

	switch msg.Kind {
	case KindGradient:
		var p GradientPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		return b.HandleGradient(p)
	case KindElectionAnnouncement:
		var p ElectionAnnouncementPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		return b.HandleElectionAnnouncement(p)
	case KindElectionCandidacy:
		var p ElectionCandidacyPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		return b.HandleElectionCandidacy(p)
	case KindElectionVote:
		var p ElectionVotePayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		return b.HandleElectionVote(p)
	case KindElectionResult:
		var p ElectionResultPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		return b.HandleElectionResult(p)
	case KindCreditTransfer:
		var p CreditTransferPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		return b.HandleCreditTransfer(p)
	case KindCreditConfirmation:
		var p CreditConfirmationPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		return b.HandleCreditConfirmation(p)
	case KindCreditStateSync:
		var p CreditStateSyncPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		return b.HandleCreditStateSync(p)
	case KindCreditBalanceQuery:
		var p CreditBalanceQueryPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		return b.HandleBalanceQuery(p)
	case KindCreditBalanceResponse:
		var p CreditBalanceResponsePayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		return b.HandleBalanceResponse(p)
	case KindSeptalFailureReport:
		var p SeptalFailureReportPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		return b.HandleFailureReport(p)
	case KindSeptalIsolation:
		var p SeptalIsolationPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		return b.HandleIsolation(p)
	case KindSeptalHealingProbe:
		var p SeptalHealingProbePayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		return b.HandleHealingProbe(p)
	case KindSeptalHealingResponse:
		var p SeptalHealingResponsePayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		return b.HandleHealingResponse(p)
	case KindSeptalRecovery:
		var p SeptalRecoveryPayload
		if err := decodePayload(msg.Payload, &p); err != nil {
			return err
		}
		return b.HandleRecovery(p)
	default:
		return ErrInvalidMessage
	}
}

var _ Handlers = (*Bridge)(nil)
var _ core.DecompositionContext = (*decompositionContext)(nil)

// refuseIfIsolated blocks a transfer touching an isolated endpoint, counting
// the refusal against each isolated peer's Woronin body.
func (b *Bridge) refuseIfIsolated(from, to core.NodeId) error {
	blocked := b.woronin != nil && b.woronin.ShouldBlock(from, to)
	if !blocked && b.gates != nil && (b.gates.IsIsolated(from) || b.gates.IsIsolated(to)) {
		blocked = true
	}
	if !blocked {
		return nil
	}
	if b.woronin != nil {
		for _, n := range []core.NodeId{from, to} {
			if b.woronin.IsIsolated(n) {
				b.woronin.RecordBlocked(n)
			}
		}
	}
	return core.ErrNodeIsolated
}

// Transfer validates, debits the local ledger at once through
// Ledger.Transfer (no reservation is created), records a pending transfer,
// and publishes it. The entropy cost defaults to the 2% tax rate when nil.
func (b *Bridge) Transfer(to core.NodeId, amount core.Credits, entropyCost *core.Credits, nonce uint64) (core.TransferId, error) {
	from := core.NodeAccount(b.localNode.Id)
	toAccount := core.NodeAccount(to)
	transferId := core.NewTransferId(from, toAccount, amount, nonce)

	if err := b.refuseIfIsolated(from.Node, toAccount.Node); err != nil {
		return core.TransferId{}, err
	}

	cost := core.NewCredits(0)
	if entropyCost != nil {
		cost = *entropyCost
	} else {
		cost = core.CalculateEntropyTax(amount)
	}

	record, err := b.ledger.Transfer(transferId, from, toAccount, amount, &cost, nil)
	if err != nil {
		return core.TransferId{}, err
	}

	b.pendingMu.Lock()
	b.pending[transferId] = PendingTransfer{TransferId: transferId, To: toAccount, Amount: amount, CreatedAt: core.Now()}
	b.pendingMu.Unlock()

	msg, err := b.envelope(KindCreditTransfer, CreditTransferPayload{
		TransferId: transferId, From: from, To: toAccount, Amount: record.Amount, EntropyCost: record.EntropyCost, Nonce: nonce,
	})
	if err != nil {
		return transferId, err
	}
	if err := b.publish(msg); err != nil {
		return transferId, err
	}
	return transferId, nil
}

// RecordFailure updates the peer's gate and broadcasts a FailureReport. A
// gate trip confirms the peer as failed and starts its decomposition.
func (b *Bridge) RecordFailure(peer core.NodeId, reason string) error {
	transition := b.gates.RecordFailure(peer, core.Now())
	if transition != nil && transition.ToState == core.GateClosed {
		b.woronin.Activate(peer, reason, core.Now())
		b.decomposeFailedNode(peer, core.Now())
	}
	msg, err := b.envelope(KindSeptalFailureReport, SeptalFailureReportPayload{Reporter: b.localNode.Id, Peer: peer, Reason: reason})
	if err != nil {
		return err
	}
	return b.publish(msg)
}

// decompositionContext adapts the ledger to core.DecompositionContext for
// one node whose balance the caller has already frozen, so the decomposer
// can track the frozen amount before the reclaim phases run.
type decompositionContext struct {
	ledger *core.Ledger
	frozen core.Credits
}

func (c *decompositionContext) ConfirmFailure(core.NodeId) bool { return true }

func (c *decompositionContext) FreezeNodeCredits(core.NodeId) core.Credits { return c.frozen }

func (c *decompositionContext) GetHeldReservations(node core.NodeId) []core.HeldReservation {
	held := c.ledger.HeldReservations(core.NodeAccount(node))
	out := make([]core.HeldReservation, len(held))
	for i, r := range held {
		out[i] = core.HeldReservation{Id: r.Id, Amount: r.Amount, IsActive: r.State == core.CreditStateReserved}
	}
	return out
}

// GetStoredItems always returns none: node-level storage measurement lives
// in the host, not here, so the reclaim phase never has anything to collect
// and EstimateStorageCredits is never invoked.
func (c *decompositionContext) GetStoredItems(core.NodeId) []core.StoredItem { return nil }

func (c *decompositionContext) EstimateStorageCredits(string) core.Credits { return core.ZeroCredits }

// decomposeFailedNode runs the five-phase teardown for peer once
// its gate has closed: freeze its balance and release its held reservations
// into the revival pool (no storage is collected, since GetStoredItems
// reports none), re-elect its region if it was serving as a Nexus, then mark
// the decomposition complete. A no-op
// if no Decomposer was wired in, or if peer is already being decomposed.
func (b *Bridge) decomposeFailedNode(peer core.NodeId, now core.Timestamp) {
	if b.decomposer == nil || b.decomposer.IsDecomposing(peer) {
		return
	}

	frozen := b.ledger.FreezeAccount(core.NodeAccount(peer))
	state := b.decomposer.StartDecomposition(peer, frozen, now)
	if b.pool != nil {
		b.pool.AddRecycled(frozen)
	}

	ctx := &decompositionContext{ledger: b.ledger, frozen: frozen}
	for _, ev := range core.DecomposeFailedNode(ctx, peer, now) {
		state.AddEvent(ev)
		if ev.EventType == core.EventReservationExpired && b.pool != nil {
			if id, err := strconv.ParseUint(ev.Metadata["reservation_id"], 10, 64); err == nil {
				if err := b.ledger.ReleaseToRevivalPool(core.ReservationId(id), b.pool); err != nil {
					b.log.WithError(err).WithField("reservation", id).Warn("failed to release decomposed node's reservation to revival pool")
				}
			}
		}
	}
	state.Advance() // CreditsFrozen -> ReservationsReleased
	state.Advance() // ReservationsReleased -> StateReclaimed

	if b.topology != nil && b.topology.GetRole(peer).RoleType == core.RoleNexus {
		for _, leaf := range b.topology.LeavesOf(peer) {
			b.topology.SetTopology(leaf, core.NexusTopology{Node: leaf, Role: core.NexusRole{RoleType: core.RoleLeaf}})
		}
		if err := b.TriggerElection(b.localNode.Region); err != nil {
			b.log.WithError(err).Warn("failed to trigger re-election for decomposed nexus's region")
		}
	}
	state.Advance() // StateReclaimed -> TopologyUpdated

	events, _ := b.decomposer.CompleteDecomposition(peer)
	state.Advance() // TopologyUpdated -> Complete
	b.log.WithFields(logrus.Fields{"node": peer, "events": len(events)}).Info("node decomposition complete")
}

// TriggerElection publishes an ElectionAnnouncement with a fresh
// collision-resistant ElectionId.
func (b *Bridge) TriggerElection(region string) error {
	id := newElectionId(b.localNode.Id, region, core.Now())

	b.electionMu.Lock()
	b.elections[id] = &electionRound{
		Region:      region,
		InitiatedBy: b.localNode.Id,
		Deadline:    core.Now().Add(core.Millis(b.config.ElectionInterval.Millis / 4)),
	}
	b.electionMu.Unlock()

	msg, err := b.envelope(KindElectionAnnouncement, ElectionAnnouncementPayload{ElectionId: id, Region: region, InitiatedBy: b.localNode.Id})
	if err != nil {
		return err
	}
	if err := b.publish(msg); err != nil {
		return err
	}

	b.afterFunc(core.Millis(b.config.ElectionInterval.Millis/4), func() {
		if err := b.TallyElection(id); err != nil {
			b.log.WithError(err).Warn("failed to tally election round")
		}
	})
	return nil
}

// newElectionId derives a collision-resistant id within an epoch from the
// initiator, region, and announcement time.
func newElectionId(initiator core.NodeId, region string, now core.Timestamp) ElectionId {
	h := sha256.New()
	h.Write(initiator[:])
	h.Write([]byte(region))
	binary.Write(h, binary.BigEndian, now.Millis)
	var id ElectionId
	copy(id[:], h.Sum(nil))
	return id
}

func (b *Bridge) broadcastGradient() {
	b.gradientsMu.RLock()
	g := b.localGradient
	b.gradientsMu.RUnlock()

	msg, err := b.envelope(KindGradient, GradientPayload{Node: b.localNode.Id, Gradient: g, Weight: 1.0})
	if err != nil {
		b.log.WithError(err).Warn("failed to encode gradient broadcast")
		return
	}
	if err := b.publish(msg); err != nil {
		b.log.WithError(err).Warn("failed to publish gradient broadcast")
	}
}

func (b *Bridge) broadcastCreditStateSync() {
	balance := b.ledger.Balance(core.NodeAccount(b.localNode.Id))
	msg, err := b.envelope(KindCreditStateSync, CreditStateSyncPayload{Node: b.localNode.Id, Balance: balance})
	if err != nil {
		b.log.WithError(err).Warn("failed to encode credit state sync")
		return
	}
	if err := b.publish(msg); err != nil {
		b.log.WithError(err).Warn("failed to publish credit state sync")
	}
}

// runHealingCycle probes every isolated peer and advances its gate: a
// Closed gate past the recovery timeout moves to HalfOpen, and a peer the
// local checker confirms healthy is recovered and announced so other nodes
// can lift their own isolation.
func (b *Bridge) runHealingCycle() {
	if b.gates == nil || b.healing == nil {
		return
	}
	now := core.Now()
	for _, gate := range b.gates.UnhealthyGates() {
		probe, err := b.envelope(KindSeptalHealingProbe, SeptalHealingProbePayload{Prober: b.localNode.Id, Target: gate.Node})
		if err == nil {
			if err := b.publish(probe); err != nil {
				b.log.WithError(err).WithField("peer", gate.Node).Warn("failed to publish healing probe")
			}
		}

		result := b.healing.AttemptRecovery(gate, b.woronin, b.config.SeptalGateConfig, now)
		if result != core.RecoveryRecovered {
			continue
		}
		msg, err := b.envelope(KindSeptalRecovery, SeptalRecoveryPayload{Node: gate.Node})
		if err != nil {
			continue
		}
		if err := b.publish(msg); err != nil {
			b.log.WithError(err).WithField("peer", gate.Node).Warn("failed to publish recovery announcement")
		}
	}
}

// SetLocalGradient updates the node's self-reported gradient, broadcast on
// the next tick.
func (b *Bridge) SetLocalGradient(g core.ResourceGradient) {
	b.gradientsMu.Lock()
	b.localGradient = g
	b.gradientsMu.Unlock()
}

// ElectLocal runs a synchronous election over region using the wired
// NexusElector, bypassing the gossip candidacy round. Used when the caller
// already holds fresh metrics for every region member (a PoteauMitan
// re-parenting orphans, or an operator forcing a hub), where a full
// announcement round would only add latency.
func (b *Bridge) ElectLocal(region *core.Region) (core.NodeId, bool) {
	if b.elector == nil {
		return core.NodeId{}, false
	}
	winner, ok := b.elector.Elect(region)
	if ok {
		b.electionMu.Lock()
		b.results[region.ID] = winner
		b.electionMu.Unlock()
	}
	return winner, ok
}

// QuoteDynamicPrice prices a resource request against the node's configured
// entropy weights: base scaled by the piecewise multiplier for the supplied
// disorder account.
func (b *Bridge) QuoteDynamicPrice(base core.Credits, account core.EntropyAccount) core.PriceQuote {
	return core.DynamicQuote(base, b.entropyCalc.PriceMultiplier(account.Clamped()))
}

// KnownBalance reports the most recently observed balance for a remote
// node; later observations overwrite earlier ones.
func (b *Bridge) KnownBalance(node core.NodeId) (core.Credits, bool) {
	b.balanceMu.RLock()
	defer b.balanceMu.RUnlock()
	c, ok := b.knownBalances[node]
	return c, ok
}

// PendingTransfers returns a snapshot of transfers awaiting confirmation.
func (b *Bridge) PendingTransfers() []PendingTransfer {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	out := make([]PendingTransfer, 0, len(b.pending))
	for _, p := range b.pending {
		out = append(out, p)
	}
	return out
}
