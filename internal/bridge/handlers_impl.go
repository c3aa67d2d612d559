package bridge

import (
	"enr-network/core"
)

// SetMetrics wires the NodeMetrics source elections use to self-evaluate
// eligibility on receipt of an Announcement. Without it, the bridge still
// tracks election rounds but abstains from candidacy.
func (b *Bridge) SetMetrics(metrics core.NodeMetrics) {
	b.metricsMu.Lock()
	b.metrics = metrics
	b.metricsMu.Unlock()
}

// ElectionResults exposes the last result this node observed per region, for
// callers (e.g. the CLI) that want to display current nexus assignments.
func (b *Bridge) ElectionResults() map[string]core.NodeId {
	b.electionMu.Lock()
	defer b.electionMu.Unlock()
	out := make(map[string]core.NodeId, len(b.results))
	for k, v := range b.results {
		out[k] = v
	}
	return out
}

// HandleGradient folds an inbound gradient report into the gradients cell;
// the broadcaster on the other end is Bridge.broadcastGradient.
func (b *Bridge) HandleGradient(p GradientPayload) error {
	b.gradientsMu.Lock()
	b.gradients[p.Node] = p.Gradient
	b.gradientsMu.Unlock()
	b.topology.UpdateGradient(p.Node, p.Gradient)
	return nil
}

// HandleElectionAnnouncement opens a round locally: a receiving node
// self-evaluates its eligibility and, if eligible, broadcasts its own
// Candidacy for the round.
func (b *Bridge) HandleElectionAnnouncement(p ElectionAnnouncementPayload) error {
	b.electionMu.Lock()
	if _, exists := b.elections[p.ElectionId]; !exists {
		b.elections[p.ElectionId] = &electionRound{
			Region:      p.Region,
			InitiatedBy: p.InitiatedBy,
			Deadline:    core.Now().Add(core.Millis(b.config.ElectionInterval.Millis / 4)),
		}
	}
	b.electionMu.Unlock()

	b.metricsMu.RLock()
	metrics := b.metrics
	b.metricsMu.RUnlock()
	if metrics == nil {
		return nil
	}

	self := b.localNode.Id
	candidate := core.NexusCandidate{
		Node:             self,
		Uptime:           metrics.Uptime(self),
		Bandwidth:        metrics.Bandwidth(self),
		Reputation:       metrics.Reputation(self),
		CurrentLeafCount: metrics.ConnectionCount(self),
	}
	if !core.IsNexusEligible(candidate.Uptime, candidate.Bandwidth, candidate.Reputation) {
		return nil
	}
	candidate.ElectionScore = core.CalculateElectionScore(candidate)

	msg, err := b.envelope(KindElectionCandidacy, ElectionCandidacyPayload{ElectionId: p.ElectionId, Candidate: candidate})
	if err != nil {
		return err
	}
	return b.publish(msg)
}

// HandleElectionCandidacy records a candidacy against the matching round,
// but only if this node is the round's initiator; only the initiator
// tallies.
func (b *Bridge) HandleElectionCandidacy(p ElectionCandidacyPayload) error {
	b.electionMu.Lock()
	defer b.electionMu.Unlock()
	round, ok := b.elections[p.ElectionId]
	if !ok || round.InitiatedBy != b.localNode.Id {
		return nil
	}
	round.Candidacies = append(round.Candidacies, p)
	return nil
}

// HandleElectionVote accepts the message for forward compatibility. The
// tally scores candidacies directly, so votes carry no weight here.
func (b *Bridge) HandleElectionVote(p ElectionVotePayload) error {
	return nil
}

// HandleElectionResult applies a tallied election's outcome: the winner is
// recorded for the region.
func (b *Bridge) HandleElectionResult(p ElectionResultPayload) error {
	b.electionMu.Lock()
	b.results[p.Region] = p.Winner
	delete(b.elections, p.ElectionId)
	b.electionMu.Unlock()
	return nil
}

// TallyElection is called by the initiator once a round's deadline has
// elapsed: it picks the highest-scoring candidacy (ties broken by NodeId)
// and publishes the Result.
func (b *Bridge) TallyElection(id ElectionId) error {
	b.electionMu.Lock()
	round, ok := b.elections[id]
	if !ok || round.InitiatedBy != b.localNode.Id {
		b.electionMu.Unlock()
		return nil
	}
	candidacies := round.Candidacies
	region := round.Region
	delete(b.elections, id)
	b.electionMu.Unlock()

	if len(candidacies) == 0 {
		return nil
	}
	best := candidacies[0].Candidate
	for _, c := range candidacies[1:] {
		cand := c.Candidate
		if cand.ElectionScore > best.ElectionScore || (cand.ElectionScore == best.ElectionScore && cand.Node.Less(best.Node)) {
			best = cand
		}
	}

	msg, err := b.envelope(KindElectionResult, ElectionResultPayload{ElectionId: id, Region: region, Winner: best.Node})
	if err != nil {
		return err
	}
	return b.publish(msg)
}

// HandleCreditTransfer applies an inbound transfer to the local ledger.
// Duplicate TransferIds are rejected by Ledger.Transfer itself; the bridge
// replies with a Confirmation either way.
func (b *Bridge) HandleCreditTransfer(p CreditTransferPayload) error {
	err := b.refuseIfIsolated(p.From.Node, p.To.Node)
	if err == nil {
		cost := &p.EntropyCost
		_, err = b.ledger.Transfer(p.TransferId, p.From, p.To, p.Amount, cost, nil)
	}

	reply, encErr := b.envelope(KindCreditConfirmation, CreditConfirmationPayload{
		TransferId: p.TransferId,
		Success:    err == nil,
		Reason:     reasonOf(err),
	})
	if encErr != nil {
		return encErr
	}
	return b.publish(reply)
}

func reasonOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// HandleCreditConfirmation removes the matching pending transfer exactly
// once; a duplicate confirmation for an already-removed transfer is a no-op.
func (b *Bridge) HandleCreditConfirmation(p CreditConfirmationPayload) error {
	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()
	delete(b.pending, p.TransferId)
	return nil
}

// HandleCreditStateSync folds a peer's self-reported balance into the
// balances cell; later observations overwrite earlier ones.
func (b *Bridge) HandleCreditStateSync(p CreditStateSyncPayload) error {
	b.balanceMu.Lock()
	b.knownBalances[p.Node] = p.Balance
	b.balanceMu.Unlock()
	return nil
}

// HandleBalanceQuery answers a remote balance query for an account this node
// holds (only ever true for the local node's own account in this topology).
func (b *Bridge) HandleBalanceQuery(p CreditBalanceQueryPayload) error {
	if p.Account.Node != b.localNode.Id {
		return nil
	}
	balance := b.ledger.Balance(p.Account)
	msg, err := b.envelope(KindCreditBalanceResponse, CreditBalanceResponsePayload{Account: p.Account, Balance: balance})
	if err != nil {
		return err
	}
	return b.publish(msg)
}

// HandleBalanceResponse folds a query's answer into the balances cell.
func (b *Bridge) HandleBalanceResponse(p CreditBalanceResponsePayload) error {
	b.balanceMu.Lock()
	b.knownBalances[p.Account.Node] = p.Balance
	b.balanceMu.Unlock()
	return nil
}

// HandleFailureReport updates the reported peer's gate and, on a trip into
// Closed, starts its decomposition the same way a local RecordFailure
// observation does.
func (b *Bridge) HandleFailureReport(p SeptalFailureReportPayload) error {
	transition := b.gates.RecordFailure(p.Peer, core.Now())
	if transition != nil && transition.ToState == core.GateClosed {
		b.woronin.Activate(p.Peer, p.Reason, core.Now())
		b.decomposeFailedNode(p.Peer, core.Now())
	}
	return nil
}

// HandleIsolation records that a peer has independently observed node as
// isolated; this node mirrors the isolation locally.
func (b *Bridge) HandleIsolation(p SeptalIsolationPayload) error {
	b.woronin.Activate(p.Node, p.Reason, core.Now())
	return nil
}

// HandleHealingProbe answers a remote healing probe targeting this node.
func (b *Bridge) HandleHealingProbe(p SeptalHealingProbePayload) error {
	if p.Target != b.localNode.Id {
		return nil
	}
	status := core.HealthStatus{IsHealthy: true, LastCheck: core.Now()}
	msg, err := b.envelope(KindSeptalHealingResponse, SeptalHealingResponsePayload{Target: p.Target, Status: status})
	if err != nil {
		return err
	}
	return b.publish(msg)
}

// HandleHealingResponse folds a remote probe result into the reported
// peer's gate state machine. Unlike the local healing cycle this path is not
// rate-limited: the response carries an actual fresh probe result, so it
// drives TransitionGate directly. A peer confirmed healthy is recovered and
// announced.
func (b *Bridge) HandleHealingResponse(p SeptalHealingResponsePayload) error {
	gate := b.gates.Gate(p.Target)
	if gate.State == core.GateOpen {
		return nil
	}
	transition := core.TransitionGate(gate, b.config.SeptalGateConfig, p.Status, core.Now(), b.log)
	if transition == nil || transition.ToState != core.GateOpen {
		return nil
	}
	b.woronin.Deactivate(p.Target)
	msg, err := b.envelope(KindSeptalRecovery, SeptalRecoveryPayload{Node: p.Target})
	if err != nil {
		return err
	}
	return b.publish(msg)
}

// HandleRecovery deactivates the local Woronin body for a peer another node
// has confirmed recovered.
func (b *Bridge) HandleRecovery(p SeptalRecoveryPayload) error {
	b.woronin.Deactivate(p.Node)
	return nil
}
