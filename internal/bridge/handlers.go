package bridge

// Message dispatch is expressed as tagged-union payloads (messages.go) with
// exhaustive case analysis in Bridge.handleMessage; the four handler
// interfaces below name the capability sets. Bridge implements all four
// against its own state and handleMessage dispatches to its own methods;
// NewBridge takes no handler argument, so a family cannot be swapped out.
type GradientHandler interface {
	HandleGradient(GradientPayload) error
}

type ElectionHandler interface {
	HandleElectionAnnouncement(ElectionAnnouncementPayload) error
	HandleElectionCandidacy(ElectionCandidacyPayload) error
	HandleElectionVote(ElectionVotePayload) error
	HandleElectionResult(ElectionResultPayload) error
}

type CreditHandler interface {
	HandleCreditTransfer(CreditTransferPayload) error
	HandleCreditConfirmation(CreditConfirmationPayload) error
	HandleCreditStateSync(CreditStateSyncPayload) error
	HandleBalanceQuery(CreditBalanceQueryPayload) error
	HandleBalanceResponse(CreditBalanceResponsePayload) error
}

type SeptalHandler interface {
	HandleFailureReport(SeptalFailureReportPayload) error
	HandleIsolation(SeptalIsolationPayload) error
	HandleHealingProbe(SeptalHealingProbePayload) error
	HandleHealingResponse(SeptalHealingResponsePayload) error
	HandleRecovery(SeptalRecoveryPayload) error
}

// Handlers composes the four families into one capability set; Bridge
// satisfies it.
type Handlers interface {
	GradientHandler
	ElectionHandler
	CreditHandler
	SeptalHandler
}
