package checkout

type State string

const (
	StateIdle             State = "IDLE"
	StateAwaitingRedirect State = "AWAITING_REDIRECT"
	StateReconciling      State = "RECONCILING"
	StateFinalizedSuccess State = "FINALIZED_SUCCESS"
	StateFinalizedFailure State = "FINALIZED_FAILURE"

	// StateOrphanReturn marks a gateway return with no matching pending
	// transaction (stale bookmark, double back-navigation). Cleanup only.
	StateOrphanReturn State = "ORPHAN_RETURN"
)

var validNext = map[State]map[State]bool{
	StateIdle:             {StateAwaitingRedirect: true, StateOrphanReturn: true},
	StateAwaitingRedirect: {StateReconciling: true, StateIdle: true},
	StateReconciling:      {StateFinalizedSuccess: true, StateFinalizedFailure: true},
	StateFinalizedSuccess: {},
	StateFinalizedFailure: {},
	StateOrphanReturn:     {},
}

func CanTransition(from, to State) bool {
	return validNext[from][to]
}

func (s State) IsTerminal() bool {
	return len(validNext[s]) == 0
}

func (s State) String() string { return string(s) }
