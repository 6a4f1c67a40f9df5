package consensus

// State is the phase the round controller is in.
type State int32

const (
	StateIdle State = iota
	StateSamplingAvailability
	StateSelectingProposer
	StateAwaitingProposal
	StateAwaitingVotes
	StateEvaluatingConsensus
	StateCommitting
	StateRejecting
	StateBroadcastingResult
)

var stateNames = [...]string{
	StateIdle:                 "idle",
	StateSamplingAvailability: "sampling_availability",
	StateSelectingProposer:    "selecting_proposer",
	StateAwaitingProposal:     "awaiting_proposal",
	StateAwaitingVotes:        "awaiting_votes",
	StateEvaluatingConsensus:  "evaluating_consensus",
	StateCommitting:           "committing",
	StateRejecting:            "rejecting",
	StateBroadcastingResult:   "broadcasting_result",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Collecting reports whether submissions are accepted in this state.
func (s State) Collecting() bool {
	return s == StateAwaitingProposal || s == StateAwaitingVotes
}
