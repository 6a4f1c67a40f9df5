package models

// RoundOutcome is the result of a finished round.
type RoundOutcome string

const (
	OutcomeCommitted     RoundOutcome = "committed"
	OutcomeInvalidBlock  RoundOutcome = "invalid_block"
	OutcomeNoConsensus   RoundOutcome = "no_consensus"
	OutcomeNoProposal    RoundOutcome = "no_proposal"
	OutcomeNoOnlineNodes RoundOutcome = "no_online_nodes"
)

// Success reports whether the round appended a block.
func (o RoundOutcome) Success() bool {
	return o == OutcomeCommitted
}

// Event types pushed to participants.
const (
	EventRoundStart       = "round_start"
	EventBlockProposal    = "new_block_proposal"
	EventRoundEnd         = "round_end"
	EventReputationUpdate = "reputation_update"
)

// Event is the envelope of every outbound notification.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type RoundStart struct {
	Round                 uint64   `json:"round"`
	Proposer              string   `json:"proposer"`
	AvailableTransactions []string `json:"available_transactions"`
	CurrentChainLength    int      `json:"current_chain_length"`
}

type BlockProposal struct {
	Round        uint64   `json:"round"`
	Proposer     string   `json:"proposer"`
	BlockHash    string   `json:"block_hash"`
	Transactions []string `json:"transactions"`
}

// WinningBlock describes the block committed by a successful round
type WinningBlock struct {
	Hash         string   `json:"hash"`
	Proposer     string   `json:"proposer"`
	Transactions []string `json:"transactions"`
}

type RoundEnd struct {
	Round          uint64        `json:"round"`
	Outcome        RoundOutcome  `json:"outcome"`
	Success        bool          `json:"success"`
	Error          string        `json:"error,omitempty"`
	WinningBlock   *WinningBlock `json:"winning_block,omitempty"`
	NewChainLength int           `json:"new_chain_length"`
}

type ReputationUpdate struct {
	Round       uint64             `json:"round"`
	Reputations map[string]float64 `json:"reputations"`
}

// RoundRecord is the archived summary of a finished round.
type RoundRecord struct {
	Round       uint64             `json:"round"`
	Outcome     RoundOutcome       `json:"outcome"`
	Error       string             `json:"error,omitempty"`
	Proposer    string             `json:"proposer,omitempty"`
	BlockHash   string             `json:"block_hash,omitempty"`
	ChainLength int                `json:"chain_length"`
	Votes       map[string]float64 `json:"votes,omitempty"`
	Reputations map[string]float64 `json:"reputations"`
	StartedAt   int64              `json:"started_at"` // unix timestamp in ms
	EndedAt     int64              `json:"ended_at"`   // unix timestamp in ms
}
