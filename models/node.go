package models

// Node is a registered participant of the consensus rounds.
type Node struct {
	ID         string  `json:"id"`         // unique id
	Reputation float64 `json:"reputation"` // bounded trust score
	Online     bool    `json:"online"`     // re-rolled at the start of every round
}

// JoinResult is returned to a node registering with the service
type JoinResult struct {
	Status      string  `json:"status"`
	ChainLength int     `json:"current_chain_length"`
	Reputation  float64 `json:"reputation"`
}

const (
	JoinStatusJoined        = "joined"
	JoinStatusAlreadyJoined = "already_joined"
)

// Status is a read-only snapshot of the network served by /ping
type Status struct {
	Timestamp         int64   `json:"timestamp"` // unix timestamp in ms
	TotalNodes        int     `json:"total_nodes"`
	OnlineNodes       int     `json:"online_nodes"`
	AverageReputation float64 `json:"average_reputation"`
	ChainLength       int     `json:"chain_length"`
	Round             uint64  `json:"round"`
	State             string  `json:"state"`
}
