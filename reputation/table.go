package reputation

import (
	"math"
	"sync"

	"reputation-chain/models"
)

// Outcome selects the reward or penalty rule applied by Adjust.
type Outcome int

const (
	ConsensusAndValid Outcome = iota
	InvalidBlock
	NoConsensus
)

func (o Outcome) String() string {
	switch o {
	case ConsensusAndValid:
		return "consensus_and_valid"
	case InvalidBlock:
		return "invalid_block"
	case NoConsensus:
		return "no_consensus"
	}
	return "unknown"
}

// Params holds the reputation model constants.
type Params struct {
	Initial float64
	Min     float64
	Max     float64
	Decay   float64
	// Share of Initial gained or lost by the proposer and by each voter.
	ProposerShare float64
	VoterShare    float64
}

func DefaultParams() Params {
	return Params{
		Initial:       100,
		Min:           1,
		Max:           1000,
		Decay:         0.99,
		ProposerShare: 0.10,
		VoterShare:    0.05,
	}
}

// RandSource draws uniform values in [0, 1). *rand.Rand satisfies it.
type RandSource interface {
	Float64() float64
}

// Table maps node identities to their reputation and online flag.
type Table struct {
	params Params
	nodes  map[string]*models.Node
	order  []string // join order
	mux    sync.RWMutex
}

func NewTable(params Params) *Table {
	return &Table{
		params: params,
		nodes:  make(map[string]*models.Node),
	}
}

// Register adds a node with the initial reputation, online.
// Re-registering an existing node leaves it unchanged and returns created=false.
func (t *Table) Register(id string) (models.Node, bool) {
	t.mux.Lock()
	defer t.mux.Unlock()

	if n, ok := t.nodes[id]; ok {
		return *n, false
	}
	n := &models.Node{ID: id, Reputation: t.params.Initial, Online: true}
	t.nodes[id] = n
	t.order = append(t.order, id)
	return *n, true
}

// RollOnlineStatus independently sets every node online with the given probability.
func (t *Table) RollOnlineStatus(probability float64, rng RandSource) {
	t.mux.Lock()
	defer t.mux.Unlock()

	for _, id := range t.order {
		t.nodes[id].Online = rng.Float64() < probability
	}
}

// Adjust applies the outcome's reward or penalty to the proposer and voters,
// then decays and clamps every registered node.
func (t *Table) Adjust(proposer string, voters []string, outcome Outcome) {
	t.mux.Lock()
	defer t.mux.Unlock()

	var sign float64
	switch outcome {
	case ConsensusAndValid:
		sign = 1
	case InvalidBlock:
		sign = -1
	}

	if sign != 0 {
		if n, ok := t.nodes[proposer]; ok {
			n.Reputation += sign * t.params.Initial * t.params.ProposerShare
		}
		for _, id := range voters {
			if n, ok := t.nodes[id]; ok {
				n.Reputation += sign * t.params.Initial * t.params.VoterShare
			}
		}
	}

	for _, n := range t.nodes {
		n.Reputation = t.clamp(n.Reputation * t.params.Decay)
	}
}

func (t *Table) clamp(v float64) float64 {
	return math.Max(t.params.Min, math.Min(t.params.Max, v))
}

// TotalReputation sums the reputation of nodes matching pred; a nil pred matches all.
func (t *Table) TotalReputation(pred func(models.Node) bool) float64 {
	t.mux.RLock()
	defer t.mux.RUnlock()

	var total float64
	for _, id := range t.order {
		n := t.nodes[id]
		if pred == nil || pred(*n) {
			total += n.Reputation
		}
	}
	return total
}

// IsOnline is a TotalReputation predicate.
func IsOnline(n models.Node) bool {
	return n.Online
}

// Snapshot returns copies of every node in join order.
func (t *Table) Snapshot() []models.Node {
	t.mux.RLock()
	defer t.mux.RUnlock()

	res := make([]models.Node, 0, len(t.order))
	for _, id := range t.order {
		res = append(res, *t.nodes[id])
	}
	return res
}

func (t *Table) Get(id string) (models.Node, bool) {
	t.mux.RLock()
	defer t.mux.RUnlock()

	n, ok := t.nodes[id]
	if !ok {
		return models.Node{}, false
	}
	return *n, true
}

// Reputations returns the node id to reputation mapping.
func (t *Table) Reputations() map[string]float64 {
	t.mux.RLock()
	defer t.mux.RUnlock()

	res := make(map[string]float64, len(t.nodes))
	for id, n := range t.nodes {
		res[id] = n.Reputation
	}
	return res
}

func (t *Table) Len() int {
	t.mux.RLock()
	defer t.mux.RUnlock()
	return len(t.nodes)
}

func (t *Table) OnlineCount() int {
	t.mux.RLock()
	defer t.mux.RUnlock()

	count := 0
	for _, n := range t.nodes {
		if n.Online {
			count++
		}
	}
	return count
}

// Average returns the mean reputation over all registered nodes, 0 when empty
func (t *Table) Average() float64 {
	t.mux.RLock()
	defer t.mux.RUnlock()

	if len(t.nodes) == 0 {
		return 0
	}
	var total float64
	for _, n := range t.nodes {
		total += n.Reputation
	}
	return total / float64(len(t.nodes))
}
