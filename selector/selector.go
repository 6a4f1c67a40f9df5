package selector

import (
	"reputation-chain/models"
)

// RandSource draws uniform values in [0, 1). *rand.Rand satisfies it.
type RandSource interface {
	Float64() float64
}

// Func picks a proposer among candidates; ok is false when nobody can be picked.
type Func func(candidates []models.Node, rng RandSource) (id string, ok bool)

// Select is a roulette-wheel choice proportional to reputation.
// Candidates are scanned in the given order; nodes without positive weight are never picked.
func Select(candidates []models.Node, rng RandSource) (string, bool) {
	var total float64
	for _, n := range candidates {
		if n.Reputation > 0 {
			total += n.Reputation
		}
	}
	if total <= 0 {
		return "", false
	}

	p := rng.Float64() * total
	acc := 0.0
	last := ""
	for _, n := range candidates {
		if n.Reputation <= 0 {
			continue
		}
		acc += n.Reputation
		last = n.ID
		if acc >= p {
			return n.ID, true
		}
	}
	// rounding left p just above the final sum
	return last, true
}

// Online filters candidates down to nodes flagged online, keeping order.
func Online(nodes []models.Node) []models.Node {
	res := make([]models.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Online {
			res = append(res, n)
		}
	}
	return res
}
