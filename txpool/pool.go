package txpool

import "sync"

// DefaultTransactions seeds the pool when no list is configured.
var DefaultTransactions = []string{
	"Alice sends 5 coins to Bob",
	"Charlie sends 3 coins to David",
	"Eve sends 7 coins to Frank",
	"Grace sends 2 coins to Heidi",
	"Ivan sends 10 coins to Judy",
	"Mallory sends 1 coin to Niaj",
	"Olivia sends 4 coins to Peggy",
	"Rupert sends 6 coins to Sybil",
	"Trent sends 8 coins to Uma",
	"Victor sends 9 coins to Walter",
	"Bob sends 2 coins to Alice",
	"David sends 1 coin to Charlie",
	"Frank sends 3 coins to Eve",
	"Heidi sends 5 coins to Grace",
	"Judy sends 4 coins to Ivan",
	"Niaj sends 6 coins to Mallory",
	"Peggy sends 2 coins to Olivia",
	"Sybil sends 7 coins to Rupert",
	"Uma sends 3 coins to Trent",
	"Walter sends 1 coin to Victor",
}

// RandSource picks uniform integers in [0, n). *rand.Rand satisfies it.
type RandSource interface {
	Intn(n int) int
}

// Pool is the set of candidate transactions offered to proposers.
type Pool struct {
	txs []string
	mux sync.RWMutex
}

// New copies txs into a pool; an empty list falls back to DefaultTransactions.
func New(txs []string) *Pool {
	if len(txs) == 0 {
		txs = DefaultTransactions
	}
	cp := make([]string, len(txs))
	copy(cp, txs)
	return &Pool{txs: cp}
}

func (p *Pool) Len() int {
	p.mux.RLock()
	defer p.mux.RUnlock()
	return len(p.txs)
}

// Sample returns n distinct pool entries drawn without replacement.
// It returns the whole pool, shuffled, when n exceeds its size.
func (p *Pool) Sample(n int, rng RandSource) []string {
	p.mux.RLock()
	work := make([]string, len(p.txs))
	copy(work, p.txs)
	p.mux.RUnlock()

	if n > len(work) {
		n = len(work)
	}
	if n < 0 {
		n = 0
	}
	// partial Fisher-Yates
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(work)-i)
		work[i], work[j] = work[j], work[i]
	}
	return work[:n]
}
