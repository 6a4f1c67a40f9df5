package ledger

import (
	"errors"
	"fmt"
	"sync"

	"reputation-chain/models"
)

var (
	ErrTransactionCount = errors.New("wrong number of transactions")
	ErrPreviousHash     = errors.New("previous hash does not match chain tip")
)

// Ledger is the append-only chain of accepted blocks, starting at a fixed genesis block.
type Ledger struct {
	transactionsPerBlock int
	blocks               []*models.Block
	byHash               map[string]*models.Block
	mux                  sync.RWMutex
}

// Genesis returns the fixed first block of every ledger
func Genesis() *models.Block {
	return models.NewBlock([]string{"Genesis Block"}, models.GenesisPreviousHash, models.GenesisProposer, 0, 0)
}

func New(transactionsPerBlock int) *Ledger {
	genesis := Genesis()
	return &Ledger{
		transactionsPerBlock: transactionsPerBlock,
		blocks:               []*models.Block{genesis},
		byHash:               map[string]*models.Block{genesis.Hash: genesis},
	}
}

// Validate reports why a candidate block cannot extend the chain, or nil.
func (l *Ledger) Validate(candidate *models.Block) error {
	if candidate == nil {
		return errors.New("no block")
	}
	l.mux.RLock()
	defer l.mux.RUnlock()

	if len(candidate.Transactions) != l.transactionsPerBlock {
		return fmt.Errorf("%w: got %d, want %d", ErrTransactionCount, len(candidate.Transactions), l.transactionsPerBlock)
	}
	if tip := l.blocks[len(l.blocks)-1]; candidate.PreviousHash != tip.Hash {
		return fmt.Errorf("%w: got %q, want %q", ErrPreviousHash, candidate.PreviousHash, tip.Hash)
	}
	return nil
}

func (l *Ledger) IsValid(candidate *models.Block) bool {
	return l.Validate(candidate) == nil
}

// Append adds a block at the tail. Callers validate first; there is no rollback.
func (l *Ledger) Append(block *models.Block) {
	l.mux.Lock()
	defer l.mux.Unlock()

	l.blocks = append(l.blocks, block)
	l.byHash[block.Hash] = block
}

func (l *Ledger) Last() *models.Block {
	l.mux.RLock()
	defer l.mux.RUnlock()
	return l.blocks[len(l.blocks)-1]
}

func (l *Ledger) Len() int {
	l.mux.RLock()
	defer l.mux.RUnlock()
	return len(l.blocks)
}

// Blocks returns a copy of the chain, genesis first
func (l *Ledger) Blocks() []*models.Block {
	l.mux.RLock()
	defer l.mux.RUnlock()

	res := make([]*models.Block, len(l.blocks))
	copy(res, l.blocks)
	return res
}

func (l *Ledger) BlockByHash(hash string) (*models.Block, bool) {
	l.mux.RLock()
	defer l.mux.RUnlock()
	b, ok := l.byHash[hash]
	return b, ok
}

func (l *Ledger) TransactionsPerBlock() int {
	return l.transactionsPerBlock
}
