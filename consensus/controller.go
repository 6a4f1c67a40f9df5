package consensus

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"reputation-chain/ledger"
	"reputation-chain/logger"
	"reputation-chain/models"
	"reputation-chain/reputation"
	"reputation-chain/selector"
	"reputation-chain/txpool"
)

// Notifier delivers round events to participants.
type Notifier interface {
	Publish(ev models.Event)
}

// Archive keeps a history of finished rounds.
type Archive interface {
	PutRound(rec *models.RoundRecord) error
}

// RandSource is the randomness used by a round. *rand.Rand satisfies it.
// It is only touched from the round goroutine.
type RandSource interface {
	Float64() float64
	Intn(n int) int
}

// Config tunes the round engine. EarlyExit closes the collection window as soon
// as the current proposal has a quorum.
type Config struct {
	RoundDuration        time.Duration
	TransactionsPerBlock int
	OnlineProbability    float64
	EarlyExit            bool
	InboxSize            int
}

func DefaultConfig() Config {
	return Config{
		RoundDuration:        30 * time.Second,
		TransactionsPerBlock: 5,
		OnlineProbability:    0.95,
		InboxSize:            1024,
	}
}

type nopNotifier struct{}

func (nopNotifier) Publish(models.Event) {}

// Controller owns the ledger, the reputation table and the round state, and
// drives one round at a time. Proposals and votes reach it as messages on the inbox.
type Controller struct {
	cfg            Config
	ledger         *ledger.Ledger
	table          *reputation.Table
	pool           *txpool.Pool
	notifier       Notifier
	archive        Archive
	rng            RandSource
	selectProposer selector.Func
	now            func() time.Time

	inbox      chan submission
	round      atomic.Uint64
	state      atomic.Int32
	collecting atomic.Bool
}

type Option func(*Controller)

func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

func WithArchive(a Archive) Option {
	return func(c *Controller) { c.archive = a }
}

func WithRand(rng RandSource) Option {
	return func(c *Controller) { c.rng = rng }
}

func WithSelector(f selector.Func) Option {
	return func(c *Controller) { c.selectProposer = f }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func NewController(cfg Config, l *ledger.Ledger, table *reputation.Table, pool *txpool.Pool, opts ...Option) *Controller {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = DefaultConfig().InboxSize
	}
	c := &Controller{
		cfg:            cfg,
		ledger:         l,
		table:          table,
		pool:           pool,
		notifier:       nopNotifier{},
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		selectProposer: selector.Select,
		now:            time.Now,
		inbox:          make(chan submission, cfg.InboxSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Ledger() *ledger.Ledger {
	return c.ledger
}

func (c *Controller) Table() *reputation.Table {
	return c.table
}

func (c *Controller) Round() uint64 {
	return c.round.Load()
}

func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
}

// Run plays rounds back to back until ctx is cancelled at process shutdown.
// A failed round never stops the loop.
func (c *Controller) Run(ctx context.Context) {
	logger.Logger.Info("Consensus loop started",
		zap.Duration("round_duration", c.cfg.RoundDuration),
		zap.Int("transactions_per_block", c.cfg.TransactionsPerBlock))

	for ctx.Err() == nil {
		end := c.playRound(ctx)

		// nobody to wait for: pace empty rounds instead of spinning
		if end.Outcome == models.OutcomeNoOnlineNodes {
			select {
			case <-ctx.Done():
			case <-time.After(c.cfg.RoundDuration):
			}
		}
	}
	logger.Logger.Info("Consensus loop stopped", zap.Uint64("last_round", c.round.Load()))
}

// Join registers a node. Joining twice returns the node's current state unchanged.
func (c *Controller) Join(nodeID string) (models.JoinResult, error) {
	if strings.TrimSpace(nodeID) == "" {
		return models.JoinResult{}, ErrEmptyNodeID
	}

	node, created := c.table.Register(nodeID)
	status := models.JoinStatusJoined
	if !created {
		status = models.JoinStatusAlreadyJoined
	}
	logger.Logger.Info("Node joined",
		zap.String("node_id", nodeID), zap.String("status", status), zap.Float64("reputation", node.Reputation))

	return models.JoinResult{
		Status:      status,
		ChainLength: c.ledger.Len(),
		Reputation:  node.Reputation,
	}, nil
}

// Status is a side-effect free snapshot of the network.
func (c *Controller) Status() models.Status {
	return models.Status{
		Timestamp:         c.now().UnixMilli(),
		TotalNodes:        c.table.Len(),
		OnlineNodes:       c.table.OnlineCount(),
		AverageReputation: c.table.Average(),
		ChainLength:       c.ledger.Len(),
		Round:             c.round.Load(),
		State:             c.State().String(),
	}
}

// SubmitProposal hands a block proposal to the running round.
// Only the round's proposer, online in the round snapshot, gets it accepted.
func (c *Controller) SubmitProposal(nodeID string, transactions []string, previousHash string) {
	txs := make([]string, len(transactions))
	copy(txs, transactions)
	c.enqueue(submission{
		kind:         kindProposal,
		nodeID:       nodeID,
		transactions: txs,
		previousHash: previousHash,
	})
}

// SubmitVote hands a vote for blockHash to the running round.
func (c *Controller) SubmitVote(nodeID string, blockHash string) {
	c.enqueue(submission{
		kind:      kindVote,
		nodeID:    nodeID,
		blockHash: blockHash,
	})
}

func (c *Controller) enqueue(s submission) {
	err := c.tryEnqueue(s)
	switch {
	case errors.Is(err, ErrInboxFull):
		logger.Logger.Warn("Submission dropped",
			zap.String("kind", s.kind.String()), zap.String("node_id", s.nodeID), zap.Error(err))
	case err != nil:
		logger.Logger.Debug("Submission dropped",
			zap.String("kind", s.kind.String()), zap.String("node_id", s.nodeID), zap.Error(err))
	}
}

func (c *Controller) tryEnqueue(s submission) error {
	if !c.collecting.Load() {
		return ErrNotCollecting
	}
	s.round = c.round.Load()
	select {
	case c.inbox <- s:
		return nil
	default:
		return ErrInboxFull
	}
}

func (c *Controller) notify(typ string, data interface{}) {
	c.notifier.Publish(models.Event{Type: typ, Data: data})
}
