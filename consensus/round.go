package consensus

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"reputation-chain/logger"
	"reputation-chain/models"
	"reputation-chain/reputation"
	"reputation-chain/selector"
)

const maxNonce = 100000

type submissionKind int

const (
	kindProposal submissionKind = iota
	kindVote
)

func (k submissionKind) String() string {
	if k == kindProposal {
		return "proposal"
	}
	return "vote"
}

// submission is a proposal or vote message, stamped with the round it was sent in.
type submission struct {
	kind         submissionKind
	round        uint64
	nodeID       string
	transactions []string
	previousHash string
	blockHash    string
}

type castVote struct {
	hash   string
	weight float64
}

// roundState is owned by the round goroutine and discarded when the round ends.
type roundState struct {
	round       uint64
	order       []string
	nodes       map[string]models.Node // point-in-time copy taken after the online roll
	onlineTotal float64
	proposer    string
	proposal    *models.Block
	votes       map[string]castVote
}

func newRoundState(round uint64) *roundState {
	return &roundState{
		round: round,
		nodes: make(map[string]models.Node),
		votes: make(map[string]castVote),
	}
}

func (rs *roundState) load(snapshot []models.Node) {
	for _, n := range snapshot {
		rs.order = append(rs.order, n.ID)
		rs.nodes[n.ID] = n
		if n.Online {
			rs.onlineTotal += n.Reputation
		}
	}
}

func (rs *roundState) snapshot() []models.Node {
	res := make([]models.Node, 0, len(rs.order))
	for _, id := range rs.order {
		res = append(res, rs.nodes[id])
	}
	return res
}

// tally sums the weights of the votes cast for the current proposal, in snapshot order.
func (rs *roundState) tally() (float64, []string) {
	if rs.proposal == nil {
		return 0, nil
	}
	var sum float64
	var voters []string
	for _, id := range rs.order {
		if v, ok := rs.votes[id]; ok && v.hash == rs.proposal.Hash {
			sum += v.weight
			voters = append(voters, id)
		}
	}
	return sum, voters
}

// QuorumReached is a strict majority of the online reputation.
func QuorumReached(castWeight, onlineTotal float64) bool {
	return castWeight > onlineTotal/2
}

// playRound runs one full round and always ends by broadcasting the reputation table.
func (c *Controller) playRound(ctx context.Context) models.RoundEnd {
	round := c.round.Add(1)
	startedAt := c.now()

	rs, end := c.runRoundSafely(ctx, round)

	c.setState(StateBroadcastingResult)
	c.notify(models.EventRoundEnd, end)
	reps := c.table.Reputations()
	c.notify(models.EventReputationUpdate, models.ReputationUpdate{Round: round, Reputations: reps})
	c.archiveRound(rs, end, reps, startedAt)
	c.setState(StateIdle)

	logger.Logger.Info("Round finished",
		zap.Uint64("round", round),
		zap.String("outcome", string(end.Outcome)),
		zap.Int("chain_length", end.NewChainLength),
		zap.Duration("elapsed", c.now().Sub(startedAt)))
	return end
}

// runRoundSafely turns a panic inside the round into a rejected round.
func (c *Controller) runRoundSafely(ctx context.Context, round uint64) (rs *roundState, end models.RoundEnd) {
	rs = newRoundState(round)
	defer func() {
		if r := recover(); r != nil {
			c.collecting.Store(false)
			logger.Logger.Error("Round aborted", zap.Uint64("round", round), zap.Any("panic", r))
			c.table.Adjust("", nil, reputation.NoConsensus)
			end = c.failure(round, models.OutcomeNoConsensus, fmt.Sprintf("round aborted: %v", r))
		}
	}()
	return rs, c.runRound(ctx, rs)
}

func (c *Controller) runRound(ctx context.Context, rs *roundState) models.RoundEnd {
	c.setState(StateSamplingAvailability)
	c.table.RollOnlineStatus(c.cfg.OnlineProbability, c.rng)
	rs.load(c.table.Snapshot())

	c.setState(StateSelectingProposer)
	proposer, ok := c.selectProposer(selector.Online(rs.snapshot()), c.rng)
	if !ok {
		return c.failure(rs.round, models.OutcomeNoOnlineNodes, "No online nodes available to propose a block")
	}
	rs.proposer = proposer

	c.setState(StateAwaitingProposal)
	available := c.pool.Sample(2*c.cfg.TransactionsPerBlock, c.rng)
	c.collecting.Store(true)
	c.notify(models.EventRoundStart, models.RoundStart{
		Round:                 rs.round,
		Proposer:              proposer,
		AvailableTransactions: available,
		CurrentChainLength:    c.ledger.Len(),
	})
	logger.Logger.Info("Round started",
		zap.Uint64("round", rs.round),
		zap.String("proposer", proposer),
		zap.Float64("online_reputation", rs.onlineTotal))

	c.collect(ctx, rs)
	c.collecting.Store(false)

	if ctx.Err() != nil {
		return c.failure(rs.round, models.OutcomeNoConsensus, "shutting down")
	}

	c.setState(StateEvaluatingConsensus)
	return c.settle(rs)
}

// collect applies inbox submissions until the window closes.
func (c *Controller) collect(ctx context.Context, rs *roundState) {
	timer := time.NewTimer(c.cfg.RoundDuration)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case s := <-c.inbox:
			if err := c.apply(rs, s); err != nil {
				logger.Logger.Debug("Submission dropped",
					zap.Uint64("round", rs.round),
					zap.String("kind", s.kind.String()),
					zap.String("node_id", s.nodeID),
					zap.Error(err))
				continue
			}
			if c.cfg.EarlyExit {
				if cast, _ := rs.tally(); QuorumReached(cast, rs.onlineTotal) {
					logger.Logger.Info("Quorum reached, closing window early", zap.Uint64("round", rs.round))
					return
				}
			}
		}
	}
}

func (c *Controller) apply(rs *roundState, s submission) error {
	if s.round != rs.round {
		if s.kind == kindVote {
			return ErrStaleOrMismatchedVote
		}
		return ErrStaleSubmission
	}
	if _, ok := c.table.Get(s.nodeID); !ok {
		return ErrUnknownNode
	}
	if s.kind == kindProposal {
		return c.acceptProposal(rs, s)
	}
	return c.acceptVote(rs, s)
}

func (c *Controller) acceptProposal(rs *roundState, s submission) error {
	if s.nodeID != rs.proposer {
		return fmt.Errorf("%w: %s is not the proposer of round %d", ErrIneligibleProposer, s.nodeID, rs.round)
	}
	if n, ok := rs.nodes[s.nodeID]; !ok || !n.Online {
		return fmt.Errorf("%w: %s is offline", ErrIneligibleProposer, s.nodeID)
	}

	block := models.NewBlock(s.transactions, s.previousHash, s.nodeID, c.now().UnixMilli(), c.rng.Intn(maxNonce)+1)
	if rs.proposal != nil {
		logger.Logger.Info("Proposal replaced",
			zap.Uint64("round", rs.round), zap.String("old_hash", rs.proposal.Hash), zap.String("new_hash", block.Hash))
	}
	rs.proposal = block
	c.setState(StateAwaitingVotes)

	c.notify(models.EventBlockProposal, models.BlockProposal{
		Round:        rs.round,
		Proposer:     block.Proposer,
		BlockHash:    block.Hash,
		Transactions: block.Transactions,
	})
	return nil
}

func (c *Controller) acceptVote(rs *roundState, s submission) error {
	n, ok := rs.nodes[s.nodeID]
	if !ok || !n.Online {
		return ErrOfflineNode
	}
	if rs.proposal == nil || s.blockHash != rs.proposal.Hash {
		return ErrStaleOrMismatchedVote
	}
	// weight comes from the snapshot; a repeat vote overwrites
	rs.votes[s.nodeID] = castVote{hash: s.blockHash, weight: n.Reputation}
	return nil
}

// settle evaluates the quorum, commits or rejects the proposal and adjusts reputations.
func (c *Controller) settle(rs *roundState) models.RoundEnd {
	if rs.proposal == nil {
		c.setState(StateRejecting)
		c.table.Adjust(rs.proposer, nil, reputation.NoConsensus)
		return c.failure(rs.round, models.OutcomeNoProposal, "No block proposed")
	}

	cast, voters := rs.tally()
	quorum := QuorumReached(cast, rs.onlineTotal)
	invalid := c.ledger.Validate(rs.proposal)
	proposer := rs.proposal.Proposer

	if quorum && invalid == nil {
		c.setState(StateCommitting)
		c.ledger.Append(rs.proposal)
		c.table.Adjust(proposer, voters, reputation.ConsensusAndValid)
		return models.RoundEnd{
			Round:   rs.round,
			Outcome: models.OutcomeCommitted,
			Success: true,
			WinningBlock: &models.WinningBlock{
				Hash:         rs.proposal.Hash,
				Proposer:     proposer,
				Transactions: rs.proposal.Transactions,
			},
			NewChainLength: c.ledger.Len(),
		}
	}

	c.setState(StateRejecting)
	if invalid != nil {
		c.table.Adjust(proposer, voters, reputation.InvalidBlock)
		return c.failure(rs.round, models.OutcomeInvalidBlock, "Invalid block proposed: "+invalid.Error())
	}
	c.table.Adjust(proposer, voters, reputation.NoConsensus)
	return c.failure(rs.round, models.OutcomeNoConsensus,
		fmt.Sprintf("No consensus reached: %.2f of %.2f online reputation voted", cast, rs.onlineTotal))
}

func (c *Controller) failure(round uint64, outcome models.RoundOutcome, reason string) models.RoundEnd {
	return models.RoundEnd{
		Round:          round,
		Outcome:        outcome,
		Error:          reason,
		NewChainLength: c.ledger.Len(),
	}
}

func (c *Controller) archiveRound(rs *roundState, end models.RoundEnd, reps map[string]float64, startedAt time.Time) {
	if c.archive == nil {
		return
	}
	rec := &models.RoundRecord{
		Round:       end.Round,
		Outcome:     end.Outcome,
		Error:       end.Error,
		Proposer:    rs.proposer,
		ChainLength: end.NewChainLength,
		Reputations: reps,
		StartedAt:   startedAt.UnixMilli(),
		EndedAt:     c.now().UnixMilli(),
	}
	if rs.proposal != nil {
		rec.BlockHash = rs.proposal.Hash
		_, voters := rs.tally()
		rec.Votes = make(map[string]float64, len(voters))
		for _, id := range voters {
			rec.Votes[id] = rs.votes[id].weight
		}
	}
	if err := c.archive.PutRound(rec); err != nil {
		logger.Logger.Warn("Failed archiving round", zap.Uint64("round", end.Round), zap.Error(err))
	}
}
