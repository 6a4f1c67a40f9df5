package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"reputation-chain/consensus"
	"reputation-chain/logger"
	"reputation-chain/models"
	"reputation-chain/repository"
	"reputation-chain/transport"
)

// Handler contains the HTTP handlers for the consensus API endpoints
type Handler struct {
	Controller *consensus.Controller
	Hub        *transport.Hub
	Rounds     repository.RoundRepositoryInterface
}

// NewHandler creates and returns a new Handler instance
func NewHandler(c *consensus.Controller, hub *transport.Hub, rounds repository.RoundRepositoryInterface) *Handler {
	return &Handler{Controller: c, Hub: hub, Rounds: rounds}
}

type joinRequest struct {
	NodeID string `json:"node_id"`
}

type proposalRequest struct {
	NodeID       string   `json:"node_id"`
	Transactions []string `json:"transactions"`
	PreviousHash string   `json:"previous_hash"`
}

type voteRequest struct {
	NodeID    string `json:"node_id"`
	BlockHash string `json:"block_hash"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Logger.Warn("Failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Join handles POST requests registering a node
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Logger.Error("Failed to decode join request", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	res, err := h.Controller.Join(req.NodeID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Ping handles GET requests for the network status snapshot
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Controller.Status())
}

// SubmitProposal forwards a block proposal to the running round.
// The reply is only an acknowledgment: ineligible proposals are dropped silently.
func (h *Handler) SubmitProposal(w http.ResponseWriter, r *http.Request) {
	var req proposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Logger.Error("Failed to decode proposal", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	h.Controller.SubmitProposal(req.NodeID, req.Transactions, req.PreviousHash)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "received"})
}

// SubmitVote forwards a vote to the running round; the reply is only an acknowledgment
func (h *Handler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Logger.Error("Failed to decode vote", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	h.Controller.SubmitVote(req.NodeID, req.BlockHash)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "received"})
}

// GetChain returns every block, genesis first
func (h *Handler) GetChain(w http.ResponseWriter, r *http.Request) {
	blocks := h.Controller.Ledger().Blocks()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"length": len(blocks),
		"blocks": blocks,
	})
}

func (h *Handler) GetBlock(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]
	block, ok := h.Controller.Ledger().BlockByHash(hash)
	if !ok {
		writeError(w, http.StatusNotFound, "block not found")
		return
	}
	writeJSON(w, http.StatusOK, block)
}

func (h *Handler) GetReputations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Controller.Table().Snapshot())
}

// ListRounds returns archived rounds, newest first, bounded by ?limit= (default 20)
func (h *Handler) ListRounds(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	recs, err := h.Rounds.ListRounds(limit)
	if err != nil {
		logger.Logger.Error("Failed to list rounds", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []*models.RoundRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *Handler) GetLatestRound(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Rounds.LatestRound()
	h.writeRound(w, rec, err)
}

func (h *Handler) GetRound(w http.ResponseWriter, r *http.Request) {
	round, err := strconv.ParseUint(mux.Vars(r)["round"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid round number")
		return
	}
	rec, err := h.Rounds.GetRound(round)
	h.writeRound(w, rec, err)
}

func (h *Handler) writeRound(w http.ResponseWriter, rec *models.RoundRecord, err error) {
	switch {
	case errors.Is(err, repository.ErrRoundNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		logger.Logger.Error("Failed to read round", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, rec)
	}
}
