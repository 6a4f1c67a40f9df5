package routers

import (
	"reputation-chain/handlers"

	"github.com/gorilla/mux"
)

// RegisterRoutes sets up all the HTTP routes of the consensus service
func RegisterRoutes(r *mux.Router, h *handlers.Handler) {

	// Registers a node; joining twice is a no-op
	r.HandleFunc("/join", h.Join).Methods("POST")

	// Network status snapshot
	r.HandleFunc("/ping", h.Ping).Methods("GET")

	// Proposal and vote submissions for the running round
	r.HandleFunc("/proposals", h.SubmitProposal).Methods("POST")
	r.HandleFunc("/votes", h.SubmitVote).Methods("POST")

	// Ledger and reputation reads
	r.HandleFunc("/chain", h.GetChain).Methods("GET")
	r.HandleFunc("/blocks/{hash}", h.GetBlock).Methods("GET")
	r.HandleFunc("/reputations", h.GetReputations).Methods("GET")

	// Round archive
	r.HandleFunc("/rounds", h.ListRounds).Methods("GET")
	r.HandleFunc("/rounds/latest", h.GetLatestRound).Methods("GET")
	r.HandleFunc("/rounds/{round:[0-9]+}", h.GetRound).Methods("GET")

	// Round events for participants
	r.HandleFunc("/events", h.Events).Methods("GET")
}
