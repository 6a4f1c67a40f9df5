package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

const (
	GenesisPreviousHash = "0"
	GenesisProposer     = "System"
)

// Block is an immutable batch of transactions proposed in a round.
type Block struct {
	Transactions []string `json:"transactions"`
	PreviousHash string   `json:"previous_hash"`
	Proposer     string   `json:"proposer"`
	Timestamp    int64    `json:"timestamp"` // unix timestamp in ms
	Nonce        int      `json:"nonce"`
	Hash         string   `json:"hash"`
}

// hashed fields, in a fixed order
type blockContent struct {
	Transactions []string `json:"transactions"`
	PreviousHash string   `json:"previous_hash"`
	Proposer     string   `json:"proposer"`
	Timestamp    int64    `json:"timestamp"`
	Nonce        int      `json:"nonce"`
}

// NewBlock copies the transactions and computes the block hash.
func NewBlock(transactions []string, previousHash, proposer string, timestamp int64, nonce int) *Block {
	txs := make([]string, len(transactions))
	copy(txs, transactions)

	b := &Block{
		Transactions: txs,
		PreviousHash: previousHash,
		Proposer:     proposer,
		Timestamp:    timestamp,
		Nonce:        nonce,
	}
	b.Hash = b.ComputeHash()
	return b
}

// ComputeHash returns the hex SHA-256 digest of the block content.
func (b *Block) ComputeHash() string {
	data, err := json.Marshal(blockContent{
		Transactions: b.Transactions,
		PreviousHash: b.PreviousHash,
		Proposer:     b.Proposer,
		Timestamp:    b.Timestamp,
		Nonce:        b.Nonce,
	})
	if err != nil {
		// strings and integers always marshal
		panic(err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
