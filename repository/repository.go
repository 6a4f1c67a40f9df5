package repository

import (
	"encoding/json"
	"errors"
	"fmt"

	"reputation-chain/db"
	"reputation-chain/models"
)

const roundPrefix = "round:"

var ErrRoundNotFound = errors.New("round not found")

// RoundRepositoryInterface abstracts the round archive from the consensus engine.
// The archive is write-mostly history; chain and reputation state are never restored from it.
type RoundRepositoryInterface interface {
	PutRound(rec *models.RoundRecord) error
	GetRound(round uint64) (*models.RoundRecord, error)
	LatestRound() (*models.RoundRecord, error)
	ListRounds(limit int) ([]*models.RoundRecord, error)
}

// RoundRepository implements the RoundRepositoryInterface using LevelDB as the storage backend
type RoundRepository struct {
	db *db.LevelDB
}

// NewRoundRepository creates and returns a new RoundRepository instance
func NewRoundRepository(db *db.LevelDB) *RoundRepository {
	return &RoundRepository{db: db}
}

// zero-padded so that key order is round order
func roundKey(round uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", roundPrefix, round))
}

// PutRound stores a round record keyed by its round number
func (r *RoundRepository) PutRound(rec *models.RoundRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.db.Put(roundKey(rec.Round), data)
}

// GetRound retrieves one round record
func (r *RoundRepository) GetRound(round uint64) (*models.RoundRecord, error) {
	data, err := r.db.Get(roundKey(round))
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}
	var rec models.RoundRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// LatestRound retrieves the record with the highest round number
func (r *RoundRepository) LatestRound() (*models.RoundRecord, error) {
	iter := r.db.NewPrefixIterator([]byte(roundPrefix))
	defer iter.Release()

	if !iter.Last() {
		if err := iter.Error(); err != nil {
			return nil, err
		}
		return nil, ErrRoundNotFound
	}
	var rec models.RoundRecord
	if err := json.Unmarshal(iter.Value(), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListRounds returns up to limit records, newest first. A non-positive limit returns all.
func (r *RoundRepository) ListRounds(limit int) ([]*models.RoundRecord, error) {
	iter := r.db.NewPrefixIterator([]byte(roundPrefix))
	defer iter.Release()

	var records []*models.RoundRecord
	for ok := iter.Last(); ok; ok = iter.Prev() {
		if limit > 0 && len(records) >= limit {
			break
		}
		var rec models.RoundRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, err
		}
		records = append(records, &rec)
	}
	return records, iter.Error()
}

// Reset drops every archived round
func (r *RoundRepository) Reset() error {
	return r.db.DeletePrefix([]byte(roundPrefix))
}
