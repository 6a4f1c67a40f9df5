package consensus

import "errors"

// Submission errors. None of them reaches the submitting node: the submission is dropped and logged.
var (
	ErrUnknownNode           = errors.New("unknown node")
	ErrIneligibleProposer    = errors.New("ineligible proposer")
	ErrOfflineNode           = errors.New("node is offline this round")
	ErrStaleOrMismatchedVote = errors.New("vote does not reference the current proposal")
	ErrStaleSubmission       = errors.New("submission belongs to an earlier round")
	ErrNotCollecting         = errors.New("no collection window open")
	ErrInboxFull             = errors.New("submission inbox full")
)

var ErrEmptyNodeID = errors.New("node_id is required")
