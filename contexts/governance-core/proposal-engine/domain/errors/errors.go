package errors

import "errors"

var (
	ErrInvalidInput             = errors.New("invalid proposal input")
	ErrInvalidTransition        = errors.New("invalid proposal status transition")
	ErrInsufficientOptions      = errors.New("proposal needs at least two options to open")
	ErrProposalNotOpen          = errors.New("proposal is not open for voting")
	ErrOutsideVotingWindow      = errors.New("vote attempted outside the voting window")
	ErrDuplicateVote            = errors.New("user already voted on this proposal")
	ErrNotEligible              = errors.New("user holds no voting power in this organization")
	ErrOptionHasVotes           = errors.New("option with recorded votes cannot be deleted")
	ErrOptionNotDeletable       = errors.New("options can only be deleted while the proposal is a draft")
	ErrProposalNotFound         = errors.New("proposal not found")
	ErrOptionNotFound           = errors.New("proposal option not found")
	ErrOrganizationNotFound     = errors.New("organization not found")
	ErrInvalidTimeRange         = errors.New("start time must be before end time")
	ErrInvalidQuorumRequirement = errors.New("quorum requirement must be between 0 and 100")
	ErrConflict                 = errors.New("proposal state conflict")
)
