// Package lifecycle holds the proposal state machine: the closed set of
// status transitions and the pure legality predicates for every operation.
// Nothing here mutates state; callers apply the transition as a single
// conditional write so validation and mutation cannot observe different
// proposals.
package lifecycle

import (
	"time"

	"agora/contexts/governance-core/proposal-engine/domain/entities"
	domainerrors "agora/contexts/governance-core/proposal-engine/domain/errors"
)

// transitions is the only allowed edge set. Statuses are monotonic:
// draft -> open -> closed -> finalized.
var transitions = map[entities.ProposalStatus]entities.ProposalStatus{
	entities.ProposalStatusDraft:  entities.ProposalStatusOpen,
	entities.ProposalStatusOpen:   entities.ProposalStatusClosed,
	entities.ProposalStatusClosed: entities.ProposalStatusFinalized,
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from entities.ProposalStatus, to entities.ProposalStatus) bool {
	next, ok := transitions[from]
	return ok && next == to
}

// ValidateTransition returns ErrInvalidTransition for any edge outside the
// allowed set.
func ValidateTransition(from entities.ProposalStatus, to entities.ProposalStatus) error {
	if !CanTransition(from, to) {
		return domainerrors.ErrInvalidTransition
	}
	return nil
}

// ValidateCanOpen checks draft status and the two-option minimum. The caller
// captures the eligible-power snapshot atomically with the status write.
func ValidateCanOpen(proposal entities.Proposal, optionCount int) error {
	if err := ValidateTransition(proposal.Status, entities.ProposalStatusOpen); err != nil {
		return err
	}
	if optionCount < 2 {
		return domainerrors.ErrInsufficientOptions
	}
	return nil
}

// ValidateCanClose succeeds only from open. The caller computes and persists
// the tally atomically with the status write.
func ValidateCanClose(proposal entities.Proposal) error {
	return ValidateTransition(proposal.Status, entities.ProposalStatusClosed)
}

// ValidateCanFinalize succeeds only from closed. Finalize is an archival
// marker; no result field is recomputed.
func ValidateCanFinalize(proposal entities.Proposal) error {
	return ValidateTransition(proposal.Status, entities.ProposalStatusFinalized)
}

// ValidateCanUpdateMetadata allows edits while the proposal is draft or open.
func ValidateCanUpdateMetadata(proposal entities.Proposal) error {
	if proposal.Status != entities.ProposalStatusDraft && proposal.Status != entities.ProposalStatusOpen {
		return domainerrors.ErrInvalidTransition
	}
	return nil
}

// ValidateCanAddOption allows new options while the proposal is draft or open.
func ValidateCanAddOption(proposal entities.Proposal) error {
	if proposal.Status != entities.ProposalStatusDraft && proposal.Status != entities.ProposalStatusOpen {
		return domainerrors.ErrInvalidTransition
	}
	return nil
}

// ValidateCanDeleteOption allows deletion only while draft and only for
// options nobody voted on.
func ValidateCanDeleteOption(proposal entities.Proposal, optionHasVotes bool) error {
	if proposal.Status != entities.ProposalStatusDraft {
		return domainerrors.ErrOptionNotDeletable
	}
	if optionHasVotes {
		return domainerrors.ErrOptionHasVotes
	}
	return nil
}

// ValidateCanVote checks open status, the one-vote-per-user rule, and the
// optional voting window: startAt <= now < endAt.
func ValidateCanVote(proposal entities.Proposal, now time.Time, userAlreadyVoted bool) error {
	if proposal.Status != entities.ProposalStatusOpen {
		return domainerrors.ErrProposalNotOpen
	}
	if userAlreadyVoted {
		return domainerrors.ErrDuplicateVote
	}
	if proposal.StartAt != nil && now.Before(proposal.StartAt.UTC()) {
		return domainerrors.ErrOutsideVotingWindow
	}
	if proposal.EndAt != nil && !now.Before(proposal.EndAt.UTC()) {
		return domainerrors.ErrOutsideVotingWindow
	}
	return nil
}
