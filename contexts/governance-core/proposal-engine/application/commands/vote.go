package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "agora/contexts/governance-core/proposal-engine/application"
	"agora/contexts/governance-core/proposal-engine/domain/entities"
	domainerrors "agora/contexts/governance-core/proposal-engine/domain/errors"
	"agora/contexts/governance-core/proposal-engine/domain/lifecycle"
	"agora/contexts/governance-core/proposal-engine/domain/votingpower"
	"agora/contexts/governance-core/proposal-engine/ports"
)

// CastVoteCommand is the write-model input for vote casting.
type CastVoteCommand struct {
	ProposalID string
	UserID     string
	OptionID   string
}

// VoteUseCase accepts votes. Voting power is evaluated from the voter's
// current balances at cast time, not from the open-time snapshot: power can
// legitimately differ across votes cast at different moments within the
// same proposal. Votes are immutable once cast; there is no retraction.
type VoteUseCase struct {
	Proposals ports.ProposalRepository
	Votes     ports.VoteRepository
	Balances  ports.BalanceProvider
	Clock     ports.Clock
	IDGen     ports.IDGenerator
	Logger    *slog.Logger
}

// CastVote validates eligibility and the voting window, computes the frozen
// voting power, and inserts the vote. The insert is guarded by the storage
// uniqueness constraint on (proposal_id, user_id): of two racing duplicate
// attempts exactly one succeeds, the other gets ErrDuplicateVote.
func (uc VoteUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (entities.Vote, error) {
	logger := application.ResolveLogger(uc.Logger)
	proposalID := strings.TrimSpace(cmd.ProposalID)
	userID := strings.TrimSpace(cmd.UserID)
	optionID := strings.TrimSpace(cmd.OptionID)
	if proposalID == "" || userID == "" || optionID == "" {
		return entities.Vote{}, domainerrors.ErrInvalidInput
	}

	proposal, err := uc.Proposals.GetProposal(ctx, proposalID)
	if err != nil {
		return entities.Vote{}, err
	}

	_, alreadyVoted, err := uc.Votes.GetVoteByIdentity(ctx, proposalID, userID)
	if err != nil {
		return entities.Vote{}, err
	}
	now := uc.nowUTC()
	if err := lifecycle.ValidateCanVote(proposal, now, alreadyVoted); err != nil {
		logger.Warn("vote rejected",
			"event", "governance_vote_rejected",
			"module", "governance-core/proposal-engine",
			"layer", "application",
			"proposal_id", proposalID,
			"user_id", userID,
			"error", err.Error(),
		)
		return entities.Vote{}, err
	}

	if err := uc.validateOption(ctx, proposalID, optionID); err != nil {
		return entities.Vote{}, err
	}

	holdings, err := uc.Balances.GetBalances(ctx, userID, proposal.OrganizationID)
	if err != nil {
		return entities.Vote{}, err
	}
	power := votingpower.CalculateVotingPower(holdings)
	if !votingpower.IsEligibleToVote(power) {
		return entities.Vote{}, domainerrors.ErrNotEligible
	}

	voteID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Vote{}, err
	}
	vote := entities.Vote{
		VoteID:      voteID,
		ProposalID:  proposalID,
		OptionID:    optionID,
		UserID:      userID,
		VotingPower: power,
		CastAt:      now,
	}
	// The repository re-checks open status inside the same atomic unit as
	// the insert, closing the race against a concurrent close transition.
	if err := uc.Votes.InsertVote(ctx, vote); err != nil {
		return entities.Vote{}, err
	}

	logger.Info("vote cast",
		"event", "governance_vote_cast",
		"module", "governance-core/proposal-engine",
		"layer", "application",
		"proposal_id", vote.ProposalID,
		"option_id", vote.OptionID,
		"user_id", vote.UserID,
		"voting_power", vote.VotingPower.String(),
	)
	return vote, nil
}

func (uc VoteUseCase) validateOption(ctx context.Context, proposalID string, optionID string) error {
	options, err := uc.Proposals.ListOptions(ctx, proposalID)
	if err != nil {
		return err
	}
	for _, option := range options {
		if option.OptionID == optionID {
			return nil
		}
	}
	return domainerrors.ErrOptionNotFound
}

func (uc VoteUseCase) nowUTC() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
