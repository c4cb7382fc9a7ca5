package queries

import (
	"context"
	"strings"

	"agora/contexts/governance-core/proposal-engine/domain/entities"
	"agora/contexts/governance-core/proposal-engine/domain/tally"
	"agora/contexts/governance-core/proposal-engine/ports"
)

// OptionBreakdown is one ranked row of a result display. Rank is 1-based by
// descending total power; the breakdown is recomputed from stored votes on
// every read, never persisted, so it stays reproducible for audit.
type OptionBreakdown struct {
	OptionID         string
	Label            string
	VoteCount        int
	TotalVotingPower string
	Rank             int
}

// ProposalResults is the on-demand result view of one proposal.
type ProposalResults struct {
	ProposalID      string
	Status          entities.ProposalStatus
	TotalVotesCast  string
	WinningOptionID *string
	QuorumMet       bool
	ResultsDigest   string
	Options         []OptionBreakdown
}

type ResultsUseCase struct {
	Proposals ports.ProposalRepository
	Votes     ports.VoteRepository
}

// GetProposal returns the proposal with its options.
func (uc ResultsUseCase) GetProposal(ctx context.Context, proposalID string) (entities.Proposal, []entities.ProposalOption, error) {
	proposal, err := uc.Proposals.GetProposal(ctx, strings.TrimSpace(proposalID))
	if err != nil {
		return entities.Proposal{}, nil, err
	}
	options, err := uc.Proposals.ListOptions(ctx, proposal.ProposalID)
	if err != nil {
		return entities.Proposal{}, nil, err
	}
	return proposal, options, nil
}

// ListByOrganization returns all proposals of one organization.
func (uc ResultsUseCase) ListByOrganization(ctx context.Context, organizationID string) ([]entities.Proposal, error) {
	return uc.Proposals.ListProposalsByOrganization(ctx, strings.TrimSpace(organizationID))
}

// ResultBreakdown recomputes the per-option totals from stored votes and
// merges in zero-vote options so the display covers the full ballot. For a
// closed proposal the aggregate figures match the frozen result fields.
func (uc ResultsUseCase) ResultBreakdown(ctx context.Context, proposalID string) (ProposalResults, error) {
	proposal, options, err := uc.GetProposal(ctx, proposalID)
	if err != nil {
		return ProposalResults{}, err
	}
	votes, err := uc.Votes.ListVotesByProposal(ctx, proposal.ProposalID)
	if err != nil {
		return ProposalResults{}, err
	}
	outcome := tally.Compute(votes, proposal.EligibleVotingPowerSnapshot, proposal.QuorumRequirement)

	labels := make(map[string]string, len(options))
	for _, option := range options {
		labels[option.OptionID] = option.Label
	}

	rows := make([]OptionBreakdown, 0, len(options))
	seen := make(map[string]bool, len(outcome.Options))
	for rank, total := range outcome.Options {
		rows = append(rows, OptionBreakdown{
			OptionID:         total.OptionID,
			Label:            labels[total.OptionID],
			VoteCount:        total.VoteCount,
			TotalVotingPower: total.TotalVotingPower.String(),
			Rank:             rank + 1,
		})
		seen[total.OptionID] = true
	}
	for _, option := range options {
		if seen[option.OptionID] {
			continue
		}
		rows = append(rows, OptionBreakdown{
			OptionID:         option.OptionID,
			Label:            option.Label,
			VoteCount:        0,
			TotalVotingPower: "0",
			Rank:             len(rows) + 1,
		})
	}

	return ProposalResults{
		ProposalID:      proposal.ProposalID,
		Status:          proposal.Status,
		TotalVotesCast:  outcome.TotalVotesCast.String(),
		WinningOptionID: outcome.WinningOptionID,
		QuorumMet:       outcome.QuorumMet,
		ResultsDigest:   proposal.ResultsDigest,
		Options:         rows,
	}, nil
}
