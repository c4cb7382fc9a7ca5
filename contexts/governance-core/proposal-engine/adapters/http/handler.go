package httpadapter

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"agora/contexts/governance-core/proposal-engine/application/commands"
	"agora/contexts/governance-core/proposal-engine/application/queries"
	"agora/contexts/governance-core/proposal-engine/domain/entities"
	domainerrors "agora/contexts/governance-core/proposal-engine/domain/errors"
	httptransport "agora/contexts/governance-core/proposal-engine/transport/http"
)

// Handler maps transport DTOs to use-case commands. Authorization happens
// upstream; the caller-supplied user ID is trusted here.
type Handler struct {
	Proposals commands.ProposalUseCase
	Votes     commands.VoteUseCase
	Results   queries.ResultsUseCase
	Logger    *slog.Logger
}

func (h Handler) CreateProposalHandler(
	ctx context.Context,
	userID string,
	req httptransport.CreateProposalRequest,
) (httptransport.ProposalResponse, error) {
	requirement, err := parseOptionalDecimal(req.QuorumRequirement)
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}
	proposal, err := h.Proposals.CreateProposal(ctx, commands.CreateProposalCommand{
		OrganizationID:    req.OrganizationID,
		Title:             req.Title,
		Description:       req.Description,
		StartAt:           req.StartAt,
		EndAt:             req.EndAt,
		QuorumRequirement: requirement,
		CreatedBy:         userID,
	})
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}
	return mapProposal(proposal, nil), nil
}

func (h Handler) UpdateProposalHandler(
	ctx context.Context,
	proposalID string,
	req httptransport.UpdateProposalRequest,
) (httptransport.ProposalResponse, error) {
	requirement, err := parseOptionalDecimal(req.QuorumRequirement)
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}
	proposal, err := h.Proposals.UpdateProposalMetadata(ctx, commands.UpdateProposalCommand{
		ProposalID:        proposalID,
		Title:             req.Title,
		Description:       req.Description,
		StartAt:           req.StartAt,
		EndAt:             req.EndAt,
		QuorumRequirement: requirement,
	})
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}
	return mapProposal(proposal, nil), nil
}

func (h Handler) AddOptionHandler(
	ctx context.Context,
	proposalID string,
	req httptransport.AddOptionRequest,
) (httptransport.OptionResponse, error) {
	option, err := h.Proposals.AddOption(ctx, commands.AddOptionCommand{
		ProposalID: proposalID,
		Label:      req.Label,
	})
	if err != nil {
		return httptransport.OptionResponse{}, err
	}
	return httptransport.OptionResponse{
		OptionID:   option.OptionID,
		ProposalID: option.ProposalID,
		Label:      option.Label,
	}, nil
}

func (h Handler) DeleteOptionHandler(ctx context.Context, proposalID string, optionID string) error {
	return h.Proposals.DeleteOption(ctx, proposalID, optionID)
}

func (h Handler) OpenProposalHandler(ctx context.Context, proposalID string) (httptransport.ProposalResponse, error) {
	proposal, err := h.Proposals.OpenProposal(ctx, proposalID)
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}
	return mapProposal(proposal, nil), nil
}

func (h Handler) CloseProposalHandler(ctx context.Context, proposalID string) (httptransport.ProposalResponse, error) {
	proposal, err := h.Proposals.CloseProposal(ctx, proposalID)
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}
	return mapProposal(proposal, nil), nil
}

func (h Handler) FinalizeProposalHandler(ctx context.Context, proposalID string) (httptransport.ProposalResponse, error) {
	proposal, err := h.Proposals.FinalizeProposal(ctx, proposalID)
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}
	return mapProposal(proposal, nil), nil
}

func (h Handler) CastVoteHandler(
	ctx context.Context,
	userID string,
	proposalID string,
	req httptransport.CastVoteRequest,
) (httptransport.VoteResponse, error) {
	vote, err := h.Votes.CastVote(ctx, commands.CastVoteCommand{
		ProposalID: proposalID,
		UserID:     userID,
		OptionID:   req.OptionID,
	})
	if err != nil {
		return httptransport.VoteResponse{}, err
	}
	return httptransport.VoteResponse{
		VoteID:      vote.VoteID,
		ProposalID:  vote.ProposalID,
		OptionID:    vote.OptionID,
		UserID:      vote.UserID,
		VotingPower: vote.VotingPower.String(),
		CastAt:      vote.CastAt,
	}, nil
}

func (h Handler) GetProposalHandler(ctx context.Context, proposalID string) (httptransport.ProposalResponse, error) {
	proposal, options, err := h.Results.GetProposal(ctx, proposalID)
	if err != nil {
		return httptransport.ProposalResponse{}, err
	}
	return mapProposal(proposal, options), nil
}

func (h Handler) ListProposalsHandler(ctx context.Context, organizationID string) (httptransport.ProposalListResponse, error) {
	proposals, err := h.Results.ListByOrganization(ctx, organizationID)
	if err != nil {
		return httptransport.ProposalListResponse{}, err
	}
	items := make([]httptransport.ProposalResponse, 0, len(proposals))
	for _, proposal := range proposals {
		items = append(items, mapProposal(proposal, nil))
	}
	return httptransport.ProposalListResponse{Items: items}, nil
}

func (h Handler) ResultsHandler(ctx context.Context, proposalID string) (httptransport.ResultsResponse, error) {
	results, err := h.Results.ResultBreakdown(ctx, proposalID)
	if err != nil {
		return httptransport.ResultsResponse{}, err
	}
	options := make([]httptransport.ResultOptionItem, 0, len(results.Options))
	for _, option := range results.Options {
		options = append(options, httptransport.ResultOptionItem{
			OptionID:         option.OptionID,
			Label:            option.Label,
			VoteCount:        option.VoteCount,
			TotalVotingPower: option.TotalVotingPower,
			Rank:             option.Rank,
		})
	}
	return httptransport.ResultsResponse{
		ProposalID:      results.ProposalID,
		Status:          string(results.Status),
		TotalVotesCast:  results.TotalVotesCast,
		WinningOptionID: results.WinningOptionID,
		QuorumMet:       results.QuorumMet,
		ResultsDigest:   results.ResultsDigest,
		Options:         options,
	}, nil
}

func mapProposal(proposal entities.Proposal, options []entities.ProposalOption) httptransport.ProposalResponse {
	resp := httptransport.ProposalResponse{
		ProposalID:                  proposal.ProposalID,
		OrganizationID:              proposal.OrganizationID,
		Title:                       proposal.Title,
		Description:                 proposal.Description,
		Status:                      string(proposal.Status),
		StartAt:                     proposal.StartAt,
		EndAt:                       proposal.EndAt,
		EligibleVotingPowerSnapshot: proposal.EligibleVotingPowerSnapshot.String(),
		TotalVotesCast:              proposal.TotalVotesCast.String(),
		WinningOptionID:             proposal.WinningOptionID,
		QuorumMet:                   proposal.QuorumMet,
		ClosedAt:                    proposal.ClosedAt,
		FinalizedAt:                 proposal.FinalizedAt,
		ResultsDigest:               proposal.ResultsDigest,
	}
	if proposal.QuorumRequirement != nil {
		requirement := proposal.QuorumRequirement.String()
		resp.QuorumRequirement = &requirement
	}
	for _, option := range options {
		resp.Options = append(resp.Options, httptransport.OptionResponse{
			OptionID:   option.OptionID,
			ProposalID: option.ProposalID,
			Label:      option.Label,
		})
	}
	return resp
}

func parseOptionalDecimal(value *string) (*decimal.Decimal, error) {
	if value == nil {
		return nil, nil
	}
	parsed, err := decimal.NewFromString(*value)
	if err != nil {
		return nil, domainerrors.ErrInvalidInput
	}
	return &parsed, nil
}
