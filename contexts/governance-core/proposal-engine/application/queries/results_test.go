package queries

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"agora/contexts/governance-core/proposal-engine/adapters/memory"
	"agora/contexts/governance-core/proposal-engine/domain/entities"
)

func seedProposal(t *testing.T, store *memory.Store, status entities.ProposalStatus) entities.Proposal {
	t.Helper()
	now := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	proposal := entities.Proposal{
		ProposalID:                  "proposal-1",
		OrganizationID:              "org-1",
		Title:                       "Breakdown subject",
		Status:                      status,
		EligibleVotingPowerSnapshot: decimal.RequireFromString("1000"),
		TotalVotesCast:              decimal.Zero,
		CreatedAt:                   now,
		UpdatedAt:                   now,
	}
	if err := store.SaveProposal(context.Background(), proposal); err != nil {
		t.Fatalf("save proposal failed: %v", err)
	}
	for _, option := range []entities.ProposalOption{
		{OptionID: "option-a", ProposalID: "proposal-1", Label: "Yes", CreatedAt: now},
		{OptionID: "option-b", ProposalID: "proposal-1", Label: "No", CreatedAt: now},
		{OptionID: "option-c", ProposalID: "proposal-1", Label: "Abstain", CreatedAt: now},
	} {
		if err := store.AddOption(context.Background(), option); err != nil {
			t.Fatalf("add option failed: %v", err)
		}
	}
	return proposal
}

func TestResultBreakdownRanksAndMergesZeroVoteOptions(t *testing.T) {
	store := memory.NewStore()
	proposal := seedProposal(t, store, entities.ProposalStatusOpen)
	ctx := context.Background()
	base := time.Date(2026, time.August, 1, 10, 0, 0, 0, time.UTC)
	votes := []entities.Vote{
		{VoteID: "v1", ProposalID: proposal.ProposalID, OptionID: "option-b", UserID: "user-1",
			VotingPower: decimal.RequireFromString("300"), CastAt: base},
		{VoteID: "v2", ProposalID: proposal.ProposalID, OptionID: "option-a", UserID: "user-2",
			VotingPower: decimal.RequireFromString("250"), CastAt: base.Add(time.Minute)},
		{VoteID: "v3", ProposalID: proposal.ProposalID, OptionID: "option-b", UserID: "user-3",
			VotingPower: decimal.RequireFromString("250"), CastAt: base.Add(2 * time.Minute)},
	}
	for _, vote := range votes {
		if err := store.InsertVote(ctx, vote); err != nil {
			t.Fatalf("insert vote failed: %v", err)
		}
	}

	uc := ResultsUseCase{Proposals: store, Votes: store}
	results, err := uc.ResultBreakdown(ctx, proposal.ProposalID)
	if err != nil {
		t.Fatalf("breakdown failed: %v", err)
	}

	if results.TotalVotesCast != "800" {
		t.Fatalf("expected total cast 800, got %s", results.TotalVotesCast)
	}
	if results.WinningOptionID == nil || *results.WinningOptionID != "option-b" {
		t.Fatalf("expected option-b leading, got %v", results.WinningOptionID)
	}
	if len(results.Options) != 3 {
		t.Fatalf("expected all 3 ballot options in breakdown, got %d", len(results.Options))
	}
	if results.Options[0].OptionID != "option-b" || results.Options[0].Rank != 1 {
		t.Fatalf("expected option-b at rank 1, got %s at %d", results.Options[0].OptionID, results.Options[0].Rank)
	}
	if results.Options[0].Label != "No" || results.Options[0].VoteCount != 2 {
		t.Fatalf("expected labeled row with 2 votes, got %q with %d", results.Options[0].Label, results.Options[0].VoteCount)
	}
	last := results.Options[2]
	if last.OptionID != "option-c" || last.VoteCount != 0 || last.TotalVotingPower != "0" || last.Rank != 3 {
		t.Fatalf("expected zero-vote option-c appended at rank 3, got %+v", last)
	}
}

func TestResultBreakdownEmptyBallotHasNoWinner(t *testing.T) {
	store := memory.NewStore()
	proposal := seedProposal(t, store, entities.ProposalStatusOpen)

	uc := ResultsUseCase{Proposals: store, Votes: store}
	results, err := uc.ResultBreakdown(context.Background(), proposal.ProposalID)
	if err != nil {
		t.Fatalf("breakdown failed: %v", err)
	}
	if results.WinningOptionID != nil {
		t.Fatalf("expected no winner without votes, got %q", *results.WinningOptionID)
	}
	if results.TotalVotesCast != "0" {
		t.Fatalf("expected zero total, got %s", results.TotalVotesCast)
	}
	if len(results.Options) != 3 {
		t.Fatalf("expected all ballot options listed, got %d", len(results.Options))
	}
}

func TestGetProposalReturnsOptions(t *testing.T) {
	store := memory.NewStore()
	seedProposal(t, store, entities.ProposalStatusDraft)

	uc := ResultsUseCase{Proposals: store, Votes: store}
	proposal, options, err := uc.GetProposal(context.Background(), "proposal-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if proposal.ProposalID != "proposal-1" || len(options) != 3 {
		t.Fatalf("expected proposal with 3 options, got %d", len(options))
	}
}
