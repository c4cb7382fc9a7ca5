package commands

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"agora/contexts/governance-core/proposal-engine/adapters/memory"
	"agora/contexts/governance-core/proposal-engine/domain/entities"
	domainerrors "agora/contexts/governance-core/proposal-engine/domain/errors"
)

func newProposalFixture(t *testing.T) (ProposalUseCase, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.SetNow(time.Date(2026, time.May, 1, 12, 0, 0, 0, time.UTC))
	store.SetOrganization(entities.Organization{OrganizationID: "org-1", Name: "Acme Collective"})
	return ProposalUseCase{
		Proposals:     store,
		Votes:         store,
		Balances:      store,
		Organizations: store,
		Outbox:        store,
		Clock:         store,
		IDGen:         store,
	}, store
}

func draftWithOptions(t *testing.T, uc ProposalUseCase, labels ...string) entities.Proposal {
	t.Helper()
	ctx := context.Background()
	proposal, err := uc.CreateProposal(ctx, CreateProposalCommand{
		OrganizationID: "org-1",
		Title:          "Adopt the new charter",
		CreatedBy:      "user-admin",
	})
	if err != nil {
		t.Fatalf("create proposal failed: %v", err)
	}
	for _, label := range labels {
		if _, err := uc.AddOption(ctx, AddOptionCommand{ProposalID: proposal.ProposalID, Label: label}); err != nil {
			t.Fatalf("add option %q failed: %v", label, err)
		}
	}
	return proposal
}

func TestCreateProposalStartsAsDraft(t *testing.T) {
	uc, _ := newProposalFixture(t)

	proposal, err := uc.CreateProposal(context.Background(), CreateProposalCommand{
		OrganizationID: "org-1",
		Title:          "  Adopt the new charter  ",
		Description:    "Replace the 2020 bylaws",
		CreatedBy:      "user-admin",
	})
	if err != nil {
		t.Fatalf("create proposal failed: %v", err)
	}
	if proposal.Status != entities.ProposalStatusDraft {
		t.Fatalf("expected draft status, got %s", proposal.Status)
	}
	if proposal.Title != "Adopt the new charter" {
		t.Fatalf("expected trimmed title, got %q", proposal.Title)
	}
	if !proposal.EligibleVotingPowerSnapshot.IsZero() || !proposal.TotalVotesCast.IsZero() {
		t.Fatalf("expected zero snapshot and totals on a draft")
	}
}

func TestCreateProposalValidation(t *testing.T) {
	uc, _ := newProposalFixture(t)
	ctx := context.Background()

	if _, err := uc.CreateProposal(ctx, CreateProposalCommand{OrganizationID: "org-1"}); !errors.Is(err, domainerrors.ErrInvalidInput) {
		t.Fatalf("expected empty title rejection, got %v", err)
	}
	if _, err := uc.CreateProposal(ctx, CreateProposalCommand{
		OrganizationID: "org-1",
		Title:          strings.Repeat("x", 201),
	}); !errors.Is(err, domainerrors.ErrInvalidInput) {
		t.Fatalf("expected over-long title rejection, got %v", err)
	}

	start := time.Date(2026, time.May, 2, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	if _, err := uc.CreateProposal(ctx, CreateProposalCommand{
		OrganizationID: "org-1",
		Title:          "Bad window",
		StartAt:        &start,
		EndAt:          &end,
	}); !errors.Is(err, domainerrors.ErrInvalidTimeRange) {
		t.Fatalf("expected inverted window rejection, got %v", err)
	}

	over := decimal.RequireFromString("100.01")
	if _, err := uc.CreateProposal(ctx, CreateProposalCommand{
		OrganizationID:    "org-1",
		Title:             "Bad quorum",
		QuorumRequirement: &over,
	}); !errors.Is(err, domainerrors.ErrInvalidQuorumRequirement) {
		t.Fatalf("expected quorum above 100 rejection, got %v", err)
	}

	if _, err := uc.CreateProposal(ctx, CreateProposalCommand{
		OrganizationID: "org-missing",
		Title:          "Orphan",
	}); !errors.Is(err, domainerrors.ErrOrganizationNotFound) {
		t.Fatalf("expected unknown organization rejection, got %v", err)
	}
}

func TestOpenProposalRequiresTwoOptions(t *testing.T) {
	uc, _ := newProposalFixture(t)
	proposal := draftWithOptions(t, uc, "Yes")

	if _, err := uc.OpenProposal(context.Background(), proposal.ProposalID); !errors.Is(err, domainerrors.ErrInsufficientOptions) {
		t.Fatalf("expected insufficient options, got %v", err)
	}
}

func TestOpenProposalFreezesEligiblePowerSnapshot(t *testing.T) {
	uc, store := newProposalFixture(t)
	proposal := draftWithOptions(t, uc, "Yes", "No")
	store.SetHolding("org-1", entities.ShareHolding{
		ShareTypeID: "common", UserID: "user-1",
		VotingWeight: decimal.RequireFromString("1"),
		Quantity:     decimal.RequireFromString("600"),
	})
	store.SetHolding("org-1", entities.ShareHolding{
		ShareTypeID: "preferred", UserID: "user-2",
		VotingWeight: decimal.RequireFromString("2"),
		Quantity:     decimal.RequireFromString("200"),
	})

	opened, err := uc.OpenProposal(context.Background(), proposal.ProposalID)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if !opened.EligibleVotingPowerSnapshot.Equal(decimal.RequireFromString("1000")) {
		t.Fatalf("expected snapshot 1000, got %s", opened.EligibleVotingPowerSnapshot)
	}

	// Balance churn after open must not move the frozen snapshot.
	store.SetHolding("org-1", entities.ShareHolding{
		ShareTypeID: "common", UserID: "user-1",
		VotingWeight: decimal.RequireFromString("1"),
		Quantity:     decimal.RequireFromString("9999"),
	})
	current, err := uc.Proposals.GetProposal(context.Background(), proposal.ProposalID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !current.EligibleVotingPowerSnapshot.Equal(decimal.RequireFromString("1000")) {
		t.Fatalf("expected snapshot unchanged at 1000, got %s", current.EligibleVotingPowerSnapshot)
	}

	if _, err := uc.OpenProposal(context.Background(), proposal.ProposalID); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("expected second open to lose the conditional write, got %v", err)
	}
}

func TestCloseProposalFreezesOutcome(t *testing.T) {
	uc, store := newProposalFixture(t)
	proposal := draftWithOptions(t, uc, "Yes", "No")
	store.SetHolding("org-1", entities.ShareHolding{
		ShareTypeID: "common", UserID: "user-1",
		VotingWeight: decimal.RequireFromString("1"),
		Quantity:     decimal.RequireFromString("1000"),
	})
	ctx := context.Background()
	if _, err := uc.OpenProposal(ctx, proposal.ProposalID); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	votes := VoteUseCase{Proposals: store, Votes: store, Balances: store, Clock: store, IDGen: store}
	options, err := store.ListOptions(ctx, proposal.ProposalID)
	if err != nil {
		t.Fatalf("list options failed: %v", err)
	}
	if _, err := votes.CastVote(ctx, CastVoteCommand{
		ProposalID: proposal.ProposalID,
		UserID:     "user-1",
		OptionID:   options[0].OptionID,
	}); err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}

	closed, err := uc.CloseProposal(ctx, proposal.ProposalID)
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if closed.Status != entities.ProposalStatusClosed {
		t.Fatalf("expected closed status, got %s", closed.Status)
	}
	if closed.WinningOptionID == nil || *closed.WinningOptionID != options[0].OptionID {
		t.Fatalf("expected winner %s, got %v", options[0].OptionID, closed.WinningOptionID)
	}
	if !closed.TotalVotesCast.Equal(decimal.RequireFromString("1000")) {
		t.Fatalf("expected total cast 1000, got %s", closed.TotalVotesCast)
	}
	if closed.ClosedAt == nil || closed.ResultsDigest == "" {
		t.Fatalf("expected closedAt and results digest to be frozen")
	}

	if _, err := uc.CloseProposal(ctx, proposal.ProposalID); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("expected second close to fail, got %v", err)
	}
}

func TestCloseProposalWithNoVotes(t *testing.T) {
	uc, _ := newProposalFixture(t)
	proposal := draftWithOptions(t, uc, "Yes", "No")
	ctx := context.Background()
	if _, err := uc.OpenProposal(ctx, proposal.ProposalID); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	closed, err := uc.CloseProposal(ctx, proposal.ProposalID)
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if closed.WinningOptionID != nil {
		t.Fatalf("expected no winner without votes, got %q", *closed.WinningOptionID)
	}
	if !closed.TotalVotesCast.IsZero() {
		t.Fatalf("expected zero total cast, got %s", closed.TotalVotesCast)
	}
	// No quorum requirement was set, so zero participation still counts.
	if !closed.QuorumMet {
		t.Fatalf("expected quorum met with unset requirement")
	}
}

func TestFinalizeProposalOnlyFromClosed(t *testing.T) {
	uc, _ := newProposalFixture(t)
	proposal := draftWithOptions(t, uc, "Yes", "No")
	ctx := context.Background()

	if _, err := uc.FinalizeProposal(ctx, proposal.ProposalID); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("expected finalize from draft to fail, got %v", err)
	}
	if _, err := uc.OpenProposal(ctx, proposal.ProposalID); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := uc.CloseProposal(ctx, proposal.ProposalID); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	finalized, err := uc.FinalizeProposal(ctx, proposal.ProposalID)
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if finalized.Status != entities.ProposalStatusFinalized || finalized.FinalizedAt == nil {
		t.Fatalf("expected finalized status with timestamp, got %s", finalized.Status)
	}
}

func TestUpdateProposalMetadataScopeByStatus(t *testing.T) {
	uc, _ := newProposalFixture(t)
	proposal := draftWithOptions(t, uc, "Yes", "No")
	ctx := context.Background()

	start := time.Date(2026, time.May, 3, 0, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)
	requirement := decimal.RequireFromString("25")
	updated, err := uc.UpdateProposalMetadata(ctx, UpdateProposalCommand{
		ProposalID:        proposal.ProposalID,
		StartAt:           &start,
		EndAt:             &end,
		QuorumRequirement: &requirement,
	})
	if err != nil {
		t.Fatalf("draft update failed: %v", err)
	}
	if updated.StartAt == nil || !updated.StartAt.Equal(start) || updated.QuorumRequirement == nil {
		t.Fatalf("expected draft to accept window and quorum edits")
	}

	if _, err := uc.OpenProposal(ctx, proposal.ProposalID); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	// Title stays editable while open; window and quorum silently freeze.
	title := "Adopt the revised charter"
	lateEnd := end.Add(72 * time.Hour)
	afterOpen, err := uc.UpdateProposalMetadata(ctx, UpdateProposalCommand{
		ProposalID: proposal.ProposalID,
		Title:      &title,
		EndAt:      &lateEnd,
	})
	if err != nil {
		t.Fatalf("open update failed: %v", err)
	}
	if afterOpen.Title != title {
		t.Fatalf("expected title update while open, got %q", afterOpen.Title)
	}
	if !afterOpen.EndAt.Equal(end) {
		t.Fatalf("expected endAt frozen at %s while open, got %s", end, afterOpen.EndAt)
	}

	if _, err := uc.CloseProposal(ctx, proposal.ProposalID); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := uc.UpdateProposalMetadata(ctx, UpdateProposalCommand{
		ProposalID: proposal.ProposalID,
		Title:      &title,
	}); !errors.Is(err, domainerrors.ErrInvalidTransition) {
		t.Fatalf("expected closed proposal edits to fail, got %v", err)
	}
}

func TestDeleteOptionRules(t *testing.T) {
	uc, store := newProposalFixture(t)
	proposal := draftWithOptions(t, uc, "Yes", "No", "Abstain")
	ctx := context.Background()
	options, err := store.ListOptions(ctx, proposal.ProposalID)
	if err != nil {
		t.Fatalf("list options failed: %v", err)
	}

	if err := uc.DeleteOption(ctx, proposal.ProposalID, options[2].OptionID); err != nil {
		t.Fatalf("expected draft option delete to pass, got %v", err)
	}

	store.SetHolding("org-1", entities.ShareHolding{
		ShareTypeID: "common", UserID: "user-1",
		VotingWeight: decimal.RequireFromString("1"),
		Quantity:     decimal.RequireFromString("10"),
	})
	if _, err := uc.OpenProposal(ctx, proposal.ProposalID); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := uc.DeleteOption(ctx, proposal.ProposalID, options[0].OptionID); !errors.Is(err, domainerrors.ErrOptionNotDeletable) {
		t.Fatalf("expected option delete after open to fail, got %v", err)
	}
}

func TestLifecycleTransitionsAppendOutboxEvents(t *testing.T) {
	uc, store := newProposalFixture(t)
	proposal := draftWithOptions(t, uc, "Yes", "No")
	ctx := context.Background()

	if _, err := uc.OpenProposal(ctx, proposal.ProposalID); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := uc.CloseProposal(ctx, proposal.ProposalID); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := uc.FinalizeProposal(ctx, proposal.ProposalID); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	types := store.EventTypes()
	if len(types) != 3 {
		t.Fatalf("expected 3 lifecycle events, got %d: %v", len(types), types)
	}
	seen := make(map[string]int, len(types))
	for _, eventType := range types {
		seen[eventType]++
	}
	for _, eventType := range []string{EventProposalOpened, EventProposalClosed, EventProposalFinalized} {
		if seen[eventType] != 1 {
			t.Fatalf("expected exactly one %s event, got %d", eventType, seen[eventType])
		}
	}
}

func TestResultsRecomputationMatchesFrozenDigest(t *testing.T) {
	uc, store := newProposalFixture(t)
	proposal := draftWithOptions(t, uc, "Yes", "No")
	store.SetHolding("org-1", entities.ShareHolding{
		ShareTypeID: "common", UserID: "user-1",
		VotingWeight: decimal.RequireFromString("1"),
		Quantity:     decimal.RequireFromString("100"),
	})
	ctx := context.Background()
	if _, err := uc.OpenProposal(ctx, proposal.ProposalID); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	options, err := store.ListOptions(ctx, proposal.ProposalID)
	if err != nil {
		t.Fatalf("list options failed: %v", err)
	}
	votes := VoteUseCase{Proposals: store, Votes: store, Balances: store, Clock: store, IDGen: store}
	if _, err := votes.CastVote(ctx, CastVoteCommand{
		ProposalID: proposal.ProposalID,
		UserID:     "user-1",
		OptionID:   options[1].OptionID,
	}); err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}
	closed, err := uc.CloseProposal(ctx, proposal.ProposalID)
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}

	recomputed, err := uc.Results(ctx, proposal.ProposalID)
	if err != nil {
		t.Fatalf("results failed: %v", err)
	}
	if recomputed.WinningOptionID == nil || *recomputed.WinningOptionID != *closed.WinningOptionID {
		t.Fatalf("expected recomputed winner to match frozen winner")
	}
	if !recomputed.TotalVotesCast.Equal(closed.TotalVotesCast) {
		t.Fatalf("expected recomputed total %s to match frozen %s",
			recomputed.TotalVotesCast, closed.TotalVotesCast)
	}
}
