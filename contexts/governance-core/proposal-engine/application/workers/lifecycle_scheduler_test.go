package workers

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"agora/contexts/governance-core/proposal-engine/adapters/memory"
	"agora/contexts/governance-core/proposal-engine/application/commands"
	"agora/contexts/governance-core/proposal-engine/domain/entities"
)

func newSchedulerFixture(t *testing.T) (LifecycleScheduler, commands.ProposalUseCase, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.SetNow(time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC))
	store.SetOrganization(entities.Organization{OrganizationID: "org-1", Name: "Acme Collective"})
	store.SetHolding("org-1", entities.ShareHolding{
		ShareTypeID: "common", UserID: "user-1",
		VotingWeight: decimal.RequireFromString("1"),
		Quantity:     decimal.RequireFromString("100"),
	})
	proposals := commands.ProposalUseCase{
		Proposals:     store,
		Votes:         store,
		Balances:      store,
		Organizations: store,
		Outbox:        store,
		Clock:         store,
		IDGen:         store,
	}
	scheduler := LifecycleScheduler{
		Proposals:   store,
		ProposalOps: proposals,
		Clock:       store,
		BatchSize:   10,
		AutoOpen:    true,
		AutoClose:   true,
	}
	return scheduler, proposals, store
}

func scheduledProposal(t *testing.T, proposals commands.ProposalUseCase, start time.Time, end time.Time) entities.Proposal {
	t.Helper()
	ctx := context.Background()
	proposal, err := proposals.CreateProposal(ctx, commands.CreateProposalCommand{
		OrganizationID: "org-1",
		Title:          "Scheduled proposal",
		StartAt:        &start,
		EndAt:          &end,
		CreatedBy:      "user-admin",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	for _, label := range []string{"Yes", "No"} {
		if _, err := proposals.AddOption(ctx, commands.AddOptionCommand{
			ProposalID: proposal.ProposalID,
			Label:      label,
		}); err != nil {
			t.Fatalf("add option failed: %v", err)
		}
	}
	return proposal
}

func TestSchedulerOpensDueDrafts(t *testing.T) {
	scheduler, proposals, store := newSchedulerFixture(t)
	start := time.Date(2026, time.June, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	proposal := scheduledProposal(t, proposals, start, end)
	ctx := context.Background()

	// Before startAt nothing is due.
	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	current, err := store.GetProposal(ctx, proposal.ProposalID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if current.Status != entities.ProposalStatusDraft {
		t.Fatalf("expected draft before startAt, got %s", current.Status)
	}

	store.SetNow(start)
	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	current, err = store.GetProposal(ctx, proposal.ProposalID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if current.Status != entities.ProposalStatusOpen {
		t.Fatalf("expected open at startAt, got %s", current.Status)
	}
	if !current.EligibleVotingPowerSnapshot.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("expected scheduler open to freeze snapshot 100, got %s", current.EligibleVotingPowerSnapshot)
	}
}

func TestSchedulerClosesDueOpenProposals(t *testing.T) {
	scheduler, proposals, store := newSchedulerFixture(t)
	start := time.Date(2026, time.June, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	proposal := scheduledProposal(t, proposals, start, end)
	ctx := context.Background()

	store.SetNow(end)
	// A single pass both opens the overdue draft and closes it: open runs
	// first, so the proposal is already open when the close scan executes.
	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	current, err := store.GetProposal(ctx, proposal.ProposalID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if current.Status != entities.ProposalStatusClosed {
		t.Fatalf("expected closed after endAt, got %s", current.Status)
	}
	if current.ClosedAt == nil || current.ResultsDigest == "" {
		t.Fatalf("expected scheduler close to freeze result fields")
	}
}

func TestSchedulerRunOnceIsIdempotent(t *testing.T) {
	scheduler, proposals, store := newSchedulerFixture(t)
	start := time.Date(2026, time.June, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	proposal := scheduledProposal(t, proposals, start, end)
	ctx := context.Background()

	store.SetNow(end.Add(time.Minute))
	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	first, err := store.GetProposal(ctx, proposal.ProposalID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	second, err := store.GetProposal(ctx, proposal.ProposalID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if second.Status != first.Status || second.ResultsDigest != first.ResultsDigest {
		t.Fatalf("expected second run to change nothing")
	}
	if len(store.EventTypes()) != 2 {
		t.Fatalf("expected exactly one opened and one closed event, got %v", store.EventTypes())
	}
}

func TestSchedulerHonorsDisabledFlags(t *testing.T) {
	scheduler, proposals, store := newSchedulerFixture(t)
	scheduler.AutoOpen = false
	scheduler.AutoClose = false
	start := time.Date(2026, time.June, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	proposal := scheduledProposal(t, proposals, start, end)
	ctx := context.Background()

	store.SetNow(end.Add(time.Hour))
	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	current, err := store.GetProposal(ctx, proposal.ProposalID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if current.Status != entities.ProposalStatusDraft {
		t.Fatalf("expected untouched draft with flags off, got %s", current.Status)
	}
}

func TestSchedulerSkipsFailingCandidateAndContinues(t *testing.T) {
	scheduler, proposals, store := newSchedulerFixture(t)
	start := time.Date(2026, time.June, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	// One candidate that cannot open (single option) and one healthy one.
	ctx := context.Background()
	broken, err := proposals.CreateProposal(ctx, commands.CreateProposalCommand{
		OrganizationID: "org-1",
		Title:          "Broken candidate",
		StartAt:        &start,
		EndAt:          &end,
		CreatedBy:      "user-admin",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := proposals.AddOption(ctx, commands.AddOptionCommand{
		ProposalID: broken.ProposalID,
		Label:      "Only",
	}); err != nil {
		t.Fatalf("add option failed: %v", err)
	}
	healthy := scheduledProposal(t, proposals, start, end)

	store.SetNow(start)
	if err := scheduler.RunOnce(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	brokenNow, err := store.GetProposal(ctx, broken.ProposalID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	healthyNow, err := store.GetProposal(ctx, healthy.ProposalID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if brokenNow.Status != entities.ProposalStatusDraft {
		t.Fatalf("expected broken candidate to stay draft, got %s", brokenNow.Status)
	}
	if healthyNow.Status != entities.ProposalStatusOpen {
		t.Fatalf("expected healthy candidate to open despite the earlier failure, got %s", healthyNow.Status)
	}
}
