package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	application "agora/contexts/governance-core/proposal-engine/application"
	"agora/contexts/governance-core/proposal-engine/domain/entities"
	domainerrors "agora/contexts/governance-core/proposal-engine/domain/errors"
	"agora/contexts/governance-core/proposal-engine/domain/lifecycle"
	"agora/contexts/governance-core/proposal-engine/domain/tally"
	"agora/contexts/governance-core/proposal-engine/domain/votingpower"
	"agora/contexts/governance-core/proposal-engine/ports"
)

const maxTitleLength = 200

// CreateProposalCommand starts a new draft proposal.
type CreateProposalCommand struct {
	OrganizationID    string
	Title             string
	Description       string
	StartAt           *time.Time
	EndAt             *time.Time
	QuorumRequirement *decimal.Decimal
	CreatedBy         string
}

// UpdateProposalCommand edits draft/open proposal metadata.
type UpdateProposalCommand struct {
	ProposalID        string
	Title             *string
	Description       *string
	StartAt           *time.Time
	EndAt             *time.Time
	QuorumRequirement *decimal.Decimal
}

// AddOptionCommand attaches a new option to a draft or open proposal.
type AddOptionCommand struct {
	ProposalID string
	Label      string
}

// ProposalUseCase orchestrates the proposal lifecycle: draft creation,
// metadata/option edits, and the open/close/finalize transitions. Every
// transition is applied by the repository as a single conditional write, so
// a concurrent attempt (scheduler racing a manual call) loses cleanly with
// ErrInvalidTransition instead of double-applying.
type ProposalUseCase struct {
	Proposals     ports.ProposalRepository
	Votes         ports.VoteRepository
	Balances      ports.BalanceProvider
	Organizations ports.OrganizationProvider
	Outbox        ports.OutboxWriter
	Clock         ports.Clock
	IDGen         ports.IDGenerator
	Logger        *slog.Logger
}

// CreateProposal persists a new draft. Drafts carry no snapshot or result
// fields; those are frozen by the open and close transitions.
func (uc ProposalUseCase) CreateProposal(ctx context.Context, cmd CreateProposalCommand) (entities.Proposal, error) {
	logger := application.ResolveLogger(uc.Logger)
	title := strings.TrimSpace(cmd.Title)
	if strings.TrimSpace(cmd.OrganizationID) == "" || title == "" || len(title) > maxTitleLength {
		return entities.Proposal{}, domainerrors.ErrInvalidInput
	}
	if err := validateTimeRange(cmd.StartAt, cmd.EndAt); err != nil {
		return entities.Proposal{}, err
	}
	if err := validateQuorumRequirement(cmd.QuorumRequirement); err != nil {
		return entities.Proposal{}, err
	}
	if _, err := uc.Organizations.GetOrganization(ctx, strings.TrimSpace(cmd.OrganizationID)); err != nil {
		return entities.Proposal{}, err
	}

	now := uc.now()
	proposalID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Proposal{}, err
	}
	proposal := entities.Proposal{
		ProposalID:        proposalID,
		OrganizationID:    strings.TrimSpace(cmd.OrganizationID),
		Title:             title,
		Description:       strings.TrimSpace(cmd.Description),
		Status:            entities.ProposalStatusDraft,
		StartAt:           normalizeTime(cmd.StartAt),
		EndAt:             normalizeTime(cmd.EndAt),
		QuorumRequirement: cmd.QuorumRequirement,
		TotalVotesCast:    decimal.Zero,
		CreatedBy:         strings.TrimSpace(cmd.CreatedBy),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := uc.Proposals.SaveProposal(ctx, proposal); err != nil {
		return entities.Proposal{}, err
	}
	logger.Info("proposal created",
		"event", "governance_proposal_created",
		"module", "governance-core/proposal-engine",
		"layer", "application",
		"proposal_id", proposal.ProposalID,
		"organization_id", proposal.OrganizationID,
	)
	return proposal, nil
}

// UpdateProposalMetadata edits title/description while draft or open. Time
// bounds and the quorum requirement stay editable only while draft: once
// voting starts they feed the frozen outcome and no longer move.
func (uc ProposalUseCase) UpdateProposalMetadata(ctx context.Context, cmd UpdateProposalCommand) (entities.Proposal, error) {
	proposal, err := uc.Proposals.GetProposal(ctx, strings.TrimSpace(cmd.ProposalID))
	if err != nil {
		return entities.Proposal{}, err
	}
	if err := lifecycle.ValidateCanUpdateMetadata(proposal); err != nil {
		return entities.Proposal{}, err
	}

	if cmd.Title != nil {
		title := strings.TrimSpace(*cmd.Title)
		if title == "" || len(title) > maxTitleLength {
			return entities.Proposal{}, domainerrors.ErrInvalidInput
		}
		proposal.Title = title
	}
	if cmd.Description != nil {
		proposal.Description = strings.TrimSpace(*cmd.Description)
	}
	if proposal.Status == entities.ProposalStatusDraft {
		if cmd.StartAt != nil {
			proposal.StartAt = normalizeTime(cmd.StartAt)
		}
		if cmd.EndAt != nil {
			proposal.EndAt = normalizeTime(cmd.EndAt)
		}
		if err := validateTimeRange(proposal.StartAt, proposal.EndAt); err != nil {
			return entities.Proposal{}, err
		}
		if cmd.QuorumRequirement != nil {
			if err := validateQuorumRequirement(cmd.QuorumRequirement); err != nil {
				return entities.Proposal{}, err
			}
			proposal.QuorumRequirement = cmd.QuorumRequirement
		}
	}
	proposal.UpdatedAt = uc.now()
	if err := uc.Proposals.UpdateProposalMetadata(ctx, proposal); err != nil {
		return entities.Proposal{}, err
	}
	return proposal, nil
}

// AddOption attaches an option while the proposal is draft or open.
func (uc ProposalUseCase) AddOption(ctx context.Context, cmd AddOptionCommand) (entities.ProposalOption, error) {
	label := strings.TrimSpace(cmd.Label)
	if label == "" {
		return entities.ProposalOption{}, domainerrors.ErrInvalidInput
	}
	proposal, err := uc.Proposals.GetProposal(ctx, strings.TrimSpace(cmd.ProposalID))
	if err != nil {
		return entities.ProposalOption{}, err
	}
	if err := lifecycle.ValidateCanAddOption(proposal); err != nil {
		return entities.ProposalOption{}, err
	}
	optionID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.ProposalOption{}, err
	}
	option := entities.ProposalOption{
		OptionID:   optionID,
		ProposalID: proposal.ProposalID,
		Label:      label,
		CreatedAt:  uc.now(),
	}
	if err := uc.Proposals.AddOption(ctx, option); err != nil {
		return entities.ProposalOption{}, err
	}
	return option, nil
}

// DeleteOption removes an option while draft and only when nobody voted on
// it. Votes on an option make it permanent for the proposal's lifetime. The
// repository re-checks both rules atomically with the delete, so a racing
// open cannot strip an option from an open proposal.
func (uc ProposalUseCase) DeleteOption(ctx context.Context, proposalID string, optionID string) error {
	proposal, err := uc.Proposals.GetProposal(ctx, strings.TrimSpace(proposalID))
	if err != nil {
		return err
	}
	hasVotes, err := uc.Votes.OptionHasVotes(ctx, proposal.ProposalID, strings.TrimSpace(optionID))
	if err != nil {
		return err
	}
	if err := lifecycle.ValidateCanDeleteOption(proposal, hasVotes); err != nil {
		return err
	}
	return uc.Proposals.DeleteOption(ctx, proposal.ProposalID, strings.TrimSpace(optionID))
}

// OpenProposal applies draft -> open. The organization-wide eligible power
// is computed fresh from current balances and frozen together with the
// status write; after the write commits, no reader observes open status
// without a durable snapshot.
func (uc ProposalUseCase) OpenProposal(ctx context.Context, proposalID string) (entities.Proposal, error) {
	logger := application.ResolveLogger(uc.Logger)
	proposal, err := uc.Proposals.GetProposal(ctx, strings.TrimSpace(proposalID))
	if err != nil {
		return entities.Proposal{}, err
	}
	options, err := uc.Proposals.ListOptions(ctx, proposal.ProposalID)
	if err != nil {
		return entities.Proposal{}, err
	}
	if err := lifecycle.ValidateCanOpen(proposal, len(options)); err != nil {
		return entities.Proposal{}, err
	}

	holdings, err := uc.Balances.GetAllBalances(ctx, proposal.OrganizationID)
	if err != nil {
		return entities.Proposal{}, err
	}
	snapshot := votingpower.CalculateTotalEligibleVotingPower(holdings)

	now := uc.now()
	opened, err := uc.Proposals.OpenProposal(ctx, proposal.ProposalID, snapshot, now)
	if err != nil {
		return entities.Proposal{}, err
	}
	if err := uc.appendLifecycleEvent(ctx, EventProposalOpened, opened, now, map[string]any{
		"eligible_voting_power": snapshot.String(),
	}); err != nil {
		return entities.Proposal{}, err
	}
	logger.Info("proposal opened",
		"event", "governance_proposal_opened",
		"module", "governance-core/proposal-engine",
		"layer", "application",
		"proposal_id", opened.ProposalID,
		"organization_id", opened.OrganizationID,
		"eligible_voting_power", snapshot.String(),
	)
	return opened, nil
}

// CloseProposal applies open -> closed. The repository computes the tally
// from the votes visible inside the closing transaction and freezes every
// result field with the status write; results are never recomputed after.
func (uc ProposalUseCase) CloseProposal(ctx context.Context, proposalID string) (entities.Proposal, error) {
	logger := application.ResolveLogger(uc.Logger)
	proposal, err := uc.Proposals.GetProposal(ctx, strings.TrimSpace(proposalID))
	if err != nil {
		return entities.Proposal{}, err
	}
	if err := lifecycle.ValidateCanClose(proposal); err != nil {
		return entities.Proposal{}, err
	}

	now := uc.now()
	closed, outcome, err := uc.Proposals.CloseProposal(ctx, proposal.ProposalID, now)
	if err != nil {
		return entities.Proposal{}, err
	}
	payload := map[string]any{
		"total_votes_cast": outcome.TotalVotesCast.String(),
		"quorum_met":       outcome.QuorumMet,
		"results_digest":   closed.ResultsDigest,
	}
	if outcome.WinningOptionID != nil {
		payload["winning_option_id"] = *outcome.WinningOptionID
	}
	if err := uc.appendLifecycleEvent(ctx, EventProposalClosed, closed, now, payload); err != nil {
		return entities.Proposal{}, err
	}
	logger.Info("proposal closed",
		"event", "governance_proposal_closed",
		"module", "governance-core/proposal-engine",
		"layer", "application",
		"proposal_id", closed.ProposalID,
		"total_votes_cast", outcome.TotalVotesCast.String(),
		"quorum_met", outcome.QuorumMet,
	)
	return closed, nil
}

// FinalizeProposal applies closed -> finalized, a pure archival marker.
func (uc ProposalUseCase) FinalizeProposal(ctx context.Context, proposalID string) (entities.Proposal, error) {
	logger := application.ResolveLogger(uc.Logger)
	proposal, err := uc.Proposals.GetProposal(ctx, strings.TrimSpace(proposalID))
	if err != nil {
		return entities.Proposal{}, err
	}
	if err := lifecycle.ValidateCanFinalize(proposal); err != nil {
		return entities.Proposal{}, err
	}

	now := uc.now()
	finalized, err := uc.Proposals.FinalizeProposal(ctx, proposal.ProposalID, now)
	if err != nil {
		return entities.Proposal{}, err
	}
	if err := uc.appendLifecycleEvent(ctx, EventProposalFinalized, finalized, now, nil); err != nil {
		return entities.Proposal{}, err
	}
	logger.Info("proposal finalized",
		"event", "governance_proposal_finalized",
		"module", "governance-core/proposal-engine",
		"layer", "application",
		"proposal_id", finalized.ProposalID,
	)
	return finalized, nil
}

// Results recomputes the close-time outcome from stored votes. Used by the
// audit path; must match the frozen fields byte for byte.
func (uc ProposalUseCase) Results(ctx context.Context, proposalID string) (tally.Outcome, error) {
	proposal, err := uc.Proposals.GetProposal(ctx, strings.TrimSpace(proposalID))
	if err != nil {
		return tally.Outcome{}, err
	}
	votes, err := uc.Votes.ListVotesByProposal(ctx, proposal.ProposalID)
	if err != nil {
		return tally.Outcome{}, err
	}
	return tally.Compute(votes, proposal.EligibleVotingPowerSnapshot, proposal.QuorumRequirement), nil
}

func (uc ProposalUseCase) appendLifecycleEvent(
	ctx context.Context,
	eventType string,
	proposal entities.Proposal,
	occurredAt time.Time,
	metadata map[string]any,
) error {
	// Outbox is optional for pure read/test wiring, so nil is treated as no-op.
	if uc.Outbox == nil {
		return nil
	}
	eventID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	data := map[string]any{
		"proposal_id":     proposal.ProposalID,
		"organization_id": proposal.OrganizationID,
		"status":          string(proposal.Status),
		"occurred_at":     occurredAt.Format(time.RFC3339),
	}
	for key, value := range metadata {
		data[key] = value
	}
	envelope, err := newGovernanceEnvelope(eventID, eventType, proposal.ProposalID, occurredAt, data)
	if err != nil {
		return err
	}
	return uc.Outbox.AppendOutbox(ctx, envelope)
}

func (uc ProposalUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func validateTimeRange(startAt *time.Time, endAt *time.Time) error {
	if startAt != nil && endAt != nil && !startAt.Before(*endAt) {
		return domainerrors.ErrInvalidTimeRange
	}
	return nil
}

func validateQuorumRequirement(requirement *decimal.Decimal) error {
	if requirement == nil {
		return nil
	}
	if requirement.IsNegative() || requirement.GreaterThan(decimal.NewFromInt(100)) {
		return domainerrors.ErrInvalidQuorumRequirement
	}
	return nil
}

func normalizeTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}
