package workers

import (
	"context"
	"log/slog"
	"time"

	application "agora/contexts/governance-core/proposal-engine/application"
	"agora/contexts/governance-core/proposal-engine/application/commands"
	"agora/contexts/governance-core/proposal-engine/ports"
)

// LifecycleScheduler applies time-triggered proposal transitions. It is
// stateless across iterations: "which proposals are due" is always
// recomputed from current time and durable status, so restarts and
// back-to-back runs are safe. Each candidate is processed independently; a
// failure is logged with the proposal identifier and never aborts the rest
// of the batch.
type LifecycleScheduler struct {
	Proposals   ports.ProposalRepository
	ProposalOps commands.ProposalUseCase
	Clock       ports.Clock
	BatchSize   int
	AutoOpen    bool
	AutoClose   bool
	Logger      *slog.Logger
}

// RunOnce processes one bounded batch of auto-open candidates (draft with
// startAt in the past) and auto-close candidates (open with endAt in the
// past). The transitions go through the same conditional writes as manual
// API calls, so losing a race surfaces as a skippable conflict, not a
// double apply.
func (s LifecycleScheduler) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(s.Logger)
	limit := s.BatchSize
	if limit <= 0 {
		limit = 50
	}
	now := s.now()

	if s.AutoOpen {
		due, err := s.Proposals.ListDueForOpen(ctx, now, limit)
		if err != nil {
			logger.Error("scheduler open scan failed",
				"event", "governance_scheduler_open_scan_failed",
				"module", "governance-core/proposal-engine",
				"layer", "worker",
				"error", err.Error(),
			)
			return err
		}
		for _, proposal := range due {
			if _, err := s.ProposalOps.OpenProposal(ctx, proposal.ProposalID); err != nil {
				logger.Warn("scheduler auto-open skipped",
					"event", "governance_scheduler_auto_open_skipped",
					"module", "governance-core/proposal-engine",
					"layer", "worker",
					"proposal_id", proposal.ProposalID,
					"error", err.Error(),
				)
				continue
			}
			logger.Info("scheduler auto-opened proposal",
				"event", "governance_scheduler_auto_opened",
				"module", "governance-core/proposal-engine",
				"layer", "worker",
				"proposal_id", proposal.ProposalID,
			)
		}
	}

	if s.AutoClose {
		due, err := s.Proposals.ListDueForClose(ctx, now, limit)
		if err != nil {
			logger.Error("scheduler close scan failed",
				"event", "governance_scheduler_close_scan_failed",
				"module", "governance-core/proposal-engine",
				"layer", "worker",
				"error", err.Error(),
			)
			return err
		}
		for _, proposal := range due {
			if _, err := s.ProposalOps.CloseProposal(ctx, proposal.ProposalID); err != nil {
				logger.Warn("scheduler auto-close skipped",
					"event", "governance_scheduler_auto_close_skipped",
					"module", "governance-core/proposal-engine",
					"layer", "worker",
					"proposal_id", proposal.ProposalID,
					"error", err.Error(),
				)
				continue
			}
			logger.Info("scheduler auto-closed proposal",
				"event", "governance_scheduler_auto_closed",
				"module", "governance-core/proposal-engine",
				"layer", "worker",
				"proposal_id", proposal.ProposalID,
			)
		}
	}
	return nil
}

func (s LifecycleScheduler) now() time.Time {
	now := time.Now().UTC()
	if s.Clock != nil {
		now = s.Clock.Now().UTC()
	}
	return now
}
