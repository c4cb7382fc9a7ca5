package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"agora/contexts/governance-core/proposal-engine/domain/entities"
	domainerrors "agora/contexts/governance-core/proposal-engine/domain/errors"
	"agora/contexts/governance-core/proposal-engine/domain/tally"
	"agora/contexts/governance-core/proposal-engine/ports"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) SaveProposal(ctx context.Context, proposal entities.Proposal) error {
	row := proposalModelFromEntity(proposal)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return r.logError("governance_repo_save_proposal_failed", err,
			"proposal_id", proposal.ProposalID,
		)
	}
	return nil
}

func (r *Repository) GetProposal(ctx context.Context, proposalID string) (entities.Proposal, error) {
	var row proposalModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(proposalID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Proposal{}, domainerrors.ErrProposalNotFound
		}
		return entities.Proposal{}, r.logError("governance_repo_get_proposal_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListProposalsByOrganization(ctx context.Context, organizationID string) ([]entities.Proposal, error) {
	var rows []proposalModel
	if err := r.db.WithContext(ctx).
		Where("organization_id = ?", strings.TrimSpace(organizationID)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("governance_repo_list_proposals_failed", err,
			"organization_id", strings.TrimSpace(organizationID),
		)
	}
	items := make([]entities.Proposal, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// UpdateProposalMetadata writes only the editable fields, guarded on the
// proposal still being draft or open. Snapshot and result columns are never
// touched here.
func (r *Repository) UpdateProposalMetadata(ctx context.Context, proposal entities.Proposal) error {
	row := proposalModelFromEntity(proposal)
	result := r.db.WithContext(ctx).
		Model(&proposalModel{}).
		Where("id = ?", row.ID).
		Where("status IN ?", []string{
			string(entities.ProposalStatusDraft),
			string(entities.ProposalStatusOpen),
		}).
		Updates(map[string]any{
			"title":              row.Title,
			"description":        row.Description,
			"start_at":           row.StartAt,
			"end_at":             row.EndAt,
			"quorum_requirement": row.QuorumRequirement,
			"updated_at":         row.UpdatedAt,
		})
	if result.Error != nil {
		return r.logError("governance_repo_update_metadata_failed", result.Error,
			"proposal_id", row.ID,
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrInvalidTransition
	}
	return nil
}

// OpenProposal performs the draft -> open transition and the snapshot write
// as one transaction. The option minimum is re-counted inside it, and the
// status update is conditional on the row still being draft, so a racing
// open (or a racing option delete) cannot produce an open proposal without
// a durable snapshot.
func (r *Repository) OpenProposal(
	ctx context.Context,
	proposalID string,
	snapshot decimal.Decimal,
	openedAt time.Time,
) (entities.Proposal, error) {
	var opened proposalModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row proposalModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", strings.TrimSpace(proposalID)).
			First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrProposalNotFound
			}
			return err
		}
		if row.Status != string(entities.ProposalStatusDraft) {
			return domainerrors.ErrInvalidTransition
		}

		var optionCount int64
		if err := tx.Model(&proposalOptionModel{}).
			Where("proposal_id = ?", row.ID).
			Count(&optionCount).Error; err != nil {
			return err
		}
		if optionCount < 2 {
			return domainerrors.ErrInsufficientOptions
		}

		result := tx.Model(&proposalModel{}).
			Where("id = ?", row.ID).
			Where("status = ?", string(entities.ProposalStatusDraft)).
			Updates(map[string]any{
				"status":                string(entities.ProposalStatusOpen),
				"eligible_voting_power": snapshot,
				"updated_at":            openedAt.UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrInvalidTransition
		}
		return tx.Where("id = ?", row.ID).First(&opened).Error
	})
	if err != nil {
		if isExpectedGovernanceError(err) {
			return entities.Proposal{}, err
		}
		return entities.Proposal{}, r.logError("governance_repo_open_proposal_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
		)
	}
	return opened.toEntity(), nil
}

// CloseProposal locks the proposal row, tallies the votes visible inside
// the same transaction, and freezes every result field with the
// conditional status write. Vote inserts take a share lock on the proposal
// row, so once this commits no further vote can slip in.
func (r *Repository) CloseProposal(
	ctx context.Context,
	proposalID string,
	closedAt time.Time,
) (entities.Proposal, tally.Outcome, error) {
	var closed proposalModel
	var outcome tally.Outcome
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row proposalModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", strings.TrimSpace(proposalID)).
			First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrProposalNotFound
			}
			return err
		}
		if row.Status != string(entities.ProposalStatusOpen) {
			return domainerrors.ErrInvalidTransition
		}

		var voteRows []voteModel
		if err := tx.Where("proposal_id = ?", row.ID).
			Order("cast_at ASC").
			Find(&voteRows).Error; err != nil {
			return err
		}
		votes := make([]entities.Vote, 0, len(voteRows))
		for _, voteRow := range voteRows {
			votes = append(votes, voteRow.toEntity())
		}

		proposal := row.toEntity()
		outcome = tally.Compute(votes, proposal.EligibleVotingPowerSnapshot, proposal.QuorumRequirement)
		digest := tally.Digest(outcome)

		updates := map[string]any{
			"status":           string(entities.ProposalStatusClosed),
			"total_votes_cast": outcome.TotalVotesCast,
			"quorum_met":       outcome.QuorumMet,
			"closed_at":        closedAt.UTC(),
			"results_digest":   digest,
			"updated_at":       closedAt.UTC(),
		}
		if outcome.WinningOptionID != nil {
			updates["winning_option_id"] = *outcome.WinningOptionID
		}
		result := tx.Model(&proposalModel{}).
			Where("id = ?", row.ID).
			Where("status = ?", string(entities.ProposalStatusOpen)).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrInvalidTransition
		}
		return tx.Where("id = ?", row.ID).First(&closed).Error
	})
	if err != nil {
		if isExpectedGovernanceError(err) {
			return entities.Proposal{}, tally.Outcome{}, err
		}
		return entities.Proposal{}, tally.Outcome{}, r.logError("governance_repo_close_proposal_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
		)
	}
	return closed.toEntity(), outcome, nil
}

func (r *Repository) FinalizeProposal(
	ctx context.Context,
	proposalID string,
	finalizedAt time.Time,
) (entities.Proposal, error) {
	result := r.db.WithContext(ctx).
		Model(&proposalModel{}).
		Where("id = ?", strings.TrimSpace(proposalID)).
		Where("status = ?", string(entities.ProposalStatusClosed)).
		Updates(map[string]any{
			"status":       string(entities.ProposalStatusFinalized),
			"finalized_at": finalizedAt.UTC(),
			"updated_at":   finalizedAt.UTC(),
		})
	if result.Error != nil {
		return entities.Proposal{}, r.logError("governance_repo_finalize_proposal_failed", result.Error,
			"proposal_id", strings.TrimSpace(proposalID),
		)
	}
	if result.RowsAffected == 0 {
		return entities.Proposal{}, domainerrors.ErrInvalidTransition
	}
	return r.GetProposal(ctx, proposalID)
}

func (r *Repository) AddOption(ctx context.Context, option entities.ProposalOption) error {
	row := proposalOptionModel{
		ID:         strings.TrimSpace(option.OptionID),
		ProposalID: strings.TrimSpace(option.ProposalID),
		Label:      option.Label,
		CreatedAt:  option.CreatedAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrConflict
		}
		return r.logError("governance_repo_add_option_failed", err,
			"proposal_id", row.ProposalID,
			"option_id", row.ID,
		)
	}
	return nil
}

// DeleteOption locks the proposal row and re-checks draft status and the
// zero-vote rule inside the same transaction as the delete. The use case
// validates first, but a racing open can commit between that check and the
// delete, and an open proposal must never lose an option.
func (r *Repository) DeleteOption(ctx context.Context, proposalID string, optionID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var proposal proposalModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", strings.TrimSpace(proposalID)).
			First(&proposal).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrProposalNotFound
			}
			return err
		}
		if proposal.Status != string(entities.ProposalStatusDraft) {
			return domainerrors.ErrOptionNotDeletable
		}

		var voteCount int64
		if err := tx.Model(&voteModel{}).
			Where("proposal_id = ?", proposal.ID).
			Where("option_id = ?", strings.TrimSpace(optionID)).
			Count(&voteCount).Error; err != nil {
			return err
		}
		if voteCount > 0 {
			return domainerrors.ErrOptionHasVotes
		}

		result := tx.Where("proposal_id = ?", proposal.ID).
			Where("id = ?", strings.TrimSpace(optionID)).
			Delete(&proposalOptionModel{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrOptionNotFound
		}
		return nil
	})
	if err != nil {
		if isExpectedGovernanceError(err) {
			return err
		}
		return r.logError("governance_repo_delete_option_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
			"option_id", strings.TrimSpace(optionID),
		)
	}
	return nil
}

func (r *Repository) ListOptions(ctx context.Context, proposalID string) ([]entities.ProposalOption, error) {
	var rows []proposalOptionModel
	if err := r.db.WithContext(ctx).
		Where("proposal_id = ?", strings.TrimSpace(proposalID)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("governance_repo_list_options_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
		)
	}
	items := make([]entities.ProposalOption, 0, len(rows))
	for _, row := range rows {
		items = append(items, entities.ProposalOption{
			OptionID:   row.ID,
			ProposalID: row.ProposalID,
			Label:      row.Label,
			CreatedAt:  row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) ListDueForOpen(ctx context.Context, now time.Time, limit int) ([]entities.Proposal, error) {
	return r.listDue(ctx, string(entities.ProposalStatusDraft), "start_at", now, limit)
}

func (r *Repository) ListDueForClose(ctx context.Context, now time.Time, limit int) ([]entities.Proposal, error) {
	return r.listDue(ctx, string(entities.ProposalStatusOpen), "end_at", now, limit)
}

func (r *Repository) listDue(
	ctx context.Context,
	status string,
	column string,
	now time.Time,
	limit int,
) ([]entities.Proposal, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []proposalModel
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Where(column+" IS NOT NULL").
		Where(column+" <= ?", now.UTC()).
		Order(column + " ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, r.logError("governance_repo_list_due_failed", err,
			"status", status,
			"bound", column,
		)
	}
	items := make([]entities.Proposal, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

// InsertVote takes a share lock on the proposal row, re-checks open status,
// and inserts. The unique index on (proposal_id, user_id) is the authority
// on duplicates: a 23505 from a racing cast surfaces as ErrDuplicateVote.
func (r *Repository) InsertVote(ctx context.Context, vote entities.Vote) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var proposal proposalModel
		if err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Where("id = ?", vote.ProposalID).
			First(&proposal).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrProposalNotFound
			}
			return err
		}
		if proposal.Status != string(entities.ProposalStatusOpen) {
			return domainerrors.ErrProposalNotOpen
		}
		row := voteModelFromEntity(vote)
		return tx.Create(&row).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateVote
		}
		if isExpectedGovernanceError(err) {
			return err
		}
		return r.logError("governance_repo_insert_vote_failed", err,
			"proposal_id", vote.ProposalID,
			"user_id", vote.UserID,
		)
	}
	return nil
}

func (r *Repository) GetVoteByIdentity(ctx context.Context, proposalID string, userID string) (entities.Vote, bool, error) {
	var row voteModel
	err := r.db.WithContext(ctx).
		Where("proposal_id = ?", strings.TrimSpace(proposalID)).
		Where("user_id = ?", strings.TrimSpace(userID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Vote{}, false, nil
		}
		return entities.Vote{}, false, r.logError("governance_repo_get_vote_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
			"user_id", strings.TrimSpace(userID),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListVotesByProposal(ctx context.Context, proposalID string) ([]entities.Vote, error) {
	var rows []voteModel
	if err := r.db.WithContext(ctx).
		Where("proposal_id = ?", strings.TrimSpace(proposalID)).
		Order("cast_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("governance_repo_list_votes_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
		)
	}
	items := make([]entities.Vote, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) OptionHasVotes(ctx context.Context, proposalID string, optionID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&voteModel{}).
		Where("proposal_id = ?", strings.TrimSpace(proposalID)).
		Where("option_id = ?", strings.TrimSpace(optionID)).
		Count(&count).Error
	if err != nil {
		return false, r.logError("governance_repo_option_has_votes_failed", err,
			"proposal_id", strings.TrimSpace(proposalID),
			"option_id", strings.TrimSpace(optionID),
		)
	}
	return count > 0, nil
}

// GetBalances joins the balance projection with share-type weights. Both
// tables are owned by the external issuance subsystem; the engine only
// reads them.
func (r *Repository) GetBalances(ctx context.Context, userID string, organizationID string) ([]entities.ShareHolding, error) {
	return r.queryHoldings(ctx, organizationID, strings.TrimSpace(userID))
}

func (r *Repository) GetAllBalances(ctx context.Context, organizationID string) ([]entities.ShareHolding, error) {
	return r.queryHoldings(ctx, organizationID, "")
}

func (r *Repository) queryHoldings(ctx context.Context, organizationID string, userID string) ([]entities.ShareHolding, error) {
	type holdingRow struct {
		ShareTypeID  string          `gorm:"column:share_type_id"`
		UserID       string          `gorm:"column:user_id"`
		VotingWeight decimal.Decimal `gorm:"column:voting_weight"`
		Quantity     decimal.Decimal `gorm:"column:quantity"`
	}
	tx := r.db.WithContext(ctx).
		Table("share_balances AS b").
		Select("b.share_type_id, b.user_id, t.voting_weight, b.quantity").
		Joins("JOIN share_types AS t ON t.id = b.share_type_id").
		Where("t.organization_id = ?", strings.TrimSpace(organizationID))
	if userID != "" {
		tx = tx.Where("b.user_id = ?", userID)
	}
	var rows []holdingRow
	if err := tx.Scan(&rows).Error; err != nil {
		return nil, r.logError("governance_repo_query_holdings_failed", err,
			"organization_id", strings.TrimSpace(organizationID),
			"user_id", userID,
		)
	}
	items := make([]entities.ShareHolding, 0, len(rows))
	for _, row := range rows {
		items = append(items, entities.ShareHolding{
			ShareTypeID:  row.ShareTypeID,
			UserID:       row.UserID,
			VotingWeight: row.VotingWeight,
			Quantity:     row.Quantity,
		})
	}
	return items, nil
}

func (r *Repository) GetOrganization(ctx context.Context, organizationID string) (entities.Organization, error) {
	var row organizationModel
	err := r.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(organizationID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Organization{}, domainerrors.ErrOrganizationNotFound
		}
		return entities.Organization{}, r.logError("governance_repo_get_organization_failed", err,
			"organization_id", strings.TrimSpace(organizationID),
		)
	}
	return entities.Organization{
		OrganizationID: row.ID,
		Name:           row.Name,
	}, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := encodeEnvelope(envelope)
	if err != nil {
		return r.logError("governance_repo_append_outbox_marshal_failed", err,
			"event_id", envelope.EventID,
			"event_type", envelope.EventType,
		)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    envelope.EventType,
		PartitionKey: envelope.PartitionKey,
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("governance_repo_append_outbox_insert_failed", create.Error,
			"outbox_id", row.OutboxID,
		)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("governance_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("governance_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "governance-core/proposal-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("governance repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isExpectedGovernanceError(err error) bool {
	return errors.Is(err, domainerrors.ErrProposalNotFound) ||
		errors.Is(err, domainerrors.ErrInvalidTransition) ||
		errors.Is(err, domainerrors.ErrInsufficientOptions) ||
		errors.Is(err, domainerrors.ErrProposalNotOpen) ||
		errors.Is(err, domainerrors.ErrOptionNotDeletable) ||
		errors.Is(err, domainerrors.ErrOptionHasVotes) ||
		errors.Is(err, domainerrors.ErrOptionNotFound)
}

var _ ports.ProposalRepository = (*Repository)(nil)
var _ ports.VoteRepository = (*Repository)(nil)
var _ ports.BalanceProvider = (*Repository)(nil)
var _ ports.OrganizationProvider = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
