package postgresadapter

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"agora/contexts/governance-core/proposal-engine/domain/entities"
	"agora/contexts/governance-core/proposal-engine/ports"
)

type proposalModel struct {
	ID                  string              `gorm:"column:id;primaryKey"`
	OrganizationID      string              `gorm:"column:organization_id"`
	Title               string              `gorm:"column:title"`
	Description         string              `gorm:"column:description"`
	Status              string              `gorm:"column:status"`
	StartAt             *time.Time          `gorm:"column:start_at"`
	EndAt               *time.Time          `gorm:"column:end_at"`
	QuorumRequirement   decimal.NullDecimal `gorm:"column:quorum_requirement;type:numeric"`
	EligibleVotingPower decimal.Decimal     `gorm:"column:eligible_voting_power;type:numeric"`
	TotalVotesCast      decimal.Decimal     `gorm:"column:total_votes_cast;type:numeric"`
	WinningOptionID     *string             `gorm:"column:winning_option_id"`
	QuorumMet           bool                `gorm:"column:quorum_met"`
	ClosedAt            *time.Time          `gorm:"column:closed_at"`
	FinalizedAt         *time.Time          `gorm:"column:finalized_at"`
	ResultsDigest       string              `gorm:"column:results_digest"`
	CreatedBy           string              `gorm:"column:created_by"`
	CreatedAt           time.Time           `gorm:"column:created_at"`
	UpdatedAt           time.Time           `gorm:"column:updated_at"`
}

func (proposalModel) TableName() string {
	return "proposals"
}

func proposalModelFromEntity(proposal entities.Proposal) proposalModel {
	row := proposalModel{
		ID:                  strings.TrimSpace(proposal.ProposalID),
		OrganizationID:      strings.TrimSpace(proposal.OrganizationID),
		Title:               proposal.Title,
		Description:         proposal.Description,
		Status:              string(proposal.Status),
		StartAt:             normalizeOptionalTime(proposal.StartAt),
		EndAt:               normalizeOptionalTime(proposal.EndAt),
		EligibleVotingPower: proposal.EligibleVotingPowerSnapshot,
		TotalVotesCast:      proposal.TotalVotesCast,
		WinningOptionID:     proposal.WinningOptionID,
		QuorumMet:           proposal.QuorumMet,
		ClosedAt:            normalizeOptionalTime(proposal.ClosedAt),
		FinalizedAt:         normalizeOptionalTime(proposal.FinalizedAt),
		ResultsDigest:       proposal.ResultsDigest,
		CreatedBy:           strings.TrimSpace(proposal.CreatedBy),
		CreatedAt:           proposal.CreatedAt.UTC(),
		UpdatedAt:           proposal.UpdatedAt.UTC(),
	}
	if proposal.QuorumRequirement != nil {
		row.QuorumRequirement = decimal.NewNullDecimal(*proposal.QuorumRequirement)
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m proposalModel) toEntity() entities.Proposal {
	proposal := entities.Proposal{
		ProposalID:                  m.ID,
		OrganizationID:              m.OrganizationID,
		Title:                       m.Title,
		Description:                 m.Description,
		Status:                      entities.ProposalStatus(m.Status),
		StartAt:                     normalizeOptionalTime(m.StartAt),
		EndAt:                       normalizeOptionalTime(m.EndAt),
		EligibleVotingPowerSnapshot: m.EligibleVotingPower,
		TotalVotesCast:              m.TotalVotesCast,
		WinningOptionID:             m.WinningOptionID,
		QuorumMet:                   m.QuorumMet,
		ClosedAt:                    normalizeOptionalTime(m.ClosedAt),
		FinalizedAt:                 normalizeOptionalTime(m.FinalizedAt),
		ResultsDigest:               m.ResultsDigest,
		CreatedBy:                   m.CreatedBy,
		CreatedAt:                   m.CreatedAt.UTC(),
		UpdatedAt:                   m.UpdatedAt.UTC(),
	}
	if m.QuorumRequirement.Valid {
		requirement := m.QuorumRequirement.Decimal
		proposal.QuorumRequirement = &requirement
	}
	return proposal
}

type proposalOptionModel struct {
	ID         string    `gorm:"column:id;primaryKey"`
	ProposalID string    `gorm:"column:proposal_id"`
	Label      string    `gorm:"column:label"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (proposalOptionModel) TableName() string {
	return "proposal_options"
}

type voteModel struct {
	ID          string          `gorm:"column:id;primaryKey"`
	ProposalID  string          `gorm:"column:proposal_id;uniqueIndex:idx_votes_proposal_user"`
	UserID      string          `gorm:"column:user_id;uniqueIndex:idx_votes_proposal_user"`
	OptionID    string          `gorm:"column:option_id"`
	VotingPower decimal.Decimal `gorm:"column:voting_power;type:numeric"`
	CastAt      time.Time       `gorm:"column:cast_at"`
}

func (voteModel) TableName() string {
	return "votes"
}

func voteModelFromEntity(vote entities.Vote) voteModel {
	return voteModel{
		ID:          strings.TrimSpace(vote.VoteID),
		ProposalID:  strings.TrimSpace(vote.ProposalID),
		UserID:      strings.TrimSpace(vote.UserID),
		OptionID:    strings.TrimSpace(vote.OptionID),
		VotingPower: vote.VotingPower,
		CastAt:      vote.CastAt.UTC(),
	}
}

func (m voteModel) toEntity() entities.Vote {
	return entities.Vote{
		VoteID:      m.ID,
		ProposalID:  m.ProposalID,
		OptionID:    m.OptionID,
		UserID:      m.UserID,
		VotingPower: m.VotingPower,
		CastAt:      m.CastAt.UTC(),
	}
}

// organizationModel, share_types, and share_balances are projections owned
// by the external issuance subsystem; the engine reads them and never
// migrates or mutates them.
type organizationModel struct {
	ID   string `gorm:"column:id;primaryKey"`
	Name string `gorm:"column:name"`
}

func (organizationModel) TableName() string {
	return "organizations"
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "governance_outbox"
}

func encodeEnvelope(envelope ports.EventEnvelope) ([]byte, error) {
	return json.Marshal(envelope)
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}

// SystemClock and UUIDGenerator are the production implementations of the
// determinism seams.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

var _ ports.Clock = SystemClock{}
var _ ports.IDGenerator = UUIDGenerator{}
