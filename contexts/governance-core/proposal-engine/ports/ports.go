package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"agora/contexts/governance-core/proposal-engine/domain/entities"
	"agora/contexts/governance-core/proposal-engine/domain/tally"
)

// ProposalRepository persists proposals and their options. The transition
// methods are atomic conditional writes keyed on the expected current
// status: two racing attempts yield exactly one success and one
// ErrInvalidTransition, never a double apply.
type ProposalRepository interface {
	SaveProposal(ctx context.Context, proposal entities.Proposal) error
	GetProposal(ctx context.Context, proposalID string) (entities.Proposal, error)
	ListProposalsByOrganization(ctx context.Context, organizationID string) ([]entities.Proposal, error)
	UpdateProposalMetadata(ctx context.Context, proposal entities.Proposal) error

	// OpenProposal moves draft -> open and freezes the eligible-power
	// snapshot in the same atomic unit. The option minimum is re-checked
	// inside that unit so a concurrent option delete cannot slip through.
	OpenProposal(ctx context.Context, proposalID string, snapshot decimal.Decimal, openedAt time.Time) (entities.Proposal, error)

	// CloseProposal moves open -> closed, computing the tally from the votes
	// visible inside the same transaction and freezing every result field
	// with the status write. No vote is accepted once it commits.
	CloseProposal(ctx context.Context, proposalID string, closedAt time.Time) (entities.Proposal, tally.Outcome, error)

	// FinalizeProposal moves closed -> finalized, an archival marker only.
	FinalizeProposal(ctx context.Context, proposalID string, finalizedAt time.Time) (entities.Proposal, error)

	AddOption(ctx context.Context, option entities.ProposalOption) error
	DeleteOption(ctx context.Context, proposalID string, optionID string) error
	ListOptions(ctx context.Context, proposalID string) ([]entities.ProposalOption, error)

	// ListDueForOpen selects draft proposals whose startAt has passed;
	// ListDueForClose selects open proposals whose endAt has passed. Both
	// are bounded scheduler batches.
	ListDueForOpen(ctx context.Context, now time.Time, limit int) ([]entities.Proposal, error)
	ListDueForClose(ctx context.Context, now time.Time, limit int) ([]entities.Proposal, error)
}

// VoteRepository persists votes. InsertVote must be guarded by a storage
// level uniqueness constraint on (proposal_id, user_id) and must re-check
// open status in the same atomic unit as the insert.
type VoteRepository interface {
	InsertVote(ctx context.Context, vote entities.Vote) error
	GetVoteByIdentity(ctx context.Context, proposalID string, userID string) (entities.Vote, bool, error)
	ListVotesByProposal(ctx context.Context, proposalID string) ([]entities.Vote, error)
	OptionHasVotes(ctx context.Context, proposalID string, optionID string) (bool, error)
}

// BalanceProvider exposes the external share-issuance subsystem. The engine
// only reads balances; it never mutates them.
type BalanceProvider interface {
	GetBalances(ctx context.Context, userID string, organizationID string) ([]entities.ShareHolding, error)
	GetAllBalances(ctx context.Context, organizationID string) ([]entities.ShareHolding, error)
}

// OrganizationProvider resolves organization projections owned elsewhere.
type OrganizationProvider interface {
	GetOrganization(ctx context.Context, organizationID string) (entities.Organization, error)
}

// EventEnvelope is the canonical event shape produced by the engine.
type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

// OutboxMessage is a persisted, not-yet-published event row.
type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

// OutboxWriter appends lifecycle events alongside state changes. Delivery
// guarantees belong to the relay and the external bus, not the engine.
type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

// OutboxRepository is the relay-side view of the outbox.
type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

// EventPublisher hands envelopes to the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
