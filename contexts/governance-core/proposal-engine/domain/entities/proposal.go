package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProposalStatus string

const (
	ProposalStatusDraft     ProposalStatus = "draft"
	ProposalStatusOpen      ProposalStatus = "open"
	ProposalStatusClosed    ProposalStatus = "closed"
	ProposalStatusFinalized ProposalStatus = "finalized"
)

// Proposal is the aggregate root of the governance lifecycle. Snapshot and
// result fields are write-once: the snapshot is frozen when the proposal
// opens, the result fields when it closes.
type Proposal struct {
	ProposalID     string
	OrganizationID string
	Title          string
	Description    string
	Status         ProposalStatus
	StartAt        *time.Time
	EndAt          *time.Time

	// QuorumRequirement is a percentage of eligible power (0-100). Nil means
	// no quorum requirement: any participation level counts as met.
	QuorumRequirement *decimal.Decimal

	// EligibleVotingPowerSnapshot is the organization-wide total voting power
	// at the instant the proposal opened. Quorum denominator.
	EligibleVotingPowerSnapshot decimal.Decimal

	TotalVotesCast  decimal.Decimal
	WinningOptionID *string
	QuorumMet       bool
	ClosedAt        *time.Time
	FinalizedAt     *time.Time

	// ResultsDigest is the SHA-256 hex digest of the canonical result
	// breakdown, frozen at close so audits can compare a recomputation
	// against what was committed.
	ResultsDigest string

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ProposalOption struct {
	OptionID   string
	ProposalID string
	Label      string
	CreatedAt  time.Time
}

// Vote is immutable once cast. VotingPower is computed from the voter's
// balances at cast time and never re-evaluated.
type Vote struct {
	VoteID      string
	ProposalID  string
	OptionID    string
	UserID      string
	VotingPower decimal.Decimal
	CastAt      time.Time
}

// ShareHolding is a read-only projection of one user's balance in one share
// type, joined with that share type's voting weight. Balances are owned by
// the external issuance subsystem.
type ShareHolding struct {
	ShareTypeID  string
	UserID       string
	VotingWeight decimal.Decimal
	Quantity     decimal.Decimal
}

// Organization is a read-only projection; the engine never creates or
// mutates organizations.
type Organization struct {
	OrganizationID string
	Name           string
}
