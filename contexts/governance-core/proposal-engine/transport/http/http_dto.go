package httptransport

import "time"

type CreateProposalRequest struct {
	OrganizationID    string     `json:"organization_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	StartAt           *time.Time `json:"start_at,omitempty"`
	EndAt             *time.Time `json:"end_at,omitempty"`
	QuorumRequirement *string    `json:"quorum_requirement,omitempty"`
}

type UpdateProposalRequest struct {
	Title             *string    `json:"title,omitempty"`
	Description       *string    `json:"description,omitempty"`
	StartAt           *time.Time `json:"start_at,omitempty"`
	EndAt             *time.Time `json:"end_at,omitempty"`
	QuorumRequirement *string    `json:"quorum_requirement,omitempty"`
}

type AddOptionRequest struct {
	Label string `json:"label"`
}

type CastVoteRequest struct {
	OptionID string `json:"option_id"`
}

type ProposalResponse struct {
	ProposalID                  string     `json:"proposal_id"`
	OrganizationID              string     `json:"organization_id"`
	Title                       string     `json:"title"`
	Description                 string     `json:"description,omitempty"`
	Status                      string     `json:"status"`
	StartAt                     *time.Time `json:"start_at,omitempty"`
	EndAt                       *time.Time `json:"end_at,omitempty"`
	QuorumRequirement           *string    `json:"quorum_requirement,omitempty"`
	EligibleVotingPowerSnapshot string     `json:"eligible_voting_power_snapshot"`
	TotalVotesCast              string     `json:"total_votes_cast"`
	WinningOptionID             *string    `json:"winning_option_id,omitempty"`
	QuorumMet                   bool       `json:"quorum_met"`
	ClosedAt                    *time.Time `json:"closed_at,omitempty"`
	FinalizedAt                 *time.Time `json:"finalized_at,omitempty"`
	ResultsDigest               string     `json:"results_digest,omitempty"`
	Options                     []OptionResponse `json:"options,omitempty"`
}

type OptionResponse struct {
	OptionID   string `json:"option_id"`
	ProposalID string `json:"proposal_id"`
	Label      string `json:"label"`
}

type VoteResponse struct {
	VoteID      string    `json:"vote_id"`
	ProposalID  string    `json:"proposal_id"`
	OptionID    string    `json:"option_id"`
	UserID      string    `json:"user_id"`
	VotingPower string    `json:"voting_power"`
	CastAt      time.Time `json:"cast_at"`
}

type ResultOptionItem struct {
	OptionID         string `json:"option_id"`
	Label            string `json:"label,omitempty"`
	VoteCount        int    `json:"vote_count"`
	TotalVotingPower string `json:"total_voting_power"`
	Rank             int    `json:"rank"`
}

type ResultsResponse struct {
	ProposalID      string             `json:"proposal_id"`
	Status          string             `json:"status"`
	TotalVotesCast  string             `json:"total_votes_cast"`
	WinningOptionID *string            `json:"winning_option_id,omitempty"`
	QuorumMet       bool               `json:"quorum_met"`
	ResultsDigest   string             `json:"results_digest,omitempty"`
	Options         []ResultOptionItem `json:"options"`
}

type ProposalListResponse struct {
	Items []ProposalResponse `json:"items"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
