// Package tally aggregates a proposal's votes into per-option totals,
// selects the winning option, and evaluates quorum. The computation is pure
// and deterministic: given the same votes and snapshot it always produces
// the same outcome, so a close-time result can be reproduced for audit at
// any later point.
package tally

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"

	"agora/contexts/governance-core/proposal-engine/domain/entities"
)

// OptionTotal is one option's share of the outcome.
type OptionTotal struct {
	OptionID         string
	VoteCount        int
	TotalVotingPower decimal.Decimal
}

// Outcome is the frozen result of a close transition. Options are ranked by
// descending total power with ties broken by ascending option ID, so the
// winner is always Options[0] when any vote was cast.
type Outcome struct {
	TotalVotesCast  decimal.Decimal
	WinningOptionID *string
	QuorumMet       bool
	Options         []OptionTotal
}

// Compute groups votes by option and derives the outcome against the
// eligible-power snapshot captured at open time. A nil quorum requirement
// means quorum is unconditionally met.
func Compute(
	votes []entities.Vote,
	eligiblePowerSnapshot decimal.Decimal,
	quorumRequirement *decimal.Decimal,
) Outcome {
	byOption := make(map[string]OptionTotal)
	totalCast := decimal.Zero
	for _, vote := range votes {
		current, ok := byOption[vote.OptionID]
		if !ok {
			current = OptionTotal{OptionID: vote.OptionID, TotalVotingPower: decimal.Zero}
		}
		current.VoteCount++
		current.TotalVotingPower = current.TotalVotingPower.Add(vote.VotingPower)
		byOption[vote.OptionID] = current
		totalCast = totalCast.Add(vote.VotingPower)
	}

	options := make([]OptionTotal, 0, len(byOption))
	for _, total := range byOption {
		options = append(options, total)
	}
	sort.Slice(options, func(i, j int) bool {
		if options[i].TotalVotingPower.Equal(options[j].TotalVotingPower) {
			return options[i].OptionID < options[j].OptionID
		}
		return options[i].TotalVotingPower.GreaterThan(options[j].TotalVotingPower)
	})

	outcome := Outcome{
		TotalVotesCast: totalCast,
		QuorumMet:      EvaluateQuorum(eligiblePowerSnapshot, quorumRequirement, totalCast),
		Options:        options,
	}
	if len(options) > 0 {
		winner := options[0].OptionID
		outcome.WinningOptionID = &winner
	}
	return outcome
}

// EvaluateQuorum checks totalCast against snapshot × requirement / 100.
// Unset requirement always passes; a zero requirement needs zero power and
// passes as well.
func EvaluateQuorum(
	eligiblePowerSnapshot decimal.Decimal,
	quorumRequirement *decimal.Decimal,
	totalCast decimal.Decimal,
) bool {
	if quorumRequirement == nil {
		return true
	}
	required := eligiblePowerSnapshot.Mul(*quorumRequirement).Div(decimal.NewFromInt(100))
	return totalCast.GreaterThanOrEqual(required)
}

type digestOption struct {
	OptionID         string `json:"option_id"`
	VoteCount        int    `json:"vote_count"`
	TotalVotingPower string `json:"total_voting_power"`
}

type digestPayload struct {
	TotalVotesCast  string         `json:"total_votes_cast"`
	WinningOptionID *string        `json:"winning_option_id"`
	QuorumMet       bool           `json:"quorum_met"`
	Options         []digestOption `json:"options"`
}

// Digest returns the SHA-256 hex digest of the canonical outcome JSON.
// Options are serialized in ascending option-ID order so the digest is
// independent of ranking, and decimals as exact strings so it is
// independent of float formatting.
func Digest(outcome Outcome) string {
	options := make([]digestOption, 0, len(outcome.Options))
	for _, option := range outcome.Options {
		options = append(options, digestOption{
			OptionID:         option.OptionID,
			VoteCount:        option.VoteCount,
			TotalVotingPower: option.TotalVotingPower.String(),
		})
	}
	sort.Slice(options, func(i, j int) bool {
		return options[i].OptionID < options[j].OptionID
	})
	payload := digestPayload{
		TotalVotesCast:  outcome.TotalVotesCast.String(),
		WinningOptionID: outcome.WinningOptionID,
		QuorumMet:       outcome.QuorumMet,
		Options:         options,
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
