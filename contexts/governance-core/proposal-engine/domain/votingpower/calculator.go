// Package votingpower computes voting power from share holdings. Power is
// the weighted sum of balances: Σ (share type voting weight × quantity).
package votingpower

import (
	"github.com/shopspring/decimal"

	"agora/contexts/governance-core/proposal-engine/domain/entities"
)

// CalculateVotingPower sums weight×quantity over one user's holdings.
// Callers guarantee non-negative weights and quantities; zero balances
// contribute zero.
func CalculateVotingPower(holdings []entities.ShareHolding) decimal.Decimal {
	power := decimal.Zero
	for _, holding := range holdings {
		power = power.Add(holding.VotingWeight.Mul(holding.Quantity))
	}
	return power
}

// CalculateTotalEligibleVotingPower sums weight×quantity over every member's
// holdings at the instant it is invoked. This is not a stored aggregate:
// membership and balances drift after a proposal opens, which is why the
// result is captured as a write-once snapshot on the proposal.
func CalculateTotalEligibleVotingPower(allHoldings []entities.ShareHolding) decimal.Decimal {
	return CalculateVotingPower(allHoldings)
}

// IsEligibleToVote reports whether the given power carries any weight.
func IsEligibleToVote(power decimal.Decimal) bool {
	return power.GreaterThan(decimal.Zero)
}
