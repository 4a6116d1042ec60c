package domain

import (
	"crypto/rand"
	"math/big"

	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Winning-card selector
// ──────────────────────────────────────────────────────────────────────────────

// SelectorPolicy chooses how a round's winning card is determined.
type SelectorPolicy string

const (
	PolicyLowestLoss SelectorPolicy = "lowest_loss"
	PolicyRandom     SelectorPolicy = "random"
	PolicyFixed      SelectorPolicy = "fixed"
)

// IsValid returns true if the policy is recognised.
func (p SelectorPolicy) IsValid() bool {
	return p == PolicyLowestLoss || p == PolicyRandom || p == PolicyFixed
}

// SelectorInput bundles the inputs of a selection.
type SelectorInput struct {
	Totals       map[int]decimal.Decimal // per-card bet totals; absent card = zero
	TotalWagered decimal.Decimal
	Multiplier   decimal.Decimal
	CardCount    int
	Policy       SelectorPolicy
	FixedCard    int // only meaningful for PolicyFixed
}

// SelectWinningCard chooses the round's winning card. Pure apart from the
// random policy; performs no I/O.
//
// lowest_loss: for each card c, expected payout = totals[c] × multiplier and
// house profit = totalWagered − expected payout. The card with the maximum
// profit wins; ties break toward the lowest card number.
//
// fixed: uses FixedCard when it lies in [1..CardCount], otherwise falls back
// to lowest_loss.
func SelectWinningCard(in SelectorInput) int {
	switch in.Policy {
	case PolicyRandom:
		return randomCard(in.CardCount)
	case PolicyFixed:
		if in.FixedCard >= 1 && in.FixedCard <= in.CardCount {
			return in.FixedCard
		}
		return lowestLossCard(in)
	default:
		return lowestLossCard(in)
	}
}

// lowestLossCard implements the house-profit maximising policy.
func lowestLossCard(in SelectorInput) int {
	best := 1
	bestProfit := houseProfit(in, 1)
	for c := 2; c <= in.CardCount; c++ {
		profit := houseProfit(in, c)
		if profit.GreaterThan(bestProfit) {
			best = c
			bestProfit = profit
		}
	}
	return best
}

// houseProfit returns totalWagered − totals[card] × multiplier.
func houseProfit(in SelectorInput, card int) decimal.Decimal {
	total := in.Totals[card]
	return in.TotalWagered.Sub(total.Mul(in.Multiplier))
}

// randomCard draws uniformly from [1..cardCount] using crypto/rand. Falls
// back to card 1 when the entropy source fails, which keeps selection total.
func randomCard(cardCount int) int {
	if cardCount < 1 {
		return 1
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(cardCount)))
	if err != nil {
		return 1
	}
	return int(n.Int64()) + 1
}
