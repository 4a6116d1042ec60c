package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/taasclub/cardbet/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// TestLowestLoss_SingleBet mirrors the canonical single-bet scenario:
// one slip of 10 on card 7 with multiplier 10 and 12 cards. Paying card 7
// would cost 100 against 10 wagered (profit −90); every other card costs
// nothing (profit 10). The tie among the other 11 cards breaks to card 1.
func TestLowestLoss_SingleBet(t *testing.T) {
	got := domain.SelectWinningCard(domain.SelectorInput{
		Totals:       map[int]decimal.Decimal{7: dec("10")},
		TotalWagered: dec("10"),
		Multiplier:   dec("10"),
		CardCount:    12,
		Policy:       domain.PolicyLowestLoss,
	})
	if got != 1 {
		t.Errorf("winning card = %d, want 1", got)
	}
}

// TestLowestLoss_TieBreak: totals {3:5, 9:5}; unbet cards all profit 10,
// cards 3 and 9 profit 5. Winner is the lowest unbet card, card 1.
func TestLowestLoss_TieBreak(t *testing.T) {
	got := domain.SelectWinningCard(domain.SelectorInput{
		Totals:       map[int]decimal.Decimal{3: dec("5"), 9: dec("5")},
		TotalWagered: dec("10"),
		Multiplier:   dec("10"),
		CardCount:    12,
		Policy:       domain.PolicyLowestLoss,
	})
	if got != 1 {
		t.Errorf("winning card = %d, want 1", got)
	}
}

// TestLowestLoss_SkipsBetCard: with card 1 carrying a bet, the lowest
// zero-exposure card is 2.
func TestLowestLoss_SkipsBetCard(t *testing.T) {
	got := domain.SelectWinningCard(domain.SelectorInput{
		Totals:       map[int]decimal.Decimal{1: dec("1"), 7: dec("10")},
		TotalWagered: dec("11"),
		Multiplier:   dec("10"),
		CardCount:    12,
		Policy:       domain.PolicyLowestLoss,
	})
	if got != 2 {
		t.Errorf("winning card = %d, want 2", got)
	}
}

// TestLowestLoss_PrefersSmallestExposure: every card carries a bet; the card
// with the smallest total wins.
func TestLowestLoss_PrefersSmallestExposure(t *testing.T) {
	totals := make(map[int]decimal.Decimal)
	for c := 1; c <= 4; c++ {
		totals[c] = dec("100")
	}
	totals[3] = dec("20")
	got := domain.SelectWinningCard(domain.SelectorInput{
		Totals:       totals,
		TotalWagered: dec("320"),
		Multiplier:   dec("10"),
		CardCount:    4,
		Policy:       domain.PolicyLowestLoss,
	})
	if got != 3 {
		t.Errorf("winning card = %d, want 3", got)
	}
}

func TestFixedPolicy(t *testing.T) {
	tests := []struct {
		name      string
		fixedCard int
		want      int
	}{
		{"valid fixed card", 4, 4},
		{"zero falls back to lowest_loss", 0, 1},
		{"out of range falls back to lowest_loss", 13, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := domain.SelectWinningCard(domain.SelectorInput{
				Totals:       map[int]decimal.Decimal{7: dec("10")},
				TotalWagered: dec("10"),
				Multiplier:   dec("10"),
				CardCount:    12,
				Policy:       domain.PolicyFixed,
				FixedCard:    tt.fixedCard,
			})
			if got != tt.want {
				t.Errorf("winning card = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRandomPolicy_InRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		got := domain.SelectWinningCard(domain.SelectorInput{
			CardCount: 12,
			Policy:    domain.PolicyRandom,
		})
		if got < 1 || got > 12 {
			t.Fatalf("random card %d out of [1..12]", got)
		}
	}
}

func TestPolicyIsValid(t *testing.T) {
	if !domain.PolicyLowestLoss.IsValid() || !domain.PolicyRandom.IsValid() || !domain.PolicyFixed.IsValid() {
		t.Error("known policies should be valid")
	}
	if domain.SelectorPolicy("roulette").IsValid() {
		t.Error("unknown policy should be invalid")
	}
}
