package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/taasclub/cardbet/internal/domain"
)

// buildSlip creates a slip with lines on the given cards, one line per card,
// each for the given amount.
func buildSlip(userID uuid.UUID, roundID string, amount string, cards ...int) (*domain.BetSlip, []*domain.BetDetail) {
	slip := &domain.BetSlip{
		ID:      uuid.New(),
		UserID:  userID,
		RoundID: roundID,
		Status:  domain.SlipStatusPending,
	}
	total := decimal.Zero
	details := make([]*domain.BetDetail, 0, len(cards))
	for _, c := range cards {
		amt := dec(amount)
		total = total.Add(amt)
		details = append(details, &domain.BetDetail{
			ID:         uuid.New(),
			SlipID:     slip.ID,
			RoundID:    roundID,
			UserID:     userID,
			CardNumber: c,
			BetAmount:  amt,
		})
	}
	slip.TotalAmount = total
	return slip, details
}

// TestComputeOutcomes_WinAndLose: two slips; one has a line on the winning
// card, the other does not. payout = bet × multiplier on winning lines only,
// slip payout is the sum over its lines.
func TestComputeOutcomes_WinAndLose(t *testing.T) {
	round := "20250101120000"
	mult := dec("10")

	winner, winnerDetails := buildSlip(uuid.New(), round, "5", 4, 9) // line on 4 wins
	loser, loserDetails := buildSlip(uuid.New(), round, "8", 2, 11)

	slips := []*domain.BetSlip{winner, loser}
	details := append(winnerDetails, loserDetails...)

	outcomes := domain.ComputeOutcomes(details, slips, 4, mult)

	w := outcomes[winner.ID]
	if w.Status != domain.SlipStatusWon {
		t.Fatalf("winner slip status = %s, want won", w.Status)
	}
	if !w.Payout.Equal(dec("50")) {
		t.Errorf("winner payout = %s, want 50", w.Payout)
	}

	l := outcomes[loser.ID]
	if l.Status != domain.SlipStatusLost {
		t.Errorf("loser slip status = %s, want lost", l.Status)
	}
	if !l.Payout.IsZero() {
		t.Errorf("loser payout = %s, want 0", l.Payout)
	}

	// Line-level flags.
	for _, d := range winnerDetails {
		wantWin := d.CardNumber == 4
		if d.IsWinner != wantWin {
			t.Errorf("detail card %d IsWinner = %v, want %v", d.CardNumber, d.IsWinner, wantWin)
		}
	}
}

// TestComputeOutcomes_MultipleWinningLines: a slip's payout is the sum of
// payouts across all of its winning lines.
func TestComputeOutcomes_MultipleWinningLines(t *testing.T) {
	round := "20250101120000"
	slip, details := buildSlip(uuid.New(), round, "3", 6, 6, 1)

	outcomes := domain.ComputeOutcomes(details, []*domain.BetSlip{slip}, 6, dec("10"))

	out := outcomes[slip.ID]
	if !out.Payout.Equal(dec("60")) {
		t.Errorf("payout = %s, want 60 (two winning lines of 3 × 10)", out.Payout)
	}
}

// TestComputeOutcomes_CancelledSlipStaysLost: a cancelled slip is stamped
// lost at cancel time and takes no part in settlement even when one of its
// lines matches the winning card. It must never flip back to pending or won.
func TestComputeOutcomes_CancelledSlipStaysLost(t *testing.T) {
	round := "20250101120000"
	slip, details := buildSlip(uuid.New(), round, "10", 5)
	slip.Cancelled = true
	slip.Status = domain.SlipStatusLost

	outcomes := domain.ComputeOutcomes(details, []*domain.BetSlip{slip}, 5, dec("10"))
	if _, ok := outcomes[slip.ID]; ok {
		t.Error("cancelled slip should not appear in outcomes")
	}
	if slip.Status != domain.SlipStatusLost {
		t.Errorf("cancelled slip status = %s, want lost", slip.Status)
	}
	if details[0].IsWinner {
		t.Error("cancelled slip's detail should not be marked winner")
	}
}

// TestComputeOutcomes_RoundsDown: payouts are floored to scale 2.
func TestComputeOutcomes_RoundsDown(t *testing.T) {
	round := "20250101120000"
	slip, details := buildSlip(uuid.New(), round, "0.33", 2)

	outcomes := domain.ComputeOutcomes(details, []*domain.BetSlip{slip}, 2, dec("9.99"))
	// 0.33 × 9.99 = 3.2967 → 3.29
	if !outcomes[slip.ID].Payout.Equal(dec("3.29")) {
		t.Errorf("payout = %s, want 3.29", outcomes[slip.ID].Payout)
	}
}

func TestBuildReport(t *testing.T) {
	round := "20250101120000"
	mult := dec("10")
	w1, d1 := buildSlip(uuid.New(), round, "10", 7)
	w2, d2 := buildSlip(uuid.New(), round, "2", 7)
	l1, d3 := buildSlip(uuid.New(), round, "50", 3)
	// A cancelled slip on the winning card: refunded long ago, so it shows up
	// neither as won nor as lost.
	c1, d4 := buildSlip(uuid.New(), round, "5", 7)
	c1.Cancelled = true
	c1.Status = domain.SlipStatusLost

	slips := []*domain.BetSlip{w1, w2, l1, c1}
	details := append(append(append(d1, d2...), d3...), d4...)
	outcomes := domain.ComputeOutcomes(details, slips, 7, mult)

	rep := domain.BuildReport(round, 7, dec("62"), outcomes, time.Now())
	if rep.WonSlips != 2 || rep.LostSlips != 1 {
		t.Errorf("won/lost = %d/%d, want 2/1 (cancelled slip excluded)", rep.WonSlips, rep.LostSlips)
	}
	if !rep.TotalPayout.Equal(dec("120")) {
		t.Errorf("total payout = %s, want 120", rep.TotalPayout)
	}
	if !rep.HouseProfit.Equal(dec("-58")) {
		t.Errorf("house profit = %s, want -58", rep.HouseProfit)
	}
}

func TestPreviewCards(t *testing.T) {
	totals := map[int]decimal.Decimal{2: dec("5"), 3: dec("1")}
	previews := domain.PreviewCards(totals, dec("6"), dec("10"), 3)

	if len(previews) != 3 {
		t.Fatalf("previews = %d rows, want 3", len(previews))
	}
	if !previews[0].HouseProfit.Equal(dec("6")) {
		t.Errorf("card 1 profit = %s, want 6", previews[0].HouseProfit)
	}
	if !previews[1].ExpectedPayout.Equal(dec("50")) {
		t.Errorf("card 2 expected payout = %s, want 50", previews[1].ExpectedPayout)
	}
	if !previews[2].HouseProfit.Equal(dec("-4")) {
		t.Errorf("card 3 profit = %s, want -4", previews[2].HouseProfit)
	}
}
