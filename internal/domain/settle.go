package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Settlement outcome computation — pure arithmetic, no I/O
// ──────────────────────────────────────────────────────────────────────────────

// SettleInitiator identifies which path triggered a settlement.
type SettleInitiator string

const (
	InitiatorScheduler SettleInitiator = "scheduler"
	InitiatorAdmin     SettleInitiator = "admin"
	InitiatorAlarm     SettleInitiator = "alarm"
	InitiatorRecovery  SettleInitiator = "recovery"
)

// SlipOutcome is the computed settlement result for one slip.
type SlipOutcome struct {
	SlipID uuid.UUID
	UserID uuid.UUID
	Status SlipStatus
	Payout decimal.Decimal
}

// SettlementReport summarises a settled round.
type SettlementReport struct {
	RoundID      string          `json:"round_id"`
	WinningCard  int             `json:"winning_card"`
	WonSlips     int             `json:"won_slips"`
	LostSlips    int             `json:"lost_slips"`
	TotalWagered decimal.Decimal `json:"total_wagered"`
	TotalPayout  decimal.Decimal `json:"total_payout"`
	HouseProfit  decimal.Decimal `json:"house_profit"`
	SettledAt    time.Time       `json:"settled_at"`
}

// ComputeOutcomes derives per-line and per-slip settlement results for the
// given winning card. Each detail with the winning card pays
// bet_amount × multiplier (scale 2, rounded down); all other lines pay zero.
// A slip wins iff any of its lines won; cancelled slips are skipped.
//
// The details slice is mutated in place (IsWinner, Payout); the returned map
// is keyed by slip id.
func ComputeOutcomes(details []*BetDetail, slips []*BetSlip, winningCard int, multiplier decimal.Decimal) map[uuid.UUID]*SlipOutcome {
	cancelled := make(map[uuid.UUID]bool, len(slips))
	outcomes := make(map[uuid.UUID]*SlipOutcome, len(slips))
	for _, s := range slips {
		if s.Cancelled {
			cancelled[s.ID] = true
			continue
		}
		outcomes[s.ID] = &SlipOutcome{
			SlipID: s.ID,
			UserID: s.UserID,
			Status: SlipStatusLost,
			Payout: decimal.Zero,
		}
	}

	for _, d := range details {
		if cancelled[d.SlipID] {
			continue
		}
		out, ok := outcomes[d.SlipID]
		if !ok {
			continue
		}
		if d.CardNumber == winningCard {
			d.IsWinner = true
			d.Payout = d.BetAmount.Mul(multiplier).RoundDown(MoneyScale)
			out.Status = SlipStatusWon
			out.Payout = out.Payout.Add(d.Payout)
		} else {
			d.IsWinner = false
			d.Payout = decimal.Zero
		}
	}
	return outcomes
}

// BuildReport aggregates computed outcomes into a settlement report.
func BuildReport(roundID string, winningCard int, totalWagered decimal.Decimal, outcomes map[uuid.UUID]*SlipOutcome, settledAt time.Time) *SettlementReport {
	rep := &SettlementReport{
		RoundID:      roundID,
		WinningCard:  winningCard,
		TotalWagered: totalWagered,
		TotalPayout:  decimal.Zero,
		SettledAt:    settledAt,
	}
	for _, out := range outcomes {
		if out.Status == SlipStatusWon {
			rep.WonSlips++
			rep.TotalPayout = rep.TotalPayout.Add(out.Payout)
		} else {
			rep.LostSlips++
		}
	}
	rep.HouseProfit = rep.TotalWagered.Sub(rep.TotalPayout)
	return rep
}

// CardPreview is one row of the admin settlement preview: what the house
// would pay and keep if the given card were chosen.
type CardPreview struct {
	CardNumber     int             `json:"card_number"`
	BetTotal       decimal.Decimal `json:"bet_total"`
	ExpectedPayout decimal.Decimal `json:"expected_payout"`
	HouseProfit    decimal.Decimal `json:"house_profit"`
}

// PreviewCards computes the expected payout and profit for every candidate
// card, in card order.
func PreviewCards(totals map[int]decimal.Decimal, totalWagered, multiplier decimal.Decimal, cardCount int) []CardPreview {
	previews := make([]CardPreview, 0, cardCount)
	for c := 1; c <= cardCount; c++ {
		total := totals[c]
		payout := total.Mul(multiplier).RoundDown(MoneyScale)
		previews = append(previews, CardPreview{
			CardNumber:     c,
			BetTotal:       total,
			ExpectedPayout: payout,
			HouseProfit:    totalWagered.Sub(payout),
		})
	}
	return previews
}
