package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// SlipStatus represents the current state of a bet slip.
type SlipStatus string

const (
	SlipStatusPending SlipStatus = "pending" // placed, round not yet settled
	SlipStatusWon     SlipStatus = "won"     // at least one line hit the winning card
	SlipStatusLost    SlipStatus = "lost"    // settled against the slip, or cancelled
)

// MoneyScale is the fixed-point scale for all monetary amounts.
const MoneyScale = 2

// ──────────────────────────────────────────────────────────────────────────────
// BetSlip
// ──────────────────────────────────────────────────────────────────────────────

// BetSlip is one user's atomic wager in a round, comprising one or more card
// lines. A slip commits entirely or not at all; there is no partial cashout.
type BetSlip struct {
	ID             uuid.UUID       `json:"slip_id"          db:"id"`
	UserID         uuid.UUID       `json:"user_id"          db:"user_id"`
	RoundID        string          `json:"round_id"         db:"round_id"`
	TotalAmount    decimal.Decimal `json:"total_amount"     db:"total_amount"`
	Barcode        string          `json:"barcode"          db:"barcode"`
	PayoutAmount   decimal.Decimal `json:"payout_amount"    db:"payout_amount"`
	Status         SlipStatus      `json:"status"           db:"status"`
	Claimed        bool            `json:"claimed"          db:"claimed"`
	ClaimedAt      *time.Time      `json:"claimed_at"       db:"claimed_at"`
	Cancelled      bool            `json:"cancelled"        db:"cancelled"`
	IdempotencyKey *string         `json:"-"                db:"idempotency_key"`
	CreatedAt      time.Time       `json:"created_at"       db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"       db:"updated_at"`
}

// IsClaimable returns true when the slip is a settled winner whose payout has
// not yet been moved into the wallet.
func (s *BetSlip) IsClaimable() bool {
	return s.Status == SlipStatusWon && !s.Claimed
}

// IsCancellable returns true when the slip itself still permits cancellation.
// The round window and cutoff are checked separately under the round lock.
func (s *BetSlip) IsCancellable() bool {
	return s.Status == SlipStatusPending && !s.Cancelled
}

// ──────────────────────────────────────────────────────────────────────────────
// BetDetail
// ──────────────────────────────────────────────────────────────────────────────

// BetDetail is one (card_number, amount) line inside a slip. Created
// atomically with its parent slip; mutated only by settlement.
type BetDetail struct {
	ID         uuid.UUID       `json:"id"          db:"id"`
	SlipID     uuid.UUID       `json:"slip_id"     db:"slip_id"`
	RoundID    string          `json:"round_id"    db:"round_id"`
	UserID     uuid.UUID       `json:"user_id"     db:"user_id"`
	CardNumber int             `json:"card_number" db:"card_number"`
	BetAmount  decimal.Decimal `json:"bet_amount"  db:"bet_amount"`
	IsWinner   bool            `json:"is_winner"   db:"is_winner"`
	Payout     decimal.Decimal `json:"payout"      db:"payout"`
}

// ──────────────────────────────────────────────────────────────────────────────
// PlaceBetRequest — value object used by BetService
// ──────────────────────────────────────────────────────────────────────────────

// BetLine is one validated (card, amount) pair of a placement request.
type BetLine struct {
	CardNumber int             `json:"card_number"`
	BetAmount  decimal.Decimal `json:"bet_amount"`
}

// PlaceBetRequest carries the validated inputs for placing a bet slip.
type PlaceBetRequest struct {
	UserID         uuid.UUID
	RoundID        string
	Lines          []BetLine
	IdempotencyKey *string
}

// Total returns the slip total, the sum of all line amounts.
func (r *PlaceBetRequest) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range r.Lines {
		total = total.Add(l.BetAmount)
	}
	return total
}

// SlipView is the API-safe representation of a slip with its lines.
type SlipView struct {
	BetSlip
	Lines []*BetDetail `json:"lines"`
}

// ClaimResult is returned by a successful claim.
type ClaimResult struct {
	SlipID     uuid.UUID       `json:"slip_id"`
	Amount     decimal.Decimal `json:"amount"`
	NewBalance decimal.Decimal `json:"new_balance"`
}
