// Package domain defines the core business entities and types for the
// taasclub card-round wagering system.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// Lifecycle represents the betting-window state of a round.
type Lifecycle string

const (
	LifecyclePending   Lifecycle = "pending"   // created, not yet open for betting
	LifecycleActive    Lifecycle = "active"    // accepting bets
	LifecycleCompleted Lifecycle = "completed" // betting window over, awaiting settlement
)

// SettlementStatus represents the settlement state of a round, tracked
// independently from the lifecycle.
type SettlementStatus string

const (
	SettlementNotSettled SettlementStatus = "not_settled"
	SettlementSettling   SettlementStatus = "settling"
	SettlementSettled    SettlementStatus = "settled"
	SettlementFailed     SettlementStatus = "failed"
)

// roundIDLayout is the wall-clock format a round id is built from.
const roundIDLayout = "20060102150405"

// kolkata is the fixed display timezone. All storage is UTC; round ids and
// the operating window are interpreted in this zone.
var kolkata = mustLoadKolkata()

func mustLoadKolkata() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.FixedZone("IST", 5*3600+30*60)
	}
	return loc
}

// DisplayLocation returns the fixed timezone used for user-facing timestamps.
func DisplayLocation() *time.Location { return kolkata }

// NewRoundID derives the stable round identifier from the round's start
// instant, formatted in the fixed timezone.
func NewRoundID(start time.Time) string {
	return start.In(DisplayLocation()).Format(roundIDLayout)
}

// WithinOperatingWindow reports whether t falls inside the ["HH:MM","HH:MM")
// wall-clock window in the fixed timezone. An empty bound or a window whose
// bounds are equal means the game runs around the clock. A start later than
// the end wraps past midnight.
func WithinOperatingWindow(t time.Time, start, end string) (bool, error) {
	if start == "" || end == "" || start == end {
		return true, nil
	}
	startMin, err := parseWallClock(start)
	if err != nil {
		return false, err
	}
	endMin, err := parseWallClock(end)
	if err != nil {
		return false, err
	}
	local := t.In(DisplayLocation())
	nowMin := local.Hour()*60 + local.Minute()
	if startMin < endMin {
		return nowMin >= startMin && nowMin < endMin, nil
	}
	return nowMin >= startMin || nowMin < endMin, nil
}

func parseWallClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Round
// ──────────────────────────────────────────────────────────────────────────────

// Round represents one fixed-duration wagering session with a single winning
// card. Created by the scheduler; lifecycle fields are mutated only by the
// scheduler, settlement fields only by the settlement engine.
type Round struct {
	ID                    string           `json:"round_id"                db:"id"`
	StartTime             time.Time        `json:"start_time"              db:"start_time"`
	EndTime               time.Time        `json:"end_time"                db:"end_time"`
	Lifecycle             Lifecycle        `json:"lifecycle"               db:"lifecycle"`
	SettlementStatus      SettlementStatus `json:"settlement_status"       db:"settlement_status"`
	WinningCard           *int             `json:"winning_card"            db:"winning_card"`
	Multiplier            decimal.Decimal  `json:"payout_multiplier"       db:"payout_multiplier"`
	SettlementStartedAt   *time.Time       `json:"settlement_started_at"   db:"settlement_started_at"`
	SettlementCompletedAt *time.Time       `json:"settlement_completed_at" db:"settlement_completed_at"`
	SettlementError       *string          `json:"settlement_error"        db:"settlement_error"`
	CreatedAt             time.Time        `json:"created_at"              db:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"              db:"updated_at"`
}

// IsActive returns true while the round is accepting bets.
func (r *Round) IsActive() bool {
	return r.Lifecycle == LifecycleActive
}

// IsCompleted returns true once the betting window has closed.
func (r *Round) IsCompleted() bool {
	return r.Lifecycle == LifecycleCompleted
}

// IsSettled returns true after the settlement engine has committed a result.
func (r *Round) IsSettled() bool {
	return r.SettlementStatus == SettlementSettled
}

// AcceptsBetsAt reports whether a bet placed at instant t may be admitted:
// the lifecycle must be active AND t must precede the end of the window.
// Both conditions are re-checked under a row lock by the bet service.
func (r *Round) AcceptsBetsAt(t time.Time) bool {
	return r.IsActive() && t.Before(r.EndTime)
}

// TimeLeft returns the duration remaining until the betting window closes.
// Returns 0 once the closing time has passed.
func (r *Round) TimeLeft() time.Duration {
	remaining := time.Until(r.EndTime)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ──────────────────────────────────────────────────────────────────────────────
// RoundSummary — lightweight read model for WS broadcasts and list endpoints
// ──────────────────────────────────────────────────────────────────────────────

// RoundSummary is a derived, read-only view of a Round used for broadcasting
// and the public round endpoints.
type RoundSummary struct {
	ID               string           `json:"round_id"`
	Lifecycle        Lifecycle        `json:"lifecycle"`
	SettlementStatus SettlementStatus `json:"settlement_status"`
	WinningCard      *int             `json:"winning_card,omitempty"`
	Multiplier       decimal.Decimal  `json:"payout_multiplier"`
	StartTime        time.Time        `json:"start_time"`
	EndTime          time.Time        `json:"end_time"`
	TimeLeftSec      int64            `json:"time_left_sec"`
}

// ToSummary builds a RoundSummary snapshot.
func (r *Round) ToSummary() RoundSummary {
	return RoundSummary{
		ID:               r.ID,
		Lifecycle:        r.Lifecycle,
		SettlementStatus: r.SettlementStatus,
		WinningCard:      r.WinningCard,
		Multiplier:       r.Multiplier,
		StartTime:        r.StartTime,
		EndTime:          r.EndTime,
		TimeLeftSec:      int64(r.TimeLeft().Seconds()),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// RoundCardTotal
// ──────────────────────────────────────────────────────────────────────────────

// RoundCardTotal is the running sum of bets on one card within a round.
// Maintained by bet placement and decremented by cancellation.
type RoundCardTotal struct {
	RoundID    string          `json:"round_id"    db:"round_id"`
	CardNumber int             `json:"card_number" db:"card_number"`
	Total      decimal.Decimal `json:"total"       db:"total"`
}
