package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// EntryDirection is the sign of a ledger entry relative to the wallet.
type EntryDirection string

const (
	DirectionCredit EntryDirection = "credit"
	DirectionDebit  EntryDirection = "debit"
)

// TxKind groups ledger entries for reporting and retention. Entries of kind
// recharge/withdrawal are retained forever; game entries may be archived.
type TxKind string

const (
	TxKindRecharge   TxKind = "recharge"
	TxKindWithdrawal TxKind = "withdrawal"
	TxKindGame       TxKind = "game"
)

// RefKind identifies which operation produced a ledger entry.
type RefKind string

const (
	RefBetPlacement RefKind = "bet_placement"
	RefSettlement   RefKind = "settlement"
	RefClaim        RefKind = "claim"
	RefCancelRefund RefKind = "cancel_refund"
	RefDeposit      RefKind = "deposit"
	RefWithdrawal   RefKind = "withdrawal"
)

// EntryStatus is the completion state of a ledger entry.
type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "pending"
	EntryStatusCompleted EntryStatus = "completed"
	EntryStatusFailed    EntryStatus = "failed"
)

// ──────────────────────────────────────────────────────────────────────────────
// WalletLedgerEntry
// ──────────────────────────────────────────────────────────────────────────────

// WalletLedgerEntry is one immutable money movement against a user's wallet
// balance. Entries are append-only; the core never updates or deletes them.
type WalletLedgerEntry struct {
	ID        uuid.UUID       `json:"id"         db:"id"`
	UserID    uuid.UUID       `json:"user_id"    db:"user_id"`
	Kind      TxKind          `json:"kind"       db:"kind"`
	Direction EntryDirection  `json:"direction"  db:"direction"`
	Amount    decimal.Decimal `json:"amount"     db:"amount"` // always positive
	RoundID   *string         `json:"round_id"   db:"round_id"`
	RefKind   RefKind         `json:"ref_kind"   db:"ref_kind"`
	RefID     string          `json:"ref_id"     db:"ref_id"` // slip id or round id
	Status    EntryStatus     `json:"status"     db:"status"`
	Comment   string          `json:"comment"    db:"comment"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Signed returns the entry amount with its direction applied: positive for
// credits, negative for debits.
func (e *WalletLedgerEntry) Signed() decimal.Decimal {
	if e.Direction == DirectionDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}

// LedgerSummary aggregates a user's completed entries over a range.
type LedgerSummary struct {
	UserID  uuid.UUID       `json:"user_id"`
	Credits decimal.Decimal `json:"credits"`
	Debits  decimal.Decimal `json:"debits"`
	Net     decimal.Decimal `json:"net"`
	Count   int             `json:"count"`
}

// LedgerFilter narrows ListEntries reads.
type LedgerFilter struct {
	Kind    TxKind  // "" = all kinds
	RefKind RefKind // "" = all reference kinds
	RoundID string  // "" = all rounds
}
