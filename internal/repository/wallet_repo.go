package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/taasclub/cardbet/internal/domain"
)

// WalletRepository is the wallet ledger: an append-only log of credit/debit
// entries against users.deposit_amount. Every mutation runs inside a caller
// supplied transaction and locks the user row first, so for any user the
// ledger is linearized in commit order.
type WalletRepository struct {
	db *sqlx.DB
}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// EntryParams carries the inputs of one ledger application.
type EntryParams struct {
	UserID    uuid.UUID
	Direction domain.EntryDirection
	Amount    decimal.Decimal // must be strictly positive
	Kind      domain.TxKind
	RefKind   domain.RefKind
	RefID     string  // slip id or round id
	RoundID   *string // optional round reference
	Comment   string
}

// ApplyEntry applies one credit or debit inside tx and appends the ledger row.
//
// The user row is locked with FOR UPDATE before the balance is read. A debit
// that would take the balance below zero fails with ErrInsufficientFunds and
// writes nothing; the caller must abort the enclosing transaction. Returns
// the persisted entry and the balance after application.
func (r *WalletRepository) ApplyEntry(ctx context.Context, tx *sqlx.Tx, p EntryParams) (*domain.WalletLedgerEntry, decimal.Decimal, error) {
	if !p.Amount.IsPositive() {
		return nil, decimal.Zero, fmt.Errorf("wallet_repo.ApplyEntry: amount must be positive, got %s", p.Amount)
	}

	var balance decimal.Decimal
	err := tx.GetContext(ctx, &balance,
		`SELECT deposit_amount FROM users WHERE id = $1 FOR UPDATE`, p.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, decimal.Zero, domain.ErrUserNotFound
		}
		return nil, decimal.Zero, fmt.Errorf("wallet_repo.ApplyEntry lock: %w", err)
	}

	var newBalance decimal.Decimal
	switch p.Direction {
	case domain.DirectionDebit:
		if balance.LessThan(p.Amount) {
			return nil, decimal.Zero, domain.ErrInsufficientFunds
		}
		newBalance = balance.Sub(p.Amount)
	case domain.DirectionCredit:
		newBalance = balance.Add(p.Amount)
	default:
		return nil, decimal.Zero, fmt.Errorf("wallet_repo.ApplyEntry: unknown direction %q", p.Direction)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET deposit_amount = $1, updated_at = now() WHERE id = $2`,
		newBalance, p.UserID)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("wallet_repo.ApplyEntry update: %w", err)
	}

	entry := &domain.WalletLedgerEntry{
		ID:        uuid.New(),
		UserID:    p.UserID,
		Kind:      p.Kind,
		Direction: p.Direction,
		Amount:    p.Amount,
		RoundID:   p.RoundID,
		RefKind:   p.RefKind,
		RefID:     p.RefID,
		Status:    domain.EntryStatusCompleted,
		Comment:   p.Comment,
		CreatedAt: time.Now().UTC(),
	}
	query := `
		INSERT INTO wallet_ledger
			(id, user_id, kind, direction, amount, round_id, ref_kind, ref_id, status, comment, created_at)
		VALUES
			(:id, :user_id, :kind, :direction, :amount, :round_id, :ref_kind, :ref_id, :status, :comment, :created_at)`
	if _, err = tx.NamedExecContext(ctx, query, entry); err != nil {
		return nil, decimal.Zero, fmt.Errorf("wallet_repo.ApplyEntry insert: %w", err)
	}

	return entry, newBalance, nil
}

// GetBalance reads a user's current balance without locking.
func (r *WalletRepository) GetBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.db.GetContext(ctx, &balance,
		`SELECT deposit_amount FROM users WHERE id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, domain.ErrUserNotFound
		}
		return decimal.Zero, fmt.Errorf("wallet_repo.GetBalance: %w", err)
	}
	return balance, nil
}

// ListEntries returns a page of a user's ledger entries, newest first,
// optionally narrowed by kind, reference kind, or round. Non-locking.
func (r *WalletRepository) ListEntries(ctx context.Context, userID uuid.UUID, f domain.LedgerFilter, limit, offset int) ([]*domain.WalletLedgerEntry, error) {
	query := `SELECT * FROM wallet_ledger WHERE user_id = $1`
	args := []interface{}{userID}

	if f.Kind != "" {
		args = append(args, string(f.Kind))
		query += fmt.Sprintf(" AND kind = $%d", len(args))
	}
	if f.RefKind != "" {
		args = append(args, string(f.RefKind))
		query += fmt.Sprintf(" AND ref_kind = $%d", len(args))
	}
	if f.RoundID != "" {
		args = append(args, f.RoundID)
		query += fmt.Sprintf(" AND round_id = $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	var entries []*domain.WalletLedgerEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("wallet_repo.ListEntries: %w", err)
	}
	return entries, nil
}

// Summarize aggregates a user's completed entries over [from, to).
// Non-locking; the snapshot is only as consistent as a single query.
func (r *WalletRepository) Summarize(ctx context.Context, userID uuid.UUID, from, to time.Time) (*domain.LedgerSummary, error) {
	type row struct {
		Credits decimal.Decimal `db:"credits"`
		Debits  decimal.Decimal `db:"debits"`
		Count   int             `db:"count"`
	}
	var agg row
	err := r.db.GetContext(ctx, &agg, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE direction = 'credit'), 0) AS credits,
			COALESCE(SUM(amount) FILTER (WHERE direction = 'debit'), 0)  AS debits,
			COUNT(*)                                                      AS count
		FROM wallet_ledger
		WHERE user_id = $1
		  AND status = 'completed'
		  AND created_at >= $2 AND created_at < $3`,
		userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("wallet_repo.Summarize: %w", err)
	}
	return &domain.LedgerSummary{
		UserID:  userID,
		Credits: agg.Credits,
		Debits:  agg.Debits,
		Net:     agg.Credits.Sub(agg.Debits),
		Count:   agg.Count,
	}, nil
}
