package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/taasclub/cardbet/internal/domain"
)

// SlipRepository handles all database operations for bet slips, their card
// lines, and per-card round totals.
type SlipRepository struct {
	db *sqlx.DB
}

// NewSlipRepository creates a new SlipRepository.
func NewSlipRepository(db *sqlx.DB) *SlipRepository {
	return &SlipRepository{db: db}
}

// IsUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation, optionally narrowed to a specific constraint name.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// ──────────────────────────────────────────────────────────────────────────────
// Writes — all inside the caller's transaction
// ──────────────────────────────────────────────────────────────────────────────

// CreateSlip inserts a new slip row.
func (r *SlipRepository) CreateSlip(ctx context.Context, tx *sqlx.Tx, s *domain.BetSlip) error {
	query := `
		INSERT INTO bet_slips
			(id, user_id, round_id, total_amount, barcode, payout_amount, status,
			 claimed, cancelled, idempotency_key, created_at, updated_at)
		VALUES
			(:id, :user_id, :round_id, :total_amount, :barcode, :payout_amount, :status,
			 :claimed, :cancelled, :idempotency_key, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("slip_repo.CreateSlip: %w", err)
	}
	return nil
}

// CreateDetails inserts all card lines of a slip.
func (r *SlipRepository) CreateDetails(ctx context.Context, tx *sqlx.Tx, details []*domain.BetDetail) error {
	query := `
		INSERT INTO bet_details
			(id, slip_id, round_id, user_id, card_number, bet_amount, is_winner, payout)
		VALUES
			(:id, :slip_id, :round_id, :user_id, :card_number, :bet_amount, :is_winner, :payout)`
	for _, d := range details {
		if _, err := tx.NamedExecContext(ctx, query, d); err != nil {
			return fmt.Errorf("slip_repo.CreateDetails: %w", err)
		}
	}
	return nil
}

// AddCardTotal atomically adjusts the running total for one card of a round.
// delta may be negative (cancellation).
func (r *SlipRepository) AddCardTotal(ctx context.Context, tx *sqlx.Tx, roundID string, cardNumber int, delta decimal.Decimal) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO round_card_totals (round_id, card_number, total)
		VALUES ($1, $2, $3)
		ON CONFLICT (round_id, card_number)
		DO UPDATE SET total = round_card_totals.total + EXCLUDED.total`,
		roundID, cardNumber, delta)
	if err != nil {
		return fmt.Errorf("slip_repo.AddCardTotal: %w", err)
	}
	return nil
}

// GetForUpdate fetches a slip inside tx with a row-level lock.
func (r *SlipRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*domain.BetSlip, error) {
	var s domain.BetSlip
	err := tx.GetContext(ctx, &s, `SELECT * FROM bet_slips WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSlipNotFound
		}
		return nil, fmt.Errorf("slip_repo.GetForUpdate: %w", err)
	}
	return &s, nil
}

// SetClaimed marks the slip claimed exactly once; a second call affects no
// rows and fails with ErrAlreadyClaimed.
func (r *SlipRepository) SetClaimed(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, at time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE bet_slips
		SET claimed = TRUE, claimed_at = $1, updated_at = now()
		WHERE id = $2 AND claimed = FALSE`,
		at, id)
	if err != nil {
		return fmt.Errorf("slip_repo.SetClaimed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAlreadyClaimed
	}
	return nil
}

// CancelSlip voids a pending slip: cancelled marks why, status moves straight
// to lost so no slip of a settled round can still read pending. The row is
// kept for audit-ability; the refund credit is written separately by the
// caller.
func (r *SlipRepository) CancelSlip(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE bet_slips
		SET cancelled = TRUE, status = 'lost', updated_at = now()
		WHERE id = $1 AND status = 'pending' AND cancelled = FALSE`,
		id)
	if err != nil {
		return fmt.Errorf("slip_repo.CancelSlip: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotCancellable
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Settlement — load the round's slips and lines, persist computed outcomes
// ──────────────────────────────────────────────────────────────────────────────

// ListForSettlement loads and locks every slip of a round inside the
// settlement transaction, so no claim or cancel can interleave while outcomes
// are being stamped.
func (r *SlipRepository) ListForSettlement(ctx context.Context, tx *sqlx.Tx, roundID string) ([]*domain.BetSlip, error) {
	var slips []*domain.BetSlip
	err := tx.SelectContext(ctx, &slips,
		`SELECT * FROM bet_slips WHERE round_id = $1 ORDER BY created_at ASC FOR UPDATE`,
		roundID)
	if err != nil {
		return nil, fmt.Errorf("slip_repo.ListForSettlement: %w", err)
	}
	return slips, nil
}

// ListRoundDetails returns every card line of a round inside tx.
func (r *SlipRepository) ListRoundDetails(ctx context.Context, tx *sqlx.Tx, roundID string) ([]*domain.BetDetail, error) {
	var details []*domain.BetDetail
	err := tx.SelectContext(ctx, &details,
		`SELECT * FROM bet_details WHERE round_id = $1 ORDER BY slip_id, card_number`,
		roundID)
	if err != nil {
		return nil, fmt.Errorf("slip_repo.ListRoundDetails: %w", err)
	}
	return details, nil
}

// SaveDetailOutcomes persists the computed is_winner/payout of each line.
func (r *SlipRepository) SaveDetailOutcomes(ctx context.Context, tx *sqlx.Tx, details []*domain.BetDetail) error {
	for _, d := range details {
		_, err := tx.ExecContext(ctx,
			`UPDATE bet_details SET is_winner = $1, payout = $2 WHERE id = $3`,
			d.IsWinner, d.Payout, d.ID)
		if err != nil {
			return fmt.Errorf("slip_repo.SaveDetailOutcomes: %w", err)
		}
	}
	return nil
}

// SaveSlipOutcome stamps a slip's settled status and payout. The pending
// guard keeps a cancelled or already-settled slip untouched.
// Invariant: payout_amount = Σ details.payout.
func (r *SlipRepository) SaveSlipOutcome(ctx context.Context, tx *sqlx.Tx, out *domain.SlipOutcome) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE bet_slips
		SET payout_amount = $1, status = $2, updated_at = now()
		WHERE id = $3 AND status = 'pending' AND cancelled = FALSE`,
		out.Payout, string(out.Status), out.SlipID)
	if err != nil {
		return fmt.Errorf("slip_repo.SaveSlipOutcome: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────────────────────────────────

// GetByID fetches a slip by its primary key.
func (r *SlipRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.BetSlip, error) {
	var s domain.BetSlip
	err := r.db.GetContext(ctx, &s, `SELECT * FROM bet_slips WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSlipNotFound
		}
		return nil, fmt.Errorf("slip_repo.GetByID: %w", err)
	}
	return &s, nil
}

// GetByBarcode fetches a slip by its point-of-sale barcode.
func (r *SlipRepository) GetByBarcode(ctx context.Context, barcode string) (*domain.BetSlip, error) {
	var s domain.BetSlip
	err := r.db.GetContext(ctx, &s, `SELECT * FROM bet_slips WHERE barcode = $1`, barcode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSlipNotFound
		}
		return nil, fmt.Errorf("slip_repo.GetByBarcode: %w", err)
	}
	return &s, nil
}

// GetByIdempotencyKey fetches the slip created under the given key, if any.
func (r *SlipRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.BetSlip, error) {
	var s domain.BetSlip
	err := r.db.GetContext(ctx, &s, `SELECT * FROM bet_slips WHERE idempotency_key = $1`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSlipNotFound
		}
		return nil, fmt.Errorf("slip_repo.GetByIdempotencyKey: %w", err)
	}
	return &s, nil
}

// GetDetails returns the card lines of one slip.
func (r *SlipRepository) GetDetails(ctx context.Context, slipID uuid.UUID) ([]*domain.BetDetail, error) {
	var details []*domain.BetDetail
	err := r.db.SelectContext(ctx, &details,
		`SELECT * FROM bet_details WHERE slip_id = $1 ORDER BY card_number ASC`, slipID)
	if err != nil {
		return nil, fmt.Errorf("slip_repo.GetDetails: %w", err)
	}
	return details, nil
}

// GetDetailsForUpdate returns the card lines of one slip inside tx. Used by
// cancellation, which must decrement card totals from a stable snapshot.
func (r *SlipRepository) GetDetailsForUpdate(ctx context.Context, tx *sqlx.Tx, slipID uuid.UUID) ([]*domain.BetDetail, error) {
	var details []*domain.BetDetail
	err := tx.SelectContext(ctx, &details,
		`SELECT * FROM bet_details WHERE slip_id = $1 ORDER BY card_number ASC FOR UPDATE`, slipID)
	if err != nil {
		return nil, fmt.Errorf("slip_repo.GetDetailsForUpdate: %w", err)
	}
	return details, nil
}

// ListByUser returns a user's slips, newest first, paginated.
func (r *SlipRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.BetSlip, error) {
	var slips []*domain.BetSlip
	err := r.db.SelectContext(ctx, &slips,
		`SELECT * FROM bet_slips WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("slip_repo.ListByUser: %w", err)
	}
	return slips, nil
}

// ListByRound returns every slip of a round.
func (r *SlipRepository) ListByRound(ctx context.Context, roundID string) ([]*domain.BetSlip, error) {
	var slips []*domain.BetSlip
	err := r.db.SelectContext(ctx, &slips,
		`SELECT * FROM bet_slips WHERE round_id = $1 ORDER BY created_at ASC`, roundID)
	if err != nil {
		return nil, fmt.Errorf("slip_repo.ListByRound: %w", err)
	}
	return slips, nil
}

// GetCardTotals returns the per-card bet totals of a round as a map.
func (r *SlipRepository) GetCardTotals(ctx context.Context, roundID string) (map[int]decimal.Decimal, error) {
	var rows []*domain.RoundCardTotal
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM round_card_totals WHERE round_id = $1 ORDER BY card_number ASC`, roundID)
	if err != nil {
		return nil, fmt.Errorf("slip_repo.GetCardTotals: %w", err)
	}
	totals := make(map[int]decimal.Decimal, len(rows))
	for _, row := range rows {
		totals[row.CardNumber] = row.Total
	}
	return totals, nil
}

// RoundStats aggregates a settled round for idempotent report replays.
type RoundStats struct {
	WonSlips     int             `db:"won_slips"`
	LostSlips    int             `db:"lost_slips"`
	TotalWagered decimal.Decimal `db:"total_wagered"`
	TotalPayout  decimal.Decimal `db:"total_payout"`
}

// GetRoundStats returns slip counts and money totals for a round, excluding
// cancelled slips.
func (r *SlipRepository) GetRoundStats(ctx context.Context, roundID string) (*RoundStats, error) {
	var stats RoundStats
	err := r.db.GetContext(ctx, &stats, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'won')                     AS won_slips,
			COUNT(*) FILTER (WHERE status = 'lost' AND NOT cancelled)  AS lost_slips,
			COALESCE(SUM(total_amount) FILTER (WHERE NOT cancelled), 0) AS total_wagered,
			COALESCE(SUM(payout_amount) FILTER (WHERE status = 'won'), 0) AS total_payout
		FROM bet_slips
		WHERE round_id = $1`,
		roundID)
	if err != nil {
		return nil, fmt.Errorf("slip_repo.GetRoundStats: %w", err)
	}
	return &stats, nil
}
