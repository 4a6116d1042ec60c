package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/taasclub/cardbet/internal/domain"
)

// RoundRepository handles all database operations for Rounds.
type RoundRepository struct {
	db *sqlx.DB
}

// NewRoundRepository creates a new RoundRepository.
func NewRoundRepository(db *sqlx.DB) *RoundRepository {
	return &RoundRepository{db: db}
}

// Create inserts a new round row. A duplicate id (the scheduler racing
// itself across processes) surfaces as a unique violation the caller may
// treat as benign.
func (r *RoundRepository) Create(ctx context.Context, round *domain.Round) error {
	query := `
		INSERT INTO rounds
			(id, start_time, end_time, lifecycle, settlement_status, payout_multiplier, created_at, updated_at)
		VALUES
			(:id, :start_time, :end_time, :lifecycle, :settlement_status, :payout_multiplier, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, round); err != nil {
		return fmt.Errorf("round_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches a round by its primary key.
func (r *RoundRepository) GetByID(ctx context.Context, id string) (*domain.Round, error) {
	var round domain.Round
	err := r.db.GetContext(ctx, &round, `SELECT * FROM rounds WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRoundNotFound
		}
		return nil, fmt.Errorf("round_repo.GetByID: %w", err)
	}
	return &round, nil
}

// GetForUpdate fetches a round inside tx with a row-level lock. Every
// lifecycle and settlement transition goes through this lock.
func (r *RoundRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*domain.Round, error) {
	var round domain.Round
	err := tx.GetContext(ctx, &round, `SELECT * FROM rounds WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRoundNotFound
		}
		return nil, fmt.Errorf("round_repo.GetForUpdate: %w", err)
	}
	return &round, nil
}

// GetCurrent returns the round currently accepting bets.
// Returns ErrNoCurrentRound when none exists.
func (r *RoundRepository) GetCurrent(ctx context.Context) (*domain.Round, error) {
	var round domain.Round
	err := r.db.GetContext(ctx, &round,
		`SELECT * FROM rounds WHERE lifecycle = 'active' ORDER BY start_time DESC LIMIT 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoCurrentRound
		}
		return nil, fmt.Errorf("round_repo.GetCurrent: %w", err)
	}
	return &round, nil
}

// GetPrevious returns the most recent completed round before the active one.
func (r *RoundRepository) GetPrevious(ctx context.Context) (*domain.Round, error) {
	var round domain.Round
	err := r.db.GetContext(ctx, &round,
		`SELECT * FROM rounds WHERE lifecycle = 'completed' ORDER BY end_time DESC LIMIT 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRoundNotFound
		}
		return nil, fmt.Errorf("round_repo.GetPrevious: %w", err)
	}
	return &round, nil
}

// HasUpcoming reports whether any pending or active round exists. Used by
// the scheduler to decide whether the next round must be created.
func (r *RoundRepository) HasUpcoming(ctx context.Context) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM rounds WHERE lifecycle IN ('pending','active')`)
	if err != nil {
		return false, fmt.Errorf("round_repo.HasUpcoming: %w", err)
	}
	return n > 0, nil
}

// ActivateDue flips pending rounds whose start time has arrived to active
// and returns the affected ids. The transition is monotonic: the WHERE
// clause never moves a round backwards.
func (r *RoundRepository) ActivateDue(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `
		UPDATE rounds
		SET lifecycle = 'active', updated_at = now()
		WHERE lifecycle = 'pending' AND start_time <= $1
		RETURNING id`, now)
	if err != nil {
		return nil, fmt.Errorf("round_repo.ActivateDue: %w", err)
	}
	return ids, nil
}

// CompleteDue closes active rounds whose end time has passed and returns the
// affected ids.
func (r *RoundRepository) CompleteDue(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `
		UPDATE rounds
		SET lifecycle = 'completed', updated_at = now()
		WHERE lifecycle = 'active' AND end_time <= $1
		RETURNING id`, now)
	if err != nil {
		return nil, fmt.Errorf("round_repo.CompleteDue: %w", err)
	}
	return ids, nil
}

// CompleteOverdue also closes rounds stuck in pending past their end time
// (missed activation during an outage). Recovery only.
func (r *RoundRepository) CompleteOverdue(ctx context.Context, now time.Time) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `
		UPDATE rounds
		SET lifecycle = 'completed', updated_at = now()
		WHERE lifecycle IN ('pending','active') AND end_time <= $1
		RETURNING id`, now)
	if err != nil {
		return nil, fmt.Errorf("round_repo.CompleteOverdue: %w", err)
	}
	return ids, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Settlement-state transitions — all inside the caller's transaction
// ──────────────────────────────────────────────────────────────────────────────

// MarkSettling stamps the settlement gate. Caller must hold the round lock
// and have verified settlement_status = not_settled.
func (r *RoundRepository) MarkSettling(ctx context.Context, tx *sqlx.Tx, id string, startedAt time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE rounds
		SET settlement_status = 'settling', settlement_started_at = $1, updated_at = now()
		WHERE id = $2 AND settlement_status = 'not_settled'`,
		startedAt, id)
	if err != nil {
		return fmt.Errorf("round_repo.MarkSettling: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrSettlementInProgress
	}
	return nil
}

// MarkSettled records the winning card and finishes settlement.
func (r *RoundRepository) MarkSettled(ctx context.Context, tx *sqlx.Tx, id string, winningCard int, completedAt time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE rounds
		SET settlement_status = 'settled',
		    winning_card = $1,
		    settlement_completed_at = $2,
		    settlement_error = NULL,
		    updated_at = now()
		WHERE id = $3 AND settlement_status = 'settling'`,
		winningCard, completedAt, id)
	if err != nil {
		return fmt.Errorf("round_repo.MarkSettled: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrRoundNotFound
	}
	return nil
}

// MarkFailed records a settlement failure outside any transaction so the
// error survives the rollback that produced it.
func (r *RoundRepository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE rounds
		SET settlement_status = 'failed', settlement_error = $1, updated_at = now()
		WHERE id = $2 AND settlement_status = 'settling'`,
		errMsg, id)
	if err != nil {
		return fmt.Errorf("round_repo.MarkFailed: %w", err)
	}
	return nil
}

// ResetSettlementTx moves a failed round back to not_settled inside the
// caller's transaction. Used by admin-initiated retries that already hold the
// round lock.
func (r *RoundRepository) ResetSettlementTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE rounds
		SET settlement_status = 'not_settled', settlement_started_at = NULL, updated_at = now()
		WHERE id = $1 AND settlement_status = 'failed'`,
		id)
	if err != nil {
		return fmt.Errorf("round_repo.ResetSettlementTx: %w", err)
	}
	return nil
}

// ResetSettlement moves a settling or failed round back to not_settled so a
// later trigger can re-enter. Safe because the settlement transaction either
// committed everything or nothing.
func (r *RoundRepository) ResetSettlement(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE rounds
		SET settlement_status = 'not_settled', settlement_started_at = NULL, updated_at = now()
		WHERE id = $1 AND settlement_status IN ('settling','failed')`,
		id)
	if err != nil {
		return fmt.Errorf("round_repo.ResetSettlement: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Sweep / recovery queries
// ──────────────────────────────────────────────────────────────────────────────

// ListUnsettled returns completed, not-yet-settled rounds whose end time is
// older than cutoff, oldest first.
func (r *RoundRepository) ListUnsettled(ctx context.Context, cutoff time.Time) ([]*domain.Round, error) {
	var rounds []*domain.Round
	err := r.db.SelectContext(ctx, &rounds, `
		SELECT * FROM rounds
		WHERE lifecycle = 'completed' AND settlement_status = 'not_settled' AND end_time <= $1
		ORDER BY end_time ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("round_repo.ListUnsettled: %w", err)
	}
	return rounds, nil
}

// ListStuckSettling returns rounds that entered settling before threshold
// and never finished (crash between the two settlement phases).
func (r *RoundRepository) ListStuckSettling(ctx context.Context, threshold time.Time) ([]*domain.Round, error) {
	var rounds []*domain.Round
	err := r.db.SelectContext(ctx, &rounds, `
		SELECT * FROM rounds
		WHERE settlement_status = 'settling' AND settlement_started_at <= $1
		ORDER BY settlement_started_at ASC`, threshold)
	if err != nil {
		return nil, fmt.Errorf("round_repo.ListStuckSettling: %w", err)
	}
	return rounds, nil
}

// List returns a paginated slice of rounds, newest first, optionally
// filtered by lifecycle. Returns (rounds, totalCount, error).
func (r *RoundRepository) List(ctx context.Context, limit, offset int, lifecycle string) ([]*domain.Round, int, error) {
	var rounds []*domain.Round
	var total int

	if lifecycle != "" {
		if err := r.db.GetContext(ctx, &total,
			`SELECT COUNT(*) FROM rounds WHERE lifecycle = $1`, lifecycle); err != nil {
			return nil, 0, fmt.Errorf("round_repo.List count: %w", err)
		}
		if err := r.db.SelectContext(ctx, &rounds,
			`SELECT * FROM rounds WHERE lifecycle = $1 ORDER BY start_time DESC LIMIT $2 OFFSET $3`,
			lifecycle, limit, offset); err != nil {
			return nil, 0, fmt.Errorf("round_repo.List select: %w", err)
		}
	} else {
		if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM rounds`); err != nil {
			return nil, 0, fmt.Errorf("round_repo.List count: %w", err)
		}
		if err := r.db.SelectContext(ctx, &rounds,
			`SELECT * FROM rounds ORDER BY start_time DESC LIMIT $1 OFFSET $2`,
			limit, offset); err != nil {
			return nil, 0, fmt.Errorf("round_repo.List select: %w", err)
		}
	}
	return rounds, total, nil
}
