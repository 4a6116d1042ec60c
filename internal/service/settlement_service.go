package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/taasclub/cardbet/internal/domain"
	"github.com/taasclub/cardbet/internal/repository"
)

// RoundNotifier receives settlement events for live broadcast. Implemented by
// the ws hub; injected after construction to avoid a package cycle.
type RoundNotifier interface {
	NotifyRoundSettled(roundID string, winningCard int, multiplier decimal.Decimal)
}

// SettleOptions control one settlement attempt.
type SettleOptions struct {
	Initiator   domain.SettleInitiator
	WinningCard *int      // admin override; required when game_result_type is manual
	ActorID     uuid.UUID // uuid.Nil for scheduler-initiated runs
}

// SettlementService settles completed rounds exactly once.
//
// Settlement runs in two transactions. The first takes the round lock and
// flips settlement_status not_settled -> settling, then commits; this is the
// gate that serialises concurrent triggers. The second computes outcomes,
// stamps every slip, optionally credits winners, and flips settling ->
// settled. If the second transaction fails it rolls back completely and the
// round is marked failed outside the transaction, so no partial payout can
// ever be observed.
type SettlementService struct {
	db         *sqlx.DB
	roundRepo  *repository.RoundRepository
	slipRepo   *repository.SlipRepository
	walletRepo *repository.WalletRepository
	auditRepo  *repository.AuditRepository
	settings   *SettingsService
	logger     *slog.Logger
	notifier   RoundNotifier
}

// NewSettlementService creates a SettlementService. Call SetNotifier after
// the ws hub is built.
func NewSettlementService(
	db *sqlx.DB,
	roundRepo *repository.RoundRepository,
	slipRepo *repository.SlipRepository,
	walletRepo *repository.WalletRepository,
	auditRepo *repository.AuditRepository,
	settings *SettingsService,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		db:         db,
		roundRepo:  roundRepo,
		slipRepo:   slipRepo,
		walletRepo: walletRepo,
		auditRepo:  auditRepo,
		settings:   settings,
		logger:     logger,
	}
}

// SetNotifier injects the broadcast hub.
func (s *SettlementService) SetNotifier(n RoundNotifier) {
	s.notifier = n
}

// SettleRound settles one round. Replaying a settled round returns the same
// report without side effects. A round already settling returns
// ErrSettlementInProgress. A failed round is retried only when the initiator
// is an admin or the recovery pass.
func (s *SettlementService) SettleRound(ctx context.Context, roundID string, opts SettleOptions) (*domain.SettlementReport, error) {
	round, err := s.acquireGate(ctx, roundID, opts)
	if err != nil {
		if errors.Is(err, errAlreadySettled) {
			return s.replayReport(ctx, roundID)
		}
		return nil, err
	}

	report, err := s.runSettlement(ctx, round, opts)
	if err != nil {
		if errors.Is(err, domain.ErrAwaitingManual) {
			// Not a failure: release the gate so a manual trigger can enter.
			if rerr := s.roundRepo.ResetSettlement(ctx, roundID); rerr != nil {
				s.logger.Error("settlement: gate release failed", "round_id", roundID, "error", rerr)
			}
			return nil, err
		}
		if merr := s.roundRepo.MarkFailed(ctx, roundID, err.Error()); merr != nil {
			s.logger.Error("settlement: mark failed failed", "round_id", roundID, "error", merr)
		}
		s.logger.Error("settlement failed", "round_id", roundID, "initiator", opts.Initiator, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrSettlementFailed, err)
	}

	if s.notifier != nil {
		s.notifier.NotifyRoundSettled(round.ID, report.WinningCard, round.Multiplier)
	}
	s.logger.Info("round settled",
		"round_id", round.ID,
		"winning_card", report.WinningCard,
		"won_slips", report.WonSlips,
		"total_payout", report.TotalPayout,
		"initiator", opts.Initiator)
	return report, nil
}

// errAlreadySettled is an internal signal from the gate; callers see the
// replayed report, never this error.
var errAlreadySettled = errors.New("round already settled")

// acquireGate runs the first settlement transaction: lock the round, verify
// it is completed, and flip not_settled -> settling.
func (s *SettlementService) acquireGate(ctx context.Context, roundID string, opts SettleOptions) (_ *domain.Round, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("settlement_service.acquireGate: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	round, err := s.roundRepo.GetForUpdate(ctx, tx, roundID)
	if err != nil {
		return nil, err
	}
	if !round.IsCompleted() {
		err = domain.ErrRoundNotCompleted
		return nil, err
	}

	switch round.SettlementStatus {
	case domain.SettlementSettled:
		err = errAlreadySettled
		return nil, err
	case domain.SettlementSettling:
		err = domain.ErrSettlementInProgress
		return nil, err
	case domain.SettlementFailed:
		if opts.Initiator != domain.InitiatorAdmin && opts.Initiator != domain.InitiatorRecovery {
			err = domain.ErrSettlementFailed
			return nil, err
		}
		if err = s.roundRepo.ResetSettlementTx(ctx, tx, roundID); err != nil {
			return nil, err
		}
	}

	if err = s.roundRepo.MarkSettling(ctx, tx, roundID, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("settlement_service.acquireGate: commit: %w", err)
	}
	return round, nil
}

// runSettlement is the second transaction: pick the winner, compute every
// slip's outcome, credit winners when auto_claim is on, and mark the round
// settled. Outcomes are computed in Go by domain.ComputeOutcomes so the
// payout arithmetic has exactly one implementation.
func (s *SettlementService) runSettlement(ctx context.Context, round *domain.Round, opts SettleOptions) (_ *domain.SettlementReport, err error) {
	cardCount := s.settings.CardCount(ctx)

	winningCard, err := s.chooseWinner(ctx, round, opts, cardCount)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("settlement_service.runSettlement: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	slips, err := s.slipRepo.ListForSettlement(ctx, tx, round.ID)
	if err != nil {
		return nil, err
	}
	details, err := s.slipRepo.ListRoundDetails(ctx, tx, round.ID)
	if err != nil {
		return nil, err
	}

	outcomes := domain.ComputeOutcomes(details, slips, winningCard, round.Multiplier)

	if err = s.slipRepo.SaveDetailOutcomes(ctx, tx, details); err != nil {
		return nil, err
	}
	totalWagered := decimal.Zero
	for _, slip := range slips {
		if slip.Cancelled {
			continue
		}
		totalWagered = totalWagered.Add(slip.TotalAmount)
		out, ok := outcomes[slip.ID]
		if !ok {
			continue
		}
		if err = s.slipRepo.SaveSlipOutcome(ctx, tx, out); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	if s.settings.AutoClaim(ctx) {
		if err = s.creditWinners(ctx, tx, round.ID, slips, outcomes, now); err != nil {
			return nil, err
		}
	}

	if err = s.roundRepo.MarkSettled(ctx, tx, round.ID, winningCard, now); err != nil {
		return nil, err
	}

	detailJSON, _ := json.Marshal(map[string]any{
		"winning_card": winningCard,
		"initiator":    opts.Initiator,
	})
	err = s.auditRepo.InsertTx(ctx, tx, &domain.AuditEntry{
		ID:        uuid.New(),
		ActorID:   opts.ActorID,
		Action:    "round.settle",
		Entity:    "round",
		EntityID:  round.ID,
		Detail:    string(detailJSON),
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("settlement_service.runSettlement: commit: %w", err)
	}

	return domain.BuildReport(round.ID, winningCard, totalWagered, outcomes, now), nil
}

// chooseWinner resolves the winning card from the admin override or the
// configured policy. Manual result mode refuses to pick on its own.
func (s *SettlementService) chooseWinner(ctx context.Context, round *domain.Round, opts SettleOptions, cardCount int) (int, error) {
	if opts.WinningCard != nil {
		card := *opts.WinningCard
		if card < 1 || card > cardCount {
			return 0, domain.ErrInvalidCard
		}
		return card, nil
	}

	if s.settings.ResultType(ctx) == domain.ResultTypeManual {
		return 0, domain.ErrAwaitingManual
	}

	totals, err := s.slipRepo.GetCardTotals(ctx, round.ID)
	if err != nil {
		return 0, err
	}
	totalWagered := decimal.Zero
	for _, t := range totals {
		totalWagered = totalWagered.Add(t)
	}

	card := domain.SelectWinningCard(domain.SelectorInput{
		Totals:       totals,
		TotalWagered: totalWagered,
		Multiplier:   round.Multiplier,
		CardCount:    cardCount,
		Policy:       s.settings.WinningCardPolicy(ctx),
		FixedCard:    s.settings.FixedWinningCard(ctx),
	})
	if card < 1 || card > cardCount {
		return 0, domain.ErrInvalidCard
	}
	return card, nil
}

// creditWinners pays every won slip inside the settlement transaction and
// marks it claimed, so a crash cannot leave a paid-but-unclaimed slip.
func (s *SettlementService) creditWinners(ctx context.Context, tx *sqlx.Tx, roundID string, slips []*domain.BetSlip, outcomes map[uuid.UUID]*domain.SlipOutcome, now time.Time) error {
	for _, slip := range slips {
		out, ok := outcomes[slip.ID]
		if !ok || out.Status != domain.SlipStatusWon {
			continue
		}
		_, _, err := s.walletRepo.ApplyEntry(ctx, tx, repository.EntryParams{
			UserID:    out.UserID,
			Direction: domain.DirectionCredit,
			Amount:    out.Payout,
			Kind:      domain.TxKindGame,
			RefKind:   domain.RefSettlement,
			RefID:     out.SlipID.String(),
			RoundID:   &roundID,
			Comment:   fmt.Sprintf("auto claim for slip %s", slip.Barcode),
		})
		if err != nil {
			return err
		}
		if err := s.slipRepo.SetClaimed(ctx, tx, out.SlipID, now); err != nil {
			return err
		}
	}
	return nil
}

// replayReport rebuilds the settlement report of a settled round from the
// database, so repeated settle calls stay idempotent.
func (s *SettlementService) replayReport(ctx context.Context, roundID string) (*domain.SettlementReport, error) {
	round, err := s.roundRepo.GetByID(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if !round.IsSettled() || round.WinningCard == nil {
		return nil, domain.ErrSettlementInProgress
	}

	stats, err := s.slipRepo.GetRoundStats(ctx, roundID)
	if err != nil {
		return nil, err
	}

	settledAt := round.UpdatedAt
	if round.SettlementCompletedAt != nil {
		settledAt = *round.SettlementCompletedAt
	}
	return &domain.SettlementReport{
		RoundID:      round.ID,
		WinningCard:  *round.WinningCard,
		WonSlips:     stats.WonSlips,
		LostSlips:    stats.LostSlips,
		TotalWagered: stats.TotalWagered,
		TotalPayout:  stats.TotalPayout,
		HouseProfit:  stats.TotalWagered.Sub(stats.TotalPayout),
		SettledAt:    settledAt,
	}, nil
}

// Preview returns the per-card payout and profit table for a round, plus the
// card the configured policy would pick right now.
func (s *SettlementService) Preview(ctx context.Context, roundID string) ([]domain.CardPreview, int, error) {
	round, err := s.roundRepo.GetByID(ctx, roundID)
	if err != nil {
		return nil, 0, err
	}

	cardCount := s.settings.CardCount(ctx)
	totals, err := s.slipRepo.GetCardTotals(ctx, roundID)
	if err != nil {
		return nil, 0, err
	}
	totalWagered := decimal.Zero
	for _, t := range totals {
		totalWagered = totalWagered.Add(t)
	}

	previews := domain.PreviewCards(totals, totalWagered, round.Multiplier, cardCount)
	pick := domain.SelectWinningCard(domain.SelectorInput{
		Totals:       totals,
		TotalWagered: totalWagered,
		Multiplier:   round.Multiplier,
		CardCount:    cardCount,
		Policy:       s.settings.WinningCardPolicy(ctx),
		FixedCard:    s.settings.FixedWinningCard(ctx),
	})
	return previews, pick, nil
}

// SweepUnsettled settles completed rounds the normal trigger missed. Rounds
// awaiting a manual result are left alone.
func (s *SettlementService) SweepUnsettled(ctx context.Context, grace time.Duration) {
	cutoff := time.Now().UTC().Add(-grace)
	rounds, err := s.roundRepo.ListUnsettled(ctx, cutoff)
	if err != nil {
		s.logger.Error("sweep: list unsettled failed", "error", err)
		return
	}
	for _, round := range rounds {
		_, err := s.SettleRound(ctx, round.ID, SettleOptions{Initiator: domain.InitiatorAlarm})
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrAwaitingManual):
			s.logger.Debug("sweep: round awaiting manual result", "round_id", round.ID)
		case errors.Is(err, domain.ErrSettlementInProgress):
		default:
			s.logger.Error("sweep: settle failed", "round_id", round.ID, "error", err)
		}
	}
}

// RecoverStuck releases rounds whose settling gate is older than threshold.
// The settlement transaction is all-or-nothing, so a stale gate means the
// process died between the two transactions and nothing was paid.
func (s *SettlementService) RecoverStuck(ctx context.Context, threshold time.Duration) {
	stale := time.Now().UTC().Add(-threshold)
	rounds, err := s.roundRepo.ListStuckSettling(ctx, stale)
	if err != nil {
		s.logger.Error("recovery: list stuck settling failed", "error", err)
		return
	}
	for _, round := range rounds {
		if err := s.roundRepo.ResetSettlement(ctx, round.ID); err != nil {
			s.logger.Error("recovery: reset settlement failed", "round_id", round.ID, "error", err)
			continue
		}
		s.logger.Warn("recovery: released stuck settlement gate", "round_id", round.ID)
	}
}
