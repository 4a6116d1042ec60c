package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/taasclub/cardbet/internal/domain"
	"github.com/taasclub/cardbet/internal/repository"
)

// ClaimService moves settled winnings into the wallet and handles pre-close
// cancellation of pending slips.
type ClaimService struct {
	db         *sqlx.DB
	roundRepo  *repository.RoundRepository
	slipRepo   *repository.SlipRepository
	walletRepo *repository.WalletRepository
	auditRepo  *repository.AuditRepository
	settings   *SettingsService
	logger     *slog.Logger
}

// NewClaimService creates a ClaimService.
func NewClaimService(
	db *sqlx.DB,
	roundRepo *repository.RoundRepository,
	slipRepo *repository.SlipRepository,
	walletRepo *repository.WalletRepository,
	auditRepo *repository.AuditRepository,
	settings *SettingsService,
	logger *slog.Logger,
) *ClaimService {
	return &ClaimService{
		db:         db,
		roundRepo:  roundRepo,
		slipRepo:   slipRepo,
		walletRepo: walletRepo,
		auditRepo:  auditRepo,
		settings:   settings,
		logger:     logger,
	}
}

// Claim credits a winning slip's payout to its owner exactly once. identifier
// is a slip UUID or a barcode. The claimed flag and the wallet credit commit
// together, so a crash between them cannot double-pay.
func (s *ClaimService) Claim(ctx context.Context, userID uuid.UUID, identifier string) (_ *domain.ClaimResult, err error) {
	slipID, err := s.resolveSlipID(ctx, identifier)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("claim_service.Claim: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	slip, err := s.slipRepo.GetForUpdate(ctx, tx, slipID)
	if err != nil {
		return nil, err
	}
	if slip.UserID != userID {
		return nil, domain.ErrForbidden
	}
	if !slip.IsClaimable() {
		switch {
		case slip.Claimed:
			return nil, domain.ErrAlreadyClaimed
		case slip.Status == domain.SlipStatusPending:
			return nil, domain.ErrRoundNotCompleted
		default:
			return nil, domain.ErrNotWinning
		}
	}

	now := time.Now().UTC()
	if err = s.slipRepo.SetClaimed(ctx, tx, slip.ID, now); err != nil {
		return nil, err
	}

	_, newBalance, err := s.walletRepo.ApplyEntry(ctx, tx, repository.EntryParams{
		UserID:    slip.UserID,
		Direction: domain.DirectionCredit,
		Amount:    slip.PayoutAmount,
		Kind:      domain.TxKindGame,
		RefKind:   domain.RefClaim,
		RefID:     slip.ID.String(),
		RoundID:   &slip.RoundID,
		Comment:   fmt.Sprintf("claim for slip %s", slip.Barcode),
	})
	if err != nil {
		return nil, err
	}

	detailJSON, _ := json.Marshal(map[string]any{"payout": slip.PayoutAmount, "barcode": slip.Barcode})
	err = s.auditRepo.InsertTx(ctx, tx, &domain.AuditEntry{
		ID:        uuid.New(),
		ActorID:   userID,
		Action:    "slip.claim",
		Entity:    "bet_slip",
		EntityID:  slip.ID.String(),
		Detail:    string(detailJSON),
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("claim_service.Claim: commit: %w", err)
	}

	s.logger.Info("slip claimed", "slip_id", slip.ID, "user_id", userID, "payout", slip.PayoutAmount)
	return &domain.ClaimResult{SlipID: slip.ID, Amount: slip.PayoutAmount, NewBalance: newBalance}, nil
}

// Cancel voids a pending slip before the round's cancel cutoff and refunds its
// total. The round's per-card totals are decremented so a later lowest-loss
// selection does not count dead money.
func (s *ClaimService) Cancel(ctx context.Context, userID, slipID uuid.UUID) (err error) {
	cutoff := s.settings.CancelCutoff(ctx)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("claim_service.Cancel: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	slip, err := s.slipRepo.GetForUpdate(ctx, tx, slipID)
	if err != nil {
		return err
	}
	if slip.UserID != userID {
		return domain.ErrForbidden
	}
	if !slip.IsCancellable() {
		return domain.ErrNotCancellable
	}

	round, err := s.roundRepo.GetForUpdate(ctx, tx, slip.RoundID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if !round.IsActive() || !now.Before(round.EndTime.Add(-cutoff)) {
		return domain.ErrNotCancellable
	}

	if err = s.slipRepo.CancelSlip(ctx, tx, slip.ID); err != nil {
		return err
	}

	details, err := s.slipRepo.GetDetailsForUpdate(ctx, tx, slip.ID)
	if err != nil {
		return err
	}
	for _, d := range details {
		if err = s.slipRepo.AddCardTotal(ctx, tx, round.ID, d.CardNumber, d.BetAmount.Neg()); err != nil {
			return err
		}
	}

	_, _, err = s.walletRepo.ApplyEntry(ctx, tx, repository.EntryParams{
		UserID:    slip.UserID,
		Direction: domain.DirectionCredit,
		Amount:    slip.TotalAmount,
		Kind:      domain.TxKindGame,
		RefKind:   domain.RefCancelRefund,
		RefID:     slip.ID.String(),
		RoundID:   &slip.RoundID,
		Comment:   fmt.Sprintf("refund for cancelled slip %s", slip.Barcode),
	})
	if err != nil {
		return err
	}

	err = s.auditRepo.InsertTx(ctx, tx, &domain.AuditEntry{
		ID:        uuid.New(),
		ActorID:   userID,
		Action:    "slip.cancel",
		Entity:    "bet_slip",
		EntityID:  slip.ID.String(),
		Detail:    fmt.Sprintf(`{"refund":"%s"}`, slip.TotalAmount),
		CreatedAt: now,
	})
	if err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("claim_service.Cancel: commit: %w", err)
	}

	s.logger.Info("slip cancelled", "slip_id", slip.ID, "user_id", userID, "refund", slip.TotalAmount)
	return nil
}

func (s *ClaimService) resolveSlipID(ctx context.Context, identifier string) (uuid.UUID, error) {
	if id, err := uuid.Parse(identifier); err == nil {
		return id, nil
	}
	slip, err := s.slipRepo.GetByBarcode(ctx, identifier)
	if err != nil {
		return uuid.Nil, err
	}
	return slip.ID, nil
}
