package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/taasclub/cardbet/internal/domain"
	"github.com/taasclub/cardbet/internal/repository"
)

// WalletService exposes wallet reads and the backoffice deposit/withdrawal
// operations. Game money movements go through BetService, ClaimService and
// SettlementService; this service never touches slips.
type WalletService struct {
	db         *sqlx.DB
	walletRepo *repository.WalletRepository
	auditRepo  *repository.AuditRepository
	logger     *slog.Logger
}

// NewWalletService creates a WalletService.
func NewWalletService(db *sqlx.DB, walletRepo *repository.WalletRepository, auditRepo *repository.AuditRepository, logger *slog.Logger) *WalletService {
	return &WalletService{db: db, walletRepo: walletRepo, auditRepo: auditRepo, logger: logger}
}

// GetBalance returns a user's current wallet balance.
func (s *WalletService) GetBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	return s.walletRepo.GetBalance(ctx, userID)
}

// Summary returns credit/debit aggregates for a user over [from, to).
func (s *WalletService) Summary(ctx context.Context, userID uuid.UUID, from, to time.Time) (*domain.LedgerSummary, error) {
	return s.walletRepo.Summarize(ctx, userID, from, to)
}

// Transactions returns a user's ledger entries, newest first, optionally
// filtered by kind or round.
func (s *WalletService) Transactions(ctx context.Context, userID uuid.UUID, filter domain.LedgerFilter, limit, offset int) ([]*domain.WalletLedgerEntry, error) {
	return s.walletRepo.ListEntries(ctx, userID, filter, limit, offset)
}

// Deposit credits a user's wallet from the backoffice.
func (s *WalletService) Deposit(ctx context.Context, actorID, userID uuid.UUID, amount decimal.Decimal, comment string) (_ decimal.Decimal, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("wallet_service.Deposit: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	entry, newBalance, err := s.walletRepo.ApplyEntry(ctx, tx, repository.EntryParams{
		UserID:    userID,
		Direction: domain.DirectionCredit,
		Amount:    amount,
		Kind:      domain.TxKindRecharge,
		RefKind:   domain.RefDeposit,
		RefID:     userID.String(),
		Comment:   comment,
	})
	if err != nil {
		return decimal.Zero, err
	}

	err = s.auditRepo.InsertTx(ctx, tx, &domain.AuditEntry{
		ID:        uuid.New(),
		ActorID:   actorID,
		Action:    "wallet.deposit",
		Entity:    "user",
		EntityID:  userID.String(),
		Detail:    fmt.Sprintf(`{"amount":"%s","entry_id":"%s"}`, amount, entry.ID),
		CreatedAt: entry.CreatedAt,
	})
	if err != nil {
		return decimal.Zero, err
	}

	if err = tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("wallet_service.Deposit: commit: %w", err)
	}

	s.logger.Info("deposit applied", "user_id", userID, "amount", amount, "actor_id", actorID)
	return newBalance, nil
}

// Withdraw debits a user's wallet from the backoffice. Fails with
// ErrInsufficientFunds when the balance cannot cover the amount.
func (s *WalletService) Withdraw(ctx context.Context, actorID, userID uuid.UUID, amount decimal.Decimal, comment string) (_ decimal.Decimal, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("wallet_service.Withdraw: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	entry, newBalance, err := s.walletRepo.ApplyEntry(ctx, tx, repository.EntryParams{
		UserID:    userID,
		Direction: domain.DirectionDebit,
		Amount:    amount,
		Kind:      domain.TxKindWithdrawal,
		RefKind:   domain.RefWithdrawal,
		RefID:     userID.String(),
		Comment:   comment,
	})
	if err != nil {
		return decimal.Zero, err
	}

	err = s.auditRepo.InsertTx(ctx, tx, &domain.AuditEntry{
		ID:        uuid.New(),
		ActorID:   actorID,
		Action:    "wallet.withdraw",
		Entity:    "user",
		EntityID:  userID.String(),
		Detail:    fmt.Sprintf(`{"amount":"%s","entry_id":"%s"}`, amount, entry.ID),
		CreatedAt: entry.CreatedAt,
	})
	if err != nil {
		return decimal.Zero, err
	}

	if err = tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("wallet_service.Withdraw: commit: %w", err)
	}

	s.logger.Info("withdrawal applied", "user_id", userID, "amount", amount, "actor_id", actorID)
	return newBalance, nil
}
