package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/taasclub/cardbet/internal/domain"
	"github.com/taasclub/cardbet/internal/repository"
)

// Collisions on the 12-digit barcode are rare; the whole placement is retried
// with a fresh barcode up to this many times.
const maxBarcodeAttempts = 3

// BetService places bet slips: it debits the wallet, writes the slip with its
// card lines, and bumps the round's per-card totals, all in one transaction.
type BetService struct {
	db         *sqlx.DB
	roundRepo  *repository.RoundRepository
	slipRepo   *repository.SlipRepository
	walletRepo *repository.WalletRepository
	auditRepo  *repository.AuditRepository
	settings   *SettingsService
	logger     *slog.Logger
}

// NewBetService creates a BetService.
func NewBetService(
	db *sqlx.DB,
	roundRepo *repository.RoundRepository,
	slipRepo *repository.SlipRepository,
	walletRepo *repository.WalletRepository,
	auditRepo *repository.AuditRepository,
	settings *SettingsService,
	logger *slog.Logger,
) *BetService {
	return &BetService{
		db:         db,
		roundRepo:  roundRepo,
		slipRepo:   slipRepo,
		walletRepo: walletRepo,
		auditRepo:  auditRepo,
		settings:   settings,
		logger:     logger,
	}
}

// PlaceBet validates and persists a bet slip. The returned bool is true for a
// freshly placed slip and false for an idempotent replay.
//
// When the request carries an idempotency key and the same user already placed
// a slip under it, that slip is returned and nothing is charged. The same
// holds when two requests with the key race: the loser of the unique-index
// race re-reads and returns the winner's slip. A key that belongs to a
// different user is never replayed; it fails with ErrIdempotencyConflict.
func (s *BetService) PlaceBet(ctx context.Context, req *domain.PlaceBetRequest) (*domain.SlipView, bool, error) {
	if err := s.validate(ctx, req); err != nil {
		return nil, false, err
	}

	if req.IdempotencyKey != nil {
		existing, err := s.slipRepo.GetByIdempotencyKey(ctx, *req.IdempotencyKey)
		if err == nil {
			existing, err = replaySlip(existing, req.UserID)
			if err != nil {
				return nil, false, err
			}
			view, verr := s.viewOf(ctx, existing)
			return view, false, verr
		}
		if !errors.Is(err, domain.ErrSlipNotFound) {
			return nil, false, err
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxBarcodeAttempts; attempt++ {
		slip, err := s.placeOnce(ctx, req, newBarcode())
		switch {
		case err == nil:
			view, verr := s.viewOf(ctx, slip)
			return view, true, verr
		case errors.Is(err, domain.ErrBarcodeCollision):
			lastErr = err
			continue
		case errors.Is(err, domain.ErrIdempotencyConflict) && req.IdempotencyKey != nil:
			existing, ferr := s.slipRepo.GetByIdempotencyKey(ctx, *req.IdempotencyKey)
			if ferr != nil {
				return nil, false, err
			}
			if existing, ferr = replaySlip(existing, req.UserID); ferr != nil {
				return nil, false, ferr
			}
			view, verr := s.viewOf(ctx, existing)
			return view, false, verr
		default:
			return nil, false, err
		}
	}
	return nil, false, lastErr
}

// replaySlip gates an idempotency-key hit on ownership: only the user who
// placed the slip may replay it; anyone else gets a conflict, never the slip.
func replaySlip(existing *domain.BetSlip, userID uuid.UUID) (*domain.BetSlip, error) {
	if existing.UserID != userID {
		return nil, domain.ErrIdempotencyConflict
	}
	return existing, nil
}

// placeOnce runs one transactional placement attempt with the given barcode.
func (s *BetService) placeOnce(ctx context.Context, req *domain.PlaceBetRequest, barcode string) (*domain.BetSlip, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("bet_service.placeOnce: begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	round, err := s.roundRepo.GetForUpdate(ctx, tx, req.RoundID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if !round.AcceptsBetsAt(now) {
		err = domain.ErrRoundClosed
		return nil, err
	}

	slip := &domain.BetSlip{
		ID:             uuid.New(),
		UserID:         req.UserID,
		RoundID:        round.ID,
		TotalAmount:    req.Total(),
		Barcode:        barcode,
		PayoutAmount:   decimal.Zero,
		Status:         domain.SlipStatusPending,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// Debit first so an insufficient balance fails before any slip rows exist.
	_, _, err = s.walletRepo.ApplyEntry(ctx, tx, repository.EntryParams{
		UserID:    req.UserID,
		Direction: domain.DirectionDebit,
		Amount:    slip.TotalAmount,
		Kind:      domain.TxKindGame,
		RefKind:   domain.RefBetPlacement,
		RefID:     slip.ID.String(),
		RoundID:   &round.ID,
		Comment:   fmt.Sprintf("bet on round %s", round.ID),
	})
	if err != nil {
		return nil, err
	}

	if err = s.slipRepo.CreateSlip(ctx, tx, slip); err != nil {
		if repository.IsUniqueViolation(err, "bet_slips_barcode_key") {
			err = domain.ErrBarcodeCollision
		} else if repository.IsUniqueViolation(err, "bet_slips_idempotency_key_key") {
			err = domain.ErrIdempotencyConflict
		}
		return nil, err
	}

	details := make([]*domain.BetDetail, 0, len(req.Lines))
	for _, line := range req.Lines {
		details = append(details, &domain.BetDetail{
			ID:         uuid.New(),
			SlipID:     slip.ID,
			RoundID:    round.ID,
			UserID:     req.UserID,
			CardNumber: line.CardNumber,
			BetAmount:  line.BetAmount,
			Payout:     decimal.Zero,
		})
	}
	if err = s.slipRepo.CreateDetails(ctx, tx, details); err != nil {
		return nil, err
	}
	for _, line := range req.Lines {
		if err = s.slipRepo.AddCardTotal(ctx, tx, round.ID, line.CardNumber, line.BetAmount); err != nil {
			return nil, err
		}
	}

	detailJSON, _ := json.Marshal(map[string]any{
		"barcode": slip.Barcode,
		"total":   slip.TotalAmount,
		"lines":   len(req.Lines),
	})
	err = s.auditRepo.InsertTx(ctx, tx, &domain.AuditEntry{
		ID:        uuid.New(),
		ActorID:   req.UserID,
		Action:    "bet.place",
		Entity:    "bet_slip",
		EntityID:  slip.ID.String(),
		Detail:    string(detailJSON),
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("bet_service.placeOnce: commit: %w", err)
	}

	s.logger.Info("bet placed",
		"slip_id", slip.ID,
		"user_id", req.UserID,
		"round_id", round.ID,
		"total", slip.TotalAmount,
		"lines", len(req.Lines))
	return slip, nil
}

// validate checks the request against the current game settings.
func (s *BetService) validate(ctx context.Context, req *domain.PlaceBetRequest) error {
	if len(req.Lines) == 0 {
		return domain.ErrEmptySlip
	}
	cardCount := s.settings.CardCount(ctx)
	maxBet := s.settings.MaxBetAmount(ctx)
	for _, line := range req.Lines {
		if line.CardNumber < 1 || line.CardNumber > cardCount {
			return domain.ErrInvalidCard
		}
		if !line.BetAmount.IsPositive() {
			return domain.ErrInvalidAmount
		}
		if maxBet.IsPositive() && line.BetAmount.GreaterThan(maxBet) {
			return domain.ErrBetTooLarge
		}
	}
	if !req.Total().IsPositive() {
		return domain.ErrInvalidAmount
	}
	return nil
}

// GetSlip resolves a slip by UUID or, failing that, by barcode, and attaches
// its card lines.
func (s *BetService) GetSlip(ctx context.Context, identifier string) (*domain.SlipView, error) {
	var slip *domain.BetSlip
	var err error
	if id, perr := uuid.Parse(identifier); perr == nil {
		slip, err = s.slipRepo.GetByID(ctx, id)
	} else {
		slip, err = s.slipRepo.GetByBarcode(ctx, identifier)
	}
	if err != nil {
		return nil, err
	}
	return s.viewOf(ctx, slip)
}

// ListRoundSlips returns every slip of a round, for the backoffice.
func (s *BetService) ListRoundSlips(ctx context.Context, roundID string) ([]*domain.BetSlip, error) {
	return s.slipRepo.ListByRound(ctx, roundID)
}

// ListUserSlips returns a user's slips, newest first.
func (s *BetService) ListUserSlips(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.BetSlip, error) {
	return s.slipRepo.ListByUser(ctx, userID, limit, offset)
}

func (s *BetService) viewOf(ctx context.Context, slip *domain.BetSlip) (*domain.SlipView, error) {
	details, err := s.slipRepo.GetDetails(ctx, slip.ID)
	if err != nil {
		return nil, err
	}
	return &domain.SlipView{BetSlip: *slip, Lines: details}, nil
}

// newBarcode returns a 12-digit numeric barcode. crypto/rand keeps codes
// unguessable at the point of sale.
func newBarcode() string {
	limit := big.NewInt(1_000_000_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		n = big.NewInt(time.Now().UnixNano() % 1_000_000_000_000)
	}
	return fmt.Sprintf("%012d", n)
}
