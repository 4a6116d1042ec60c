package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/taasclub/cardbet/internal/domain"
	"github.com/taasclub/cardbet/internal/repository"
)

// GameService handles round lifecycle and round queries. Rounds are created
// and transitioned by the scheduler through this service; settlement fields
// are owned by SettlementService.
type GameService struct {
	roundRepo *repository.RoundRepository
	slipRepo  *repository.SlipRepository
	settings  *SettingsService
	logger    *slog.Logger

	// 500 ms current-round cache
	currentMu        sync.RWMutex
	currentRound     *domain.Round
	currentCacheTime time.Time
}

// NewGameService creates a GameService.
func NewGameService(
	roundRepo *repository.RoundRepository,
	slipRepo *repository.SlipRepository,
	settings *SettingsService,
	logger *slog.Logger,
) *GameService {
	return &GameService{
		roundRepo: roundRepo,
		slipRepo:  slipRepo,
		settings:  settings,
		logger:    logger,
	}
}

// CreateRound opens a new round for [startTime, startTime+duration), capturing
// the payout multiplier from settings at creation time. The round's string id
// is derived from its start instant, so re-creating the same slot is a no-op
// at the DB level.
func (s *GameService) CreateRound(ctx context.Context, startTime time.Time) (*domain.Round, error) {
	duration := s.settings.RoundDuration(ctx)
	multiplier := s.settings.PayoutMultiplier(ctx)

	now := time.Now().UTC()
	r := &domain.Round{
		ID:               domain.NewRoundID(startTime),
		StartTime:        startTime.UTC(),
		EndTime:          startTime.Add(duration).UTC(),
		Lifecycle:        domain.LifecyclePending,
		SettlementStatus: domain.SettlementNotSettled,
		Multiplier:       multiplier,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if startTime.Compare(now) <= 0 {
		r.Lifecycle = domain.LifecycleActive
	}

	if err := s.roundRepo.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("game_service.CreateRound: %w", err)
	}

	s.invalidateCurrentCache()
	s.logger.Info("round created",
		"round_id", r.ID,
		"start", r.StartTime,
		"end", r.EndTime,
		"multiplier", r.Multiplier,
		"lifecycle", r.Lifecycle)
	return r, nil
}

// GetCurrentRound returns the active round. The result is cached for 500 ms
// to absorb polling and WS broadcast reads.
func (s *GameService) GetCurrentRound(ctx context.Context) (*domain.Round, error) {
	const cacheDuration = 500 * time.Millisecond

	s.currentMu.RLock()
	if s.currentRound != nil && time.Since(s.currentCacheTime) < cacheDuration {
		r := s.currentRound
		s.currentMu.RUnlock()
		return r, nil
	}
	s.currentMu.RUnlock()

	r, err := s.roundRepo.GetCurrent(ctx)
	if err != nil {
		return nil, err
	}

	s.currentMu.Lock()
	s.currentRound = r
	s.currentCacheTime = time.Now()
	s.currentMu.Unlock()
	return r, nil
}

// GetPreviousRound returns the most recently completed round.
func (s *GameService) GetPreviousRound(ctx context.Context) (*domain.Round, error) {
	return s.roundRepo.GetPrevious(ctx)
}

// GetRound returns one round by id.
func (s *GameService) GetRound(ctx context.Context, id string) (*domain.Round, error) {
	return s.roundRepo.GetByID(ctx, id)
}

// ListRounds returns a paginated round listing for the backoffice, optionally
// filtered by lifecycle state.
func (s *GameService) ListRounds(ctx context.Context, lifecycle string, limit, offset int) ([]*domain.Round, int, error) {
	return s.roundRepo.List(ctx, limit, offset, lifecycle)
}

// ActivateDue flips pending rounds whose start time has passed to active.
// Returns the ids it transitioned.
func (s *GameService) ActivateDue(ctx context.Context, now time.Time) ([]string, error) {
	ids, err := s.roundRepo.ActivateDue(ctx, now)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		s.invalidateCurrentCache()
	}
	return ids, nil
}

// CompleteDue flips active rounds whose end time has passed to completed.
func (s *GameService) CompleteDue(ctx context.Context, now time.Time) ([]string, error) {
	ids, err := s.roundRepo.CompleteDue(ctx, now)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		s.invalidateCurrentCache()
	}
	return ids, nil
}

// HasUpcoming reports whether a pending or active round already exists.
func (s *GameService) HasUpcoming(ctx context.Context) (bool, error) {
	return s.roundRepo.HasUpcoming(ctx)
}

// RecoverStartup repairs state after a restart: overdue active rounds are
// completed and due pending rounds are activated.
func (s *GameService) RecoverStartup(ctx context.Context) error {
	now := time.Now().UTC()

	completed, err := s.roundRepo.CompleteOverdue(ctx, now)
	if err != nil {
		return fmt.Errorf("game_service.RecoverStartup: %w", err)
	}
	for _, id := range completed {
		s.logger.Warn("recovery: completed overdue round", "round_id", id)
	}

	activated, err := s.roundRepo.ActivateDue(ctx, now)
	if err != nil {
		return fmt.Errorf("game_service.RecoverStartup: %w", err)
	}
	for _, id := range activated {
		s.logger.Info("recovery: activated due round", "round_id", id)
	}

	s.invalidateCurrentCache()
	return nil
}

func (s *GameService) invalidateCurrentCache() {
	s.currentMu.Lock()
	s.currentRound = nil
	s.currentCacheTime = time.Time{}
	s.currentMu.Unlock()
}
