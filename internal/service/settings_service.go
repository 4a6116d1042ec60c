package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/taasclub/cardbet/internal/domain"
)

// SettingSource is the read/write surface the settings cache sits in front
// of. *repository.SettingRepository satisfies it.
type SettingSource interface {
	Get(ctx context.Context, key string) (string, error)
	GetAll(ctx context.Context) (map[string]string, error)
	List(ctx context.Context) ([]domain.GameSetting, error)
	Upsert(ctx context.Context, key, value string, updatedBy string) error
}

type cachedSetting struct {
	value    string
	loadedAt time.Time
}

// SettingsService is a read-through cache over game_settings. Entries are
// fresh for ttl; an expired entry is re-read, and if the read fails the stale
// value is served instead of the compiled-in default. Defaults apply only
// when a key was never loaded at all.
type SettingsService struct {
	source SettingSource
	ttl    time.Duration
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]cachedSetting
}

// NewSettingsService creates a new SettingsService.
func NewSettingsService(source SettingSource, ttl time.Duration, logger *slog.Logger) *SettingsService {
	return &SettingsService{
		source: source,
		ttl:    ttl,
		logger: logger,
		cache:  make(map[string]cachedSetting),
	}
}

// Get returns the raw value for key, or domain.ErrSettingNotFound.
func (s *SettingsService) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	entry, ok := s.cache[key]
	s.mu.RUnlock()

	if ok && time.Since(entry.loadedAt) < s.ttl {
		return entry.value, nil
	}

	value, err := s.source.Get(ctx, key)
	if err != nil {
		if ok {
			// Serve stale rather than failing a hot path on a DB blip.
			s.logger.Warn("settings: serving stale value", "key", key, "error", err)
			return entry.value, nil
		}
		return "", err
	}

	s.mu.Lock()
	s.cache[key] = cachedSetting{value: value, loadedAt: time.Now()}
	s.mu.Unlock()
	return value, nil
}

// GetString returns the value for key, or def when the key is absent.
func (s *SettingsService) GetString(ctx context.Context, key, def string) string {
	value, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	return value
}

// GetInt returns the value parsed as an integer, or def.
func (s *SettingsService) GetInt(ctx context.Context, key string, def int) int {
	value, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		s.logger.Warn("settings: bad integer value", "key", key, "value", value)
		return def
	}
	return n
}

// GetDecimal returns the value parsed as a decimal, or def.
func (s *SettingsService) GetDecimal(ctx context.Context, key string, def decimal.Decimal) decimal.Decimal {
	value, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		s.logger.Warn("settings: bad decimal value", "key", key, "value", value)
		return def
	}
	return d
}

// GetBool returns the value parsed as a boolean, or def.
func (s *SettingsService) GetBool(ctx context.Context, key string, def bool) bool {
	value, err := s.Get(ctx, key)
	if err != nil {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		s.logger.Warn("settings: bad boolean value", "key", key, "value", value)
		return def
	}
	return b
}

// Invalidate clears the cache. Called after any admin settings mutation.
func (s *SettingsService) Invalidate() {
	s.mu.Lock()
	s.cache = make(map[string]cachedSetting)
	s.mu.Unlock()
}

// ──────────────────────────────────────────────────────────────────────────────
// Typed accessors for the known game settings
// ──────────────────────────────────────────────────────────────────────────────

// RoundDuration returns the configured round length.
func (s *SettingsService) RoundDuration(ctx context.Context) time.Duration {
	secs := s.GetInt(ctx, domain.SettingRoundDuration, 300)
	if secs <= 0 {
		secs = 300
	}
	return time.Duration(secs) * time.Second
}

// PayoutMultiplier returns the multiplier stamped on new rounds.
func (s *SettingsService) PayoutMultiplier(ctx context.Context) decimal.Decimal {
	return s.GetDecimal(ctx, domain.SettingPayoutMultiplier, decimal.RequireFromString("10.00"))
}

// CardCount returns the number of cards in play.
func (s *SettingsService) CardCount(ctx context.Context) int {
	n := s.GetInt(ctx, domain.SettingCardCount, 12)
	if n <= 0 {
		n = 12
	}
	return n
}

// ResultType returns "auto" or "manual".
func (s *SettingsService) ResultType(ctx context.Context) string {
	rt := s.GetString(ctx, domain.SettingGameResultType, domain.ResultTypeManual)
	if rt != domain.ResultTypeAuto && rt != domain.ResultTypeManual {
		return domain.ResultTypeManual
	}
	return rt
}

// WinningCardPolicy returns the configured selector policy.
func (s *SettingsService) WinningCardPolicy(ctx context.Context) domain.SelectorPolicy {
	p := domain.SelectorPolicy(s.GetString(ctx, domain.SettingWinningCardPolicy, string(domain.PolicyLowestLoss)))
	if !p.IsValid() {
		return domain.PolicyLowestLoss
	}
	return p
}

// FixedWinningCard returns the card used by the fixed policy, 0 when unset.
func (s *SettingsService) FixedWinningCard(ctx context.Context) int {
	return s.GetInt(ctx, domain.SettingFixedWinningCard, 0)
}

// AutoClaim reports whether settlement credits winners directly.
func (s *SettingsService) AutoClaim(ctx context.Context) bool {
	return s.GetBool(ctx, domain.SettingAutoClaim, false)
}

// MaxBetAmount returns the per-line cap, or zero when uncapped.
func (s *SettingsService) MaxBetAmount(ctx context.Context) decimal.Decimal {
	return s.GetDecimal(ctx, domain.SettingMaxBetAmount, decimal.Zero)
}

// CancelCutoff returns how long before round end cancellation closes.
func (s *SettingsService) CancelCutoff(ctx context.Context) time.Duration {
	secs := s.GetInt(ctx, domain.SettingCancelCutoff, 30)
	if secs < 0 {
		secs = 0
	}
	return time.Duration(secs) * time.Second
}

// OperatingWindow returns the configured "HH:MM" window bounds. Empty strings
// mean the game runs around the clock.
func (s *SettingsService) OperatingWindow(ctx context.Context) (start, end string) {
	return s.GetString(ctx, domain.SettingOperatingStart, ""),
		s.GetString(ctx, domain.SettingOperatingEnd, "")
}

// ──────────────────────────────────────────────────────────────────────────────
// Backoffice writes
// ──────────────────────────────────────────────────────────────────────────────

// List returns all settings rows for the backoffice.
func (s *SettingsService) List(ctx context.Context) ([]domain.GameSetting, error) {
	return s.source.List(ctx)
}

// Update validates and writes one setting, then drops the cache so the next
// read sees the new value.
func (s *SettingsService) Update(ctx context.Context, key, value, updatedBy string) error {
	if err := validateSetting(key, value); err != nil {
		return err
	}
	if err := s.source.Upsert(ctx, key, value, updatedBy); err != nil {
		return err
	}
	s.Invalidate()
	s.logger.Info("setting updated", "key", key, "value", value, "updated_by", updatedBy)
	return nil
}

func validateSetting(key, value string) error {
	switch key {
	case domain.SettingRoundDuration, domain.SettingCardCount, domain.SettingCancelCutoff:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("service.validateSetting: %q must be a positive integer: %w", key, domain.ErrSettingInvalid)
		}
	case domain.SettingFixedWinningCard:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("service.validateSetting: %q must be an integer: %w", key, domain.ErrSettingInvalid)
		}
	case domain.SettingPayoutMultiplier, domain.SettingMaxBetAmount:
		d, err := decimal.NewFromString(value)
		if err != nil || d.IsNegative() {
			return fmt.Errorf("service.validateSetting: %q must be a non-negative decimal: %w", key, domain.ErrSettingInvalid)
		}
	case domain.SettingGameResultType:
		if value != domain.ResultTypeAuto && value != domain.ResultTypeManual {
			return fmt.Errorf("service.validateSetting: %q must be auto or manual: %w", key, domain.ErrSettingInvalid)
		}
	case domain.SettingWinningCardPolicy:
		if !domain.SelectorPolicy(value).IsValid() {
			return fmt.Errorf("service.validateSetting: unknown policy %q: %w", value, domain.ErrSettingInvalid)
		}
	case domain.SettingAutoClaim:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("service.validateSetting: %q must be a boolean: %w", key, domain.ErrSettingInvalid)
		}
	case domain.SettingOperatingStart, domain.SettingOperatingEnd:
		if value != "" {
			if _, err := time.Parse("15:04", value); err != nil {
				return fmt.Errorf("service.validateSetting: %q must be HH:MM: %w", key, domain.ErrSettingInvalid)
			}
		}
	default:
		return fmt.Errorf("service.validateSetting: unknown key %q: %w", key, domain.ErrSettingNotFound)
	}
	return nil
}
