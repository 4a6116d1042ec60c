package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/taasclub/cardbet/internal/domain"
	"github.com/taasclub/cardbet/internal/service"
)

// ── Fake setting source ───────────────────────────────────────────────────────

// fakeSettingSource is an in-memory SettingSource that can be switched into a
// failing mode to exercise the stale-serve path.
type fakeSettingSource struct {
	mu     sync.Mutex
	values map[string]string
	fail   bool
	gets   int
}

func newFakeSource(values map[string]string) *fakeSettingSource {
	return &fakeSettingSource{values: values}
}

func (f *fakeSettingSource) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.fail {
		return "", errors.New("source down")
	}
	v, ok := f.values[key]
	if !ok {
		return "", domain.ErrSettingNotFound
	}
	return v, nil
}

func (f *fakeSettingSource) GetAll(ctx context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out, nil
}

func (f *fakeSettingSource) List(ctx context.Context) ([]domain.GameSetting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.GameSetting
	for k, v := range f.values {
		out = append(out, domain.GameSetting{Key: k, Value: v})
	}
	return out, nil
}

func (f *fakeSettingSource) Upsert(ctx context.Context, key, value, updatedBy string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *fakeSettingSource) setFail(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

func (f *fakeSettingSource) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ── Cache behaviour ───────────────────────────────────────────────────────────

func TestSettingsGet_CachesWithinTTL(t *testing.T) {
	src := newFakeSource(map[string]string{domain.SettingCardCount: "12"})
	svc := service.NewSettingsService(src, time.Minute, quietLogger())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if got := svc.CardCount(ctx); got != 12 {
			t.Fatalf("CardCount = %d, want 12", got)
		}
	}
	if n := src.getCount(); n != 1 {
		t.Errorf("source.Get called %d times within TTL, want 1", n)
	}
}

func TestSettingsGet_RereadsAfterTTL(t *testing.T) {
	src := newFakeSource(map[string]string{domain.SettingCardCount: "12"})
	// Zero TTL: every Get is stale immediately.
	svc := service.NewSettingsService(src, 0, quietLogger())
	ctx := context.Background()

	_ = svc.CardCount(ctx)
	src.values[domain.SettingCardCount] = "8"
	if got := svc.CardCount(ctx); got != 8 {
		t.Errorf("CardCount after source change = %d, want 8", got)
	}
}

func TestSettingsGet_ServesStaleOnSourceError(t *testing.T) {
	src := newFakeSource(map[string]string{domain.SettingPayoutMultiplier: "11.50"})
	svc := service.NewSettingsService(src, 0, quietLogger())
	ctx := context.Background()

	want := decimal.RequireFromString("11.50")
	if got := svc.PayoutMultiplier(ctx); !got.Equal(want) {
		t.Fatalf("PayoutMultiplier = %s, want %s", got, want)
	}

	// Source goes down: the cached value keeps serving even though it is stale.
	src.setFail(true)
	if got := svc.PayoutMultiplier(ctx); !got.Equal(want) {
		t.Errorf("PayoutMultiplier with failing source = %s, want stale %s", got, want)
	}
}

func TestSettingsGet_DefaultWhenNeverLoaded(t *testing.T) {
	src := newFakeSource(map[string]string{})
	src.setFail(true)
	svc := service.NewSettingsService(src, time.Minute, quietLogger())
	ctx := context.Background()

	if got := svc.RoundDuration(ctx); got != 5*time.Minute {
		t.Errorf("RoundDuration with empty cache = %s, want 5m default", got)
	}
	if got := svc.ResultType(ctx); got != domain.ResultTypeManual {
		t.Errorf("ResultType default = %q, want manual", got)
	}
	if got := svc.WinningCardPolicy(ctx); got != domain.PolicyLowestLoss {
		t.Errorf("WinningCardPolicy default = %q, want lowest_loss", got)
	}
	if svc.AutoClaim(ctx) {
		t.Error("AutoClaim default = true, want false")
	}
}

func TestSettingsInvalidate_ForcesReload(t *testing.T) {
	src := newFakeSource(map[string]string{domain.SettingCardCount: "12"})
	svc := service.NewSettingsService(src, time.Hour, quietLogger())
	ctx := context.Background()

	_ = svc.CardCount(ctx)
	src.values[domain.SettingCardCount] = "10"

	// Still cached for an hour...
	if got := svc.CardCount(ctx); got != 12 {
		t.Fatalf("CardCount before invalidate = %d, want cached 12", got)
	}
	svc.Invalidate()
	if got := svc.CardCount(ctx); got != 10 {
		t.Errorf("CardCount after invalidate = %d, want 10", got)
	}
}

// ── Bad values fall back to defaults ──────────────────────────────────────────

func TestSettingsTypedAccessors_BadValues(t *testing.T) {
	src := newFakeSource(map[string]string{
		domain.SettingRoundDuration:     "not-a-number",
		domain.SettingPayoutMultiplier:  "eleven",
		domain.SettingGameResultType:    "oracle",
		domain.SettingWinningCardPolicy: "chaos",
		domain.SettingAutoClaim:         "yep",
	})
	svc := service.NewSettingsService(src, time.Minute, quietLogger())
	ctx := context.Background()

	if got := svc.RoundDuration(ctx); got != 5*time.Minute {
		t.Errorf("RoundDuration = %s, want 5m default", got)
	}
	want := decimal.RequireFromString("10.00")
	if got := svc.PayoutMultiplier(ctx); !got.Equal(want) {
		t.Errorf("PayoutMultiplier = %s, want %s default", got, want)
	}
	if got := svc.ResultType(ctx); got != domain.ResultTypeManual {
		t.Errorf("ResultType = %q, want manual", got)
	}
	if got := svc.WinningCardPolicy(ctx); got != domain.PolicyLowestLoss {
		t.Errorf("WinningCardPolicy = %q, want lowest_loss", got)
	}
	if svc.AutoClaim(ctx) {
		t.Error("AutoClaim with bad value = true, want false")
	}
}

// ── Update validation ─────────────────────────────────────────────────────────

func TestSettingsUpdate_Validation(t *testing.T) {
	cases := []struct {
		name    string
		key     string
		value   string
		wantErr error
	}{
		{"valid duration", domain.SettingRoundDuration, "120", nil},
		{"zero duration", domain.SettingRoundDuration, "0", domain.ErrSettingInvalid},
		{"negative multiplier", domain.SettingPayoutMultiplier, "-1", domain.ErrSettingInvalid},
		{"valid multiplier", domain.SettingPayoutMultiplier, "11.50", nil},
		{"valid result type", domain.SettingGameResultType, "auto", nil},
		{"bad result type", domain.SettingGameResultType, "oracle", domain.ErrSettingInvalid},
		{"valid policy", domain.SettingWinningCardPolicy, "random", nil},
		{"bad policy", domain.SettingWinningCardPolicy, "chaos", domain.ErrSettingInvalid},
		{"valid bool", domain.SettingAutoClaim, "true", nil},
		{"bad bool", domain.SettingAutoClaim, "yep", domain.ErrSettingInvalid},
		{"valid window", domain.SettingOperatingStart, "09:30", nil},
		{"empty window", domain.SettingOperatingStart, "", nil},
		{"bad window", domain.SettingOperatingEnd, "25:99", domain.ErrSettingInvalid},
		{"unknown key", "house_edge", "0.5", domain.ErrSettingNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := newFakeSource(map[string]string{})
			svc := service.NewSettingsService(src, time.Minute, quietLogger())

			err := svc.Update(context.Background(), tc.key, tc.value, "test-admin")
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("Update(%q, %q) = %v, want nil", tc.key, tc.value, err)
				}
				if src.values[tc.key] != tc.value {
					t.Errorf("value not persisted: got %q", src.values[tc.key])
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Update(%q, %q) = %v, want %v", tc.key, tc.value, err, tc.wantErr)
			}
		})
	}
}

func TestSettingsUpdate_InvalidatesCache(t *testing.T) {
	src := newFakeSource(map[string]string{domain.SettingCardCount: "12"})
	svc := service.NewSettingsService(src, time.Hour, quietLogger())
	ctx := context.Background()

	if got := svc.CardCount(ctx); got != 12 {
		t.Fatalf("CardCount = %d, want 12", got)
	}
	if err := svc.Update(ctx, domain.SettingCardCount, "10", "test-admin"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := svc.CardCount(ctx); got != 10 {
		t.Errorf("CardCount after Update = %d, want 10", got)
	}
}
