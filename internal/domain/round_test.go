package domain_test

import (
	"testing"
	"time"

	"github.com/taasclub/cardbet/internal/domain"
)

// TestNewRoundID: the id is the start instant rendered as wall-clock digits
// in the fixed timezone. 09:30 UTC is 15:00 IST.
func TestNewRoundID(t *testing.T) {
	start := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	got := domain.NewRoundID(start)
	if got != "20250314150000" {
		t.Errorf("round id = %q, want 20250314150000", got)
	}
}

func TestNewRoundID_Stable(t *testing.T) {
	// Same instant expressed in different zones yields the same id.
	utc := time.Date(2025, 6, 1, 18, 45, 0, 0, time.UTC)
	ist := utc.In(domain.DisplayLocation())
	if domain.NewRoundID(utc) != domain.NewRoundID(ist) {
		t.Error("round id must depend only on the instant, not its zone")
	}
}

func TestRoundAcceptsBetsAt(t *testing.T) {
	now := time.Now().UTC()
	r := &domain.Round{
		Lifecycle: domain.LifecycleActive,
		StartTime: now.Add(-time.Minute),
		EndTime:   now.Add(time.Minute),
	}

	if !r.AcceptsBetsAt(now) {
		t.Error("active round inside window should accept bets")
	}
	if r.AcceptsBetsAt(now.Add(2 * time.Minute)) {
		t.Error("round should reject bets past end_time even while active")
	}

	r.Lifecycle = domain.LifecycleCompleted
	if r.AcceptsBetsAt(now) {
		t.Error("completed round should reject bets")
	}
}

func TestRoundTimeLeft(t *testing.T) {
	r := &domain.Round{EndTime: time.Now().Add(-time.Second)}
	if r.TimeLeft() != 0 {
		t.Errorf("expired round TimeLeft = %v, want 0", r.TimeLeft())
	}
}

func TestSlipPredicates(t *testing.T) {
	s := &domain.BetSlip{Status: domain.SlipStatusWon}
	if !s.IsClaimable() {
		t.Error("unclaimed won slip should be claimable")
	}
	s.Claimed = true
	if s.IsClaimable() {
		t.Error("claimed slip should not be claimable")
	}

	c := &domain.BetSlip{Status: domain.SlipStatusPending}
	if !c.IsCancellable() {
		t.Error("pending slip should be cancellable")
	}
	c.Cancelled = true
	if c.IsCancellable() {
		t.Error("already-cancelled slip should not be cancellable")
	}
}

// istTime builds an instant whose wall-clock in the display timezone is
// hh:mm. IST is UTC+05:30, so this subtracts the offset from a UTC date.
func istTime(hh, mm int) time.Time {
	return time.Date(2026, 3, 14, hh, mm, 0, 0, domain.DisplayLocation())
}

func TestWithinOperatingWindow(t *testing.T) {
	cases := []struct {
		name       string
		at         time.Time
		start, end string
		want       bool
	}{
		{"inside normal window", istTime(12, 0), "10:00", "22:00", true},
		{"at start boundary", istTime(10, 0), "10:00", "22:00", true},
		{"at end boundary", istTime(22, 0), "10:00", "22:00", false},
		{"before window", istTime(9, 59), "10:00", "22:00", false},
		{"overnight inside evening", istTime(23, 30), "22:00", "06:00", true},
		{"overnight inside morning", istTime(3, 0), "22:00", "06:00", true},
		{"overnight outside", istTime(12, 0), "22:00", "06:00", false},
		{"empty bounds always open", istTime(4, 0), "", "", true},
		{"equal bounds always open", istTime(4, 0), "10:00", "10:00", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := domain.WithinOperatingWindow(tc.at, tc.start, tc.end)
			if err != nil {
				t.Fatalf("WithinOperatingWindow: %v", err)
			}
			if got != tc.want {
				t.Errorf("WithinOperatingWindow(%s, %q, %q) = %v, want %v",
					tc.at, tc.start, tc.end, got, tc.want)
			}
		})
	}
}

func TestWithinOperatingWindow_BadFormat(t *testing.T) {
	if _, err := domain.WithinOperatingWindow(time.Now(), "25:99", "06:00"); err == nil {
		t.Error("bad start bound should return an error")
	}
	if _, err := domain.WithinOperatingWindow(time.Now(), "10:00", "noon"); err == nil {
		t.Error("bad end bound should return an error")
	}
}
