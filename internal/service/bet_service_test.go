package service

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/taasclub/cardbet/internal/domain"
)

// An idempotency-key hit is only a replay for the user who placed the slip.

func TestReplaySlip_OwnerGetsSlipBack(t *testing.T) {
	owner := uuid.New()
	existing := &domain.BetSlip{ID: uuid.New(), UserID: owner, Barcode: "123456789012"}

	got, err := replaySlip(existing, owner)
	if err != nil {
		t.Fatalf("replaySlip for owner: %v", err)
	}
	if got.ID != existing.ID {
		t.Errorf("replaySlip returned slip %s, want %s", got.ID, existing.ID)
	}
}

func TestReplaySlip_OtherUsersKeyConflicts(t *testing.T) {
	existing := &domain.BetSlip{ID: uuid.New(), UserID: uuid.New()}

	got, err := replaySlip(existing, uuid.New())
	if !errors.Is(err, domain.ErrIdempotencyConflict) {
		t.Fatalf("replaySlip for another user = %v, want ErrIdempotencyConflict", err)
	}
	if got != nil {
		t.Error("a conflicting replay must not leak the other user's slip")
	}
}
