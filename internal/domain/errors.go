package domain

import (
	"errors"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors — compare with errors.Is()
// ──────────────────────────────────────────────────────────────────────────────

// Round errors
var (
	// ErrRoundNotFound is returned when no round matches the given criteria.
	ErrRoundNotFound = errors.New("round not found")

	// ErrNoCurrentRound is returned when there is no active round available.
	ErrNoCurrentRound = errors.New("no current round available")

	// ErrRoundClosed is returned when a bet placement or cancellation is
	// attempted outside the round's betting window.
	ErrRoundClosed = errors.New("round is not open for betting")

	// ErrRoundNotCompleted is returned when settlement is requested for a
	// round whose betting window has not closed yet.
	ErrRoundNotCompleted = errors.New("round is not completed")
)

// Settlement errors
var (
	// ErrSettlementInProgress is returned when a concurrent caller already
	// holds the settlement gate for the round.
	ErrSettlementInProgress = errors.New("settlement already in progress")

	// ErrAwaitingManual is returned when the round completed but the result
	// type is manual and no winning card was supplied.
	ErrAwaitingManual = errors.New("round is awaiting manual winning-card decision")

	// ErrSettlementFailed is returned when a previous settlement attempt
	// recorded a persistent failure on the round.
	ErrSettlementFailed = errors.New("settlement failed; re-trigger required")

	// ErrInvalidCard is returned when a card number is outside [1..card_count].
	ErrInvalidCard = errors.New("card number is out of range")
)

// Bet / slip errors
var (
	// ErrSlipNotFound is returned when no slip matches the id or barcode.
	ErrSlipNotFound = errors.New("bet slip not found")

	// ErrEmptySlip is returned when a placement request carries no lines.
	ErrEmptySlip = errors.New("bet slip must contain at least one line")

	// ErrInvalidAmount is returned when a line amount is zero or negative.
	ErrInvalidAmount = errors.New("bet amount must be positive")

	// ErrBetTooLarge is returned when a line exceeds the configured maximum.
	ErrBetTooLarge = errors.New("bet amount exceeds the per-line maximum")

	// ErrIdempotencyConflict is returned when an idempotency key was already
	// used by a different user.
	ErrIdempotencyConflict = errors.New("idempotency key belongs to another user")

	// ErrBarcodeCollision is returned when barcode generation failed to find
	// a unique value within the retry bound.
	ErrBarcodeCollision = errors.New("could not generate a unique barcode")

	// ErrAlreadyClaimed is returned on a repeat claim of the same slip.
	ErrAlreadyClaimed = errors.New("slip has already been claimed")

	// ErrNotWinning is returned when a claim is attempted on a slip that is
	// not in won status.
	ErrNotWinning = errors.New("slip is not a winning slip")

	// ErrNotCancellable is returned when a cancel request arrives after the
	// cutoff or for a slip that is no longer pending.
	ErrNotCancellable = errors.New("slip can no longer be cancelled")
)

// User / wallet errors
var (
	// ErrUserNotFound is returned when no user matches the given criteria.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned on registration when the email already exists.
	ErrEmailTaken = errors.New("email address is already registered")

	// ErrUsernameTaken is returned on registration when the username already exists.
	ErrUsernameTaken = errors.New("username is already taken")

	// ErrInvalidCredentials is returned when login credentials are wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUserInactive is returned when a suspended user attempts an action.
	ErrUserInactive = errors.New("user account is inactive")

	// ErrInsufficientFunds is returned when a debit would take the wallet
	// balance below zero. The enclosing transaction must be aborted.
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
)

// Auth errors
var (
	// ErrUnauthorized is returned when a valid token is not present.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the authenticated user lacks the required role.
	ErrForbidden = errors.New("forbidden: insufficient permissions")

	// ErrTokenExpired is returned when a JWT has passed its TTL.
	ErrTokenExpired = errors.New("token has expired")

	// ErrTokenInvalid is returned when a token cannot be parsed or its
	// signature does not match.
	ErrTokenInvalid = errors.New("token is invalid")
)

// Settings errors
var (
	// ErrSettingNotFound is returned when a setting key has no row.
	ErrSettingNotFound = errors.New("setting not found")

	// ErrSettingInvalid is returned when a setting value fails validation.
	ErrSettingInvalid = errors.New("invalid setting value")
)

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// notFoundErrors collects all "entity not found" sentinel errors so that
// IsNotFound stays in sync automatically.
var notFoundErrors = []error{
	ErrRoundNotFound,
	ErrNoCurrentRound,
	ErrSlipNotFound,
	ErrUserNotFound,
	ErrSettingNotFound,
}

// IsNotFound returns true when err (or any error in its chain) is one of the
// domain "not found" errors. Use this instead of comparing error values
// directly when translating domain errors to HTTP 404 responses.
func IsNotFound(err error) bool {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflict returns true for errors that represent a state conflict
// (duplicate actions, closed windows, settlement races).
func IsConflict(err error) bool {
	conflictErrors := []error{
		ErrRoundClosed,
		ErrSettlementInProgress,
		ErrAlreadyClaimed,
		ErrNotWinning,
		ErrNotCancellable,
		ErrIdempotencyConflict,
		ErrBarcodeCollision,
		ErrEmailTaken,
		ErrUsernameTaken,
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsAuthError returns true for authentication/authorisation errors.
func IsAuthError(err error) bool {
	authErrors := []error{
		ErrUnauthorized,
		ErrForbidden,
		ErrTokenExpired,
		ErrTokenInvalid,
		ErrInvalidCredentials,
	}
	for _, target := range authErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
