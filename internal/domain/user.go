package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// UserRole
// ──────────────────────────────────────────────────────────────────────────────

// UserRole controls access levels in the back-office.
type UserRole string

const (
	RoleUser     UserRole = "user"     // standard player
	RoleAdmin    UserRole = "admin"    // full back-office access
	RoleOps      UserRole = "ops"      // operations: round management, manual settle
	RoleFinance  UserRole = "finance"  // deposits, ledger reports
	RoleReadOnly UserRole = "readonly" // read-only back-office access
)

// CanAccessBackoffice returns true for all non-player roles.
func (r UserRole) CanAccessBackoffice() bool {
	return r != RoleUser
}

// CanSettle returns true for roles allowed to trigger manual settlement.
func (r UserRole) CanSettle() bool {
	return r == RoleAdmin || r == RoleOps
}

// ──────────────────────────────────────────────────────────────────────────────
// User
// ──────────────────────────────────────────────────────────────────────────────

// User is the domain entity for registered accounts. The core touches only
// DepositAmount (the wallet balance) and only through the wallet ledger.
type User struct {
	ID            uuid.UUID       `json:"id"             db:"id"`
	Email         string          `json:"email"          db:"email"`
	Username      string          `json:"username"       db:"username"`
	PasswordHash  string          `json:"-"              db:"password_hash"` // never serialised
	Role          UserRole        `json:"role"           db:"role"`
	IsActive      bool            `json:"is_active"      db:"is_active"`
	DepositAmount decimal.Decimal `json:"deposit_amount" db:"deposit_amount"`
	CreatedAt     time.Time       `json:"created_at"     db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"     db:"updated_at"`
}

// PublicProfile returns a user view safe to expose via API.
type PublicProfile struct {
	ID            uuid.UUID       `json:"id"`
	Email         string          `json:"email"`
	Username      string          `json:"username"`
	Role          UserRole        `json:"role"`
	IsActive      bool            `json:"is_active"`
	DepositAmount decimal.Decimal `json:"deposit_amount"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ToPublicProfile converts a User to its public-safe representation.
func (u *User) ToPublicProfile() PublicProfile {
	return PublicProfile{
		ID:            u.ID,
		Email:         u.Email,
		Username:      u.Username,
		Role:          u.Role,
		IsActive:      u.IsActive,
		DepositAmount: u.DepositAmount,
		CreatedAt:     u.CreatedAt,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// AuditEntry
// ──────────────────────────────────────────────────────────────────────────────

// AuditEntry is a structured event emitted from within a mutating transaction
// so it shares the transaction's fate. Downstream consumers are external.
type AuditEntry struct {
	ID        uuid.UUID `json:"id"         db:"id"`
	ActorID   uuid.UUID `json:"actor_id"   db:"actor_id"`
	Action    string    `json:"action"     db:"action"` // e.g. "bet.place", "round.settle"
	Entity    string    `json:"entity"     db:"entity"`
	EntityID  string    `json:"entity_id"  db:"entity_id"`
	Detail    string    `json:"detail"     db:"detail"` // JSON payload
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
