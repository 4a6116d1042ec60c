package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/taasclub/cardbet/internal/domain"
)

// AuditRepository appends rows to the audit_log table. Entries written inside
// a transaction commit or roll back with the operation they describe.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

const auditInsert = `
	INSERT INTO audit_log (id, actor_id, action, entity, entity_id, detail, created_at)
	VALUES (:id, :actor_id, :action, :entity, :entity_id, :detail, :created_at)`

// Insert appends an entry outside any transaction.
func (r *AuditRepository) Insert(ctx context.Context, e *domain.AuditEntry) error {
	if _, err := r.db.NamedExecContext(ctx, auditInsert, e); err != nil {
		return fmt.Errorf("audit_repo.Insert: %w", err)
	}
	return nil
}

// InsertTx appends an entry inside the caller's transaction.
func (r *AuditRepository) InsertTx(ctx context.Context, tx *sqlx.Tx, e *domain.AuditEntry) error {
	if _, err := tx.NamedExecContext(ctx, auditInsert, e); err != nil {
		return fmt.Errorf("audit_repo.InsertTx: %w", err)
	}
	return nil
}

// ListByEntity returns the audit trail for one entity, newest first.
func (r *AuditRepository) ListByEntity(ctx context.Context, entity, entityID string, limit int) ([]*domain.AuditEntry, error) {
	var entries []*domain.AuditEntry
	err := r.db.SelectContext(ctx, &entries,
		`SELECT * FROM audit_log WHERE entity = $1 AND entity_id = $2 ORDER BY created_at DESC LIMIT $3`,
		entity, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit_repo.ListByEntity: %w", err)
	}
	return entries, nil
}
