package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/taasclub/cardbet/internal/domain"
)

// SettingRepository reads and writes the game_settings key/value table.
type SettingRepository struct {
	db *sqlx.DB
}

// NewSettingRepository creates a new SettingRepository.
func NewSettingRepository(db *sqlx.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get returns the value for one key.
func (r *SettingRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.GetContext(ctx, &value, `SELECT value FROM game_settings WHERE key = $1`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrSettingNotFound
		}
		return "", fmt.Errorf("setting_repo.Get: %w", err)
	}
	return value, nil
}

// GetAll loads every setting as a map.
func (r *SettingRepository) GetAll(ctx context.Context) (map[string]string, error) {
	var rows []domain.GameSetting
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM game_settings ORDER BY key ASC`); err != nil {
		return nil, fmt.Errorf("setting_repo.GetAll: %w", err)
	}
	settings := make(map[string]string, len(rows))
	for _, row := range rows {
		settings[row.Key] = row.Value
	}
	return settings, nil
}

// List returns all settings with metadata, for the backoffice.
func (r *SettingRepository) List(ctx context.Context) ([]domain.GameSetting, error) {
	var rows []domain.GameSetting
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM game_settings ORDER BY key ASC`); err != nil {
		return nil, fmt.Errorf("setting_repo.List: %w", err)
	}
	return rows, nil
}

// Upsert writes one key, creating it if absent.
func (r *SettingRepository) Upsert(ctx context.Context, key, value string, updatedBy string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO game_settings (key, value, updated_by, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`,
		key, value, updatedBy, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("setting_repo.Upsert: %w", err)
	}
	return nil
}
