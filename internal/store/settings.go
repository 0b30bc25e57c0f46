package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"subtrans/internal/queue"
	"subtrans/internal/services"
)

const batchSettingsName = "batch"

// BatchSettings returns the persisted batch settings, or fallback when none
// have been saved.
func (s *Store) BatchSettings(ctx context.Context, fallback queue.BatchSettings) (queue.BatchSettings, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE name = ?", batchSettingsName).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return fallback, nil
	}
	if err != nil {
		return fallback, fmt.Errorf("load batch settings: %w", err)
	}
	settings := fallback
	if err := json.Unmarshal([]byte(value), &settings); err != nil {
		return fallback, fmt.Errorf("decode batch settings: %w", err)
	}
	return settings, nil
}

// SaveBatchSettings validates and persists settings.
func (s *Store) SaveBatchSettings(ctx context.Context, settings queue.BatchSettings) error {
	if err := settings.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "store", "save settings", "", err)
	}
	encoded, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode batch settings: %w", err)
	}
	if err := s.execWithRetry(ctx, `INSERT INTO settings (name, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		batchSettingsName, string(encoded), s.timestamp(),
	); err != nil {
		return fmt.Errorf("save batch settings: %w", err)
	}
	return nil
}

// APIKeys returns the persisted provider keys in rotation order.
func (s *Store) APIKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT api_key FROM credentials ORDER BY position ASC")
	if err != nil {
		return nil, fmt.Errorf("query credentials: %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// SetAPIKeys replaces the persisted key pool. Blank and duplicate keys are
// dropped; the cleaned list is returned.
func (s *Store) SetAPIKeys(ctx context.Context, keys []string) ([]string, error) {
	seen := make(map[string]struct{}, len(keys))
	cleaned := make([]string, 0, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		cleaned = append(cleaned, key)
	}
	stamp := s.timestamp()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM credentials"); err != nil {
			return err
		}
		for i, key := range cleaned {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO credentials (position, api_key, added_at) VALUES (?, ?, ?)", i, key, stamp,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save credentials: %w", err)
	}
	return cleaned, nil
}
