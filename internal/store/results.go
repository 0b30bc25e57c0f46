package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"subtrans/internal/queue"
	"subtrans/internal/services"
)

// SaveResult stores or replaces the result record for its key.
func (s *Store) SaveResult(ctx context.Context, result queue.Result) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	err = s.execWithRetry(ctx, `INSERT INTO results (result_key, video_url, payload, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(result_key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		result.Key(), result.VideoURL, string(encoded), s.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

// LoadResult returns the result record stored under key.
func (s *Store) LoadResult(ctx context.Context, key string) (queue.Result, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM results WHERE result_key = ?", key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return queue.Result{}, services.Wrap(services.ErrNotFound, "store", "load result", "no result for "+key, nil)
	}
	if err != nil {
		return queue.Result{}, fmt.Errorf("load result: %w", err)
	}
	var result queue.Result
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return queue.Result{}, fmt.Errorf("decode result: %w", err)
	}
	return result, nil
}

// ResultsForVideo returns every stored result for url, most recent first.
func (s *Store) ResultsForVideo(ctx context.Context, url string) ([]queue.Result, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT payload FROM results WHERE video_url = ? ORDER BY updated_at DESC", url)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()
	var out []queue.Result
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		var result queue.Result
		if err := json.Unmarshal([]byte(payload), &result); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		out = append(out, result)
	}
	return out, rows.Err()
}

// DeleteResults removes every stored result for url and reports how many
// were removed.
func (s *Store) DeleteResults(ctx context.Context, url string) (int64, error) {
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM results WHERE video_url = ?", url)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete results: %w", err)
	}
	return removed, nil
}
