package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"subtrans/internal/logging"
	"subtrans/internal/queue"
)

// SaveJobs replaces the queue snapshot with jobs, keeping their order.
func (s *Store) SaveJobs(ctx context.Context, jobs []queue.Job) error {
	payloads := make([][]byte, len(jobs))
	for i, job := range jobs {
		encoded, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("encode job %s: %w", job.ID, err)
		}
		payloads[i] = encoded
	}
	stamp := s.timestamp()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM jobs"); err != nil {
			return err
		}
		for i, job := range jobs {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO jobs (id, position, video_url, status, payload, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
				job.ID, i, job.VideoURL, string(job.Status), string(payloads[i]), stamp,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save queue snapshot: %w", err)
	}
	return nil
}

// LoadJobs returns the persisted queue snapshot in queue order. Rows that no
// longer decode are skipped with a warning.
func (s *Store) LoadJobs(ctx context.Context) ([]queue.Job, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, payload FROM jobs ORDER BY position ASC")
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []queue.Job
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		var job queue.Job
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			logging.WarnWithContext(s.logger, "skipping unreadable job row", "job_decode_failed",
				logging.String(logging.FieldJobID, id),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "re-enqueue the video"),
				logging.String(logging.FieldImpact, "job dropped from the restored queue"),
			)
			continue
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}
