package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"realtyhub/internal/domain"
	"realtyhub/internal/models"
)

const failureColumns = `id, booking_id, effect, event_kind, payload, last_error, attempts, status,
        next_retry_at, created_at, resolved_at`

func (db *DB) RecordSideEffectFailure(ctx context.Context, f *models.SideEffectFailure) error {
	query := `INSERT INTO side_effect_failures (booking_id, effect, event_kind, payload, last_error, attempts, status, next_retry_at, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	if f.Status == "" {
		f.Status = models.FailurePending
	}
	if f.Attempts == 0 {
		f.Attempts = 1
	}
	now := time.Now().UTC()
	err := db.QueryRowContext(ctx, db.q(query),
		f.BookingID, f.Effect, f.EventKind, f.Payload, f.LastError, f.Attempts, f.Status, f.NextRetryAt, now,
	).Scan(&f.ID)
	if err != nil {
		return fmt.Errorf("failed to record side effect failure: %w", err)
	}
	f.CreatedAt = now
	return nil
}

// DueSideEffectFailures returns pending and retry rows whose retry time has come.
func (db *DB) DueSideEffectFailures(ctx context.Context, limit int) ([]models.SideEffectFailure, error) {
	query := `SELECT ` + failureColumns + ` FROM side_effect_failures
              WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY created_at ASC, id ASC LIMIT ?`
	return db.listFailures(ctx, query, models.FailurePending, models.FailureRetry, time.Now().UTC(), limit)
}

func (db *DB) FailedSideEffects(ctx context.Context, limit int) ([]models.SideEffectFailure, error) {
	query := `SELECT ` + failureColumns + ` FROM side_effect_failures WHERE status = ?
              ORDER BY created_at DESC, id DESC LIMIT ?`
	return db.listFailures(ctx, query, models.FailureFailed, limit)
}

func (db *DB) GetSideEffectFailure(ctx context.Context, id int64) (*models.SideEffectFailure, error) {
	query := `SELECT ` + failureColumns + ` FROM side_effect_failures WHERE id = ?`
	f, err := scanFailure(db.QueryRowContext(ctx, db.q(query), id))
	if err != nil {
		return nil, notFound(err, fmt.Errorf("side effect failure %d: %w", id, domain.ErrNotFound))
	}
	return f, nil
}

func (db *DB) UpdateSideEffectFailure(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []any
	now := time.Now().UTC()

	switch status {
	case models.FailureRetry:
		query = `UPDATE side_effect_failures SET status = ?, last_error = ?, next_retry_at = ?, attempts = attempts + 1 WHERE id = ?`
		args = []any{status, errMsg, nextRetryAt, id}
	case models.FailureResolved, models.FailureFailed:
		query = `UPDATE side_effect_failures SET status = ?, last_error = ?, next_retry_at = ?, resolved_at = ? WHERE id = ?`
		args = []any{status, errMsg, nextRetryAt, now, id}
	default:
		query = `UPDATE side_effect_failures SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []any{status, errMsg, nextRetryAt, id}
	}

	if _, err := db.ExecContext(ctx, db.q(query), args...); err != nil {
		return fmt.Errorf("failed to update side effect failure: %w", err)
	}
	return nil
}

func (db *DB) listFailures(ctx context.Context, query string, args ...any) ([]models.SideEffectFailure, error) {
	rows, err := db.QueryContext(ctx, db.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list side effect failures: %w", err)
	}
	defer rows.Close()

	var list []models.SideEffectFailure
	for rows.Next() {
		f, err := scanFailure(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan side effect failure: %w", err)
		}
		list = append(list, *f)
	}
	return list, rows.Err()
}

func scanFailure(row rowScanner) (*models.SideEffectFailure, error) {
	var (
		f          models.SideEffectFailure
		nextRetry  sql.NullTime
		resolvedAt sql.NullTime
	)
	err := row.Scan(&f.ID, &f.BookingID, &f.Effect, &f.EventKind, &f.Payload, &f.LastError, &f.Attempts,
		&f.Status, &nextRetry, &f.CreatedAt, &resolvedAt)
	if err != nil {
		return nil, err
	}
	f.NextRetryAt = nullableTime(nextRetry)
	f.ResolvedAt = nullableTime(resolvedAt)
	return &f, nil
}
