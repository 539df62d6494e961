package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"realtyhub/internal/domain"
	"realtyhub/internal/models"
)

func (db *DB) CreateNotification(ctx context.Context, n *models.Notification) error {
	var data sql.NullString
	if len(n.Data) > 0 {
		raw, err := json.Marshal(n.Data)
		if err != nil {
			return fmt.Errorf("encode notification data: %w", err)
		}
		data = sql.NullString{String: string(raw), Valid: true}
	}

	query := `INSERT INTO notifications (recipient_id, kind, title, message, data, is_read, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`
	now := time.Now().UTC()
	err := db.QueryRowContext(ctx, db.q(query),
		n.RecipientID, n.Kind, n.Title, n.Message, data, false, now,
	).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	n.IsRead = false
	n.CreatedAt = now
	return nil
}

func (db *DB) ListNotifications(ctx context.Context, recipientID int64, unreadOnly bool, limit int) ([]*models.Notification, error) {
	query := `SELECT id, recipient_id, kind, title, message, data, is_read, created_at
              FROM notifications WHERE recipient_id = ?`
	args := []any{recipientID}
	if unreadOnly {
		query += ` AND is_read = ?`
		args = append(args, false)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, db.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var list []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		var data sql.NullString
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Kind, &n.Title, &n.Message, &data, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &n.Data); err != nil {
				return nil, fmt.Errorf("notification %d has corrupt data: %w", n.ID, err)
			}
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

func (db *DB) CountUnread(ctx context.Context, recipientID int64) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, db.q(`SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = ?`),
		recipientID, false).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead flags one notification of the recipient as read. Marking an
// already read notification is not an error.
func (db *DB) MarkRead(ctx context.Context, recipientID, id int64) error {
	result, err := db.ExecContext(ctx, db.q(`UPDATE notifications SET is_read = ? WHERE id = ? AND recipient_id = ?`),
		true, id, recipientID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("notification %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (db *DB) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	result, err := db.ExecContext(ctx, db.q(`UPDATE notifications SET is_read = ? WHERE recipient_id = ? AND is_read = ?`),
		true, recipientID, false)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}
