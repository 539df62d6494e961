package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"realtyhub/internal/domain"
	"realtyhub/internal/models"
)

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const conversationColumns = `id, participant_low, participant_high, property_id, last_message_preview,
        last_message_at, unread_low, unread_high, created_at`

// EnsureConversation returns the single conversation between a and b,
// creating it when missing. The boolean reports whether a row was created.
func (db *DB) EnsureConversation(ctx context.Context, a, b int64, propertyID *int64) (*models.Conversation, bool, error) {
	if a == b {
		return nil, false, domain.Invalid("participants", "must be two distinct users")
	}
	low, high := models.OrderedPair(a, b)

	var (
		conv    *models.Conversation
		created bool
	)
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		query := `INSERT INTO conversations (participant_low, participant_high, property_id, created_at)
                  VALUES (?, ?, ?, ?) ON CONFLICT (participant_low, participant_high) DO NOTHING`
		result, err := tx.ExecContext(ctx, db.q(query), low, high, propertyID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to insert conversation: %w", err)
		}
		rows, _ := result.RowsAffected()
		created = rows == 1

		conv, err = db.findConversation(ctx, tx, low, high)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return conv, created, nil
}

func (db *DB) FindConversation(ctx context.Context, a, b int64) (*models.Conversation, error) {
	low, high := models.OrderedPair(a, b)
	return db.findConversation(ctx, db.DB, low, high)
}

func (db *DB) findConversation(ctx context.Context, q queryRower, low, high int64) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE participant_low = ? AND participant_high = ?`
	conv, err := scanConversation(q.QueryRowContext(ctx, db.q(query), low, high))
	if err != nil {
		return nil, notFound(err, fmt.Errorf("conversation %d/%d: %w", low, high, domain.ErrNotFound))
	}
	return conv, nil
}

func (db *DB) GetConversation(ctx context.Context, id int64) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = ?`
	conv, err := scanConversation(db.QueryRowContext(ctx, db.q(query), id))
	if err != nil {
		return nil, notFound(err, fmt.Errorf("conversation %d: %w", id, domain.ErrNotFound))
	}
	return conv, nil
}

// AppendMessage stores msg, refreshes the conversation preview and bumps the
// unread counter of the participant who did not send it.
func (db *DB) AppendMessage(ctx context.Context, msg *models.Message) error {
	var metadata sql.NullString
	if len(msg.Metadata) > 0 {
		raw, err := json.Marshal(msg.Metadata)
		if err != nil {
			return fmt.Errorf("encode message metadata: %w", err)
		}
		metadata = sql.NullString{String: string(raw), Valid: true}
	}

	now := time.Now().UTC()
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var low, high int64
		err := tx.QueryRowContext(ctx, db.q(`SELECT participant_low, participant_high FROM conversations WHERE id = ?`),
			msg.ConversationID).Scan(&low, &high)
		if err != nil {
			return notFound(err, fmt.Errorf("conversation %d: %w", msg.ConversationID, domain.ErrNotFound))
		}
		if msg.SenderID != low && msg.SenderID != high {
			return fmt.Errorf("sender %d is not a participant: %w", msg.SenderID, domain.ErrForbidden)
		}

		query := `INSERT INTO messages (conversation_id, sender_id, kind, body, metadata, created_at)
                  VALUES (?, ?, ?, ?, ?, ?) RETURNING id`
		if err := tx.QueryRowContext(ctx, db.q(query),
			msg.ConversationID, msg.SenderID, msg.Kind, msg.Body, metadata, now,
		).Scan(&msg.ID); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}

		update := `UPDATE conversations SET last_message_preview = ?, last_message_at = ?, unread_high = unread_high + 1 WHERE id = ?`
		if msg.SenderID == high {
			update = `UPDATE conversations SET last_message_preview = ?, last_message_at = ?, unread_low = unread_low + 1 WHERE id = ?`
		}
		if _, err := tx.ExecContext(ctx, db.q(update), preview(msg.Body), now, msg.ConversationID); err != nil {
			return fmt.Errorf("failed to update conversation: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	msg.CreatedAt = now
	return nil
}

func (db *DB) ListMessages(ctx context.Context, conversationID int64, limit int) ([]*models.Message, error) {
	query := `SELECT id, conversation_id, sender_id, kind, body, metadata, created_at
              FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, id ASC LIMIT ?`
	rows, err := db.QueryContext(ctx, db.q(query), conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m := &models.Message{}
		var metadata sql.NullString
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Kind, &m.Body, &metadata, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &m.Metadata); err != nil {
				return nil, fmt.Errorf("message %d has corrupt metadata: %w", m.ID, err)
			}
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func scanConversation(row rowScanner) (*models.Conversation, error) {
	var (
		c          models.Conversation
		propertyID sql.NullInt64
		lastAt     sql.NullTime
	)
	err := row.Scan(&c.ID, &c.ParticipantLow, &c.ParticipantHigh, &propertyID, &c.LastMessagePreview,
		&lastAt, &c.UnreadLow, &c.UnreadHigh, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.PropertyID = nullableID(propertyID)
	c.LastMessageAt = nullableTime(lastAt)
	return &c, nil
}

func preview(body string) string {
	if utf8.RuneCountInString(body) <= models.SummaryPreviewLength {
		return body
	}
	runes := []rune(body)
	return string(runes[:models.SummaryPreviewLength-1]) + "…"
}
