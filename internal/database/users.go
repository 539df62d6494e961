package database

import (
	"context"
	"fmt"
	"time"

	"realtyhub/internal/domain"
	"realtyhub/internal/models"
)

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (name, email, phone, telegram_chat_id, created_at)
              VALUES (?, ?, ?, ?, ?) RETURNING id`
	now := time.Now().UTC()
	err := db.QueryRowContext(ctx, db.q(query),
		user.Name, user.Email, user.Phone, user.TelegramChatID, now,
	).Scan(&user.ID)
	if err != nil {
		return translate(fmt.Errorf("failed to create user: %w", err))
	}
	user.CreatedAt = now
	return nil
}

func (db *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT id, name, email, phone, telegram_chat_id, created_at FROM users WHERE id = ?`
	var u models.User
	err := db.QueryRowContext(ctx, db.q(query), id).Scan(
		&u.ID, &u.Name, &u.Email, &u.Phone, &u.TelegramChatID, &u.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, fmt.Errorf("user %d: %w", id, domain.ErrNotFound))
	}
	return &u, nil
}

// SetTelegramChat links a user to the chat their notifications are mirrored to.
func (db *DB) SetTelegramChat(ctx context.Context, userID, chatID int64) error {
	result, err := db.ExecContext(ctx, db.q(`UPDATE users SET telegram_chat_id = ? WHERE id = ?`), chatID, userID)
	if err != nil {
		return fmt.Errorf("failed to set telegram chat: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("user %d: %w", userID, domain.ErrNotFound)
	}
	return nil
}

func (db *DB) CreateProperty(ctx context.Context, property *models.Property) error {
	query := `INSERT INTO properties (owner_id, title, created_at) VALUES (?, ?, ?) RETURNING id`
	now := time.Now().UTC()
	err := db.QueryRowContext(ctx, db.q(query), property.OwnerID, property.Title, now).Scan(&property.ID)
	if err != nil {
		return translate(fmt.Errorf("failed to create property: %w", err))
	}
	property.CreatedAt = now
	return nil
}

func (db *DB) GetProperty(ctx context.Context, id int64) (*models.Property, error) {
	query := `SELECT id, owner_id, title, created_at FROM properties WHERE id = ?`
	var p models.Property
	err := db.QueryRowContext(ctx, db.q(query), id).Scan(&p.ID, &p.OwnerID, &p.Title, &p.CreatedAt)
	if err != nil {
		return nil, notFound(err, domain.ErrPropertyNotFound)
	}
	return &p, nil
}

// UserByTelegramChat resolves the user a chat is linked to.
func (db *DB) UserByTelegramChat(ctx context.Context, chatID int64) (*models.User, error) {
	if chatID == 0 {
		return nil, domain.ErrNotFound
	}
	query := `SELECT id, name, email, phone, telegram_chat_id, created_at FROM users WHERE telegram_chat_id = ? ORDER BY id LIMIT 1`
	var u models.User
	err := db.QueryRowContext(ctx, db.q(query), chatID).Scan(
		&u.ID, &u.Name, &u.Email, &u.Phone, &u.TelegramChatID, &u.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err, fmt.Errorf("chat %d: %w", chatID, domain.ErrNotFound))
	}
	return &u, nil
}
