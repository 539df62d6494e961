package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"realtyhub/internal/domain"
	"realtyhub/internal/models"
)

// checkFreeTx fails with domain.ErrDateConflict when any hold of the
// property shares a day with [start, end].
func (db *DB) checkFreeTx(ctx context.Context, tx *sql.Tx, propertyID int64, start, end time.Time) error {
	query := `SELECT COUNT(*) FROM calendar_holds WHERE property_id = ? AND start_date <= ? AND end_date >= ?`
	var count int
	if err := tx.QueryRowContext(ctx, db.q(query), propertyID, dayArg(end), dayArg(start)).Scan(&count); err != nil {
		return fmt.Errorf("failed to check availability in tx: %w", err)
	}
	if count > 0 {
		return domain.ErrDateConflict
	}
	return nil
}

func (db *DB) insertHoldTx(ctx context.Context, tx *sql.Tx, hold *models.Hold, now time.Time) error {
	query := `INSERT INTO calendar_holds (property_id, start_date, end_date, source, booking_id, block_id, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`
	err := tx.QueryRowContext(ctx, db.q(query),
		hold.PropertyID,
		dayArg(hold.Start),
		dayArg(hold.End),
		hold.Source,
		hold.BookingID,
		hold.BlockID,
		now,
	).Scan(&hold.ID)
	if err != nil {
		return translate(fmt.Errorf("failed to insert hold: %w", err))
	}
	return nil
}

// CreateBlock stores an owner block and its hold atomically. Blocks may not
// overlap existing blocks or stays.
func (db *DB) CreateBlock(ctx context.Context, block *models.AvailabilityBlock) error {
	now := time.Now().UTC()
	block.Start = models.Day(block.Start)
	block.End = models.Day(block.End)

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := db.checkFreeTx(ctx, tx, block.PropertyID, block.Start, block.End); err != nil {
			return err
		}

		query := `INSERT INTO availability_blocks (property_id, start_date, end_date, reason, created_by, created_at)
                  VALUES (?, ?, ?, ?, ?, ?) RETURNING id`
		var id int64
		err := tx.QueryRowContext(ctx, db.q(query),
			block.PropertyID, dayArg(block.Start), dayArg(block.End), block.Reason, block.CreatedBy, now,
		).Scan(&id)
		if err != nil {
			return translate(fmt.Errorf("failed to insert block: %w", err))
		}

		hold := models.Hold{
			PropertyID: block.PropertyID,
			Start:      block.Start,
			End:        block.End,
			Source:     models.HoldBlock,
			BlockID:    &id,
		}
		if err := db.insertHoldTx(ctx, tx, &hold, now); err != nil {
			return err
		}
		block.ID = id
		return nil
	})
	if err != nil {
		return err
	}
	block.CreatedAt = now
	return nil
}

func (db *DB) DeleteBlock(ctx context.Context, propertyID, blockID int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, db.q(`DELETE FROM availability_blocks WHERE id = ? AND property_id = ?`), blockID, propertyID)
		if err != nil {
			return fmt.Errorf("failed to delete block: %w", err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return fmt.Errorf("block %d: %w", blockID, domain.ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, db.q(`DELETE FROM calendar_holds WHERE block_id = ?`), blockID); err != nil {
			return fmt.Errorf("failed to release block hold: %w", err)
		}
		return nil
	})
}

func (db *DB) ListBlocks(ctx context.Context, propertyID int64) ([]*models.AvailabilityBlock, error) {
	query := `SELECT id, property_id, start_date, end_date, reason, created_by, created_at
              FROM availability_blocks WHERE property_id = ? ORDER BY start_date ASC`
	rows, err := db.QueryContext(ctx, db.q(query), propertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}
	defer rows.Close()

	var blocks []*models.AvailabilityBlock
	for rows.Next() {
		b := &models.AvailabilityBlock{}
		err := rows.Scan(&b.ID, &b.PropertyID, dayValue{&b.Start}, dayValue{&b.End}, &b.Reason, &b.CreatedBy, &b.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// Holds returns the committed holds of a property intersecting [from, to].
func (db *DB) Holds(ctx context.Context, propertyID int64, from, to time.Time) ([]models.Hold, error) {
	query := `SELECT id, property_id, start_date, end_date, source, booking_id, block_id
              FROM calendar_holds WHERE property_id = ? AND start_date <= ? AND end_date >= ?
              ORDER BY start_date ASC`
	rows, err := db.QueryContext(ctx, db.q(query), propertyID, dayArg(to), dayArg(from))
	if err != nil {
		return nil, fmt.Errorf("failed to query holds: %w", err)
	}
	defer rows.Close()

	var holds []models.Hold
	for rows.Next() {
		var (
			h         models.Hold
			bookingID sql.NullInt64
			blockID   sql.NullInt64
		)
		if err := rows.Scan(&h.ID, &h.PropertyID, dayValue{&h.Start}, dayValue{&h.End}, &h.Source, &bookingID, &blockID); err != nil {
			return nil, fmt.Errorf("failed to scan hold: %w", err)
		}
		h.BookingID = nullableID(bookingID)
		h.BlockID = nullableID(blockID)
		holds = append(holds, h)
	}
	return holds, rows.Err()
}
