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

const bookingColumns = `id, property_id, requester_id, kind, status, contact_name, contact_email,
        contact_phone, payload_type, payload, payment, message, note, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// CreateBooking inserts the booking and, for stays, claims its calendar hold
// in the same transaction. An overlapping hold yields domain.ErrDateConflict.
func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	typ, payload, err := models.EncodePayload(booking.Payload)
	if err != nil {
		return err
	}
	var payment sql.NullString
	if booking.Payment != nil {
		raw, err := json.Marshal(booking.Payment)
		if err != nil {
			return fmt.Errorf("encode payment: %w", err)
		}
		payment = sql.NullString{String: string(raw), Valid: true}
	}
	stay, isStay := booking.Stay()

	now := time.Now().UTC()
	err = db.withTx(ctx, func(tx *sql.Tx) error {
		if isStay {
			if err := db.checkFreeTx(ctx, tx, booking.PropertyID, stay.CheckIn, stay.CheckOut); err != nil {
				return err
			}
		}

		query := `INSERT INTO bookings (
                property_id, requester_id, kind, status, contact_name, contact_email, contact_phone,
                payload_type, payload, payment, message, note, version, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
		var id int64
		err := tx.QueryRowContext(ctx, db.q(query),
			booking.PropertyID,
			booking.RequesterID,
			booking.Kind,
			booking.Status,
			booking.Contact.Name,
			booking.Contact.Email,
			booking.Contact.Phone,
			typ,
			string(payload),
			payment,
			booking.Message,
			booking.Note,
			1,
			now,
			now,
		).Scan(&id)
		if err != nil {
			return translate(fmt.Errorf("failed to insert booking: %w", err))
		}

		if isStay {
			hold := models.Hold{
				PropertyID: booking.PropertyID,
				Start:      stay.CheckIn,
				End:        stay.CheckOut,
				Source:     models.HoldBooking,
				BookingID:  &id,
			}
			if err := db.insertHoldTx(ctx, tx, &hold, now); err != nil {
				return err
			}
		}

		booking.ID = id
		return nil
	})
	if err != nil {
		return err
	}

	booking.Version = 1
	booking.CreatedAt = now
	booking.UpdatedAt = now
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(db.QueryRowContext(ctx, db.q(query), id))
	if err != nil {
		return nil, notFound(err, fmt.Errorf("booking %d: %w", id, domain.ErrNotFound))
	}
	return b, nil
}

// UpdateBookingStatusWithVersion moves the booking to status only if it is
// still at fromVersion. Cancelled and rejected stays release their hold in
// the same transaction.
func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status models.BookingStatus, note string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		query := `UPDATE bookings SET status = ?, note = ?, version = version + 1, updated_at = ?
                  WHERE id = ? AND version = ?`
		result, err := tx.ExecContext(ctx, db.q(query), status, note, time.Now().UTC(), id, fromVersion)
		if err != nil {
			return fmt.Errorf("failed to update booking status: %w", err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return domain.ErrConcurrentModification
		}

		if status.ReleasesHold() {
			if _, err := tx.ExecContext(ctx, db.q(`DELETE FROM calendar_holds WHERE booking_id = ?`), id); err != nil {
				return fmt.Errorf("failed to release hold: %w", err)
			}
		}
		return nil
	})
}

func (db *DB) ListBookingsByProperty(ctx context.Context, propertyID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE property_id = ? ORDER BY created_at DESC, id DESC`
	return db.listBookings(ctx, query, propertyID)
}

func (db *DB) ListBookingsByRequester(ctx context.Context, requesterID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE requester_id = ? ORDER BY created_at DESC, id DESC`
	return db.listBookings(ctx, query, requesterID)
}

func (db *DB) listBookings(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, db.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b           models.Booking
		requesterID sql.NullInt64
		payloadType string
		payload     string
		payment     sql.NullString
	)
	err := row.Scan(
		&b.ID, &b.PropertyID, &requesterID, &b.Kind, &b.Status,
		&b.Contact.Name, &b.Contact.Email, &b.Contact.Phone,
		&payloadType, &payload, &payment, &b.Message, &b.Note,
		&b.Version, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.RequesterID = nullableID(requesterID)
	b.Payload, err = models.DecodePayload(models.PayloadType(payloadType), []byte(payload))
	if err != nil {
		return nil, fmt.Errorf("booking %d has a corrupt payload: %w", b.ID, err)
	}
	if payment.Valid && payment.String != "" {
		var p models.Payment
		if err := json.Unmarshal([]byte(payment.String), &p); err != nil {
			return nil, fmt.Errorf("booking %d has a corrupt payment: %w", b.ID, err)
		}
		b.Payment = &p
	}
	return &b, nil
}
