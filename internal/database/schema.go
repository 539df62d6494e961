package database

func schema(dialect Dialect) []string {
	if dialect == DialectPostgres {
		return postgresSchema
	}
	return sqliteSchema
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL,
        email TEXT NOT NULL,
        phone TEXT NOT NULL DEFAULT '',
        telegram_chat_id INTEGER NOT NULL DEFAULT 0,
        created_at DATETIME NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS properties (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        owner_id INTEGER NOT NULL,
        title TEXT NOT NULL,
        created_at DATETIME NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS bookings (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        property_id INTEGER NOT NULL,
        requester_id INTEGER,
        kind TEXT NOT NULL,
        status TEXT NOT NULL,
        contact_name TEXT NOT NULL,
        contact_email TEXT NOT NULL,
        contact_phone TEXT NOT NULL,
        payload_type TEXT NOT NULL,
        payload TEXT NOT NULL,
        payment TEXT,
        message TEXT NOT NULL DEFAULT '',
        note TEXT NOT NULL DEFAULT '',
        version INTEGER NOT NULL DEFAULT 1,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS availability_blocks (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        property_id INTEGER NOT NULL,
        start_date TEXT NOT NULL,
        end_date TEXT NOT NULL,
        reason TEXT NOT NULL DEFAULT '',
        created_by INTEGER NOT NULL,
        created_at DATETIME NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS calendar_holds (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        property_id INTEGER NOT NULL,
        start_date TEXT NOT NULL,
        end_date TEXT NOT NULL,
        source TEXT NOT NULL,
        booking_id INTEGER UNIQUE,
        block_id INTEGER UNIQUE,
        created_at DATETIME NOT NULL,
        CHECK (start_date <= end_date)
    )`,
	`CREATE TABLE IF NOT EXISTS conversations (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        participant_low INTEGER NOT NULL,
        participant_high INTEGER NOT NULL,
        property_id INTEGER,
        last_message_preview TEXT NOT NULL DEFAULT '',
        last_message_at DATETIME,
        unread_low INTEGER NOT NULL DEFAULT 0,
        unread_high INTEGER NOT NULL DEFAULT 0,
        created_at DATETIME NOT NULL,
        UNIQUE (participant_low, participant_high)
    )`,
	`CREATE TABLE IF NOT EXISTS messages (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        conversation_id INTEGER NOT NULL,
        sender_id INTEGER NOT NULL,
        kind TEXT NOT NULL,
        body TEXT NOT NULL,
        metadata TEXT,
        created_at DATETIME NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS notifications (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        recipient_id INTEGER NOT NULL,
        kind TEXT NOT NULL,
        title TEXT NOT NULL,
        message TEXT NOT NULL,
        data TEXT,
        is_read BOOLEAN NOT NULL DEFAULT 0,
        created_at DATETIME NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS side_effect_failures (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        booking_id INTEGER NOT NULL,
        effect TEXT NOT NULL,
        event_kind TEXT NOT NULL DEFAULT '',
        payload TEXT NOT NULL DEFAULT '',
        last_error TEXT NOT NULL DEFAULT '',
        attempts INTEGER NOT NULL DEFAULT 1,
        status TEXT NOT NULL,
        next_retry_at DATETIME,
        created_at DATETIME NOT NULL,
        resolved_at DATETIME
    )`,

	`CREATE INDEX IF NOT EXISTS idx_properties_owner ON properties(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_property ON bookings(property_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_requester ON bookings(requester_id)`,
	`CREATE INDEX IF NOT EXISTS idx_blocks_property ON availability_blocks(property_id)`,
	`CREATE INDEX IF NOT EXISTS idx_holds_property_range ON calendar_holds(property_id, start_date, end_date)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, is_read)`,
	`CREATE INDEX IF NOT EXISTS idx_side_effects_due ON side_effect_failures(status, next_retry_at)`,
}

// The exclusion constraint on calendar_holds makes overlapping commits
// impossible regardless of isolation level.
var postgresSchema = []string{
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,
	`CREATE TABLE IF NOT EXISTS users (
        id BIGSERIAL PRIMARY KEY,
        name TEXT NOT NULL,
        email TEXT NOT NULL,
        phone TEXT NOT NULL DEFAULT '',
        telegram_chat_id BIGINT NOT NULL DEFAULT 0,
        created_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS properties (
        id BIGSERIAL PRIMARY KEY,
        owner_id BIGINT NOT NULL,
        title TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS bookings (
        id BIGSERIAL PRIMARY KEY,
        property_id BIGINT NOT NULL,
        requester_id BIGINT,
        kind TEXT NOT NULL,
        status TEXT NOT NULL,
        contact_name TEXT NOT NULL,
        contact_email TEXT NOT NULL,
        contact_phone TEXT NOT NULL,
        payload_type TEXT NOT NULL,
        payload TEXT NOT NULL,
        payment TEXT,
        message TEXT NOT NULL DEFAULT '',
        note TEXT NOT NULL DEFAULT '',
        version BIGINT NOT NULL DEFAULT 1,
        created_at TIMESTAMPTZ NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS availability_blocks (
        id BIGSERIAL PRIMARY KEY,
        property_id BIGINT NOT NULL,
        start_date DATE NOT NULL,
        end_date DATE NOT NULL,
        reason TEXT NOT NULL DEFAULT '',
        created_by BIGINT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS calendar_holds (
        id BIGSERIAL PRIMARY KEY,
        property_id BIGINT NOT NULL,
        start_date DATE NOT NULL,
        end_date DATE NOT NULL,
        source TEXT NOT NULL,
        booking_id BIGINT UNIQUE,
        block_id BIGINT UNIQUE,
        created_at TIMESTAMPTZ NOT NULL,
        CHECK (start_date <= end_date),
        CONSTRAINT calendar_holds_no_overlap EXCLUDE USING gist (
            property_id WITH =,
            daterange(start_date, end_date, '[]') WITH &&
        )
    )`,
	`CREATE TABLE IF NOT EXISTS conversations (
        id BIGSERIAL PRIMARY KEY,
        participant_low BIGINT NOT NULL,
        participant_high BIGINT NOT NULL,
        property_id BIGINT,
        last_message_preview TEXT NOT NULL DEFAULT '',
        last_message_at TIMESTAMPTZ,
        unread_low INTEGER NOT NULL DEFAULT 0,
        unread_high INTEGER NOT NULL DEFAULT 0,
        created_at TIMESTAMPTZ NOT NULL,
        UNIQUE (participant_low, participant_high)
    )`,
	`CREATE TABLE IF NOT EXISTS messages (
        id BIGSERIAL PRIMARY KEY,
        conversation_id BIGINT NOT NULL,
        sender_id BIGINT NOT NULL,
        kind TEXT NOT NULL,
        body TEXT NOT NULL,
        metadata TEXT,
        created_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS notifications (
        id BIGSERIAL PRIMARY KEY,
        recipient_id BIGINT NOT NULL,
        kind TEXT NOT NULL,
        title TEXT NOT NULL,
        message TEXT NOT NULL,
        data TEXT,
        is_read BOOLEAN NOT NULL DEFAULT FALSE,
        created_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS side_effect_failures (
        id BIGSERIAL PRIMARY KEY,
        booking_id BIGINT NOT NULL,
        effect TEXT NOT NULL,
        event_kind TEXT NOT NULL DEFAULT '',
        payload TEXT NOT NULL DEFAULT '',
        last_error TEXT NOT NULL DEFAULT '',
        attempts INTEGER NOT NULL DEFAULT 1,
        status TEXT NOT NULL,
        next_retry_at TIMESTAMPTZ,
        created_at TIMESTAMPTZ NOT NULL,
        resolved_at TIMESTAMPTZ
    )`,

	`CREATE INDEX IF NOT EXISTS idx_properties_owner ON properties(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_property ON bookings(property_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_requester ON bookings(requester_id)`,
	`CREATE INDEX IF NOT EXISTS idx_blocks_property ON availability_blocks(property_id)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, is_read)`,
	`CREATE INDEX IF NOT EXISTS idx_side_effects_due ON side_effect_failures(status, next_retry_at)`,
}
