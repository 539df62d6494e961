package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"realtyhub/internal/config"
	"realtyhub/internal/domain"
	"realtyhub/internal/models"

	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// pq codes mapped to domain errors.
const (
	pqExclusionViolation = "23P01"
	pqUniqueViolation    = "23505"
)

// DB is the single store behind every persistence port. Queries are written
// with ? placeholders and rebound for PostgreSQL.
type DB struct {
	*sql.DB
	dialect Dialect
	path    string
	logger  *zerolog.Logger
}

// Open picks the driver named in config.
func Open(cfg config.DatabaseConfig, logger *zerolog.Logger) (*DB, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return NewPostgres(cfg.Postgres, logger)
	case config.DriverSQLite, "":
		return NewSQLite(cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// NewSQLite opens (and migrates) a SQLite database. The pool is limited to
// one connection so check-then-insert transactions are serialized.
func NewSQLite(path string, logger *zerolog.Logger) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = path + "?_txlock=immediate&_busy_timeout=5000"
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return initDB(sqlDB, DialectSQLite, path, logger)
}

// NewPostgres opens (and migrates) a PostgreSQL database.
func NewPostgres(cfg config.PostgresConfig, logger *zerolog.Logger) (*DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxConnections)
	sqlDB.SetMaxIdleConns(cfg.MaxConnections / 2)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return initDB(sqlDB, DialectPostgres, "", logger)
}

func initDB(sqlDB *sql.DB, dialect Dialect, path string, logger *zerolog.Logger) (*DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := New(sqlDB, dialect, logger)
	db.path = path
	if err := db.Migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	db.logger.Info().Str("dialect", string(dialect)).Str("path", path).Msg("database initialized")
	return db, nil
}

// New wraps an already opened handle without migrating it.
func New(sqlDB *sql.DB, dialect Dialect, logger *zerolog.Logger) *DB {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	child := logger.With().Str("component", "database").Logger()
	return &DB{DB: sqlDB, dialect: dialect, logger: &child}
}

func (db *DB) Dialect() Dialect {
	return db.dialect
}

// Migrate creates missing tables and indexes.
func (db *DB) Migrate(ctx context.Context) error {
	for _, query := range schema(db.dialect) {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("error executing migration %q: %w", firstLine(query), err)
		}
	}
	return nil
}

// q rewrites ? placeholders to $n for PostgreSQL.
func (db *DB) q(query string) string {
	if db.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return translate(fmt.Errorf("failed to commit: %w", err))
	}
	return nil
}

// translate maps driver constraint errors to domain errors.
func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqExclusionViolation:
			return domain.ErrDateConflict
		case pqUniqueViolation:
			return fmt.Errorf("%w: %s", domain.ErrValidation, pqErr.Detail)
		}
	}
	return err
}

func notFound(err error, target error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return target
	}
	return err
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i > 0 {
		return s[:i]
	}
	return s
}

// dayArg is the storage form of a calendar day for both dialects.
func dayArg(t time.Time) string {
	return models.Day(t).Format(models.DateLayout)
}

// dayValue scans DATE (postgres) or TEXT (sqlite) columns into a UTC day.
type dayValue struct {
	t *time.Time
}

func (d dayValue) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d.t = time.Time{}
		return nil
	case time.Time:
		*d.t = models.Day(v)
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	}
	return fmt.Errorf("unsupported day value %T", src)
}

func (d dayValue) parse(s string) error {
	if len(s) > len(models.DateLayout) {
		s = s[:len(models.DateLayout)]
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return fmt.Errorf("parse day %q: %w", s, err)
	}
	*d.t = t
	return nil
}

func nullableID(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

func nullableTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
