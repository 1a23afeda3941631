package db

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/memohai/anontalks/internal/config"
)

// DSN builds a PostgreSQL connection string from config. A non-empty cfg.URL wins.
func DSN(cfg config.PostgresConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		cfg.Database,
		cfg.SSLMode,
	)
}

// SQLiteURL builds the golang-migrate URL for a SQLite database file.
func SQLiteURL(path string) string {
	return "sqlite://" + filepath.ToSlash(filepath.Clean(path))
}

// TimeFromPg converts a pgtype.Timestamptz to time.Time (zero when NULL).
func TimeFromPg(value pgtype.Timestamptz) time.Time {
	if value.Valid {
		return value.Time.UTC()
	}
	return time.Time{}
}

// Timestamptz converts t to pgtype.Timestamptz; the zero time maps to NULL.
func Timestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

// Int8FromPg returns the value of pgtype.Int8, or 0 when NULL.
func Int8FromPg(value pgtype.Int8) int64 {
	if !value.Valid {
		return 0
	}
	return value.Int64
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505"
}

// IsTransient reports whether err is worth retrying: serialization failures,
// deadlocks, connection exceptions, and errors raised before the server answered.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "57P01", "57P03":
			return true
		}
		// Class 08: connection exception.
		return len(pgErr.Code) == 5 && pgErr.Code[:2] == "08"
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}
	var connErr *pgconn.ConnectError
	return errors.As(err, &connErr)
}
