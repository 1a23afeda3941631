// Package sqlite implements storage.Store on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	dbfs "github.com/memohai/anontalks/db"
	"github.com/memohai/anontalks/internal/db"
	"github.com/memohai/anontalks/internal/storage"
)

// Store is a SQLite pairing store. It keeps a single connection so every
// transaction is serialized; fn passed to WithTx must only use the queries it
// is given.
type Store struct {
	queries
	sqlDB  *sql.DB
	logger *slog.Logger
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func nullMillis(value time.Time) sql.NullInt64 {
	if value.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(value), Valid: true}
}

func fromNullMillis(value sql.NullInt64) time.Time {
	if !value.Valid {
		return time.Time{}
	}
	return fromMillis(value.Int64)
}

// Open opens the database at path, creating its directory, and applies the
// embedded migrations when autoMigrate is set.
func Open(ctx context.Context, log *slog.Logger, path string, autoMigrate bool) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if log == nil {
		log = slog.Default()
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	if autoMigrate {
		if err := db.RunMigrate(log, db.SQLiteURL(cleanPath), dbfs.SQLiteMigrations(), "up", nil); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	dsn := cleanPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return &Store{
		queries: queries{db: sqlDB},
		sqlDB:   sqlDB,
		logger:  log.With(slog.String("store", "sqlite")),
	}, nil
}

// WithTx implements storage.Store.
func (s *Store) WithTx(ctx context.Context, fn func(q storage.Queries) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn("rollback failed", slog.Any("error", rbErr))
		}
	}()

	if err := fn(queries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapErr(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// Ping implements storage.Store.
func (s *Store) Ping(ctx context.Context) error {
	return mapErr(s.sqlDB.PingContext(ctx))
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

type queries struct {
	db dbtx
}

const participantColumns = `id, external_id, address, status, created_at, updated_at`

const conversationColumns = `id, initiator_id, opponent_id, created_at, updated_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row rowScanner) (storage.ParticipantRecord, error) {
	var (
		rec                  storage.ParticipantRecord
		createdAt, updatedAt int64
	)
	if err := row.Scan(&rec.ID, &rec.ExternalID, &rec.Address, &rec.Status, &createdAt, &updatedAt); err != nil {
		return storage.ParticipantRecord{}, err
	}
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}

func scanConversation(row rowScanner) (storage.ConversationRecord, error) {
	var (
		rec                  storage.ConversationRecord
		opponentID           sql.NullInt64
		createdAt, updatedAt int64
		finishedAt           sql.NullInt64
	)
	if err := row.Scan(&rec.ID, &rec.InitiatorID, &opponentID, &createdAt, &updatedAt, &finishedAt); err != nil {
		return storage.ConversationRecord{}, err
	}
	rec.OpponentID = opponentID.Int64
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	rec.FinishedAt = fromNullMillis(finishedAt)
	return rec, nil
}

func (r queries) CreateParticipantIfAbsent(ctx context.Context, arg storage.CreateParticipantParams) (storage.ParticipantRecord, bool, error) {
	rec, err := scanParticipant(r.db.QueryRowContext(ctx,
		`INSERT INTO participants (external_id, address, status, created_at, updated_at)
		 VALUES (?1, ?2, ?3, ?4, ?4)
		 ON CONFLICT (external_id) DO NOTHING
		 RETURNING `+participantColumns,
		arg.ExternalID, arg.Address, arg.Status, toMillis(arg.At),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ParticipantRecord{}, false, nil
	}
	if err != nil {
		return storage.ParticipantRecord{}, false, mapErr(fmt.Errorf("create participant: %w", err))
	}
	return rec, true, nil
}

func (r queries) GetParticipantByExternalID(ctx context.Context, externalID string) (storage.ParticipantRecord, error) {
	rec, err := scanParticipant(r.db.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE external_id = ?`, externalID))
	if err != nil {
		return storage.ParticipantRecord{}, mapErr(err)
	}
	return rec, nil
}

func (r queries) GetParticipantByID(ctx context.Context, id int64) (storage.ParticipantRecord, error) {
	rec, err := scanParticipant(r.db.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE id = ?`, id))
	if err != nil {
		return storage.ParticipantRecord{}, mapErr(err)
	}
	return rec, nil
}

func (r queries) SetParticipantStatus(ctx context.Context, arg storage.SetParticipantStatusParams) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE participants SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		arg.To, toMillis(arg.At), arg.ID, arg.From,
	)
	if err != nil {
		return false, mapErr(fmt.Errorf("set participant status: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapErr(err)
	}
	return n == 1, nil
}

func (r queries) FindClaimCandidate(ctx context.Context, arg storage.FindClaimCandidateParams) (storage.ConversationRecord, error) {
	rec, err := scanConversation(r.db.QueryRowContext(ctx,
		`SELECT c.id, c.initiator_id, c.opponent_id, c.created_at, c.updated_at, c.finished_at
		 FROM conversations c
		 WHERE c.opponent_id IS NULL
		   AND c.finished_at IS NULL
		   AND c.initiator_id <> ?1
		   AND NOT EXISTS (
		     SELECT 1 FROM conversations r
		     WHERE r.finished_at > ?2
		       AND ((r.initiator_id = ?1 AND r.opponent_id = c.initiator_id)
		         OR (r.initiator_id = c.initiator_id AND r.opponent_id = ?1))
		   )
		 ORDER BY c.created_at, c.id
		 LIMIT 1`,
		arg.RequesterID, toMillis(arg.Cutoff),
	))
	if err != nil {
		return storage.ConversationRecord{}, mapErr(err)
	}
	return rec, nil
}

func (r queries) ClaimConversation(ctx context.Context, arg storage.ClaimConversationParams) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE conversations SET opponent_id = ?, updated_at = ?
		 WHERE id = ? AND opponent_id IS NULL AND finished_at IS NULL`,
		arg.OpponentID, toMillis(arg.At), arg.ID,
	)
	if err != nil {
		return false, mapErr(fmt.Errorf("claim conversation: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapErr(err)
	}
	return n == 1, nil
}

func (r queries) CreateConversation(ctx context.Context, arg storage.CreateConversationParams) (storage.ConversationRecord, error) {
	rec, err := scanConversation(r.db.QueryRowContext(ctx,
		`INSERT INTO conversations (initiator_id, created_at, updated_at)
		 VALUES (?1, ?2, ?2)
		 RETURNING `+conversationColumns,
		arg.InitiatorID, toMillis(arg.At),
	))
	if err != nil {
		return storage.ConversationRecord{}, mapErr(fmt.Errorf("create conversation: %w", err))
	}
	return rec, nil
}

func (r queries) GetConversationByID(ctx context.Context, id int64) (storage.ConversationRecord, error) {
	rec, err := scanConversation(r.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id))
	if err != nil {
		return storage.ConversationRecord{}, mapErr(err)
	}
	return rec, nil
}

func (r queries) FinishConversation(ctx context.Context, arg storage.FinishConversationParams) (storage.ConversationRecord, error) {
	rec, err := scanConversation(r.db.QueryRowContext(ctx,
		`UPDATE conversations SET finished_at = ?1, updated_at = ?1
		 WHERE id = ?2 AND finished_at IS NULL
		 RETURNING `+conversationColumns,
		toMillis(arg.At), arg.ID,
	))
	if err != nil {
		return storage.ConversationRecord{}, mapErr(err)
	}
	return rec, nil
}

func (r queries) FinishWaitingConversation(ctx context.Context, arg storage.FinishWaitingConversationParams) (storage.ConversationRecord, error) {
	rec, err := scanConversation(r.db.QueryRowContext(ctx,
		`UPDATE conversations SET finished_at = ?1, updated_at = ?1
		 WHERE initiator_id = ?2 AND opponent_id IS NULL AND finished_at IS NULL
		   AND (?3 IS NULL OR created_at <= ?3)
		 RETURNING `+conversationColumns,
		toMillis(arg.At), arg.InitiatorID, nullMillis(arg.NotAfter),
	))
	if err != nil {
		return storage.ConversationRecord{}, mapErr(err)
	}
	return rec, nil
}

func (r queries) GetWaitingConversationByInitiator(ctx context.Context, initiatorID int64) (storage.ConversationRecord, error) {
	rec, err := scanConversation(r.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE initiator_id = ? AND opponent_id IS NULL AND finished_at IS NULL`, initiatorID))
	if err != nil {
		return storage.ConversationRecord{}, mapErr(err)
	}
	return rec, nil
}

func (r queries) GetActiveConversationByParticipant(ctx context.Context, participantID int64) (storage.ConversationRecord, error) {
	rec, err := scanConversation(r.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE finished_at IS NULL AND opponent_id IS NOT NULL
		   AND (initiator_id = ?1 OR opponent_id = ?1)
		 ORDER BY id DESC
		 LIMIT 1`, participantID))
	if err != nil {
		return storage.ConversationRecord{}, mapErr(err)
	}
	return rec, nil
}

func (r queries) ListStaleWaitingConversations(ctx context.Context, arg storage.ListStaleWaitingParams) ([]storage.ConversationRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE opponent_id IS NULL AND finished_at IS NULL AND created_at < ?
		 ORDER BY created_at, id
		 LIMIT ?`,
		toMillis(arg.CreatedBefore), arg.Limit,
	)
	if err != nil {
		return nil, mapErr(fmt.Errorf("list stale waiting: %w", err))
	}
	defer rows.Close()

	var out []storage.ConversationRecord
	for rows.Next() {
		rec, err := scanConversation(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func (r queries) CountOpenConversations(ctx context.Context) (storage.ConversationCounts, error) {
	var counts storage.ConversationCounts
	err := r.db.QueryRowContext(ctx,
		`SELECT
		   COALESCE(SUM(CASE WHEN opponent_id IS NULL THEN 1 ELSE 0 END), 0),
		   COALESCE(SUM(CASE WHEN opponent_id IS NOT NULL THEN 1 ELSE 0 END), 0)
		 FROM conversations
		 WHERE finished_at IS NULL`,
	).Scan(&counts.Waiting, &counts.Active)
	if err != nil {
		return storage.ConversationCounts{}, mapErr(err)
	}
	return counts, nil
}

func isConstraintError(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3lib.SQLITE_CONSTRAINT || code == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY
}

func isBusyError(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code() & 0xff
	return code == sqlite3lib.SQLITE_BUSY || code == sqlite3lib.SQLITE_LOCKED
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return storage.ErrNotFound
	case isConstraintError(err):
		return fmt.Errorf("%w: %w", storage.ErrConflict, err)
	case isBusyError(err):
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	default:
		return err
	}
}
