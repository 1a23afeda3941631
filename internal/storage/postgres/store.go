// Package postgres implements storage.Store on PostgreSQL via pgx and the sqlc queries.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memohai/anontalks/internal/db"
	"github.com/memohai/anontalks/internal/db/sqlc"
	"github.com/memohai/anontalks/internal/storage"
)

// Store is a PostgreSQL pairing store. Transactions run at READ COMMITTED;
// claims rely on the conditional UPDATE rather than on isolation level.
type Store struct {
	queries
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New wraps an open pool.
func New(log *slog.Logger, pool *pgxpool.Pool) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		queries: queries{q: sqlc.New(pool)},
		pool:    pool,
		logger:  log.With(slog.String("store", "postgres")),
	}
}

// WithTx implements storage.Store.
func (s *Store) WithTx(ctx context.Context, fn func(q storage.Queries) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return mapErr(fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn("rollback failed", slog.Any("error", rbErr))
		}
	}()

	if err := fn(queries{q: s.q.WithTx(tx)}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapErr(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// Ping implements storage.Store.
func (s *Store) Ping(ctx context.Context) error {
	return mapErr(s.pool.Ping(ctx))
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

type queries struct {
	q *sqlc.Queries
}

func (r queries) CreateParticipantIfAbsent(ctx context.Context, arg storage.CreateParticipantParams) (storage.ParticipantRecord, bool, error) {
	rows, err := r.q.CreateParticipantIfAbsent(ctx, sqlc.CreateParticipantIfAbsentParams{
		ExternalID: arg.ExternalID,
		Address:    arg.Address,
		Status:     arg.Status,
		Now:        db.Timestamptz(arg.At),
	})
	if err != nil {
		return storage.ParticipantRecord{}, false, mapErr(err)
	}
	if len(rows) == 0 {
		return storage.ParticipantRecord{}, false, nil
	}
	return toParticipant(rows[0]), true, nil
}

func (r queries) GetParticipantByExternalID(ctx context.Context, externalID string) (storage.ParticipantRecord, error) {
	row, err := r.q.GetParticipantByExternalID(ctx, externalID)
	if err != nil {
		return storage.ParticipantRecord{}, mapErr(err)
	}
	return toParticipant(row), nil
}

func (r queries) GetParticipantByID(ctx context.Context, id int64) (storage.ParticipantRecord, error) {
	row, err := r.q.GetParticipantByID(ctx, id)
	if err != nil {
		return storage.ParticipantRecord{}, mapErr(err)
	}
	return toParticipant(row), nil
}

func (r queries) SetParticipantStatus(ctx context.Context, arg storage.SetParticipantStatusParams) (bool, error) {
	n, err := r.q.SetParticipantStatus(ctx, sqlc.SetParticipantStatusParams{
		ToStatus:   arg.To,
		Now:        db.Timestamptz(arg.At),
		ID:         arg.ID,
		FromStatus: arg.From,
	})
	if err != nil {
		return false, mapErr(err)
	}
	return n == 1, nil
}

func (r queries) FindClaimCandidate(ctx context.Context, arg storage.FindClaimCandidateParams) (storage.ConversationRecord, error) {
	row, err := r.q.FindClaimCandidate(ctx, sqlc.FindClaimCandidateParams{
		RequesterID: arg.RequesterID,
		Cutoff:      db.Timestamptz(arg.Cutoff),
	})
	if err != nil {
		return storage.ConversationRecord{}, mapErr(err)
	}
	return toConversation(row), nil
}

func (r queries) ClaimConversation(ctx context.Context, arg storage.ClaimConversationParams) (bool, error) {
	n, err := r.q.ClaimConversation(ctx, sqlc.ClaimConversationParams{
		OpponentID: pgtype.Int8{Int64: arg.OpponentID, Valid: true},
		Now:        db.Timestamptz(arg.At),
		ID:         arg.ID,
	})
	if err != nil {
		return false, mapErr(err)
	}
	return n == 1, nil
}

func (r queries) CreateConversation(ctx context.Context, arg storage.CreateConversationParams) (storage.ConversationRecord, error) {
	row, err := r.q.CreateConversation(ctx, sqlc.CreateConversationParams{
		InitiatorID: arg.InitiatorID,
		Now:         db.Timestamptz(arg.At),
	})
	if err != nil {
		return storage.ConversationRecord{}, mapErr(err)
	}
	return toConversation(row), nil
}

func (r queries) GetConversationByID(ctx context.Context, id int64) (storage.ConversationRecord, error) {
	row, err := r.q.GetConversationByID(ctx, id)
	if err != nil {
		return storage.ConversationRecord{}, mapErr(err)
	}
	return toConversation(row), nil
}

func (r queries) FinishConversation(ctx context.Context, arg storage.FinishConversationParams) (storage.ConversationRecord, error) {
	row, err := r.q.FinishConversation(ctx, sqlc.FinishConversationParams{
		Now: db.Timestamptz(arg.At),
		ID:  arg.ID,
	})
	if err != nil {
		return storage.ConversationRecord{}, mapErr(err)
	}
	return toConversation(row), nil
}

func (r queries) FinishWaitingConversation(ctx context.Context, arg storage.FinishWaitingConversationParams) (storage.ConversationRecord, error) {
	row, err := r.q.FinishWaitingConversation(ctx, sqlc.FinishWaitingConversationParams{
		Now:         db.Timestamptz(arg.At),
		InitiatorID: arg.InitiatorID,
		NotAfter:    db.Timestamptz(arg.NotAfter),
	})
	if err != nil {
		return storage.ConversationRecord{}, mapErr(err)
	}
	return toConversation(row), nil
}

func (r queries) GetWaitingConversationByInitiator(ctx context.Context, initiatorID int64) (storage.ConversationRecord, error) {
	row, err := r.q.GetWaitingConversationByInitiator(ctx, initiatorID)
	if err != nil {
		return storage.ConversationRecord{}, mapErr(err)
	}
	return toConversation(row), nil
}

func (r queries) GetActiveConversationByParticipant(ctx context.Context, participantID int64) (storage.ConversationRecord, error) {
	row, err := r.q.GetActiveConversationByParticipant(ctx, participantID)
	if err != nil {
		return storage.ConversationRecord{}, mapErr(err)
	}
	return toConversation(row), nil
}

func (r queries) ListStaleWaitingConversations(ctx context.Context, arg storage.ListStaleWaitingParams) ([]storage.ConversationRecord, error) {
	rows, err := r.q.ListStaleWaitingConversations(ctx, sqlc.ListStaleWaitingConversationsParams{
		CreatedBefore: db.Timestamptz(arg.CreatedBefore),
		MaxRows:       arg.Limit,
	})
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]storage.ConversationRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, toConversation(row))
	}
	return out, nil
}

func (r queries) CountOpenConversations(ctx context.Context) (storage.ConversationCounts, error) {
	row, err := r.q.CountOpenConversations(ctx)
	if err != nil {
		return storage.ConversationCounts{}, mapErr(err)
	}
	return storage.ConversationCounts{Waiting: row.Waiting, Active: row.Active}, nil
}

func toParticipant(row sqlc.Participant) storage.ParticipantRecord {
	return storage.ParticipantRecord{
		ID:         row.ID,
		ExternalID: row.ExternalID,
		Address:    row.Address,
		Status:     row.Status,
		CreatedAt:  db.TimeFromPg(row.CreatedAt),
		UpdatedAt:  db.TimeFromPg(row.UpdatedAt),
	}
}

func toConversation(row sqlc.Conversation) storage.ConversationRecord {
	return storage.ConversationRecord{
		ID:          row.ID,
		InitiatorID: row.InitiatorID,
		OpponentID:  db.Int8FromPg(row.OpponentID),
		CreatedAt:   db.TimeFromPg(row.CreatedAt),
		UpdatedAt:   db.TimeFromPg(row.UpdatedAt),
		FinishedAt:  db.TimeFromPg(row.FinishedAt),
	}
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return storage.ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case db.IsUniqueViolation(err):
		return fmt.Errorf("%w: %w", storage.ErrConflict, err)
	case db.IsTransient(err):
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	default:
		return err
	}
}
