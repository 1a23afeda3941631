// Package ledger records conversations and pairs waiting participants.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/memohai/anontalks/internal/participants"
	"github.com/memohai/anontalks/internal/storage"
)

// Ledger owns the conversations table. Every mutation changes the conversation
// row and the affected participant statuses in one transaction, conversation
// row first.
type Ledger struct {
	store  storage.Store
	logger *slog.Logger
	opts   Options
}

// New creates a ledger over store.
func New(log *slog.Logger, store storage.Store, opts Options) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	if opts.RecentOpponentTimeout <= 0 {
		opts.RecentOpponentTimeout = DefaultRecentOpponentTimeout
	}
	if opts.ClaimAttempts <= 0 {
		opts.ClaimAttempts = DefaultClaimAttempts
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Ledger{
		store:  store,
		logger: log.With(slog.String("service", "ledger")),
		opts:   opts,
	}
}

// ClaimOrOpen joins the oldest eligible waiting conversation or, when there is
// none, opens a waiting conversation for requesterID. The requester must be
// in the menu; otherwise participants.ErrStatusChanged is returned and nothing
// changes.
func (l *Ledger) ClaimOrOpen(ctx context.Context, requesterID int64) (Conversation, error) {
	for attempt := 1; attempt <= l.opts.ClaimAttempts; attempt++ {
		conv, err := l.claimOnce(ctx, requesterID, true)
		if errors.Is(err, ErrClaimConflict) {
			l.logger.Debug("claim lost, retrying",
				slog.Int64("participant_id", requesterID),
				slog.Int("attempt", attempt),
			)
			continue
		}
		return conv, err
	}
	l.logger.Info("claim attempts exhausted, opening waiting conversation",
		slog.Int64("participant_id", requesterID),
		slog.Int("attempts", l.opts.ClaimAttempts),
	)
	return l.claimOnce(ctx, requesterID, false)
}

func (l *Ledger) claimOnce(ctx context.Context, requesterID int64, search bool) (Conversation, error) {
	now := l.opts.Now()
	var out Conversation
	err := l.store.WithTx(ctx, func(q storage.Queries) error {
		if search {
			cand, err := q.FindClaimCandidate(ctx, storage.FindClaimCandidateParams{
				RequesterID: requesterID,
				Cutoff:      now.Add(-l.opts.RecentOpponentTimeout),
			})
			switch {
			case err == nil:
				conv, err := claim(ctx, q, cand, requesterID, now)
				if err != nil {
					return err
				}
				out = conv
				return nil
			case !errors.Is(err, storage.ErrNotFound):
				return fmt.Errorf("find claim candidate: %w", err)
			}
		}

		rec, err := q.CreateConversation(ctx, storage.CreateConversationParams{InitiatorID: requesterID, At: now})
		if err != nil {
			if errors.Is(err, storage.ErrConflict) {
				// Already initiating an open conversation.
				return fmt.Errorf("open waiting conversation: %w", participants.ErrStatusChanged)
			}
			return fmt.Errorf("open waiting conversation: %w", err)
		}
		if err := participants.SetStatus(ctx, q, requesterID, participants.StatusInMenu, participants.StatusWaiting, now); err != nil {
			return err
		}
		out = toConversation(rec)
		return nil
	})
	if err != nil {
		return Conversation{}, err
	}
	if out.Matched() {
		l.logger.Info("conversation matched",
			slog.Int64("conversation_id", out.ID),
			slog.Int64("initiator_id", out.InitiatorID),
			slog.Int64("opponent_id", out.OpponentID),
		)
	} else {
		l.logger.Info("waiting conversation opened",
			slog.Int64("conversation_id", out.ID),
			slog.Int64("initiator_id", out.InitiatorID),
		)
	}
	return out, nil
}

func claim(ctx context.Context, q storage.Queries, cand storage.ConversationRecord, requesterID int64, now time.Time) (Conversation, error) {
	ok, err := q.ClaimConversation(ctx, storage.ClaimConversationParams{
		ID:         cand.ID,
		OpponentID: requesterID,
		At:         now,
	})
	if err != nil {
		return Conversation{}, fmt.Errorf("claim conversation %d: %w", cand.ID, err)
	}
	if !ok {
		return Conversation{}, ErrClaimConflict
	}
	if err := participants.SetStatus(ctx, q, requesterID, participants.StatusInMenu, participants.StatusInConversation, now); err != nil {
		return Conversation{}, err
	}
	if err := participants.SetStatus(ctx, q, cand.InitiatorID, participants.StatusWaiting, participants.StatusInConversation, now); err != nil {
		return Conversation{}, inconsistent(err)
	}
	cand.OpponentID = requesterID
	cand.UpdatedAt = now
	return toConversation(cand), nil
}

// Finish closes the conversation and returns both sides to the menu.
// finishedNow is false when the conversation had already been finished; in
// that case no status is touched.
func (l *Ledger) Finish(ctx context.Context, conversationID int64) (conv Conversation, finishedNow bool, err error) {
	now := l.opts.Now()
	err = l.store.WithTx(ctx, func(q storage.Queries) error {
		rec, err := q.FinishConversation(ctx, storage.FinishConversationParams{ID: conversationID, At: now})
		if errors.Is(err, storage.ErrNotFound) {
			existing, gerr := q.GetConversationByID(ctx, conversationID)
			if gerr != nil {
				if errors.Is(gerr, storage.ErrNotFound) {
					return ErrNotFound
				}
				return fmt.Errorf("get conversation %d: %w", conversationID, gerr)
			}
			conv = toConversation(existing)
			return nil
		}
		if err != nil {
			return fmt.Errorf("finish conversation %d: %w", conversationID, err)
		}

		from := participants.StatusWaiting
		if rec.OpponentID != 0 {
			from = participants.StatusInConversation
		}
		if err := participants.SetStatus(ctx, q, rec.InitiatorID, from, participants.StatusInMenu, now); err != nil {
			return inconsistent(err)
		}
		if rec.OpponentID != 0 {
			if err := participants.SetStatus(ctx, q, rec.OpponentID, participants.StatusInConversation, participants.StatusInMenu, now); err != nil {
				return inconsistent(err)
			}
		}
		conv = toConversation(rec)
		finishedNow = true
		return nil
	})
	if err != nil {
		return Conversation{}, false, err
	}
	if finishedNow {
		l.logger.Info("conversation finished", slog.Int64("conversation_id", conv.ID), slog.Bool("matched", conv.Matched()))
	}
	return conv, finishedNow, nil
}

// CancelWaiting finishes the waiting conversation initiated by participantID.
// ErrNotFound means there is none, typically because it was just claimed.
func (l *Ledger) CancelWaiting(ctx context.Context, participantID int64) (Conversation, error) {
	return l.cancelWaiting(ctx, participantID, time.Time{})
}

// CancelStale cancels conv if it is still the initiator's waiting
// conversation. A newer waiting conversation of the same initiator is left
// alone and ErrNotFound is returned.
func (l *Ledger) CancelStale(ctx context.Context, conv Conversation) (Conversation, error) {
	return l.cancelWaiting(ctx, conv.InitiatorID, conv.CreatedAt)
}

func (l *Ledger) cancelWaiting(ctx context.Context, participantID int64, notAfter time.Time) (Conversation, error) {
	now := l.opts.Now()
	var out Conversation
	err := l.store.WithTx(ctx, func(q storage.Queries) error {
		rec, err := q.FinishWaitingConversation(ctx, storage.FinishWaitingConversationParams{
			InitiatorID: participantID,
			At:          now,
			NotAfter:    notAfter,
		})
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("cancel waiting conversation: %w", err)
		}
		if err := participants.SetStatus(ctx, q, participantID, participants.StatusWaiting, participants.StatusInMenu, now); err != nil {
			return inconsistent(err)
		}
		out = toConversation(rec)
		return nil
	})
	if err != nil {
		return Conversation{}, err
	}
	l.logger.Info("waiting conversation cancelled", slog.Int64("conversation_id", out.ID))
	return out, nil
}

// WaitingConversationOf returns the open unmatched conversation initiated by participantID.
func (l *Ledger) WaitingConversationOf(ctx context.Context, participantID int64) (Conversation, error) {
	rec, err := l.store.GetWaitingConversationByInitiator(ctx, participantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, fmt.Errorf("get waiting conversation: %w", err)
	}
	return toConversation(rec), nil
}

// ActiveConversationOf returns the open matched conversation containing participantID.
func (l *Ledger) ActiveConversationOf(ctx context.Context, participantID int64) (Conversation, error) {
	rec, err := l.store.GetActiveConversationByParticipant(ctx, participantID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, fmt.Errorf("get active conversation: %w", err)
	}
	return toConversation(rec), nil
}

// StaleWaiting lists up to limit waiting conversations opened more than olderThan ago, oldest first.
func (l *Ledger) StaleWaiting(ctx context.Context, olderThan time.Duration, limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 100
	}
	recs, err := l.store.ListStaleWaitingConversations(ctx, storage.ListStaleWaitingParams{
		CreatedBefore: l.opts.Now().Add(-olderThan),
		Limit:         int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list stale waiting conversations: %w", err)
	}
	out := make([]Conversation, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toConversation(rec))
	}
	return out, nil
}

// Stats counts open conversations.
func (l *Ledger) Stats(ctx context.Context) (Stats, error) {
	counts, err := l.store.CountOpenConversations(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count open conversations: %w", err)
	}
	return Stats{Waiting: counts.Waiting, Active: counts.Active}, nil
}

func inconsistent(err error) error {
	if errors.Is(err, participants.ErrStatusChanged) {
		return fmt.Errorf("%w: %v", ErrInconsistentState, err)
	}
	return err
}
