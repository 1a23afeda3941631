// Package storagetest holds the behaviour every storage.Store backend must share.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/anontalks/internal/storage"
)

// Factory returns an empty, migrated store. It is called once per subtest.
type Factory func(t *testing.T) storage.Store

var base = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// Run exercises the storage contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	cases := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"CreateParticipantIfAbsent", testCreateParticipantIfAbsent},
		{"SetParticipantStatusIsConditional", testSetParticipantStatus},
		{"ClaimIsCompareAndSet", testClaimCompareAndSet},
		{"OneOpenConversationPerInitiator", testOneOpenConversationPerInitiator},
		{"CandidateOrderIsFIFO", testCandidateOrder},
		{"CandidateExcludesRecentOpponentsBothWays", testCandidateRecency},
		{"FinishIsOneShot", testFinishOneShot},
		{"FinishWaitingSkipsMatched", testFinishWaiting},
		{"WithTxRollsBack", testWithTxRollback},
		{"StaleWaitingAndCounts", testStaleAndCounts},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

func mustParticipant(t *testing.T, s storage.Store, n int, status string) storage.ParticipantRecord {
	t.Helper()
	rec, created, err := s.CreateParticipantIfAbsent(context.Background(), storage.CreateParticipantParams{
		ExternalID: fmt.Sprintf("user-%d", n),
		Address:    fmt.Sprintf("chat-%d", n),
		Status:     status,
		At:         base,
	})
	require.NoError(t, err)
	require.True(t, created)
	return rec
}

func mustWaiting(t *testing.T, s storage.Store, initiatorID int64, at time.Time) storage.ConversationRecord {
	t.Helper()
	rec, err := s.CreateConversation(context.Background(), storage.CreateConversationParams{InitiatorID: initiatorID, At: at})
	require.NoError(t, err)
	return rec
}

func testCreateParticipantIfAbsent(t *testing.T, s storage.Store) {
	ctx := context.Background()
	first := mustParticipant(t, s, 1, "in_menu")
	assert.NotZero(t, first.ID)
	assert.Equal(t, "user-1", first.ExternalID)
	assert.Equal(t, "in_menu", first.Status)
	assert.True(t, first.CreatedAt.Equal(base))

	_, created, err := s.CreateParticipantIfAbsent(ctx, storage.CreateParticipantParams{
		ExternalID: "user-1", Address: "chat-1", Status: "in_menu", At: base.Add(time.Minute),
	})
	require.NoError(t, err)
	assert.False(t, created)

	got, err := s.GetParticipantByExternalID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = s.GetParticipantByID(ctx, first.ID+1000)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testSetParticipantStatus(t *testing.T, s storage.Store) {
	ctx := context.Background()
	p := mustParticipant(t, s, 1, "in_menu")

	ok, err := s.SetParticipantStatus(ctx, storage.SetParticipantStatusParams{ID: p.ID, From: "in_menu", To: "waiting", At: base})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetParticipantStatus(ctx, storage.SetParticipantStatusParams{ID: p.ID, From: "in_menu", To: "in_conversation", At: base})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.GetParticipantByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "waiting", got.Status)
}

func testClaimCompareAndSet(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := mustParticipant(t, s, 1, "waiting")
	b := mustParticipant(t, s, 2, "in_menu")
	c := mustParticipant(t, s, 3, "in_menu")
	conv := mustWaiting(t, s, a.ID, base)
	assert.Zero(t, conv.OpponentID)
	assert.True(t, conv.FinishedAt.IsZero())

	ok, err := s.ClaimConversation(ctx, storage.ClaimConversationParams{ID: conv.ID, OpponentID: b.ID, At: base})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ClaimConversation(ctx, storage.ClaimConversationParams{ID: conv.ID, OpponentID: c.ID, At: base})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.GetConversationByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.OpponentID)

	active, err := s.GetActiveConversationByParticipant(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, active.ID)
	_, err = s.GetWaitingConversationByInitiator(ctx, a.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testOneOpenConversationPerInitiator(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := mustParticipant(t, s, 1, "waiting")
	mustWaiting(t, s, a.ID, base)

	_, err := s.CreateConversation(ctx, storage.CreateConversationParams{InitiatorID: a.ID, At: base})
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func testCandidateOrder(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := mustParticipant(t, s, 1, "waiting")
	b := mustParticipant(t, s, 2, "waiting")
	r := mustParticipant(t, s, 3, "in_menu")
	later := mustWaiting(t, s, b.ID, base.Add(time.Second))
	earlier := mustWaiting(t, s, a.ID, base)

	got, err := s.FindClaimCandidate(ctx, storage.FindClaimCandidateParams{RequesterID: r.ID, Cutoff: base})
	require.NoError(t, err)
	assert.Equal(t, earlier.ID, got.ID)

	// The requester's own slot is never a candidate.
	got, err = s.FindClaimCandidate(ctx, storage.FindClaimCandidateParams{RequesterID: a.ID, Cutoff: base})
	require.NoError(t, err)
	assert.Equal(t, later.ID, got.ID)
}

func testCandidateRecency(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := mustParticipant(t, s, 1, "in_menu")
	b := mustParticipant(t, s, 2, "in_menu")

	// a initiated, b joined, finished at base+1m.
	past := mustWaiting(t, s, a.ID, base)
	ok, err := s.ClaimConversation(ctx, storage.ClaimConversationParams{ID: past.ID, OpponentID: b.ID, At: base})
	require.NoError(t, err)
	require.True(t, ok)
	_, err = s.FinishConversation(ctx, storage.FinishConversationParams{ID: past.ID, At: base.Add(time.Minute)})
	require.NoError(t, err)

	// Now b waits; a must not get b while the pairing is recent.
	mustWaiting(t, s, b.ID, base.Add(2*time.Minute))
	_, err = s.FindClaimCandidate(ctx, storage.FindClaimCandidateParams{RequesterID: a.ID, Cutoff: base})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.FinishWaitingConversation(ctx, storage.FinishWaitingConversationParams{InitiatorID: b.ID, At: base.Add(3 * time.Minute)})
	require.NoError(t, err)

	// Reverse roles: a waits, b searches.
	waiting := mustWaiting(t, s, a.ID, base.Add(4*time.Minute))
	_, err = s.FindClaimCandidate(ctx, storage.FindClaimCandidateParams{RequesterID: b.ID, Cutoff: base})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Once the cutoff passes the finish time, the pair is eligible again.
	got, err := s.FindClaimCandidate(ctx, storage.FindClaimCandidateParams{RequesterID: b.ID, Cutoff: base.Add(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, waiting.ID, got.ID)
}

func testFinishOneShot(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := mustParticipant(t, s, 1, "waiting")
	conv := mustWaiting(t, s, a.ID, base)

	done, err := s.FinishConversation(ctx, storage.FinishConversationParams{ID: conv.ID, At: base.Add(time.Second)})
	require.NoError(t, err)
	assert.True(t, done.FinishedAt.Equal(base.Add(time.Second)))

	_, err = s.FinishConversation(ctx, storage.FinishConversationParams{ID: conv.ID, At: base.Add(2 * time.Second)})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := s.GetConversationByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, got.FinishedAt.Equal(base.Add(time.Second)))

	// A finished slot frees the initiator for a new one.
	mustWaiting(t, s, a.ID, base.Add(3*time.Second))
}

func testFinishWaiting(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := mustParticipant(t, s, 1, "waiting")
	b := mustParticipant(t, s, 2, "in_menu")
	conv := mustWaiting(t, s, a.ID, base)
	ok, err := s.ClaimConversation(ctx, storage.ClaimConversationParams{ID: conv.ID, OpponentID: b.ID, At: base})
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.FinishWaitingConversation(ctx, storage.FinishWaitingConversationParams{InitiatorID: a.ID, At: base})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := s.GetConversationByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.True(t, got.FinishedAt.IsZero())

	// NotAfter keeps a newer waiting slot from being finished.
	c := mustParticipant(t, s, 3, "waiting")
	fresh := mustWaiting(t, s, c.ID, base.Add(time.Hour))
	_, err = s.FinishWaitingConversation(ctx, storage.FinishWaitingConversationParams{InitiatorID: c.ID, At: base, NotAfter: base})
	assert.ErrorIs(t, err, storage.ErrNotFound)
	done, err := s.FinishWaitingConversation(ctx, storage.FinishWaitingConversationParams{InitiatorID: c.ID, At: base.Add(2 * time.Hour), NotAfter: fresh.CreatedAt})
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, done.ID)
}

func testWithTxRollback(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := mustParticipant(t, s, 1, "in_menu")
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(q storage.Queries) error {
		if _, err := q.CreateConversation(ctx, storage.CreateConversationParams{InitiatorID: a.ID, At: base}); err != nil {
			return err
		}
		if _, err := q.SetParticipantStatus(ctx, storage.SetParticipantStatusParams{ID: a.ID, From: "in_menu", To: "waiting", At: base}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetWaitingConversationByInitiator(ctx, a.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	got, err := s.GetParticipantByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "in_menu", got.Status)

	err = s.WithTx(ctx, func(q storage.Queries) error {
		_, err := q.CreateConversation(ctx, storage.CreateConversationParams{InitiatorID: a.ID, At: base})
		return err
	})
	require.NoError(t, err)
	_, err = s.GetWaitingConversationByInitiator(ctx, a.ID)
	assert.NoError(t, err)
}

func testStaleAndCounts(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := mustParticipant(t, s, 1, "waiting")
	b := mustParticipant(t, s, 2, "waiting")
	c := mustParticipant(t, s, 3, "in_menu")
	old := mustWaiting(t, s, a.ID, base)
	fresh := mustWaiting(t, s, b.ID, base.Add(10*time.Minute))
	ok, err := s.ClaimConversation(ctx, storage.ClaimConversationParams{ID: fresh.ID, OpponentID: c.ID, At: base})
	require.NoError(t, err)
	require.True(t, ok)

	stale, err := s.ListStaleWaitingConversations(ctx, storage.ListStaleWaitingParams{CreatedBefore: base.Add(time.Minute), Limit: 10})
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0].ID)

	counts, err := s.CountOpenConversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.ConversationCounts{Waiting: 1, Active: 1}, counts)

	require.NoError(t, s.Ping(ctx))
}
