package participants

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/anontalks/internal/logger"
	"github.com/memohai/anontalks/internal/storage"
	"github.com/memohai/anontalks/internal/storage/sqlite"
)

func newTestService(t *testing.T) (*Service, storage.Store) {
	t.Helper()
	store, err := sqlite.Open(context.Background(), logger.Discard(), filepath.Join(t.TempDir(), "p.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewService(logger.Discard(), store), store
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	p, created, err := svc.GetOrCreate(ctx, "42", "chat-42")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, StatusInMenu, p.Status)

	require.NoError(t, store.WithTx(ctx, func(q storage.Queries) error {
		return SetStatus(ctx, q, p.ID, StatusInMenu, StatusWaiting, time.Now())
	}))

	again, created, err := svc.GetOrCreate(ctx, "42", "chat-42")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, p.ID, again.ID)
	assert.Equal(t, StatusWaiting, again.Status, "re-registration must not reset status")
}

func TestGetOrCreateConcurrentFirstContact(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = map[int64]struct{}{}
		created int
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, c, err := svc.GetOrCreate(ctx, "7", "chat-7")
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			ids[p.ID] = struct{}{}
			if c {
				created++
			}
		}()
	}
	wg.Wait()
	assert.Len(t, ids, 1)
	assert.Equal(t, 1, created)
}

func TestGetOrCreateRejectsBlank(t *testing.T) {
	svc, _ := newTestService(t)
	_, _, err := svc.GetOrCreate(context.Background(), " ", "chat")
	require.Error(t, err)
}

func TestGetNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = svc.GetByID(context.Background(), 99)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetStatusPrecondition(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	p, _, err := svc.GetOrCreate(ctx, "1", "chat-1")
	require.NoError(t, err)

	err = store.WithTx(ctx, func(q storage.Queries) error {
		return SetStatus(ctx, q, p.ID, StatusWaiting, StatusInConversation, time.Now())
	})
	require.True(t, errors.Is(err, ErrStatusChanged))

	got, err := svc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusInMenu, got.Status)
}
