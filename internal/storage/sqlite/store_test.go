package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memohai/anontalks/internal/logger"
	"github.com/memohai/anontalks/internal/storage"
	"github.com/memohai/anontalks/internal/storage/storagetest"
)

func openTestStore(t *testing.T) storage.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "anontalks.db")
	s, err := Open(context.Background(), logger.Discard(), path, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreConformance(t *testing.T) {
	storagetest.Run(t, openTestStore)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), nil, "  ", true)
	require.Error(t, err)
}

func TestOpenWithoutMigrationsHasNoSchema(t *testing.T) {
	s, err := Open(context.Background(), logger.Discard(), filepath.Join(t.TempDir(), "bare.db"), false)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.GetParticipantByID(context.Background(), 1)
	require.Error(t, err)
	require.NotErrorIs(t, err, storage.ErrNotFound)
}

func TestMillisTruncatesToMillisecond(t *testing.T) {
	in := time.Date(2026, 3, 4, 5, 6, 7, 8_123_456, time.FixedZone("X", 3600))
	got := fromMillis(toMillis(in))
	require.True(t, got.Equal(in.Truncate(time.Millisecond)))
	require.Equal(t, time.UTC, got.Location())
}
