package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	dbfs "github.com/memohai/anontalks/db"
	"github.com/memohai/anontalks/internal/db"
	"github.com/memohai/anontalks/internal/logger"
	"github.com/memohai/anontalks/internal/storage"
	"github.com/memohai/anontalks/internal/storage/storagetest"
)

func TestStoreConformance(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("skip integration test: TEST_POSTGRES_DSN is not set")
	}
	log := logger.Discard()
	require.NoError(t, db.RunMigrate(log, dsn, dbfs.PostgresMigrations(), "up", nil))

	storagetest.Run(t, func(t *testing.T) storage.Store {
		ctx := context.Background()
		pool, err := db.Open(ctx, dsn, 4)
		if err != nil {
			t.Skipf("skip integration test: cannot connect to database: %v", err)
		}
		_, err = pool.Exec(ctx, `TRUNCATE conversations, participants RESTART IDENTITY CASCADE`)
		require.NoError(t, err)
		s := New(log, pool)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
