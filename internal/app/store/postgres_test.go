package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"tempchat/internal/app/db"
)

// TestPostgresStore runs against a real database and is skipped unless
// TEST_DATABASE_URL is set.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	pool, err := db.NewPool(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	runStoreSuite(t, func(t *testing.T) *harness {
		_, err := pool.Exec(context.Background(), `TRUNCATE accounts, rooms, messages`)
		require.NoError(t, err)

		clock := newFakeClock()
		return &harness{
			store:   NewPostgresStore(pool, Options{Retention: testRetention, Clock: clock.Now}),
			clock:   clock,
			advance: clock.Advance,
		}
	})
}
