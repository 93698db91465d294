//go:build integration

package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xraph/parkledger/store"
	"github.com/xraph/parkledger/store/postgres"
	"github.com/xraph/parkledger/store/storetest"
)

// ============================================================================
// PostgreSQL Store Integration Tests
// ============================================================================

func TestIntegrationStore(t *testing.T) {
	url := os.Getenv("PARKLEDGER_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("PARKLEDGER_TEST_DATABASE_URL not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		s, err := postgres.Open(ctx, url)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })

		_, err = s.Pool().Exec(ctx, `DROP TABLE IF EXISTS parkledger_receipts, parkledger_accounts, parkledger_migrations`)
		require.NoError(t, err)
		require.NoError(t, s.Migrate(ctx))
		// A second run is a no-op.
		require.NoError(t, s.Migrate(ctx))
		return s
	})
}
