//go:build integration

package mongo_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xraph/parkledger/store"
	"github.com/xraph/parkledger/store/mongo"
	"github.com/xraph/parkledger/store/storetest"
)

// ============================================================================
// MongoDB Store Integration Tests (replica set required)
// ============================================================================

func TestIntegrationStore(t *testing.T) {
	uri := os.Getenv("PARKLEDGER_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("PARKLEDGER_TEST_MONGO_URI not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		db := fmt.Sprintf("parkledger_test_%d", time.Now().UnixNano())

		s, err := mongo.Open(ctx, uri, db)
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = s.DB().Drop(context.Background())
			_ = s.Close()
		})

		require.NoError(t, s.Migrate(ctx))
		return s
	})
}
