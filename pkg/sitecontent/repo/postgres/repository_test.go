package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-site/pkg/sitecontent"
	"github.com/tendant/simple-site/pkg/sitecontent/repo/postgres"
	"github.com/tendant/simple-site/pkg/sitecontent/repo/repotest"
)

var (
	_ sitecontent.Repository    = (*postgres.Repository)(nil)
	_ sitecontent.StatsReporter = (*postgres.Repository)(nil)
)

// Requires a disposable database: the schema is dropped and recreated for
// every subtest.
func TestRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	databaseURL := os.Getenv("POSTGRES_TEST_URL")
	if databaseURL == "" {
		t.Skip("Skipping integration test: POSTGRES_TEST_URL not set")
	}

	repotest.Run(t, func(t *testing.T) sitecontent.Repository {
		require.NoError(t, postgres.MigrateDown(databaseURL, 0))
		require.NoError(t, postgres.MigrateUp(databaseURL))

		repo, err := postgres.Open(context.Background(), databaseURL)
		require.NoError(t, err)
		t.Cleanup(repo.Close)
		return repo
	})
}
