package vectorindex

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/clinicalpath/dx-engine/internal/domain"
)

// TestPostgres_UpsertAndSearchRoundTrip exercises the real Postgres
// backend against a containerized instance, mirroring the pool-level
// integration test pattern used for the other storage adapter.
func TestPostgres_UpsertAndSearchRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping testcontainers-backed test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	idx := NewPostgres(pool, logger)
	require.NoError(t, idx.EnsureCollection(ctx, 2))

	require.NoError(t, idx.Upsert(ctx, []domain.VectorIndexPoint{
		{Condition: &domain.Condition{ConditionID: "close", Name: "close", UrgencyLevel: domain.UrgencyRoutine, PrevalenceBucket: domain.PrevalenceCommon, Source: domain.SourceCurated}, Vector: []float32{1, 0}},
		{Condition: &domain.Condition{ConditionID: "far", Name: "far", UrgencyLevel: domain.UrgencyRoutine, PrevalenceBucket: domain.PrevalenceCommon, Source: domain.SourceCurated}, Vector: []float32{0, 1}},
	}))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	results, err := idx.Search(ctx, []float32{1, 0.01}, 10, domain.FilterOp{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "close", results[0].Condition.ConditionID)

	// Upsert of an existing condition_id replaces rather than duplicates.
	require.NoError(t, idx.Upsert(ctx, []domain.VectorIndexPoint{
		{Condition: &domain.Condition{ConditionID: "close", Name: "close", UrgencyLevel: domain.UrgencyRoutine, PrevalenceBucket: domain.PrevalenceCommon, Source: domain.SourceCurated}, Vector: []float32{0, 1}},
	}))
	n, err = idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
