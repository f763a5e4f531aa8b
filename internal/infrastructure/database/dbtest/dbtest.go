// Package dbtest starts a throwaway Postgres container for integration tests.
package dbtest

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"library-backend/internal/infrastructure/database"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	poolOnce sync.Once
	pool     *pgxpool.Pool
	poolErr  error
)

// Pool starts one migrated container per test binary.
// Skips when -short is set or Docker is unavailable.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	poolOnce.Do(func() {
		ctx := context.Background()
		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("library_test"),
			tcpostgres.WithUsername("postgres"),
			tcpostgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		if err != nil {
			poolErr = err
			return
		}

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			poolErr = err
			return
		}
		if err := database.Migrate(dsn); err != nil {
			poolErr = err
			return
		}
		pool, poolErr = pgxpool.New(ctx, dsn)
	})

	if poolErr != nil {
		t.Skipf("postgres container unavailable: %v", poolErr)
	}
	return pool
}

// Truncate empties the lending tables
func Truncate(t *testing.T, p *pgxpool.Pool) {
	t.Helper()
	tables := []string{"fines", "loans", "books", "readers"}
	_, err := p.Exec(context.Background(), "TRUNCATE "+strings.Join(tables, ", "))
	require.NoError(t, err)
}
