package testutil

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/nkiryanov/usersvc/internal/db"
)

type PostgresContainer struct {
	DSN  string
	Pool *pgxpool.Pool

	container *postgres.PostgresContainer
	t         *testing.T
}

// StartPostgresContainer runs postgres in docker, applies migrations and opens pool with maxConns connections
// Call Terminate when done (t.Cleanup(pg.Terminate))
func StartPostgresContainer(t *testing.T, maxConns ...int) *PostgresContainer {
	t.Helper()

	// Fail early if docker not available
	out, err := exec.Command("docker", "info", "--format", "{{.ServerVersion}}").CombinedOutput()
	if err != nil {
		t.Fatalf("docker not available or not running. Err: %s", out)
	}

	container, err := postgres.Run(context.Background(),
		"postgres:17-alpine",
		postgres.WithDatabase("usersvc-test"),
		postgres.WithUsername("usersvc"),
		postgres.WithPassword("pwd"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		testcontainers.CleanupContainer(t, container)
	}
	require.NoError(t, err, "container with pg start failed")

	dsn, err := container.ConnectionString(t.Context(), "sslmode=disable")
	require.NoError(t, err)
	t.Logf("Container with pg started, DSN=%v", dsn)

	conns := 0
	if len(maxConns) > 0 {
		conns = maxConns[0]
	}

	pool, err := db.ConnectAndMigratePostgres(t.Context(), dsn, conns)
	require.NoError(t, err, "migrate and connect failed")

	return &PostgresContainer{
		DSN:       dsn,
		Pool:      pool,
		container: container,
		t:         t,
	}
}

// Truncate removes all users and resets identity so ids start from 1 again
func (pg *PostgresContainer) Truncate(t *testing.T) {
	t.Helper()

	_, err := pg.Pool.Exec(t.Context(), "TRUNCATE users RESTART IDENTITY")
	require.NoError(t, err, "truncate users failed")
}

func (pg *PostgresContainer) Terminate() {
	pg.Pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := pg.container.Terminate(ctx); err != nil {
		pg.t.Logf("failed to terminate pg container: %v", err)
	}
}
