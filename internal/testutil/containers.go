// Package testutil provides container-backed test infrastructure.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	pgImage = "pgvector/pgvector:0.8.1-pg18"
	pgCreds = "recall"
)

// PostgresContainer is a throwaway pgvector-enabled Postgres for tests.
type PostgresContainer struct {
	Container testcontainers.Container
	Host      string
	Port      string
}

// NewPostgresContainer starts a Postgres container with the pgvector
// extension available. Fails the test on any startup problem.
func NewPostgresContainer(ctx context.Context, t *testing.T) *PostgresContainer {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        pgImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     pgCreds,
				"POSTGRES_PASSWORD": pgCreds,
				"POSTGRES_DB":       pgCreds,
			},
			WaitingFor: wait.ForAll(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort("5432/tcp"),
			).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	return &PostgresContainer{Container: container, Host: host, Port: port.Port()}
}

// ConnectionString returns the pgx connection URL for the container.
func (pc *PostgresContainer) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		pgCreds, pgCreds, pc.Host, pc.Port, pgCreds)
}

// Terminate stops and removes the container.
func (pc *PostgresContainer) Terminate(ctx context.Context) error {
	return testcontainers.TerminateContainer(pc.Container)
}

// NewTestPool connects to the container, retrying while Postgres finishes
// booting, and applies every up migration from migrationsDir.
func NewTestPool(ctx context.Context, t *testing.T, pc *PostgresContainer, migrationsDir string) *pgxpool.Pool {
	t.Helper()

	var pool *pgxpool.Pool
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		pool, err = pgxpool.New(ctx, pc.ConnectionString())
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("connect to test postgres: %v", err)
	}

	if err := applyMigrations(ctx, pool, migrationsDir); err != nil {
		pool.Close()
		t.Fatalf("apply migrations: %v", err)
	}
	return pool
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var ups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			ups = append(ups, e.Name())
		}
	}
	sort.Strings(ups)

	for _, name := range ups {
		sql, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}

// TruncateAll empties every table for test isolation.
func TruncateAll(ctx context.Context, pool *pgxpool.Pool) error {
	for _, table := range []string{"chunks", "entries", "sessions"} {
		if _, err := pool.Exec(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return nil
}
