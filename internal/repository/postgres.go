package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	poolMaxConns = 10
	poolMinConns = 2
)

func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	// One kv table keyed by owner; a small pool is plenty.
	config.MaxConns = poolMaxConns
	config.MinConns = poolMinConns

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// MigrationStatus is the schema version before and after RunMigrations.
// A zero version means no migration had been applied.
type MigrationStatus struct {
	From uint
	To   uint
}

func (s MigrationStatus) Changed() bool {
	return s.From != s.To
}

// RunMigrations brings the kv schema up to the newest embedded migration.
// A database left dirty by a failed migration is refused rather than
// migrated over.
func RunMigrations(databaseURL string, migrationsFS fs.FS) (MigrationStatus, error) {
	d, err := iofs.New(migrationsFS, ".")
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, databaseURL)
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	var status MigrationStatus
	from, dirty, err := schemaVersion(m)
	if err != nil {
		return status, err
	}
	if dirty {
		return status, fmt.Errorf("schema is dirty at version %d, fix it and force the version with the migrate CLI", from)
	}
	status.From = from

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return status, fmt.Errorf("run migrations: %w", err)
	}

	if status.To, _, err = schemaVersion(m); err != nil {
		return status, err
	}
	slog.Info("kv schema migrated", "from", status.From, "to", status.To)
	return status, nil
}

func schemaVersion(m *migrate.Migrate) (uint, bool, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return version, dirty, nil
}

// PostgresStore keeps the key-value table in Postgres. The schema comes
// from the embedded migrations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, owner, key string) ([]byte, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM kv WHERE owner = $1 AND key = $2`, owner, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return []byte(value), nil
}

func (s *PostgresStore) Set(ctx context.Context, owner, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kv (owner, key, value, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (owner, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		owner, key, string(value))
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, owner, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM kv WHERE owner = $1 AND key = $2`, owner, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Keys(ctx context.Context, owner, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key FROM kv WHERE owner = $1 AND substr(key, 1, length($2)) = $2 ORDER BY key`,
		owner, prefix)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan keys: %w", err)
	}
	return keys, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
