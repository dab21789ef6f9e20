package kv

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// SQLStore keeps entries in a single kv_entries table. Both supported
// dialects accept $N placeholders and ON CONFLICT upserts.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

func NewSQLStore(dialect, dsn string) (*SQLStore, error) {
	if dialect != DialectSQLite && dialect != DialectPostgres {
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}

	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == DialectSQLite {
		// sqlite allows one writer; an in-memory database also exists per connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLStore{db: db, dialect: dialect}, nil
}

// RunMigrations applies the embedded schema for the store's dialect.
func (s *SQLStore) RunMigrations() error {
	src, err := iofs.New(migrationsFS, "migrations/"+s.dialect)
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	var driver database.Driver
	switch s.dialect {
	case DialectSQLite:
		driver, err = sqlite.WithInstance(s.db, &sqlite.Config{MigrationsTable: "kv_schema_migrations"})
	case DialectPostgres:
		driver, err = postgres.WithInstance(s.db, &postgres.Config{MigrationsTable: "kv_schema_migrations"})
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, s.dialect, driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE entry_key = $1`, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query entry: %w", err)
	}
	return value, nil
}

func (s *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	query := `INSERT INTO kv_entries (entry_key, value, updated_at)
	          VALUES ($1, $2, $3)
	          ON CONFLICT (entry_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to upsert entry: %w", err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE entry_key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
