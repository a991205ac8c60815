package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// DB wraps the postgres connection shared by the transcript and credential stores.
type DB struct {
	*sql.DB
}

// New opens and pings a postgres connection. When the server refuses TLS and
// the DSN does not pin an sslmode, it retries once with sslmode=disable.
func New(ctx context.Context, connectionString string) (*DB, error) {
	if connectionString == "" {
		return nil, fmt.Errorf("database connection string is required")
	}

	sqlDB, err := open(ctx, connectionString)
	if err != nil {
		if strings.Contains(strings.ToLower(connectionString), "sslmode") {
			return nil, err
		}
		log.Warn().Err(err).Msg("retrying database connection with SSL disabled")
		sqlDB, err = open(ctx, withSSLDisabled(connectionString))
		if err != nil {
			return nil, err
		}
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	return &DB{DB: sqlDB}, nil
}

func open(ctx context.Context, dsn string) (*sql.DB, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return sqlDB, nil
}

func withSSLDisabled(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&sslmode=disable"
	}
	if strings.Contains(dsn, "://") {
		return dsn + "?sslmode=disable"
	}
	// key=value DSN
	return dsn + " sslmode=disable"
}

// HealthCheck verifies the database connection is healthy
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.PingContext(ctx)
}

// RunMigrations applies every NNN_name.sql file in migrationsDir that has not
// been recorded in schema_migrations, each in its own transaction.
func (db *DB) RunMigrations(ctx context.Context, migrationsDir string) error {
	migrations, err := ReadMigrations(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	if len(migrations) == 0 {
		log.Info().Str("dir", migrationsDir).Msg("no migrations found")
		return nil
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	for _, m := range migrations {
		var count int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE version = $1", m.Number).Scan(&count); err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if count > 0 {
			log.Debug().Int("version", m.Number).Msg("migration already applied, skipping")
			continue
		}
		if err := db.apply(ctx, m); err != nil {
			return err
		}
		log.Info().Int("version", m.Number).Str("name", m.Name).Msg("migration applied")
	}
	return nil
}

func (db *DB) apply(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to execute migration %d: %w", m.Number, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", m.Number, m.Name); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}

// Migration represents a single migration file
type Migration struct {
	Number int
	Name   string
	SQL    string
}

// ReadMigrations loads NNN_name.sql files sorted by number. Files without a
// numeric prefix are ignored.
func ReadMigrations(migrationsDir string) ([]Migration, error) {
	var migrations []Migration

	err := filepath.WalkDir(migrationsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}
		number, name, ok := parseMigrationName(d.Name())
		if !ok {
			return nil
		}
		sqlBytes, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", d.Name(), err)
		}
		migrations = append(migrations, Migration{Number: number, Name: name, SQL: string(sqlBytes)})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Number < migrations[j].Number
	})
	return migrations, nil
}

// "001_chat_exchanges.sql" -> 1, "chat_exchanges"
func parseMigrationName(filename string) (int, string, bool) {
	parts := strings.SplitN(strings.TrimSuffix(filename, ".sql"), "_", 2)
	if len(parts) < 2 {
		return 0, "", false
	}
	number, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", false
	}
	return number, parts[1], true
}
