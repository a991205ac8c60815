package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"pulsechat-backend/internal/db"
)

// DatabaseSource reads the key for one service from the api_keys table.
type DatabaseSource struct {
	db      *db.DB
	service string
}

func NewDatabaseSource(database *db.DB, service string) *DatabaseSource {
	return &DatabaseSource{db: database, service: service}
}

func (ds *DatabaseSource) Token(ctx context.Context) (string, error) {
	var key string
	err := ds.db.QueryRowContext(ctx,
		`SELECT api_key FROM api_keys WHERE service_name = $1`,
		ds.service,
	).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("failed to get api key: %w", err)
	}
	if strings.TrimSpace(key) == "" {
		return "", ErrNoCredential
	}
	return key, nil
}

// Store saves or replaces the key for the service.
func (ds *DatabaseSource) Store(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("invalid key")
	}
	query := `
		INSERT INTO api_keys (service_name, api_key, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (service_name)
		DO UPDATE SET
			api_key = EXCLUDED.api_key,
			updated_at = NOW()
	`
	if _, err := ds.db.ExecContext(ctx, query, ds.service, key); err != nil {
		return fmt.Errorf("failed to save api key: %w", err)
	}
	return nil
}

func (ds *DatabaseSource) Clear(ctx context.Context) error {
	if _, err := ds.db.ExecContext(ctx, `DELETE FROM api_keys WHERE service_name = $1`, ds.service); err != nil {
		return fmt.Errorf("failed to delete api key: %w", err)
	}
	return nil
}
