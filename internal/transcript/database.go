package transcript

import (
	"context"
	"fmt"

	"pulsechat-backend/internal/db"
)

// DatabaseStore persists exchanges in the chat_exchanges table.
type DatabaseStore struct {
	db *db.DB
}

func NewDatabaseStore(database *db.DB) *DatabaseStore {
	return &DatabaseStore{db: database}
}

func (ds *DatabaseStore) Save(ctx context.Context, sessionID string, ex Exchange) error {
	if sessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	query := `
		INSERT INTO chat_exchanges (session_id, user_text, ai_text, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := ds.db.ExecContext(ctx, query, sessionID, ex.User, ex.AI, ex.Timestamp.UTC()); err != nil {
		return fmt.Errorf("failed to save exchange: %w", err)
	}
	return nil
}

// Load returns the session's exchanges in insertion order.
func (ds *DatabaseStore) Load(ctx context.Context, sessionID string) ([]Exchange, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	query := `
		SELECT user_text, ai_text, created_at
		FROM chat_exchanges
		WHERE session_id = $1
		ORDER BY id ASC
	`
	rows, err := ds.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load exchanges: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var ex Exchange
		if err := rows.Scan(&ex.User, &ex.AI, &ex.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan exchange: %w", err)
		}
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load exchanges: %w", err)
	}
	return out, nil
}

func (ds *DatabaseStore) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if _, err := ds.db.ExecContext(ctx, `DELETE FROM chat_exchanges WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to delete exchanges: %w", err)
	}
	return nil
}
