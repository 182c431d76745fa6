package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storepulse/chatbot/genie"
)

// DBPool defines the interface for database connection pool
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore persists conversation tokens in Postgres, scoped to one
// conversation id. Suitable for multi-instance deployments.
type PostgresStore struct {
	pool           DBPool
	tableName      string
	conversationID string
}

// PostgresOptions configuration for the Postgres store.
type PostgresOptions struct {
	ConnString     string
	TableName      string // Default "session_tokens"
	ConversationID string
}

// NewPostgresStore creates a store backed by a fresh connection pool.
func NewPostgresStore(ctx context.Context, opts PostgresOptions) (*PostgresStore, error) {
	if opts.ConversationID == "" {
		return nil, errors.New("conversation id must not be empty")
	}
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return NewPostgresStoreWithPool(pool, opts.TableName, opts.ConversationID), nil
}

// NewPostgresStoreWithPool creates a store with an existing pool.
// Useful for testing with mocks.
func NewPostgresStoreWithPool(pool DBPool, tableName, conversationID string) *PostgresStore {
	if tableName == "" {
		tableName = "session_tokens"
	}
	return &PostgresStore{
		pool:           pool,
		tableName:      tableName,
		conversationID: conversationID,
	}
}

// InitSchema creates the necessary table if it doesn't exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			conversation_id TEXT NOT NULL,
			backend TEXT NOT NULL,
			token JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (conversation_id, backend)
		);
	`, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, backend string) (genie.Token, bool, error) {
	var token genie.Token
	query := fmt.Sprintf(`SELECT token FROM %s WHERE conversation_id = $1 AND backend = $2`, s.tableName)

	var data []byte
	err := s.pool.QueryRow(ctx, query, s.conversationID, backend).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return token, false, nil
	}
	if err != nil {
		return token, false, fmt.Errorf("failed to get session token: %w", err)
	}
	if err := json.Unmarshal(data, &token); err != nil {
		return token, false, fmt.Errorf("failed to unmarshal session token: %w", err)
	}
	return token, true, nil
}

// Set implements Store.
func (s *PostgresStore) Set(ctx context.Context, backend string, token genie.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal session token: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (conversation_id, backend, token, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (conversation_id, backend) DO UPDATE SET
			token = EXCLUDED.token,
			updated_at = EXCLUDED.updated_at
	`, s.tableName)

	if _, err := s.pool.Exec(ctx, query, s.conversationID, backend, data); err != nil {
		return fmt.Errorf("failed to set session token: %w", err)
	}
	return nil
}

// Clear implements Store.
func (s *PostgresStore) Clear(ctx context.Context, backend string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE conversation_id = $1 AND backend = $2`, s.tableName)
	if _, err := s.pool.Exec(ctx, query, s.conversationID, backend); err != nil {
		return fmt.Errorf("failed to clear session token: %w", err)
	}
	return nil
}

// ClearAll implements Store.
func (s *PostgresStore) ClearAll(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE conversation_id = $1`, s.tableName)
	if _, err := s.pool.Exec(ctx, query, s.conversationID); err != nil {
		return fmt.Errorf("failed to clear session tokens: %w", err)
	}
	return nil
}
