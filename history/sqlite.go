// Package history archives completed turns to SQLite so operators can audit
// what the bot answered after the fact.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Turn is one archived question/answer pair.
type Turn struct {
	ID             int64
	ConversationID string
	Question       string
	Route          string
	Response       string
	Table          json.RawMessage // populated for tabular answers
	CreatedAt      time.Time
}

// SqliteStore persists turns to a SQLite database.
type SqliteStore struct {
	db        *sql.DB
	tableName string
}

// SqliteOptions configuration for the SQLite archive.
type SqliteOptions struct {
	Path      string
	TableName string // Default "turns"
}

// NewSqliteStore opens (and if needed creates) the archive database.
func NewSqliteStore(opts SqliteOptions) (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "turns"
	}

	store := &SqliteStore{db: db, tableName: tableName}
	if err := store.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// InitSchema creates the necessary table if it doesn't exist.
func (s *SqliteStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			question TEXT NOT NULL,
			route TEXT NOT NULL,
			response TEXT,
			result_table TEXT,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_conversation_id ON %s (conversation_id);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

// Append archives one turn. The turn's CreatedAt defaults to now.
func (s *SqliteStore) Append(ctx context.Context, turn Turn) error {
	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var table any
	if len(turn.Table) > 0 {
		table = string(turn.Table)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (conversation_id, question, route, response, result_table, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query,
		turn.ConversationID, turn.Question, turn.Route, turn.Response, table, createdAt); err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// List returns the archived turns of one conversation, oldest first.
func (s *SqliteStore) List(ctx context.Context, conversationID string) ([]Turn, error) {
	query := fmt.Sprintf(`
		SELECT id, conversation_id, question, route, response, result_table, created_at
		FROM %s WHERE conversation_id = ? ORDER BY id
	`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var turn Turn
		var response, table sql.NullString
		if err := rows.Scan(&turn.ID, &turn.ConversationID, &turn.Question, &turn.Route,
			&response, &table, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turn.Response = response.String
		if table.Valid {
			turn.Table = json.RawMessage(table.String)
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read turns: %w", err)
	}
	return turns, nil
}
