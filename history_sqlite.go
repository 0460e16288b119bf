package aigen

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/postloom/aigen/observability"
)

// SQLiteHistoryStore is a SQLite implementation of HistoryStore.
type SQLiteHistoryStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger observability.Logger
}

// NewSQLiteHistoryStore creates a new instance of SQLiteHistoryStore.
// It takes the path to the SQLite database file.
func NewSQLiteHistoryStore(databasePath string, logger observability.Logger) (*SQLiteHistoryStore, error) {
	db, err := sql.Open("sqlite3", databasePath+"?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if logger == nil {
		logger = observability.NewNullLogger()
	}

	store := &SQLiteHistoryStore{
		db:     db,
		logger: logger,
	}

	if err := store.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteHistoryStore) initSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createTableSQL := `
    CREATE TABLE IF NOT EXISTS generation_history (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        prompt TEXT NOT NULL,
        generated_content TEXT NOT NULL,
        template_id TEXT,
        template_name TEXT,
        variables TEXT,
        model TEXT NOT NULL,
        provider TEXT NOT NULL,
        usage_data TEXT,
        created_at DATETIME NOT NULL
    );`

	createUserIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_generation_history_user_id ON generation_history (user_id);
	`

	createTimestampIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_generation_history_created_at ON generation_history (created_at);
	`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for schema init: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create generation_history table: %w", err)
	}

	if _, err := tx.ExecContext(ctx, createUserIndexSQL); err != nil {
		return fmt.Errorf("failed to create user index: %w", err)
	}

	if _, err := tx.ExecContext(ctx, createTimestampIndexSQL); err != nil {
		s.logger.WithErr(err).Warn("failed to create timestamp index")
	}

	return tx.Commit()
}

// Insert records a new history entry in SQLite.
func (s *SQLiteHistoryStore) Insert(ctx context.Context, entry HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	variables, usage, err := marshalEntryColumns(entry)
	if err != nil {
		return err
	}

	insertSQL := `INSERT INTO generation_history
		(id, user_id, prompt, generated_content, template_id, template_name, variables, model, provider, usage_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, insertSQL,
		entry.ID.String(), entry.UserID, entry.Prompt, entry.Content,
		entry.TemplateID, entry.TemplateName, variables,
		entry.ModelID, entry.Provider, usage, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert history entry (id: %s): %w", entry.ID, err)
	}

	return nil
}

// ListByUser returns the user's entries ordered by creation time descending.
func (s *SQLiteHistoryStore) ListByUser(ctx context.Context, userID string, limit int) ([]HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = HistoryLimit
	}

	querySQL := `SELECT id, user_id, prompt, generated_content, template_id, template_name, variables, model, provider, usage_data, created_at
		FROM generation_history WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, querySQL, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history for user %s: %w", userID, err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		entry, err := scanHistoryRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows for user %s: %w", userID, err)
	}

	return entries, nil
}

// CountByUser returns the number of entries stored for the user.
func (s *SQLiteHistoryStore) CountByUser(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM generation_history WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count history for user %s: %w", userID, err)
	}
	return count, nil
}

// DeleteByUser removes all entries for the user.
func (s *SQLiteHistoryStore) DeleteByUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM generation_history WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete history for user %s: %w", userID, err)
	}
	return nil
}

// Close releases the database connection.
func (s *SQLiteHistoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type historyRowScanner interface {
	Scan(dest ...interface{}) error
}

func marshalEntryColumns(entry HistoryEntry) (variables, usage sql.NullString, err error) {
	if len(entry.Variables) > 0 {
		raw, merr := json.Marshal(entry.Variables)
		if merr != nil {
			return variables, usage, fmt.Errorf("failed to marshal variables: %w", merr)
		}
		variables = sql.NullString{String: string(raw), Valid: true}
	}
	if entry.Usage != nil {
		raw, merr := json.Marshal(entry.Usage)
		if merr != nil {
			return variables, usage, fmt.Errorf("failed to marshal usage data: %w", merr)
		}
		usage = sql.NullString{String: string(raw), Valid: true}
	}
	return variables, usage, nil
}

func scanHistoryRow(row historyRowScanner) (HistoryEntry, error) {
	var entry HistoryEntry
	var idStr string
	var templateID, templateName, variables, usage sql.NullString

	if err := row.Scan(&idStr, &entry.UserID, &entry.Prompt, &entry.Content,
		&templateID, &templateName, &variables,
		&entry.ModelID, &entry.Provider, &usage, &entry.CreatedAt); err != nil {
		return HistoryEntry{}, fmt.Errorf("failed to scan history row: %w", err)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("invalid history entry id %q: %w", idStr, err)
	}
	entry.ID = id
	entry.TemplateID = templateID.String
	entry.TemplateName = templateName.String
	entry.CreatedAt = entry.CreatedAt.UTC()

	if variables.Valid && variables.String != "" {
		if err := json.Unmarshal([]byte(variables.String), &entry.Variables); err != nil {
			return HistoryEntry{}, fmt.Errorf("failed to unmarshal variables for entry %s: %w", idStr, err)
		}
	}
	if usage.Valid && usage.String != "" {
		var u TokenUsage
		if err := json.Unmarshal([]byte(usage.String), &u); err != nil {
			return HistoryEntry{}, fmt.Errorf("failed to unmarshal usage data for entry %s: %w", idStr, err)
		}
		entry.Usage = &u
	}

	return entry, nil
}
