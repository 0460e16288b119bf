package aigen

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/postloom/aigen/observability"
)

// PostgresHistoryStore is a Postgres implementation of HistoryStore. When an
// embedder is configured it additionally records a prompt embedding per
// entry and supports similar-prompt lookup via pgvector.
type PostgresHistoryStore struct {
	db       *sql.DB
	embedder PromptEmbedder
	logger   observability.Logger
}

// PostgresHistoryStoreConfig holds the configuration for the Postgres store.
type PostgresHistoryStoreConfig struct {
	DB *sql.DB

	// Embedder is optional. When nil, entries are stored without embeddings
	// and SearchSimilarPrompts returns an error.
	Embedder PromptEmbedder

	Logger observability.Logger
}

// NewPostgresHistoryStore creates a new instance of PostgresHistoryStore.
// The caller owns the *sql.DB lifecycle.
func NewPostgresHistoryStore(config PostgresHistoryStoreConfig) (*PostgresHistoryStore, error) {
	if config.DB == nil {
		return nil, fmt.Errorf("postgres history store requires a database handle")
	}
	if config.Logger == nil {
		config.Logger = observability.NewNullLogger()
	}

	return &PostgresHistoryStore{
		db:       config.DB,
		embedder: config.Embedder,
		logger:   config.Logger,
	}, nil
}

// InitSchema creates the history table and indexes if they do not exist.
// The vector column is created only when an embedder is configured.
func (s *PostgresHistoryStore) InitSchema(ctx context.Context) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS generation_history (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		prompt TEXT NOT NULL,
		generated_content TEXT NOT NULL,
		template_id TEXT,
		template_name TEXT,
		variables JSONB,
		model TEXT NOT NULL,
		provider TEXT NOT NULL,
		usage_data JSONB,
		created_at TIMESTAMPTZ NOT NULL
	);`

	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create generation_history table: %w", err)
	}

	indexSQL := `CREATE INDEX IF NOT EXISTS idx_generation_history_user_created
		ON generation_history (user_id, created_at DESC);`
	if _, err := s.db.ExecContext(ctx, indexSQL); err != nil {
		return fmt.Errorf("failed to create history index: %w", err)
	}

	if s.embedder != nil {
		if _, err := s.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector;`); err != nil {
			return fmt.Errorf("failed to enable pgvector extension: %w", err)
		}
		alterSQL := `ALTER TABLE generation_history ADD COLUMN IF NOT EXISTS prompt_embedding vector(1536);`
		if _, err := s.db.ExecContext(ctx, alterSQL); err != nil {
			return fmt.Errorf("failed to add embedding column: %w", err)
		}
	}

	return nil
}

// Insert records a new history entry. The prompt embedding is computed
// best-effort: an embedder failure is logged and the entry is stored without
// a vector.
func (s *PostgresHistoryStore) Insert(ctx context.Context, entry HistoryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	variables, usage, err := marshalEntryColumns(entry)
	if err != nil {
		return err
	}

	var embedding interface{}
	if s.embedder != nil {
		vec, embErr := s.embedder.Embed(ctx, entry.Prompt)
		if embErr != nil {
			s.logger.WithErr(embErr).Warn("prompt embedding failed, storing entry without vector")
		} else {
			embedding = pgvector.NewVector(vec)
		}
	}

	insertSQL := `INSERT INTO generation_history
		(id, user_id, prompt, generated_content, template_id, template_name, variables, model, provider, usage_data, created_at, prompt_embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if s.embedder == nil {
		insertSQL = `INSERT INTO generation_history
		(id, user_id, prompt, generated_content, template_id, template_name, variables, model, provider, usage_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	}

	args := []interface{}{
		entry.ID.String(), entry.UserID, entry.Prompt, entry.Content,
		entry.TemplateID, entry.TemplateName, variables,
		entry.ModelID, entry.Provider, usage, entry.CreatedAt,
	}
	if s.embedder != nil {
		args = append(args, embedding)
	}

	if _, err := s.db.ExecContext(ctx, insertSQL, args...); err != nil {
		return fmt.Errorf("failed to insert history entry (id: %s): %w", entry.ID, err)
	}

	return nil
}

// ListByUser returns the user's entries ordered by creation time descending.
func (s *PostgresHistoryStore) ListByUser(ctx context.Context, userID string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = HistoryLimit
	}

	querySQL := `SELECT id, user_id, prompt, generated_content, template_id, template_name, variables, model, provider, usage_data, created_at
		FROM generation_history WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

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
func (s *PostgresHistoryStore) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM generation_history WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count history for user %s: %w", userID, err)
	}
	return count, nil
}

// DeleteByUser removes all entries for the user.
func (s *PostgresHistoryStore) DeleteByUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM generation_history WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete history for user %s: %w", userID, err)
	}
	return nil
}

// SearchSimilarPrompts returns the user's entries whose prompt embeddings
// are closest to the given prompt, nearest first. Requires an embedder.
func (s *PostgresHistoryStore) SearchSimilarPrompts(ctx context.Context, userID, prompt string, limit int) ([]HistoryEntry, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("similar-prompt search requires an embedder")
	}
	if limit <= 0 {
		limit = 10
	}

	vec, err := s.embedder.Embed(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query prompt: %w", err)
	}

	querySQL := `SELECT id, user_id, prompt, generated_content, template_id, template_name, variables, model, provider, usage_data, created_at
		FROM generation_history
		WHERE user_id = $1 AND prompt_embedding IS NOT NULL
		ORDER BY prompt_embedding <-> $2 LIMIT $3`

	rows, err := s.db.QueryContext(ctx, querySQL, userID, pgvector.NewVector(vec), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar prompts for user %s: %w", userID, err)
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
		return nil, fmt.Errorf("error iterating similarity rows for user %s: %w", userID, err)
	}

	return entries, nil
}
