package settings

import (
	"context"
	"database/sql"
	"errors"
)

// singletonID is the only row the settings table holds.
const singletonID = 1

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// Get reads the stored settings. A missing row reads as empty settings.
func (r *PostgresRepo) Get(ctx context.Context) (*Settings, error) {
	s := &Settings{ID: singletonID}
	query := `SELECT max_web_results, max_doc_chunks, gemini_api_key, tavily_api_key FROM settings WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, singletonID).Scan(&s.MaxWebResults, &s.MaxDocChunks, &s.GeminiAPIKey, &s.TavilyAPIKey)
	if errors.Is(err, sql.ErrNoRows) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepo) Update(ctx context.Context, s *Settings) error {
	query := `
		INSERT INTO settings (id, max_web_results, max_doc_chunks, gemini_api_key, tavily_api_key, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			max_web_results = EXCLUDED.max_web_results,
			max_doc_chunks = EXCLUDED.max_doc_chunks,
			gemini_api_key = EXCLUDED.gemini_api_key,
			tavily_api_key = EXCLUDED.tavily_api_key,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.ExecContext(ctx, query, singletonID, s.MaxWebResults, s.MaxDocChunks, s.GeminiAPIKey, s.TavilyAPIKey)
	return err
}
