package research

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) SaveDraft(ctx context.Context, d *Draft) error {
	competitors, err := json.Marshal(nonNil(d.Competitors))
	if err != nil {
		return fmt.Errorf("marshal competitors: %w", err)
	}
	web, err := json.Marshal(d.WebResults)
	if err != nil {
		return fmt.Errorf("marshal web results: %w", err)
	}
	docs, err := json.Marshal(d.DocChunks)
	if err != nil {
		return fmt.Errorf("marshal doc chunks: %w", err)
	}
	citations, err := json.Marshal(nonNil(d.Citations))
	if err != nil {
		return fmt.Errorf("marshal citations: %w", err)
	}

	query := `INSERT INTO drafts (id, query, industry, competitors, draft_markdown, web_results, doc_chunks, citations, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = r.db.ExecContext(ctx, query, d.ID, d.Query, d.Industry, competitors, d.DraftMarkdown, web, docs, citations, d.CreatedAt)
	return err
}

func (r *PostgresRepo) GetDraft(ctx context.Context, id string) (*Draft, error) {
	d := &Draft{}
	var industry sql.NullString
	var competitors, web, docs, citations []byte

	query := `SELECT id, query, industry, competitors, draft_markdown, web_results, doc_chunks, citations, created_at FROM drafts WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&d.ID, &d.Query, &industry, &competitors, &d.DraftMarkdown, &web, &docs, &citations, &d.CreatedAt)
	if err != nil {
		return nil, err
	}

	if industry.Valid {
		d.Industry = &industry.String
	}
	for _, f := range []struct {
		raw []byte
		dst interface{}
	}{
		{competitors, &d.Competitors},
		{web, &d.WebResults},
		{docs, &d.DocChunks},
		{citations, &d.Citations},
	} {
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("decode draft %s: %w", id, err)
		}
	}
	return d, nil
}

func (r *PostgresRepo) SaveFeedback(ctx context.Context, f *Feedback) error {
	query := `INSERT INTO feedback (draft_id, edited_markdown, final_markdown, usefulness_score, comments) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, query, f.DraftID, f.EditedMarkdown, f.FinalMarkdown, f.UsefulnessScore, f.Comments)
	return err
}

func (r *PostgresRepo) CountDrafts(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM drafts`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
