package document

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"marketlens/internal/indexer"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) IsCommitted(ctx context.Context, docID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM documents WHERE doc_id = $1)`
	err := r.db.QueryRowContext(ctx, query, docID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Commit upserts the manifest row once all of a document's chunks are stored.
func (r *PostgresRepo) Commit(ctx context.Context, e indexer.Entry) error {
	query := `INSERT INTO documents (doc_id, source, path, checksum, pages, chunks) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (doc_id) DO UPDATE SET source = EXCLUDED.source, path = EXCLUDED.path, checksum = EXCLUDED.checksum,
		pages = EXCLUDED.pages, chunks = EXCLUDED.chunks, indexed_at = NOW()`
	_, err := r.db.ExecContext(ctx, query, e.DocID, e.Source, e.Path, e.Checksum, e.Pages, e.Chunks)
	return err
}

// Committed reports which of ids have a manifest row.
func (r *PostgresRepo) Committed(ctx context.Context, ids []string) (map[string]bool, error) {
	out := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `SELECT doc_id FROM documents WHERE doc_id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// Superseded lists the other committed versions of source.
func (r *PostgresRepo) Superseded(ctx context.Context, source, docID string) ([]string, error) {
	query := `SELECT doc_id FROM documents WHERE source = $1 AND doc_id <> $2`
	rows, err := r.db.QueryContext(ctx, query, source, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PostgresRepo) List(ctx context.Context) ([]Document, error) {
	query := `SELECT doc_id, source, path, checksum, pages, chunks, indexed_at FROM documents ORDER BY source ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.DocID, &d.Source, &d.Path, &d.Checksum, &d.Pages, &d.Chunks, &d.IndexedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, docID string) (*Document, error) {
	d := &Document{}
	query := `SELECT doc_id, source, path, checksum, pages, chunks, indexed_at FROM documents WHERE doc_id = $1`
	err := r.db.QueryRowContext(ctx, query, docID).Scan(&d.DocID, &d.Source, &d.Path, &d.Checksum, &d.Pages, &d.Chunks, &d.IndexedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *PostgresRepo) Delete(ctx context.Context, docID string) error {
	query := `DELETE FROM documents WHERE doc_id = $1`
	_, err := r.db.ExecContext(ctx, query, docID)
	return err
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM documents`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}
