package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"pdfrag/internal/core/domain"
)

// DocumentRegistry keeps upload and processing state for source documents.
// It is bookkeeping only: chunk data lives in the vector index and document
// listings are always derived from there.
type DocumentRegistry struct {
	db *sql.DB
}

func NewDocumentRegistry(db *sql.DB) *DocumentRegistry {
	return &DocumentRegistry{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRegistry) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	doc_type     TEXT NOT NULL DEFAULT '',
	mime_type    TEXT NOT NULL DEFAULT '',
	storage_path TEXT NOT NULL,
	status       TEXT NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
)`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

func (r *DocumentRegistry) Create(ctx context.Context, doc *domain.Document) error {
	const query = `
INSERT INTO documents (id, name, doc_type, mime_type, storage_path, status, error, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(ctx, query,
		doc.ID, doc.Name, doc.Type, doc.MimeType, doc.StoragePath,
		string(doc.Status), doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRegistry) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	const query = `
SELECT id, name, doc_type, mime_type, storage_path, status, error, created_at, updated_at
FROM documents WHERE id = $1`

	var (
		doc    domain.Document
		status string
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID, &doc.Name, &doc.Type, &doc.MimeType, &doc.StoragePath,
		&status, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
	}
	if err != nil {
		return nil, fmt.Errorf("select document: %w", err)
	}
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

func (r *DocumentRegistry) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	const query = `
UPDATE documents SET status = $2, error = $3, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document status rows: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "update document status", fmt.Errorf("id %s", id))
	}
	return nil
}
