// Package docstore persists Document metadata, keyed by document id.
// Stage-completion updates are conditional so a stage cannot complete twice.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xhad/pdfchat/internal/models"
	"github.com/xhad/pdfchat/internal/types"
)

// PostgresStore is the pgx-backed DocumentStore.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initialize(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS documents (
			id                TEXT PRIMARY KEY,
			owner_id          TEXT NOT NULL,
			file_name         TEXT NOT NULL,
			content_type      TEXT NOT NULL,
			blob_key          TEXT NOT NULL,
			status            TEXT NOT NULL,
			size              BIGINT NOT NULL DEFAULT 0,
			extracted_text    TEXT,
			chunk_count       INTEGER NOT NULL DEFAULT 0,
			embedding_model   TEXT,
			embedded_at       TIMESTAMPTZ,
			embeddings        JSONB,
			uploaded_to_index BOOLEAN NOT NULL DEFAULT FALSE,
			index_uploaded_at TIMESTAMPTZ,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
		)`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}

	idx := `CREATE INDEX IF NOT EXISTS documents_owner_idx ON documents (owner_id)`
	if _, err := s.pool.Exec(ctx, idx); err != nil {
		return fmt.Errorf("failed to create owner index: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

const documentColumns = `
	id, owner_id, file_name, content_type, blob_key, status, size,
	COALESCE(extracted_text, ''), chunk_count, COALESCE(embedding_model, ''),
	embedded_at, uploaded_to_index, index_uploaded_at, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, doc *models.Document) error {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO documents (id, owner_id, file_name, content_type, blob_key, status, size)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		doc.ID, doc.OwnerID, doc.FileName, doc.ContentType, doc.BlobKey, string(doc.Status), doc.Size)
	if err := row.Scan(&doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)

	doc, err := scanDocument(row)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID string) ([]models.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDocument(row scannable) (*models.Document, error) {
	var doc models.Document
	var status string
	err := row.Scan(
		&doc.ID, &doc.OwnerID, &doc.FileName, &doc.ContentType, &doc.BlobKey,
		&status, &doc.Size, &doc.ExtractedText, &doc.ChunkCount,
		&doc.EmbeddingModel, &doc.EmbeddedAt, &doc.UploadedToIndex,
		&doc.IndexUploadedAt, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	doc.Status = models.Status(status)
	return &doc, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, from, to models.Status) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("illegal status transition %s -> %s: %w", from, to, types.ErrStale)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE documents SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return s.conditionalResult(ctx, id, tag.RowsAffected())
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id string, to models.Status) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(to))
	if err != nil {
		return fmt.Errorf("failed to mark document failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetProcessed(ctx context.Context, id, extractedText string, size int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents
		SET extracted_text = $2, size = $3, status = $4, updated_at = now()
		WHERE id = $1 AND status = $5`,
		id, extractedText, size, string(models.StatusProcessed), string(models.StatusParsing))
	if err != nil {
		return fmt.Errorf("failed to store extracted text: %w", err)
	}
	return s.conditionalResult(ctx, id, tag.RowsAffected())
}

// SetEmbeddings commits only if embeddings have not been generated yet; a
// racing second call observes zero rows updated.
func (s *PostgresStore) SetEmbeddings(ctx context.Context, id string, chunks []models.EmbeddedChunk, modelID string) error {
	payload, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("failed to encode embeddings: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE documents
		SET embeddings = $2, chunk_count = $3, embedding_model = $4,
		    embedded_at = now(), uploaded_to_index = FALSE, updated_at = now()
		WHERE id = $1 AND embedded_at IS NULL AND extracted_text IS NOT NULL`,
		id, payload, len(chunks), modelID)
	if err != nil {
		return fmt.Errorf("failed to store embeddings: %w", err)
	}
	return s.conditionalResult(ctx, id, tag.RowsAffected())
}

func (s *PostgresStore) Embeddings(ctx context.Context, id string) ([]models.EmbeddedChunk, error) {
	var payload []byte
	row := s.pool.QueryRow(ctx, `SELECT embeddings FROM documents WHERE id = $1`, id)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read embeddings: %w", err)
	}
	if len(payload) == 0 {
		return nil, nil
	}

	var chunks []models.EmbeddedChunk
	if err := json.Unmarshal(payload, &chunks); err != nil {
		return nil, fmt.Errorf("failed to decode embeddings: %w", err)
	}
	return chunks, nil
}

func (s *PostgresStore) MarkIndexed(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE documents
		SET uploaded_to_index = TRUE, index_uploaded_at = now(), updated_at = now()
		WHERE id = $1 AND uploaded_to_index = FALSE AND embedded_at IS NOT NULL`,
		id)
	if err != nil {
		return fmt.Errorf("failed to mark document indexed: %w", err)
	}
	return s.conditionalResult(ctx, id, tag.RowsAffected())
}

// conditionalResult distinguishes a missing row from a failed precondition.
func (s *PostgresStore) conditionalResult(ctx context.Context, id string, affected int64) error {
	if affected > 0 {
		return nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check document existence: %w", err)
	}
	if !exists {
		return types.ErrNotFound
	}
	return types.ErrStale
}
