// Package store provides the namespace-scoped vector index and the batched
// writer that feeds it. All records for one document live in a namespace
// keyed by the document id.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/pdfchat/internal/models"
)

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
}

// VectorStore is a Postgres+pgvector implementation of the vector index
// contract: upsert by deterministic id, cosine top-K query with metadata.
type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1536 // Default for OpenAI embeddings
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &VectorStore{config: config, pool: pool}
	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return vs, nil
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id          TEXT PRIMARY KEY,
			namespace   TEXT NOT NULL,
			document_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content     TEXT NOT NULL,
			file_name   TEXT NOT NULL,
			owner_id    TEXT NOT NULL,
			embedding   vector(%d)
		)`, vs.config.TableName, vs.config.VectorDim)
	if _, err = vs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createNamespaceIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_namespace_idx ON %s (namespace)`,
		vs.config.TableName, vs.config.TableName)
	if _, err = vs.pool.Exec(ctx, createNamespaceIndex); err != nil {
		return fmt.Errorf("failed to create namespace index: %w", err)
	}

	createVectorIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		vs.config.TableName, vs.config.TableName)
	if _, err = vs.pool.Exec(ctx, createVectorIndex); err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}

	return nil
}

// Upsert writes one batch of records into the namespace. Matching ids are
// overwritten in place, which makes re-sending a previously written batch a
// no-op.
func (vs *VectorStore) Upsert(ctx context.Context, namespace string, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, namespace, document_id, chunk_index, content, file_name, owner_id, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			file_name = EXCLUDED.file_name`,
		vs.config.TableName)

	for _, record := range records {
		_, err = tx.Exec(ctx, stmt,
			record.ID,
			namespace,
			record.Metadata.DocumentID,
			record.Metadata.ChunkIndex,
			record.Metadata.Text,
			record.Metadata.FileName,
			record.Metadata.OwnerID,
			pgvector.NewVector(record.Vector),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert record %s: %w", record.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Query returns the topK nearest records in the namespace by cosine
// similarity, highest first, metadata included.
func (vs *VectorStore) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]models.QueryMatch, error) {
	query := fmt.Sprintf(`
		SELECT id, document_id, chunk_index, content, file_name, owner_id,
		       1 - (embedding <=> $2) AS score
		FROM %s
		WHERE namespace = $1
		ORDER BY embedding <=> $2
		LIMIT $3`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, query, namespace, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	var matches []models.QueryMatch
	for rows.Next() {
		var m models.QueryMatch
		var score float64
		err := rows.Scan(
			&m.ID,
			&m.Metadata.DocumentID,
			&m.Metadata.ChunkIndex,
			&m.Metadata.Text,
			&m.Metadata.FileName,
			&m.Metadata.OwnerID,
			&score,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		m.Score = float32(score)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}
