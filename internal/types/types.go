package types

import (
	"context"
	"errors"
	"time"

	"github.com/xhad/pdfchat/internal/models"
)

// Sentinel errors shared by store implementations.
var (
	// ErrNotFound means no document exists for the given id (or owner).
	ErrNotFound = errors.New("document not found")
	// ErrStale means a conditional update matched no row because the stored
	// precondition no longer holds (stage already completed, status moved on).
	ErrStale = errors.New("document state changed since read")
)

// DocumentStore is the metadata store consumed by the pipeline, keyed by
// document id. Stage-completion writes are conditional: they commit only if
// the stored precondition still holds, so two racing callers cannot both
// succeed.
type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, id string) (*models.Document, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Document, error)

	// UpdateStatus transitions from -> to, validated against the lifecycle
	// and conditional on the stored status still being from.
	UpdateStatus(ctx context.Context, id string, from, to models.Status) error

	// MarkFailed records a terminal failure status unconditionally.
	MarkFailed(ctx context.Context, id string, to models.Status) error

	// SetProcessed stores the extracted text and size and moves the document
	// from parsing to processed.
	SetProcessed(ctx context.Context, id, extractedText string, size int64) error

	// SetEmbeddings persists the full embedded chunk set plus chunk count,
	// model id and embedded-at stamp. Conditional on embeddings not having
	// been generated yet.
	SetEmbeddings(ctx context.Context, id string, chunks []models.EmbeddedChunk, modelID string) error

	// Embeddings returns the persisted embedded chunk set.
	Embeddings(ctx context.Context, id string) ([]models.EmbeddedChunk, error)

	// MarkIndexed sets the uploaded-to-index flag and stamp. Conditional on
	// the flag still being false.
	MarkIndexed(ctx context.Context, id string) error
}

// BlobStore is the raw file store consumed by the pipeline via a
// get/put/delete-by-key contract.
type BlobStore interface {
	PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Stat(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, key string) error
}

// TextExtractor turns raw document bytes into plain text.
type TextExtractor interface {
	Extract(data []byte) (string, error)
}

// EmbeddingClient is the external embedding capability: ordered texts in,
// ordered fixed-dimension vectors out, same length and order.
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex is the namespace-scoped vector store. Upsert overwrites
// records with matching ids; Query returns matches ranked by descending
// similarity, metadata included.
type VectorIndex interface {
	Upsert(ctx context.Context, namespace string, records []models.VectorRecord) error
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]models.QueryMatch, error)
	Close()
}

// ChatStreamer drives the generation model in streaming mode, invoking
// onToken for every incremental fragment in arrival order.
type ChatStreamer interface {
	Stream(ctx context.Context, prompt string, onToken func(token string) error) error
}
