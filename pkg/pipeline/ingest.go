// Package pipeline coordinates the ingestion stages (extract, embed, index)
// and the retrieval-augmented query flow over the external capabilities.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/xhad/pdfchat/internal/models"
	"github.com/xhad/pdfchat/internal/types"
	"github.com/xhad/pdfchat/pkg/chunker"
	"github.com/xhad/pdfchat/pkg/extract"
	"github.com/xhad/pdfchat/pkg/llm"
	"github.com/xhad/pdfchat/pkg/store"
)

const defaultPresignExpiry = 15 * time.Minute

// Ingestor drives a document through upload, text extraction, embedding
// generation and index upload. Each stage checks its precondition before
// running and commits its completion through a conditional store update.
type Ingestor struct {
	docs          types.DocumentStore
	blobs         types.BlobStore
	chunker       *chunker.Chunker
	embedder      *llm.Embedder
	writer        *store.Writer
	presignExpiry time.Duration
}

func NewIngestor(
	docs types.DocumentStore,
	blobs types.BlobStore,
	ch *chunker.Chunker,
	embedder *llm.Embedder,
	writer *store.Writer,
) *Ingestor {
	return &Ingestor{
		docs:          docs,
		blobs:         blobs,
		chunker:       ch,
		embedder:      embedder,
		writer:        writer,
		presignExpiry: defaultPresignExpiry,
	}
}

// ChunkID is the deterministic vector record id for one chunk of a
// document. Identical content re-upserts to the same id.
func ChunkID(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s-chunk-%d", documentID, chunkIndex)
}

// authorize loads the document and verifies ownership. A missing document
// and a foreign document produce the same error.
func (in *Ingestor) authorize(ctx context.Context, documentID, ownerID string) (*models.Document, error) {
	doc, err := in.docs.Get(ctx, documentID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, &AuthorizationError{Reason: "document not found"}
		}
		return nil, classifyUpstream("document lookup", err)
	}
	if doc.OwnerID != ownerID {
		return nil, &AuthorizationError{Reason: "document not found"}
	}
	return doc, nil
}

// Document returns a document the caller owns.
func (in *Ingestor) Document(ctx context.Context, documentID, ownerID string) (*models.Document, error) {
	return in.authorize(ctx, documentID, ownerID)
}

// List returns all documents of one owner.
func (in *Ingestor) List(ctx context.Context, ownerID string) ([]models.Document, error) {
	return in.docs.ListByOwner(ctx, ownerID)
}

// CreateUpload registers the upload intent: a pending_upload document plus a
// presigned URL the caller PUTs the raw file to.
func (in *Ingestor) CreateUpload(ctx context.Context, ownerID, fileName, contentType string) (*models.Document, string, error) {
	if fileName == "" {
		return nil, "", &ValidationError{Field: "fileName", Message: "fileName is required"}
	}
	if contentType == "" {
		return nil, "", &ValidationError{Field: "contentType", Message: "contentType is required"}
	}
	if _, err := extract.ForContentType(contentType); err != nil {
		return nil, "", &ValidationError{Field: "contentType", Message: err.Error()}
	}

	doc := &models.Document{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		FileName:    fileName,
		ContentType: contentType,
		Status:      models.StatusPendingUpload,
	}
	doc.BlobKey = fmt.Sprintf("uploads/%s/%s/%s", ownerID, doc.ID, fileName)

	if err := in.docs.Create(ctx, doc); err != nil {
		return nil, "", classifyUpstream("document create", err)
	}

	uploadURL, err := in.blobs.PresignPut(ctx, doc.BlobKey, contentType, in.presignExpiry)
	if err != nil {
		return nil, "", classifyUpstream("presign upload", err)
	}
	return doc, uploadURL, nil
}

// FinalizeUpload fetches the uploaded file, extracts its text and moves the
// document to processed. Extraction failures end in failed_parsing; any
// other mid-stage failure ends in failed_processing.
func (in *Ingestor) FinalizeUpload(ctx context.Context, documentID, ownerID string) (*models.Document, error) {
	doc, err := in.authorize(ctx, documentID, ownerID)
	if err != nil {
		return nil, err
	}
	if doc.Status != models.StatusPendingUpload {
		return nil, &PreconditionError{Stage: "finalize", Reason: "upload already finalized"}
	}

	// Precondition validated; from here on failures mutate status.
	if err := in.finalize(ctx, doc); err != nil {
		return nil, err
	}
	return in.docs.Get(ctx, documentID)
}

func (in *Ingestor) finalize(ctx context.Context, doc *models.Document) error {
	fail := func(status models.Status, err error) error {
		if markErr := in.docs.MarkFailed(ctx, doc.ID, status); markErr != nil {
			log.Printf("failed to record %s for document %s: %v", status, doc.ID, markErr)
		}
		return err
	}

	size, err := in.blobs.Stat(ctx, doc.BlobKey)
	if err != nil {
		return fail(models.StatusFailedProcessing, classifyUpstream("blob stat", err))
	}

	if err := in.docs.UpdateStatus(ctx, doc.ID, models.StatusPendingUpload, models.StatusUploaded); err != nil {
		if errors.Is(err, types.ErrStale) {
			return &PreconditionError{Stage: "finalize", Reason: "upload already finalized"}
		}
		return fail(models.StatusFailedProcessing, classifyUpstream("status update", err))
	}

	data, err := in.blobs.Get(ctx, doc.BlobKey)
	if err != nil {
		return fail(models.StatusFailedProcessing, classifyUpstream("blob fetch", err))
	}

	if err := in.docs.UpdateStatus(ctx, doc.ID, models.StatusUploaded, models.StatusParsing); err != nil {
		return fail(models.StatusFailedProcessing, classifyUpstream("status update", err))
	}

	extractor, err := extract.ForContentType(doc.ContentType)
	if err != nil {
		return fail(models.StatusFailedProcessing, err)
	}

	text, err := extractor.Extract(data)
	if err != nil {
		return fail(models.StatusFailedParsing, fmt.Errorf("text extraction failed: %w", err))
	}

	if err := in.docs.SetProcessed(ctx, doc.ID, text, size); err != nil {
		return fail(models.StatusFailedProcessing, classifyUpstream("document update", err))
	}

	log.Printf("document %s processed: %d bytes, %d characters extracted", doc.ID, size, len(text))
	return nil
}

// GenerateEmbeddings chunks the extracted text and embeds every chunk.
// All-or-nothing: a failed embedding call leaves the document exactly as it
// was. Returns the chunk count on success.
func (in *Ingestor) GenerateEmbeddings(ctx context.Context, documentID, ownerID string) (int, error) {
	doc, err := in.authorize(ctx, documentID, ownerID)
	if err != nil {
		return 0, err
	}
	if !doc.Extracted() {
		return 0, &PreconditionError{Stage: "embed", Reason: "no extracted text available for this document"}
	}
	if doc.Embedded() {
		return 0, &PreconditionError{Stage: "embed", Reason: "embeddings have already been generated"}
	}

	chunks := in.chunker.Chunk(doc.ExtractedText)
	if len(chunks) == 0 {
		return 0, &PreconditionError{Stage: "embed", Reason: "document has no text to embed"}
	}

	embedded, err := in.embedder.EmbedChunks(ctx, chunks)
	if err != nil {
		return 0, classifyUpstream("embedding generation", err)
	}

	if err := in.docs.SetEmbeddings(ctx, documentID, embedded, in.embedder.Model()); err != nil {
		if errors.Is(err, types.ErrStale) {
			return 0, &PreconditionError{Stage: "embed", Reason: "embeddings have already been generated"}
		}
		return 0, classifyUpstream("document update", err)
	}

	log.Printf("document %s embedded: %d chunks, model %s", documentID, len(chunks), in.embedder.Model())
	return len(chunks), nil
}

// UploadToIndex writes the embedded chunks into the document's namespace in
// sequential batches. Batches written before a failure stay written; the
// completion flag is set only on full success, so the whole operation can
// be retried.
func (in *Ingestor) UploadToIndex(ctx context.Context, documentID, ownerID string) (int, error) {
	doc, err := in.authorize(ctx, documentID, ownerID)
	if err != nil {
		return 0, err
	}
	if !doc.Embedded() {
		return 0, &PreconditionError{Stage: "index", Reason: "no embeddings available; generate embeddings first"}
	}
	if doc.UploadedToIndex {
		return 0, &PreconditionError{Stage: "index", Reason: "embeddings have already been uploaded to the index"}
	}

	chunks, err := in.docs.Embeddings(ctx, documentID)
	if err != nil {
		return 0, classifyUpstream("embeddings read", err)
	}

	records := make([]models.VectorRecord, len(chunks))
	for i, chunk := range chunks {
		records[i] = models.VectorRecord{
			ID:     ChunkID(documentID, chunk.Index),
			Vector: chunk.Vector,
			Metadata: models.RecordMetadata{
				DocumentID: documentID,
				ChunkIndex: chunk.Index,
				Text:       chunk.Text,
				FileName:   doc.FileName,
				OwnerID:    doc.OwnerID,
			},
		}
	}

	written, err := in.writer.Upsert(ctx, documentID, records)
	if err != nil {
		// The flag stays false; re-sending already written batches is a
		// no-op overwrite.
		return written, classifyUpstream("vector upsert", err)
	}

	if err := in.docs.MarkIndexed(ctx, documentID); err != nil {
		if errors.Is(err, types.ErrStale) {
			return written, &PreconditionError{Stage: "index", Reason: "embeddings have already been uploaded to the index"}
		}
		return written, classifyUpstream("document update", err)
	}

	log.Printf("document %s indexed: %d vectors in namespace %s", documentID, written, documentID)
	return written, nil
}
