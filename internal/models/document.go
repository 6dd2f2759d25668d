package models

import "time"

// Document is the single persisted record driven through the ingestion
// pipeline. Fields of a later stage are never populated unless the fields of
// the preceding stage are: UploadedToIndex implies EmbeddedAt implies
// ExtractedText.
type Document struct {
	ID          string
	OwnerID     string
	FileName    string
	ContentType string
	BlobKey     string
	Status      Status
	Size        int64

	ExtractedText string

	ChunkCount     int
	EmbeddingModel string
	EmbeddedAt     *time.Time

	UploadedToIndex bool
	IndexUploadedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Extracted reports whether text extraction has completed.
func (d *Document) Extracted() bool {
	return d.ExtractedText != ""
}

// Embedded reports whether embedding generation has completed.
func (d *Document) Embedded() bool {
	return d.EmbeddedAt != nil
}

// Ready reports whether the document can be queried.
func (d *Document) Ready() bool {
	return d.UploadedToIndex
}

// Chunk is one retrievable slice of a document's extracted text. Offsets are
// rune offsets into the source text; Index is 0-based and contiguous.
type Chunk struct {
	Index       int    `json:"index"`
	Text        string `json:"text"`
	StartOffset int    `json:"startOffset"`
	EndOffset   int    `json:"endOffset"`
}

// EmbeddedChunk is a Chunk with its embedding vector. All vectors for one
// document share a single dimension.
type EmbeddedChunk struct {
	Chunk
	Vector []float32 `json:"vector"`
}

// RecordMetadata travels with every vector record so query results can be
// rendered without a second lookup.
type RecordMetadata struct {
	DocumentID string `json:"documentId"`
	ChunkIndex int    `json:"chunkIndex"`
	Text       string `json:"text"`
	FileName   string `json:"fileName"`
	OwnerID    string `json:"ownerId"`
}

// VectorRecord is the unit stored in the vector index. IDs are deterministic
// (documentId-chunk-index) so re-upserting identical content overwrites in
// place.
type VectorRecord struct {
	ID       string
	Vector   []float32
	Metadata RecordMetadata
}

// QueryMatch is one ranked result returned by a vector index query. Score is
// cosine similarity.
type QueryMatch struct {
	ID       string
	Score    float32
	Metadata RecordMetadata
}
