package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/pdfchat/internal/models"
	"github.com/xhad/pdfchat/pkg/store"
)

// recordingIndex captures batch sizes and can fail a specific batch.
type recordingIndex struct {
	batches   [][]models.VectorRecord
	failBatch int // 1-based; 0 disables
}

func (r *recordingIndex) Upsert(ctx context.Context, namespace string, records []models.VectorRecord) error {
	r.batches = append(r.batches, records)
	if r.failBatch > 0 && len(r.batches) == r.failBatch {
		return errors.New("upstream unavailable")
	}
	return nil
}

func (r *recordingIndex) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]models.QueryMatch, error) {
	return nil, nil
}

func (r *recordingIndex) Close() {}

func makeRecords(documentID string, n, dim int) []models.VectorRecord {
	records := make([]models.VectorRecord, n)
	for i := range records {
		records[i] = models.VectorRecord{
			ID:     fmt.Sprintf("%s-chunk-%d", documentID, i),
			Vector: make([]float32, dim),
			Metadata: models.RecordMetadata{
				DocumentID: documentID,
				ChunkIndex: i,
			},
		}
	}
	return records
}

func TestWriter_BatchesSequentially(t *testing.T) {
	index := &recordingIndex{}
	w := store.NewWriter(index, 100, 0)

	written, err := w.Upsert(context.Background(), "doc-1", makeRecords("doc-1", 250, 4))
	require.NoError(t, err)
	assert.Equal(t, 250, written)

	require.Len(t, index.batches, 3)
	assert.Len(t, index.batches[0], 100)
	assert.Len(t, index.batches[1], 100)
	assert.Len(t, index.batches[2], 50)

	// Batches arrive in record order.
	assert.Equal(t, "doc-1-chunk-0", index.batches[0][0].ID)
	assert.Equal(t, "doc-1-chunk-100", index.batches[1][0].ID)
	assert.Equal(t, "doc-1-chunk-200", index.batches[2][0].ID)
}

func TestWriter_AbortsOnBatchFailure(t *testing.T) {
	index := &recordingIndex{failBatch: 2}
	w := store.NewWriter(index, 100, 0)

	written, err := w.Upsert(context.Background(), "doc-1", makeRecords("doc-1", 250, 4))
	require.Error(t, err)

	var partial *store.PartialBatchError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 100, partial.Written)
	assert.Equal(t, 250, partial.Total)
	assert.Equal(t, 100, written)

	// No batches after the failing one were sent.
	assert.Len(t, index.batches, 2)
}

func TestWriter_DimensionMismatchFailsFast(t *testing.T) {
	index := &recordingIndex{}
	w := store.NewWriter(index, 100, 1536)

	written, err := w.Upsert(context.Background(), "doc-1", makeRecords("doc-1", 5, 768))
	require.ErrorIs(t, err, store.ErrDimensionMismatch)
	assert.Zero(t, written)
	assert.Empty(t, index.batches)

	_, err = w.Query(context.Background(), "doc-1", make([]float32, 768), 5)
	assert.ErrorIs(t, err, store.ErrDimensionMismatch)
}

func TestMemoryIndex_IdempotentReupsert(t *testing.T) {
	ctx := context.Background()
	index := store.NewMemoryIndex()

	records := makeRecords("doc-1", 3, 2)
	for i := range records {
		records[i].Vector = []float32{float32(i), 1}
	}

	require.NoError(t, index.Upsert(ctx, "doc-1", records))
	require.NoError(t, index.Upsert(ctx, "doc-1", records))

	assert.Equal(t, 3, index.Count("doc-1"))

	matches, err := index.Query(ctx, "doc-1", []float32{0, 1}, 10)
	require.NoError(t, err)
	assert.Len(t, matches, 3)

	// Exactly one logical record per id.
	seen := make(map[string]int)
	for _, m := range matches {
		seen[m.ID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "id %s duplicated", id)
	}
}

func TestMemoryIndex_NamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	index := store.NewMemoryIndex()

	require.NoError(t, index.Upsert(ctx, "doc-a", makeRecords("doc-a", 2, 2)))
	require.NoError(t, index.Upsert(ctx, "doc-b", makeRecords("doc-b", 4, 2)))

	matches, err := index.Query(ctx, "doc-a", []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
	for _, m := range matches {
		assert.Equal(t, "doc-a", m.Metadata.DocumentID)
	}
}

func TestMemoryIndex_RankedBySimilarity(t *testing.T) {
	ctx := context.Background()
	index := store.NewMemoryIndex()

	records := []models.VectorRecord{
		{ID: "far", Vector: []float32{-1, 0}},
		{ID: "near", Vector: []float32{1, 0.01}},
		{ID: "mid", Vector: []float32{1, 1}},
	}
	require.NoError(t, index.Upsert(ctx, "ns", records))

	matches, err := index.Query(ctx, "ns", []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "near", matches[0].ID)
	assert.Equal(t, "mid", matches[1].ID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}
