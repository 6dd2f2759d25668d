package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/xhad/pdfchat/internal/models"
	"github.com/xhad/pdfchat/internal/types"
)

// DefaultBatchSize is the number of records sent per upsert call.
const DefaultBatchSize = 100

// ErrDimensionMismatch marks a record whose vector does not match the
// index's configured dimension. Checked before anything is sent upstream.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// PartialBatchError reports an upsert that failed after some batches were
// already written. Written records stay written; the whole operation can be
// retried because record ids are deterministic.
type PartialBatchError struct {
	Written int
	Total   int
	Err     error
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("vector upsert failed after %d of %d records: %v", e.Written, e.Total, e.Err)
}

func (e *PartialBatchError) Unwrap() error { return e.Err }

// Writer splits records into fixed-size batches and issues them strictly
// sequentially, so a failure report of "N of M succeeded" is meaningful.
type Writer struct {
	index     types.VectorIndex
	batchSize int
	dimension int
}

// NewWriter wraps a vector index. dimension 0 disables the proactive
// dimension check.
func NewWriter(index types.VectorIndex, batchSize, dimension int) *Writer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Writer{index: index, batchSize: batchSize, dimension: dimension}
}

// Upsert writes all records into the namespace and returns the count
// actually written. On a batch failure it aborts immediately: earlier
// batches remain written and the error carries the counts.
func (w *Writer) Upsert(ctx context.Context, namespace string, records []models.VectorRecord) (int, error) {
	if w.dimension > 0 {
		for _, record := range records {
			if len(record.Vector) != w.dimension {
				return 0, fmt.Errorf("record %s has dimension %d, index expects %d: %w",
					record.ID, len(record.Vector), w.dimension, ErrDimensionMismatch)
			}
		}
	}

	written := 0
	for start := 0; start < len(records); start += w.batchSize {
		end := start + w.batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		if err := w.index.Upsert(ctx, namespace, batch); err != nil {
			return written, &PartialBatchError{Written: written, Total: len(records), Err: err}
		}
		written += len(batch)
	}
	return written, nil
}

// Query passes through to the index after an optional dimension check on the
// query vector.
func (w *Writer) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]models.QueryMatch, error) {
	if w.dimension > 0 && len(vector) != w.dimension {
		return nil, fmt.Errorf("query vector has dimension %d, index expects %d: %w",
			len(vector), w.dimension, ErrDimensionMismatch)
	}
	return w.index.Query(ctx, namespace, vector, topK)
}
