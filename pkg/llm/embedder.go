package llm

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xhad/pdfchat/internal/models"
	"github.com/xhad/pdfchat/internal/types"
)

// EmbedderConfig tunes how chunk batches are sent to the embedding
// capability.
type EmbedderConfig struct {
	Model string
	// Dimension, when set, is checked against every returned vector.
	Dimension int
	// Concurrency bounds the number of in-flight embedding requests.
	Concurrency int
	// BatchSize is the number of texts per embedding request.
	BatchSize int
	// RequestsPerSecond throttles calls to respect upstream rate limits.
	// Zero disables throttling.
	RequestsPerSecond float64
}

// Embedder turns ordered chunk texts into ordered vectors. A call either
// produces a vector for every input or fails as a unit; no partial result is
// ever returned.
type Embedder struct {
	client  types.EmbeddingClient
	config  EmbedderConfig
	limiter *rate.Limiter
}

func NewEmbedder(client types.EmbeddingClient, config EmbedderConfig) *Embedder {
	if config.Concurrency <= 0 {
		config.Concurrency = 5
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 32
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}

	return &Embedder{
		client:  client,
		config:  config,
		limiter: limiter,
	}
}

// Model returns the embedding model identifier recorded on documents.
func (e *Embedder) Model() string {
	return e.config.Model
}

// EmbedChunks embeds every chunk, preserving input order. Batches are issued
// with bounded concurrency; any batch failure fails the whole call and the
// partial results are discarded.
func (e *Embedder) EmbedChunks(ctx context.Context, chunks []models.Chunk) ([]models.EmbeddedChunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(chunks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Concurrency)

	for start := 0; start < len(chunks); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		offset := start

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, chunk := range batch {
				texts[i] = chunk.Text
			}

			batchVectors, err := e.embed(ctx, texts)
			if err != nil {
				return err
			}
			for i, vector := range batchVectors {
				vectors[offset+i] = vector
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	embedded := make([]models.EmbeddedChunk, len(chunks))
	for i, chunk := range chunks {
		embedded[i] = models.EmbeddedChunk{Chunk: chunk, Vector: vectors[i]}
	}
	return embedded, nil
}

// EmbedQuery embeds a single question with the same capability and model
// used for ingestion.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	vectors, err := e.client.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(vectors))
	}
	for i, vector := range vectors {
		if e.config.Dimension > 0 && len(vector) != e.config.Dimension {
			return nil, fmt.Errorf("embedding dimension mismatch: vector %d has dimension %d, expected %d",
				i, len(vector), e.config.Dimension)
		}
	}
	return vectors, nil
}
