package docstore

import (
	"context"
	"sync"
	"time"

	"github.com/xhad/pdfchat/internal/models"
	"github.com/xhad/pdfchat/internal/types"
)

// MemoryStore is an in-memory DocumentStore with the same conditional-update
// semantics as the Postgres store. Used by tests and single-process setups.
type MemoryStore struct {
	mu         sync.RWMutex
	docs       map[string]*models.Document
	embeddings map[string][]models.EmbeddedChunk
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:       make(map[string]*models.Document),
		embeddings: make(map[string][]models.EmbeddedChunk),
	}
}

func (s *MemoryStore) Create(ctx context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	clone := *doc
	clone.CreatedAt = now
	clone.UpdatedAt = now
	s.docs[doc.ID] = &clone
	*doc = clone
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	clone := *doc
	return &clone, nil
}

func (s *MemoryStore) ListByOwner(ctx context.Context, ownerID string) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Document
	for _, doc := range s.docs {
		if doc.OwnerID == ownerID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, from, to models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return types.ErrNotFound
	}
	if !from.CanTransition(to) {
		return types.ErrStale
	}
	if doc.Status != from {
		return types.ErrStale
	}
	doc.Status = to
	doc.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) MarkFailed(ctx context.Context, id string, to models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return types.ErrNotFound
	}
	doc.Status = to
	doc.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SetProcessed(ctx context.Context, id, extractedText string, size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return types.ErrNotFound
	}
	if doc.Status != models.StatusParsing {
		return types.ErrStale
	}
	doc.ExtractedText = extractedText
	doc.Size = size
	doc.Status = models.StatusProcessed
	doc.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SetEmbeddings(ctx context.Context, id string, chunks []models.EmbeddedChunk, modelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return types.ErrNotFound
	}
	if doc.EmbeddedAt != nil || !doc.Extracted() {
		return types.ErrStale
	}

	now := time.Now()
	s.embeddings[id] = append([]models.EmbeddedChunk(nil), chunks...)
	doc.ChunkCount = len(chunks)
	doc.EmbeddingModel = modelID
	doc.EmbeddedAt = &now
	doc.UploadedToIndex = false
	doc.UpdatedAt = now
	return nil
}

func (s *MemoryStore) Embeddings(ctx context.Context, id string) ([]models.EmbeddedChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.docs[id]; !ok {
		return nil, types.ErrNotFound
	}
	return append([]models.EmbeddedChunk(nil), s.embeddings[id]...), nil
}

func (s *MemoryStore) MarkIndexed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return types.ErrNotFound
	}
	if doc.UploadedToIndex || doc.EmbeddedAt == nil {
		return types.ErrStale
	}
	now := time.Now()
	doc.UploadedToIndex = true
	doc.IndexUploadedAt = &now
	doc.UpdatedAt = now
	return nil
}
