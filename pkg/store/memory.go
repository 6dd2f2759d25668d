package store

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/xhad/pdfchat/internal/models"
)

// MemoryIndex is an in-memory vector index with cosine ranking. It mirrors
// the pgvector store's contract and backs tests and single-process setups.
type MemoryIndex struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]models.VectorRecord
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{namespaces: make(map[string]map[string]models.VectorRecord)}
}

func (m *MemoryIndex) Upsert(ctx context.Context, namespace string, records []models.VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = make(map[string]models.VectorRecord)
		m.namespaces[namespace] = ns
	}
	for _, record := range records {
		ns[record.ID] = record
	}
	return nil
}

func (m *MemoryIndex) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]models.QueryMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []models.QueryMatch
	for _, record := range m.namespaces[namespace] {
		matches = append(matches, models.QueryMatch{
			ID:       record.ID,
			Score:    cosineSimilarity(vector, record.Vector),
			Metadata: record.Metadata,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Count returns the number of records stored in a namespace.
func (m *MemoryIndex) Count(namespace string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.namespaces[namespace])
}

func (m *MemoryIndex) Close() {}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
