package pipeline

import (
	"context"
	"errors"
	"log"

	"github.com/xhad/pdfchat/internal/models"
	"github.com/xhad/pdfchat/internal/types"
	"github.com/xhad/pdfchat/pkg/llm"
)

const (
	// DefaultTopK is the number of nearest records requested per question.
	DefaultTopK = 5
	// DefaultScoreThreshold filters retrieved matches by similarity.
	DefaultScoreThreshold = 0.7

	noMatchMessage      = "I could not find any relevant information in the selected document to answer your question."
	lowRelevanceMessage = "I could not find sufficiently relevant information in the document to answer your question."
)

// vectorQuerier is the slice of the index contract the query pipeline needs.
type vectorQuerier interface {
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]models.QueryMatch, error)
}

type QueryConfig struct {
	TopK           int
	ScoreThreshold float32
}

// Query answers free-form questions about an ingested document: embed the
// question, retrieve from the document's namespace, filter by relevance and
// stream a grounded answer. It never mutates the document.
type Query struct {
	docs      types.DocumentStore
	embedder  *llm.Embedder
	index     vectorQuerier
	chat      types.ChatStreamer
	topK      int
	threshold float32
}

func NewQuery(docs types.DocumentStore, embedder *llm.Embedder, index vectorQuerier, chat types.ChatStreamer, config QueryConfig) *Query {
	if config.TopK <= 0 {
		config.TopK = DefaultTopK
	}
	if config.ScoreThreshold <= 0 {
		config.ScoreThreshold = DefaultScoreThreshold
	}
	return &Query{
		docs:      docs,
		embedder:  embedder,
		index:     index,
		chat:      chat,
		topK:      config.TopK,
		threshold: config.ScoreThreshold,
	}
}

// Answer returns a finite event stream for one question. The stream carries
// token and error events and terminates with exactly one done event, which
// is always last. A new question needs a fresh call.
func (q *Query) Answer(ctx context.Context, documentID, ownerID, question string) <-chan models.Event {
	events := make(chan models.Event)

	go func() {
		defer close(events)

		emit := func(ev models.Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		// The terminal event is sent on every exit path, including
		// mid-pipeline failures. A cancelled consumer stops reading, so
		// sending is abandoned once the context is gone.
		defer emit(models.Done())

		q.run(ctx, documentID, ownerID, question, emit)
	}()

	return events
}

func (q *Query) run(ctx context.Context, documentID, ownerID, question string, emit func(models.Event) bool) {
	if question == "" || documentID == "" {
		emit(models.Error("Missing question or documentId"))
		return
	}

	doc, err := q.docs.Get(ctx, documentID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			emit(models.Error("Document not found"))
		} else {
			emit(models.Error(classifyUpstream("document lookup", err).UserMessage()))
		}
		return
	}
	if doc.OwnerID != ownerID {
		emit(models.Error("Document not found"))
		return
	}

	if !doc.Ready() {
		emit(models.Error("Document has not been vectorized yet. Please vectorize the document first."))
		return
	}

	vector, err := q.embedder.EmbedQuery(ctx, question)
	if err != nil {
		emit(models.Error(classifyUpstream("question embedding", err).UserMessage()))
		return
	}

	matches, err := q.index.Query(ctx, documentID, vector, q.topK)
	if err != nil {
		emit(models.Error(classifyUpstream("vector query", err).UserMessage()))
		return
	}

	if len(matches) == 0 {
		emit(models.Token(noMatchMessage))
		return
	}

	relevant := matches[:0:0]
	for _, match := range matches {
		if match.Score > q.threshold {
			relevant = append(relevant, match)
		}
	}
	if len(relevant) == 0 {
		emit(models.Token(lowRelevanceMessage))
		return
	}

	log.Printf("query on document %s: %d of %d matches above threshold", documentID, len(relevant), len(matches))

	prompt := buildPrompt(doc.FileName, buildContext(relevant), question)

	err = q.chat.Stream(ctx, prompt, func(token string) error {
		if !emit(models.Token(token)) {
			return context.Canceled
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		emit(models.Error(classifyUpstream("answer generation", err).UserMessage()))
	}
}
