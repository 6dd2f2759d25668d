package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/pdfchat/pkg/chunker"
	"github.com/xhad/pdfchat/pkg/docstore"
	"github.com/xhad/pdfchat/pkg/llm"
	"github.com/xhad/pdfchat/pkg/pipeline"
	"github.com/xhad/pdfchat/pkg/store"
	"github.com/xhad/pdfchat/server"
)

const testDim = 4

type memBlob struct {
	objects map[string][]byte
}

func (b *memBlob) PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	return "https://blob.test/" + key, nil
}

func (b *memBlob) Put(ctx context.Context, key string, data []byte, contentType string) error {
	b.objects[key] = data
	return nil
}

func (b *memBlob) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return data, nil
}

func (b *memBlob) Stat(ctx context.Context, key string) (int64, error) {
	data, ok := b.objects[key]
	if !ok {
		return 0, fmt.Errorf("object %s not found", key)
	}
	return int64(len(data)), nil
}

func (b *memBlob) Delete(ctx context.Context, key string) error {
	delete(b.objects, key)
	return nil
}

type stubEmbedding struct{}

func (stubEmbedding) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = make([]float32, testDim)
		vectors[i][0] = 1
	}
	return vectors, nil
}

type stubChat struct {
	tokens []string
}

func (s *stubChat) Stream(ctx context.Context, prompt string, onToken func(string) error) error {
	for _, token := range s.tokens {
		if err := onToken(token); err != nil {
			return err
		}
	}
	return nil
}

type fixture struct {
	blobs   *memBlob
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ch, err := chunker.New(chunker.Config{ChunkSize: 50, Overlap: 10})
	require.NoError(t, err)

	docs := docstore.NewMemoryStore()
	blobs := &memBlob{objects: make(map[string][]byte)}
	index := store.NewMemoryIndex()
	embedder := llm.NewEmbedder(stubEmbedding{}, llm.EmbedderConfig{Model: "test-embed", Dimension: testDim})
	writer := store.NewWriter(index, 100, testDim)

	ingestor := pipeline.NewIngestor(docs, blobs, ch, embedder, writer)
	query := pipeline.NewQuery(docs, embedder, writer, &stubChat{tokens: []string{"Hello", " world"}}, pipeline.QueryConfig{})

	srv := server.NewServer(ingestor, query, server.NewHeaderAuth("X-User-ID"))
	return &fixture{blobs: blobs, handler: srv.Handler()}
}

func (f *fixture) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// ingest drives one document through the full lifecycle over HTTP and
// returns its id.
func (f *fixture) ingest(t *testing.T, user string, body []byte) string {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/documents/upload-url", user,
		map[string]string{"fileName": "report.txt", "contentType": "text/plain"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]string](t, rec)

	require.NoError(t, f.blobs.Put(context.Background(), created["blobKey"], body, "text/plain"))

	rec = f.do(t, http.MethodPost, "/api/documents/"+created["documentId"]+"/finalize", user, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/documents/"+created["documentId"]+"/generate-embeddings", user, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/documents/"+created["documentId"]+"/upload-to-index", user, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	return created["documentId"]
}

func TestUploadURL(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/documents/upload-url", "alice",
		map[string]string{"fileName": "report.pdf", "contentType": "application/pdf"})
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decode[map[string]string](t, rec)
	assert.NotEmpty(t, resp["documentId"])
	assert.Contains(t, resp["uploadUrl"], resp["blobKey"])
	assert.Contains(t, resp["blobKey"], "uploads/alice/")
}

func TestUploadURL_Unauthorized(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/documents/upload-url", "",
		map[string]string{"fileName": "report.pdf", "contentType": "application/pdf"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadURL_Validation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/documents/upload-url", "alice",
		map[string]string{"fileName": "a.zip", "contentType": "application/zip"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDocumentLifecycle(t *testing.T) {
	f := newFixture(t)
	id := f.ingest(t, "alice", []byte("First sentence about budgets. Second sentence about planning."))

	rec := f.do(t, http.MethodGet, "/api/documents/"+id, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	doc := decode[map[string]any](t, rec)
	assert.Equal(t, "processed", doc["status"])
	assert.Equal(t, true, doc["uploadedToIndex"])
	assert.Greater(t, doc["chunkCount"], float64(0))
}

func TestDocumentLifecycle_StageRepeatConflicts(t *testing.T) {
	f := newFixture(t)
	id := f.ingest(t, "alice", []byte("some document text"))

	for _, stage := range []string{"finalize", "generate-embeddings", "upload-to-index"} {
		rec := f.do(t, http.MethodPost, "/api/documents/"+id+"/"+stage, "alice", nil)
		assert.Equal(t, http.StatusConflict, rec.Code, stage)
	}
}

func TestDocumentAccess_ForeignUser(t *testing.T) {
	f := newFixture(t)
	id := f.ingest(t, "alice", []byte("private notes"))

	rec := f.do(t, http.MethodGet, "/api/documents/"+id, "mallory", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/documents/"+id+"/generate-embeddings", "mallory", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListDocuments(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, "alice", []byte("first document"))

	rec := f.do(t, http.MethodGet, "/api/documents", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[map[string][]map[string]any](t, rec)
	assert.Len(t, resp["documents"], 1)

	rec = f.do(t, http.MethodGet, "/api/documents", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[map[string][]map[string]any](t, rec)
	assert.Empty(t, resp["documents"])
}

func TestChatSSE(t *testing.T) {
	f := newFixture(t)
	id := f.ingest(t, "alice", []byte("The 2025 budget was approved in March."))

	rec := f.do(t, http.MethodGet, "/api/chat?documentId="+id+"&question=What+was+approved", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))

	body := rec.Body.String()
	assert.Contains(t, body, "data: Hello\n\n")
	assert.Contains(t, body, "data:  world\n\n")
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"), "stream must end with the DONE frame: %q", body)
	assert.Equal(t, 1, strings.Count(body, "[DONE]"))
}

func TestChatSSE_MissingQuestion(t *testing.T) {
	f := newFixture(t)
	id := f.ingest(t, "alice", []byte("document text"))

	rec := f.do(t, http.MethodGet, "/api/chat?documentId="+id, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "data: [ERROR] Missing question or documentId\n\n")
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))
}

func TestChatSSE_DocumentNotVectorized(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/documents/upload-url", "alice",
		map[string]string{"fileName": "report.txt", "contentType": "text/plain"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[map[string]string](t, rec)

	rec = f.do(t, http.MethodGet, "/api/chat?documentId="+created["documentId"]+"&question=hi", "alice", nil)
	body := rec.Body.String()
	assert.Contains(t, body, "[ERROR] Document has not been vectorized yet.")
	assert.True(t, strings.HasSuffix(body, "data: [DONE]\n\n"))
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
