// Package server exposes the ingestion and query pipelines over HTTP:
// JSON document routes, a Server-Sent Events chat stream and a WebSocket
// chat channel.
package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/xhad/pdfchat/internal/models"
	"github.com/xhad/pdfchat/pkg/pipeline"
)

type Server struct {
	ingestor *pipeline.Ingestor
	query    *pipeline.Query
	auth     Authenticator
}

func NewServer(ingestor *pipeline.Ingestor, query *pipeline.Query, auth Authenticator) *Server {
	if auth == nil {
		auth = NewHeaderAuth("")
	}
	return &Server{
		ingestor: ingestor,
		query:    query,
		auth:     auth,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/documents/upload-url", s.withUser(s.handleUploadURL))
	mux.HandleFunc("POST /api/documents/{id}/finalize", s.withUser(s.handleFinalize))
	mux.HandleFunc("POST /api/documents/{id}/generate-embeddings", s.withUser(s.handleGenerateEmbeddings))
	mux.HandleFunc("POST /api/documents/{id}/upload-to-index", s.withUser(s.handleUploadToIndex))
	mux.HandleFunc("GET /api/documents", s.withUser(s.handleListDocuments))
	mux.HandleFunc("GET /api/documents/{id}", s.withUser(s.handleGetDocument))
	mux.HandleFunc("GET /api/chat", s.withUser(s.handleChat))
	mux.HandleFunc("GET /ws", s.withUser(s.handleWebSocket))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return mux
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

func (s *Server) withUser(h userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.auth.UserID(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		h(w, r, userID)
	}
}

type uploadURLRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

type uploadURLResponse struct {
	DocumentID string `json:"documentId"`
	UploadURL  string `json:"uploadUrl"`
	BlobKey    string `json:"blobKey"`
}

func (s *Server) handleUploadURL(w http.ResponseWriter, r *http.Request, userID string) {
	var req uploadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	doc, uploadURL, err := s.ingestor.CreateUpload(r.Context(), userID, req.FileName, req.ContentType)
	if err != nil {
		writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadURLResponse{
		DocumentID: doc.ID,
		UploadURL:  uploadURL,
		BlobKey:    doc.BlobKey,
	})
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request, userID string) {
	doc, err := s.ingestor.FinalizeUpload(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentView(doc))
}

type embeddingsResponse struct {
	DocumentID string `json:"documentId"`
	ChunkCount int    `json:"chunkCount"`
}

func (s *Server) handleGenerateEmbeddings(w http.ResponseWriter, r *http.Request, userID string) {
	id := r.PathValue("id")
	count, err := s.ingestor.GenerateEmbeddings(r.Context(), id, userID)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, embeddingsResponse{DocumentID: id, ChunkCount: count})
}

type indexUploadResponse struct {
	DocumentID  string `json:"documentId"`
	VectorCount int    `json:"vectorCount"`
}

func (s *Server) handleUploadToIndex(w http.ResponseWriter, r *http.Request, userID string) {
	id := r.PathValue("id")
	written, err := s.ingestor.UploadToIndex(r.Context(), id, userID)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, indexUploadResponse{DocumentID: id, VectorCount: written})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request, userID string) {
	docs, err := s.ingestor.List(r.Context(), userID)
	if err != nil {
		writePipelineError(w, err)
		return
	}

	views := make([]documentJSON, len(docs))
	for i := range docs {
		views[i] = documentView(&docs[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": views})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request, userID string) {
	doc, err := s.ingestor.Document(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentView(doc))
}

// documentJSON is the wire shape of a document. Extracted text and raw
// embeddings never leave the server.
type documentJSON struct {
	ID              string  `json:"id"`
	FileName        string  `json:"fileName"`
	ContentType     string  `json:"contentType"`
	Status          string  `json:"status"`
	Size            int64   `json:"size"`
	ChunkCount      int     `json:"chunkCount"`
	EmbeddingModel  string  `json:"embeddingModel,omitempty"`
	UploadedToIndex bool    `json:"uploadedToIndex"`
	CreatedAt       string  `json:"createdAt"`
	EmbeddedAt      *string `json:"embeddedAt,omitempty"`
}

func documentView(doc *models.Document) documentJSON {
	view := documentJSON{
		ID:              doc.ID,
		FileName:        doc.FileName,
		ContentType:     doc.ContentType,
		Status:          string(doc.Status),
		Size:            doc.Size,
		ChunkCount:      doc.ChunkCount,
		EmbeddingModel:  doc.EmbeddingModel,
		UploadedToIndex: doc.UploadedToIndex,
		CreatedAt:       doc.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if doc.EmbeddedAt != nil {
		at := doc.EmbeddedAt.UTC().Format("2006-01-02T15:04:05Z")
		view.EmbeddedAt = &at
	}
	return view
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writePipelineError maps the pipeline error taxonomy onto HTTP statuses.
func writePipelineError(w http.ResponseWriter, err error) {
	var verr *pipeline.ValidationError
	var aerr *pipeline.AuthorizationError
	var perr *pipeline.PreconditionError
	var uerr *pipeline.UpstreamError

	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.As(err, &aerr):
		writeError(w, http.StatusNotFound, "Document not found")
	case errors.As(err, &perr):
		writeError(w, http.StatusConflict, perr.Reason)
	case errors.As(err, &uerr):
		log.Printf("Upstream failure: %v", uerr)
		writeError(w, http.StatusBadGateway, uerr.UserMessage())
	default:
		log.Printf("Unhandled error: %v", err)
		writeError(w, http.StatusInternalServerError, "An error occurred while processing your request.")
	}
}
