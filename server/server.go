// Package server exposes the ingestion and question-answering pipeline
// over HTTP: a small REST API plus a WebSocket chat endpoint.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xhad/askpdf/internal/models"
	"github.com/xhad/askpdf/pkg/extract"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// Message is the WebSocket envelope, both directions.
type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

// IngestService is the slice of the ingestion pipeline the handlers
// need.
type IngestService interface {
	Ingest(ctx context.Context, pages []models.Page, meta models.DocumentMeta) (*models.IngestResult, error)
	Delete(ctx context.Context, documentID string) (int, error)
	ListDocuments(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
	DocumentInfo(ctx context.Context, documentID string) (*models.DocumentInfo, error)
}

// QueryService answers questions against the ingested documents.
type QueryService interface {
	Answer(ctx context.Context, question string, topK int, documentID string) (*models.Answer, error)
}

type Config struct {
	Host        string
	Port        int
	MaxUploadMB int
	DefaultTopK int
}

type Server struct {
	config Config
	ingest IngestService
	query  QueryService
}

func New(config Config, ingest IngestService, query QueryService) *Server {
	if config.MaxUploadMB == 0 {
		config.MaxUploadMB = 50
	}
	if config.DefaultTopK == 0 {
		config.DefaultTopK = 5
	}
	return &Server{config: config, ingest: ingest, query: query}
}

// Routes builds the full handler tree.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("GET /documents", s.handleListDocuments)
	mux.HandleFunc("GET /documents/{id}", s.handleDocumentInfo)
	mux.HandleFunc("DELETE /documents/{id}", s.handleDeleteDocument)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return mux
}

func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	log.Printf("Starting server on %s", addr)
	return http.ListenAndServe(addr, s.Routes())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.ingest.Count(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"total_chunks": count,
	})
}

func (s *Server) maxUploadBytes() int64 {
	return int64(s.config.MaxUploadMB) << 20
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	if err := r.ParseMultipartForm(s.maxUploadBytes()); err != nil {
		writeError(w, models.NewError(models.KindConfiguration, "invalid multipart upload: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, models.NewError(models.KindConfiguration, "missing file field"))
		return
	}
	defer file.Close()

	if err := extract.ValidateUpload(header.Filename, header.Size, s.maxUploadBytes()); err != nil {
		writeError(w, err)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, err)
		return
	}

	var pages []models.Page
	var meta *models.DocumentMeta
	if extract.IsHTML(header.Filename) {
		pages, meta, err = extract.ExtractHTML(bytes.NewReader(data), header.Filename)
	} else {
		pages, meta, err = extract.ExtractPDFBytes(data, header.Filename)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.ingest.Ingest(r.Context(), pages, *meta)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type queryRequest struct {
	Question   string `json:"question"`
	TopK       int    `json:"top_k"`
	DocumentID string `json:"document_id"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, models.NewError(models.KindConfiguration, "invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, models.NewError(models.KindConfiguration, "question is required"))
		return
	}
	if req.TopK == 0 {
		req.TopK = s.config.DefaultTopK
	}

	answer, err := s.query.Answer(r.Context(), req.Question, req.TopK, req.DocumentID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.ingest.ListDocuments(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	count, err := s.ingest.Count(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents":    docs,
		"total_chunks": count,
	})
}

func (s *Server) handleDocumentInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.ingest.DocumentInfo(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("id")
	removed, err := s.ingest.Delete(r.Context(), documentID)
	if err != nil {
		writeError(w, err)
		return
	}
	if removed == 0 {
		writeError(w, models.NewError(models.KindNotFound, "document not found: %s", documentID))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"document_id":    documentID,
		"chunks_removed": removed,
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Error reading message: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Error unmarshaling message: %v", err)
			continue
		}

		s.handleChatMessage(r.Context(), conn, msg)
	}
}

// handleChatMessage answers one chat turn. The question travels in
// Content; an optional document id in Data narrows the search.
func (s *Server) handleChatMessage(ctx context.Context, conn *websocket.Conn, msg Message) {
	question := strings.TrimSpace(msg.Content)
	if question == "" {
		s.sendMessage(conn, "error", "empty question", nil)
		return
	}

	documentID, _ := msg.Data.(string)

	s.sendMessage(conn, "status", "Searching documents...", nil)

	answer, err := s.query.Answer(ctx, question, s.config.DefaultTopK, documentID)
	if err != nil {
		s.sendMessage(conn, "error", err.Error(), nil)
		return
	}

	s.sendMessage(conn, "response", answer.Answer, answer)
}

func (s *Server) sendMessage(conn *websocket.Conn, msgType, content string, data any) {
	msg := Message{Type: msgType, Content: content, Data: data}
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var appErr *models.Error
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case models.KindConfiguration:
			status = http.StatusBadRequest
		case models.KindNotFound:
			status = http.StatusNotFound
		case models.KindDuplicateID, models.KindDimensionMismatch:
			status = http.StatusConflict
		case models.KindProvider:
			status = http.StatusBadGateway
		}
	}

	if status == http.StatusInternalServerError {
		log.Printf("Internal error: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
