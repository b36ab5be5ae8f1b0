// Package rag wires the chunker, the embedding provider, the vector
// store and the chat engine into the two request flows of the service:
// document ingestion and retrieval-augmented answering.
package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/xhad/askpdf/internal/models"
	"github.com/xhad/askpdf/internal/types"
)

// Ingestor drives the ingestion pipeline for one document: chunk the
// extracted pages, embed every chunk, then store everything in a single
// insert. It also fronts the store's document-management operations.
type Ingestor struct {
	chunker  types.Chunker
	embedder types.Embedder
	store    types.VectorStore
}

func NewIngestor(chunker types.Chunker, embedder types.Embedder, store types.VectorStore) *Ingestor {
	return &Ingestor{chunker: chunker, embedder: embedder, store: store}
}

// Ingest runs the full pipeline under a fresh document id. The store is
// only written once every embedding for the document exists, so a
// failure at any stage leaves the store untouched. Ingesting the same
// file twice produces two distinct documents.
func (s *Ingestor) Ingest(ctx context.Context, pages []models.Page, meta models.DocumentMeta) (*models.IngestResult, error) {
	documentID := newDocumentID()

	chunks := s.chunker.ChunkPages(pages)

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	extra := map[string]any{
		models.MetaFilename: meta.Filename,
		models.MetaTitle:    meta.Title,
		models.MetaAuthor:   meta.Author,
		models.MetaNumPages: meta.NumPages,
	}
	if err := s.store.Add(ctx, chunks, embeddings, documentID, extra); err != nil {
		return nil, err
	}

	return &models.IngestResult{
		DocumentID: documentID,
		Filename:   meta.Filename,
		NumPages:   meta.NumPages,
		NumChunks:  len(chunks),
	}, nil
}

// Delete removes every stored chunk of the document and reports how
// many were removed; deleting an unknown id removes nothing.
func (s *Ingestor) Delete(ctx context.Context, documentID string) (int, error) {
	return s.store.DeleteDocument(ctx, documentID)
}

func (s *Ingestor) ListDocuments(ctx context.Context) ([]string, error) {
	return s.store.ListDocuments(ctx)
}

func (s *Ingestor) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

func (s *Ingestor) DocumentInfo(ctx context.Context, documentID string) (*models.DocumentInfo, error) {
	return s.store.DocumentInfo(ctx, documentID)
}

// newDocumentID returns a fresh random id of the form doc-9f2c41d880a3.
// Ids are never reused, which keeps chunk ids collision-free across
// re-ingestions of the same file.
func newDocumentID() string {
	id := uuid.New()
	return fmt.Sprintf("doc-%x", id[:6])
}
