package types

import (
	"context"

	"github.com/xhad/askpdf/internal/models"
)

// Core interfaces

// Chunker splits extracted pages into overlapping chunks for indexing.
type Chunker interface {
	ChunkPages(pages []models.Page) []models.Chunk
}

// Embedder converts text into fixed-dimension vectors. EmbedBatch is
// order-preserving: the i-th vector always corresponds to the i-th input
// text. A provider failure fails the whole batch.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator produces a grounded answer from a question and ranked
// context chunks.
type Generator interface {
	Generate(ctx context.Context, question string, contextChunks []string) (*models.Generation, error)
	Model() string
}

// VectorStore holds chunk text, embeddings and metadata, and supports
// exact similarity search with optional metadata filtering. All methods
// are safe for concurrent use; writers are serialized and readers never
// observe a partially applied write.
type VectorStore interface {
	// Add appends one record per (chunk, embedding) pair under the given
	// document id, merging extra metadata into every record. It is
	// all-or-nothing: validation failures leave the store unchanged.
	Add(ctx context.Context, chunks []models.Chunk, embeddings [][]float32, documentID string, extra map[string]any) error

	// Query returns the n most similar records by cosine distance, lowest
	// first, optionally restricted to records whose metadata matches every
	// pair in filter.
	Query(ctx context.Context, embedding []float32, n int, filter map[string]any) ([]models.SearchResult, error)

	// DeleteDocument removes every record of the document and reports how
	// many were removed. Deleting an unknown id is not an error.
	DeleteDocument(ctx context.Context, documentID string) (int, error)

	Count(ctx context.Context) (int, error)
	ListDocuments(ctx context.Context) ([]string, error)

	// DocumentInfo aggregates the stored metadata of one document. Unknown
	// ids surface a not-found error.
	DocumentInfo(ctx context.Context, documentID string) (*models.DocumentInfo, error)

	Close()
}
