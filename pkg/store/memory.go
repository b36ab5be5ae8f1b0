package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/xhad/askpdf/internal/models"
)

type MemoryStoreConfig struct {
	// VectorDim fixes the embedding dimension up front. When zero, the
	// dimension of the first inserted vector is adopted.
	VectorDim int
}

// MemoryStore is an in-memory vector store backed by four parallel
// slices (ids, texts, embeddings, metadata) that form one logical
// relation keyed by position. Search is exact brute-force cosine
// similarity. A single RWMutex serializes writers and gives readers a
// consistent snapshot; no partially applied write is ever observable.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int

	ids        []string
	texts      []string
	embeddings [][]float32
	metadatas  []map[string]any

	// byID guards against chunk id collisions on re-ingestion.
	byID map[string]int
}

func NewMemoryStore(config MemoryStoreConfig) *MemoryStore {
	return &MemoryStore{
		dimension: config.VectorDim,
		byID:      make(map[string]int),
	}
}

// Add appends one record per (chunk, embedding) pair in input order.
// All validation happens before the first append, so a failed call
// leaves the store unchanged.
func (s *MemoryStore) Add(_ context.Context, chunks []models.Chunk, embeddings [][]float32, documentID string, extra map[string]any) error {
	if len(chunks) != len(embeddings) {
		return models.NewError(models.KindDimensionMismatch,
			"%d chunks but %d embeddings", len(chunks), len(embeddings))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dimension
	for i, emb := range embeddings {
		if dim == 0 {
			dim = len(emb)
		}
		if len(emb) == 0 || len(emb) != dim {
			return models.NewError(models.KindDimensionMismatch,
				"embedding %d has dimension %d, store expects %d", i, len(emb), dim)
		}
	}

	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		id := chunkID(documentID, chunk.ChunkIndex)
		if _, exists := s.byID[id]; exists {
			return models.NewError(models.KindDuplicateID, "chunk id %q already stored", id)
		}
		ids[i] = id
	}

	s.dimension = dim
	for i, chunk := range chunks {
		meta := map[string]any{
			models.MetaDocumentID:  documentID,
			models.MetaPageNumber:  chunk.PageNumber,
			models.MetaChunkIndex:  chunk.ChunkIndex,
			models.MetaChunkLength: chunk.Length,
		}
		for k, v := range extra {
			meta[k] = v
		}

		s.byID[ids[i]] = len(s.ids)
		s.ids = append(s.ids, ids[i])
		s.texts = append(s.texts, chunk.Text)
		s.embeddings = append(s.embeddings, embeddings[i])
		s.metadatas = append(s.metadatas, meta)
	}

	return nil
}

// Query scores every record against the query embedding and returns the
// n closest by cosine distance. Records failing the metadata filter are
// excluded before scoring, in stored order. Ties keep insertion order;
// NaN distances (zero-magnitude vectors) sort last. Results are copies,
// so callers never hold references into the store.
func (s *MemoryStore) Query(_ context.Context, embedding []float32, n int, filter map[string]any) ([]models.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.ids) == 0 {
		return []models.SearchResult{}, nil
	}
	if len(embedding) != s.dimension {
		return nil, models.NewError(models.KindDimensionMismatch,
			"query embedding has dimension %d, store expects %d", len(embedding), s.dimension)
	}

	results := make([]models.SearchResult, 0, len(s.ids))
	for i := range s.ids {
		if !matchesFilter(s.metadatas[i], filter) {
			continue
		}
		results = append(results, models.SearchResult{
			ID:       s.ids[i],
			Text:     s.texts[i],
			Metadata: copyMetadata(s.metadatas[i]),
			Distance: cosineDistance(embedding, s.embeddings[i]),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		di, dj := results[i].Distance, results[j].Distance
		if math.IsNaN(di) {
			return false
		}
		if math.IsNaN(dj) {
			return true
		}
		return di < dj
	})

	if n < len(results) {
		results = results[:n]
	}
	return results, nil
}

// DeleteDocument removes every record whose document_id matches, and
// only those, returning the number removed. Unknown ids remove nothing
// and are not an error.
func (s *MemoryStore) DeleteDocument(_ context.Context, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	kept := 0
	for i := range s.ids {
		if s.metadatas[i][models.MetaDocumentID] == documentID {
			delete(s.byID, s.ids[i])
			removed++
			continue
		}
		s.ids[kept] = s.ids[i]
		s.texts[kept] = s.texts[i]
		s.embeddings[kept] = s.embeddings[i]
		s.metadatas[kept] = s.metadatas[i]
		s.byID[s.ids[kept]] = kept
		kept++
	}

	s.ids = s.ids[:kept]
	s.texts = s.texts[:kept]
	s.embeddings = s.embeddings[:kept]
	s.metadatas = s.metadatas[:kept]

	return removed, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids), nil
}

// ListDocuments returns every distinct document id in first-seen order.
func (s *MemoryStore) ListDocuments(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	docIDs := []string{}
	for _, meta := range s.metadatas {
		id, _ := meta[models.MetaDocumentID].(string)
		if id != "" && !seen[id] {
			seen[id] = true
			docIDs = append(docIDs, id)
		}
	}
	return docIDs, nil
}

// DocumentInfo aggregates the stored metadata of one document.
func (s *MemoryStore) DocumentInfo(_ context.Context, documentID string) (*models.DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := models.DocumentInfo{DocumentID: documentID}
	for _, meta := range s.metadatas {
		if meta[models.MetaDocumentID] != documentID {
			continue
		}
		if info.NumChunks == 0 {
			info.Filename, _ = meta[models.MetaFilename].(string)
			info.Title, _ = meta[models.MetaTitle].(string)
			info.Author, _ = meta[models.MetaAuthor].(string)
			info.NumPages, _ = meta[models.MetaNumPages].(int)
		}
		info.NumChunks++
	}
	if info.NumChunks == 0 {
		return nil, models.NewError(models.KindNotFound, "document %q not found", documentID)
	}
	return &info, nil
}

func (s *MemoryStore) Close() {}

func chunkID(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, chunkIndex)
}

func matchesFilter(meta map[string]any, filter map[string]any) bool {
	for k, v := range filter {
		if meta[k] != v {
			return false
		}
	}
	return true
}

func copyMetadata(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

// cosineDistance is 1 - cosine similarity. A zero-magnitude operand
// yields NaN, which Query deliberately ranks last instead of failing.
func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
