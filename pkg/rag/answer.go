package rag

import (
	"context"
	"math"
	"unicode/utf8"

	"github.com/xhad/askpdf/internal/models"
	"github.com/xhad/askpdf/internal/types"
)

// NoInformationAnswer is returned, without invoking generation, when
// retrieval finds nothing relevant.
const NoInformationAnswer = "I couldn't find any relevant information to answer your question."

// sourcePreviewLength bounds the chunk text shown in sources. Display
// only; the generator always receives the full text.
const sourcePreviewLength = 500

const (
	MinTopK = 1
	MaxTopK = 20
)

// Retriever answers questions against the vector store: embed the
// question, retrieve the closest chunks, generate a grounded answer.
type Retriever struct {
	embedder  types.Embedder
	store     types.VectorStore
	generator types.Generator
}

func NewRetriever(embedder types.Embedder, store types.VectorStore, generator types.Generator) *Retriever {
	return &Retriever{embedder: embedder, store: store, generator: generator}
}

// Answer retrieves the topK most relevant chunks, optionally restricted
// to one document, and asks the generator for an answer grounded in
// them. With no matching chunks it short-circuits to the fixed
// no-information answer and never calls the generator.
func (r *Retriever) Answer(ctx context.Context, question string, topK int, documentID string) (*models.Answer, error) {
	if topK < MinTopK || topK > MaxTopK {
		return nil, models.NewError(models.KindConfiguration,
			"top_k must be between %d and %d, got %d", MinTopK, MaxTopK, topK)
	}

	queryEmbedding, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, err
	}

	var filter map[string]any
	if documentID != "" {
		filter = map[string]any{models.MetaDocumentID: documentID}
	}

	results, err := r.store.Query(ctx, queryEmbedding, topK, filter)
	if err != nil {
		return nil, err
	}

	if len(results) == 0 {
		return &models.Answer{
			Answer:      NoInformationAnswer,
			Sources:     []models.Source{},
			DocumentIDs: []string{},
			ModelUsed:   r.generator.Model(),
		}, nil
	}

	contextChunks := make([]string, len(results))
	for i, res := range results {
		contextChunks[i] = res.Text
	}

	generation, err := r.generator.Generate(ctx, question, contextChunks)
	if err != nil {
		return nil, err
	}

	sources := make([]models.Source, len(results))
	docIDs := []string{}
	seen := make(map[string]bool)
	for i, res := range results {
		pageNumber, _ := res.Metadata[models.MetaPageNumber].(int)
		chunkIndex, _ := res.Metadata[models.MetaChunkIndex].(int)
		sources[i] = models.Source{
			Text:           previewText(res.Text),
			PageNumber:     pageNumber,
			ChunkIndex:     chunkIndex,
			RelevanceScore: math.Round(res.Distance*1000) / 1000,
		}
		if docID, ok := res.Metadata[models.MetaDocumentID].(string); ok && !seen[docID] {
			seen[docID] = true
			docIDs = append(docIDs, docID)
		}
	}

	return &models.Answer{
		Answer:      generation.Text,
		Sources:     sources,
		DocumentIDs: docIDs,
		ModelUsed:   generation.Model,
		TokensUsed:  generation.TokensUsed,
	}, nil
}

// previewText truncates to at most sourcePreviewLength bytes, backing
// up to a rune boundary so the preview is always valid UTF-8.
func previewText(text string) string {
	if len(text) <= sourcePreviewLength {
		return text
	}
	cut := sourcePreviewLength
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
