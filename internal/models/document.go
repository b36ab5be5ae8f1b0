package models

// Page is one page of extracted document text, as produced by the
// extractors in pkg/extract. Page numbers are 1-based.
type Page struct {
	PageNumber int
	Text       string
}

// Chunk is a bounded segment of page text produced by the processor.
// ChunkIndex is global across all pages of one document; LocalChunkIndex
// restarts at zero on every page.
type Chunk struct {
	Text            string
	PageNumber      int
	ChunkIndex      int
	LocalChunkIndex int
	Length          int
}

// DocumentMeta carries document-level metadata attached to every stored
// chunk of an ingested file.
type DocumentMeta struct {
	Filename string
	Title    string
	Author   string
	NumPages int
}

// Metadata keys used in stored records and query filters.
const (
	MetaDocumentID  = "document_id"
	MetaPageNumber  = "page_number"
	MetaChunkIndex  = "chunk_index"
	MetaChunkLength = "chunk_length"
	MetaFilename    = "filename"
	MetaTitle       = "title"
	MetaAuthor      = "author"
	MetaNumPages    = "num_pages"
)

// SearchResult is one ranked hit from a vector store query. Distance is
// cosine distance (1 - similarity); lower is more relevant.
type SearchResult struct {
	ID       string
	Text     string
	Metadata map[string]any
	Distance float64
}

// IngestResult summarises one completed ingestion.
type IngestResult struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	NumPages   int    `json:"num_pages"`
	NumChunks  int    `json:"num_chunks"`
}

// Source is a retrieved chunk as presented to the caller of Answer.
// Text may be truncated for display; the generator always sees the full
// chunk text.
type Source struct {
	Text           string  `json:"text"`
	PageNumber     int     `json:"page_number"`
	ChunkIndex     int     `json:"chunk_index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Answer is the result of one retrieval-augmented query.
type Answer struct {
	Answer      string   `json:"answer"`
	Sources     []Source `json:"sources"`
	DocumentIDs []string `json:"document_ids"`
	ModelUsed   string   `json:"model_used"`
	TokensUsed  int      `json:"tokens_used"`
}

// Generation is the raw output of the chat engine.
type Generation struct {
	Text       string
	Model      string
	TokensUsed int
}

// DocumentInfo is the aggregated view of one ingested document.
type DocumentInfo struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Title      string `json:"title,omitempty"`
	Author     string `json:"author,omitempty"`
	NumPages   int    `json:"num_pages"`
	NumChunks  int    `json:"num_chunks"`
}
