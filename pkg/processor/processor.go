package processor

import (
	"strings"

	"github.com/xhad/askpdf/internal/models"
)

// Separator priority for recursive splitting: paragraph breaks first,
// then line breaks, sentence ends, and finally whitespace.
var separators = []string{"\n\n", "\n", ". ", " "}

// ProcessorConfig requires both values explicitly; defaults for unset
// values are applied by pkg/config, not here.
type ProcessorConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// Processor splits page text into overlapping chunks. It is a pure
// function of its configuration; the same input always produces the
// same chunks.
type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) (Processor, error) {
	if config.ChunkSize <= 0 {
		return Processor{}, models.NewError(models.KindConfiguration,
			"chunk_size must be positive, got %d", config.ChunkSize)
	}
	if config.ChunkOverlap <= 0 {
		return Processor{}, models.NewError(models.KindConfiguration,
			"chunk_overlap must be positive, got %d", config.ChunkOverlap)
	}
	if config.ChunkOverlap >= config.ChunkSize {
		return Processor{}, models.NewError(models.KindConfiguration,
			"chunk_overlap (%d) must be smaller than chunk_size (%d)",
			config.ChunkOverlap, config.ChunkSize)
	}

	return Processor{config: config}, nil
}

// ChunkPages splits every page into chunks in input order. The chunk
// index is a single counter across all pages; the local index restarts
// on every page. Whitespace-only segments are dropped.
func (p *Processor) ChunkPages(pages []models.Page) []models.Chunk {
	var chunks []models.Chunk
	globalIndex := 0

	for _, page := range pages {
		localIndex := 0
		for _, text := range p.splitText(page.Text, separators) {
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			chunks = append(chunks, models.Chunk{
				Text:            text,
				PageNumber:      page.PageNumber,
				ChunkIndex:      globalIndex,
				LocalChunkIndex: localIndex,
				Length:          len(text),
			})
			globalIndex++
			localIndex++
		}
	}

	return chunks
}

// splitText recursively splits text on the highest-priority separator it
// contains, then regroups the pieces into chunks of at most ChunkSize
// characters with ChunkOverlap characters carried between neighbours.
// A segment that exceeds ChunkSize with no separator left to try (a
// single contiguous word longer than the limit) is emitted unsplit
// rather than hard-truncated.
func (p *Processor) splitText(text string, seps []string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if len(text) <= p.config.ChunkSize {
		return []string{text}
	}

	sep := ""
	var remaining []string
	found := false
	for i, s := range seps {
		if strings.Contains(text, s) {
			sep = s
			remaining = seps[i+1:]
			found = true
			break
		}
	}
	if !found {
		return []string{text}
	}

	var splits []string
	for _, s := range strings.Split(text, sep) {
		if s != "" {
			splits = append(splits, s)
		}
	}

	// Pieces that fit are merged back together with overlap; oversized
	// pieces are split again with the lower-priority separators.
	var result []string
	var fitting []string
	for _, s := range splits {
		if len(s) <= p.config.ChunkSize {
			fitting = append(fitting, s)
			continue
		}
		result = append(result, p.mergeSplits(fitting, sep)...)
		fitting = nil
		result = append(result, p.splitText(s, remaining)...)
	}
	result = append(result, p.mergeSplits(fitting, sep)...)

	return result
}

// mergeSplits greedily packs splits into chunks of at most ChunkSize
// characters, joined by sep. When a chunk is emitted, leading splits are
// dropped until at most ChunkOverlap characters remain to seed the next
// chunk.
func (p *Processor) mergeSplits(splits []string, sep string) []string {
	if len(splits) == 0 {
		return nil
	}

	sepLen := len(sep)
	var chunks []string
	var current []string
	total := 0

	for _, s := range splits {
		added := len(s)
		if len(current) > 0 {
			added += sepLen
		}

		if total+added > p.config.ChunkSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, sep))

			for len(current) > 0 &&
				(total > p.config.ChunkOverlap || total+len(s)+sepLen > p.config.ChunkSize) {
				drop := len(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}

		current = append(current, s)
		total += len(s)
		if len(current) > 1 {
			total += sepLen
		}
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, sep))
	}

	return chunks
}
