package pipeline

import (
	"context"

	"github.com/siherrmann/recall/model"
)

// ExtractFunc extracts text and metadata from a document file. The returned
// pages are 1-indexed and in document order.
type ExtractFunc func(filePath string) (*model.Extraction, error)

// ChunkFunc splits ordered page texts into chunk drafts with page
// attribution and character offsets.
type ChunkFunc func(pages []model.PageText) ([]*model.Chunk, error)

// EmbedFunc generates an embedding vector for text
type EmbedFunc func(text string) ([]float32, error)

// ConceptExtractFunc runs concept extraction over one chunk's content and
// returns validated concept and relationship candidates.
type ConceptExtractFunc func(ctx context.Context, chunkContent string, docTitle string) ([]*model.ConceptCandidate, []*model.RelationshipCandidate, error)

// CardGenerateFunc generates question/answer pairs from one chunk's content.
type CardGenerateFunc func(ctx context.Context, chunkContent string) ([]*model.Flashcard, error)

// Pipeline bundles the per-stage functions of the ingestion pipeline.
// Extractor, Chunker and Embedder are required; the two LLM-backed stages
// are optional and skipped when nil.
type Pipeline struct {
	Extractor        ExtractFunc
	Chunker          ChunkFunc
	Embedder         EmbedFunc
	ConceptExtractor ConceptExtractFunc
	CardGenerator    CardGenerateFunc
}

// NewPipeline creates a pipeline with the required non-LLM stages
func NewPipeline(extractor ExtractFunc, chunker ChunkFunc, embedder EmbedFunc) *Pipeline {
	return &Pipeline{
		Extractor: extractor,
		Chunker:   chunker,
		Embedder:  embedder,
	}
}

// SetConceptExtractor sets the concept extraction stage
func (p *Pipeline) SetConceptExtractor(extractor ConceptExtractFunc) {
	p.ConceptExtractor = extractor
}

// SetCardGenerator sets the flashcard generation stage
func (p *Pipeline) SetCardGenerator(generator CardGenerateFunc) {
	p.CardGenerator = generator
}
