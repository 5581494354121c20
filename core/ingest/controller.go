package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/siherrmann/recall/core/pipeline"
	"github.com/siherrmann/recall/model"
	"golang.org/x/sync/errgroup"
)

// DefaultEmbeddingWorkers bounds the parallel embedding stage.
const DefaultEmbeddingWorkers = 4

// DocumentStore defines the document access the controller needs.
type DocumentStore interface {
	SelectDocument(id uuid.UUID) (*model.Document, error)
	SelectDocumentsByStatus(statuses ...model.DocumentStatus) ([]*model.Document, error)
	UpdateDocumentStatus(id uuid.UUID, status model.DocumentStatus, errorMessage *string) (*model.Document, error)
	UpdateDocumentExtraction(doc *model.Document) error
	UpdateDocumentConceptCount(id uuid.UUID, conceptCount int) error
}

// ChunkStore defines the chunk access the controller needs.
type ChunkStore interface {
	InsertChunk(chunk *model.Chunk) error
	SelectChunksByDocument(documentID uuid.UUID) ([]*model.Chunk, error)
	SelectEmbeddedChunksByDocument(documentID uuid.UUID, limit int) ([]*model.Chunk, error)
	UpdateChunkEmbedding(id uuid.UUID, embedding []float32) error
	DeleteChunk(id uuid.UUID) error
}

// CardStore persists generated flashcards.
type CardStore interface {
	InsertFlashcard(card *model.Flashcard) error
}

// ChunkMerger folds one chunk's extraction output into the concept graph.
type ChunkMerger interface {
	MergeChunk(chunkID uuid.UUID, concepts []*model.ConceptCandidate, relationships []*model.RelationshipCandidate) (*model.MergeResult, error)
}

// Controller drives documents through the ingestion pipeline in background
// goroutines, one at a time per document.
type Controller struct {
	documents DocumentStore
	chunks    ChunkStore
	cards     CardStore
	merger    ChunkMerger
	pipeline  *pipeline.Pipeline
	logger    *slog.Logger
	workers   int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running map[uuid.UUID]bool
}

// NewController creates a controller. The merger and card store may be nil
// only if the pipeline carries no matching LLM stage.
func NewController(documents DocumentStore, chunks ChunkStore, cards CardStore, merger ChunkMerger, pipe *pipeline.Pipeline, workers int, logger *slog.Logger) (*Controller, error) {
	if documents == nil || chunks == nil {
		return nil, fmt.Errorf("document and chunk stores must not be nil")
	}
	if pipe == nil || pipe.Extractor == nil || pipe.Chunker == nil || pipe.Embedder == nil {
		return nil, fmt.Errorf("pipeline must carry extractor, chunker and embedder")
	}
	if pipe.ConceptExtractor != nil && merger == nil {
		return nil, fmt.Errorf("concept extraction requires a merger")
	}
	if pipe.CardGenerator != nil && cards == nil {
		return nil, fmt.Errorf("card generation requires a card store")
	}
	if workers <= 0 {
		workers = DefaultEmbeddingWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		documents: documents,
		chunks:    chunks,
		cards:     cards,
		merger:    merger,
		pipeline:  pipe,
		logger:    logger,
		workers:   workers,
		ctx:       ctx,
		cancel:    cancel,
		running:   map[uuid.UUID]bool{},
	}, nil
}

// Submit starts a background pipeline run for the document. A second submit
// while the document is already running is a no-op returning false.
func (c *Controller) Submit(documentID uuid.UUID) bool {
	return c.submit(documentID, false)
}

func (c *Controller) submit(documentID uuid.UUID, llmStageOnly bool) bool {
	c.mu.Lock()
	if c.running[documentID] {
		c.mu.Unlock()
		return false
	}
	c.running[documentID] = true
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.running, documentID)
			c.mu.Unlock()
		}()

		if llmStageOnly {
			doc, err := c.documents.SelectDocument(documentID)
			if err != nil {
				c.logger.Error("Document lookup failed", slog.String("documentId", documentID.String()), slog.Any("error", err))
				return
			}
			c.runLLMStage(doc)
			return
		}
		c.run(documentID)
	}()

	return true
}

// Recover resubmits documents a previous process left mid-pipeline:
// a full run for pending/extracting/chunking/embedding, only the LLM stage
// for ready/extracting_concepts. A document in ready had its embeddings
// committed but never reached the LLM stages.
func (c *Controller) Recover() error {
	stuck, err := c.documents.SelectDocumentsByStatus(
		model.StatusPending,
		model.StatusExtracting,
		model.StatusChunking,
		model.StatusEmbedding,
	)
	if err != nil {
		return err
	}
	for _, doc := range stuck {
		c.logger.Info("Recovering document", slog.String("documentId", doc.ID.String()), slog.String("status", string(doc.Status)))
		c.submit(doc.ID, false)
	}

	llmStuck, err := c.documents.SelectDocumentsByStatus(model.StatusReady, model.StatusExtractingConcepts)
	if err != nil {
		return err
	}
	for _, doc := range llmStuck {
		c.logger.Info("Recovering concept extraction", slog.String("documentId", doc.ID.String()))
		c.submit(doc.ID, true)
	}

	return nil
}

// Running reports whether a pipeline run is active for the document.
func (c *Controller) Running(documentID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running[documentID]
}

// Close stops accepting status transitions for the LLM stage and waits for
// in-flight runs to finish.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *Controller) setStatus(documentID uuid.UUID, status model.DocumentStatus) bool {
	current, err := c.documents.SelectDocument(documentID)
	if err != nil {
		c.logger.Error("Document lookup failed", slog.String("documentId", documentID.String()), slog.Any("error", err))
		return false
	}
	if current.Status == status {
		return true
	}
	if !current.Status.CanTransition(status) {
		c.logger.Error(
			"Refusing backward status transition",
			slog.String("documentId", documentID.String()),
			slog.String("from", string(current.Status)),
			slog.String("to", string(status)),
		)
		return false
	}

	_, err = c.documents.UpdateDocumentStatus(documentID, status, nil)
	if err != nil {
		c.logger.Error(
			"Status update failed",
			slog.String("documentId", documentID.String()),
			slog.String("status", string(status)),
			slog.Any("error", err),
		)
		return false
	}
	return true
}

func (c *Controller) fail(documentID uuid.UUID, stage string, err error) {
	message := fmt.Sprintf("%v: %v", stage, err)
	c.logger.Error("Pipeline stage failed", slog.String("documentId", documentID.String()), slog.String("stage", stage), slog.Any("error", err))

	_, updateErr := c.documents.UpdateDocumentStatus(documentID, model.StatusError, &message)
	if updateErr != nil {
		c.logger.Error("Failed to record pipeline error", slog.String("documentId", documentID.String()), slog.Any("error", updateErr))
	}
}

func (c *Controller) run(documentID uuid.UUID) {
	doc, err := c.documents.SelectDocument(documentID)
	if err != nil {
		c.logger.Error("Document lookup failed", slog.String("documentId", documentID.String()), slog.Any("error", err))
		return
	}

	// A rerun of a document stuck mid-pipeline re-enters through pending.
	if doc.Status != model.StatusPending && !c.setStatus(documentID, model.StatusPending) {
		return
	}

	// Extraction
	if !c.setStatus(documentID, model.StatusExtracting) {
		return
	}
	extraction, err := c.pipeline.Extractor(doc.Source)
	if err != nil {
		c.fail(documentID, "extraction", err)
		return
	}

	// Fill document metadata the upload left at defaults.
	if extraction.Title != "" && doc.Title == "" {
		doc.Title = extraction.Title
	}
	if extraction.Author != "" && doc.Author == "" {
		doc.Author = extraction.Author
	}
	doc.PageCount = extraction.PageCount
	err = c.documents.UpdateDocumentExtraction(doc)
	if err != nil {
		c.fail(documentID, "extraction", err)
		return
	}

	if pipeline.NeedsOCR(extraction.Pages) {
		c.logger.Info("Document needs OCR", slog.String("documentId", documentID.String()))
		c.setStatus(documentID, model.StatusNeedsOCR)
		return
	}

	// Chunking. Chunks from an earlier interrupted run are replaced.
	if !c.setStatus(documentID, model.StatusChunking) {
		return
	}
	existing, err := c.chunks.SelectChunksByDocument(documentID)
	if err != nil {
		c.fail(documentID, "chunking", err)
		return
	}
	for _, chunk := range existing {
		if err := c.chunks.DeleteChunk(chunk.ID); err != nil {
			c.fail(documentID, "chunking", err)
			return
		}
	}

	chunks, err := c.pipeline.Chunker(extraction.Pages)
	if err != nil {
		c.fail(documentID, "chunking", err)
		return
	}
	for _, chunk := range chunks {
		chunk.ID = uuid.New()
		chunk.DocumentID = documentID
		if err := c.chunks.InsertChunk(chunk); err != nil {
			c.fail(documentID, "chunking", err)
			return
		}
	}
	c.logger.Info("Chunked document", slog.String("documentId", documentID.String()), slog.Int("chunks", len(chunks)))

	// Embedding, parallel across chunks
	if !c.setStatus(documentID, model.StatusEmbedding) {
		return
	}
	group := errgroup.Group{}
	group.SetLimit(c.workers)
	for _, chunk := range chunks {
		group.Go(func() error {
			embedding, err := c.pipeline.Embedder(chunk.Content)
			if err != nil {
				return fmt.Errorf("chunk %v: %w", chunk.ChunkIndex, err)
			}
			return c.chunks.UpdateChunkEmbedding(chunk.ID, embedding)
		})
	}
	if err := group.Wait(); err != nil {
		c.fail(documentID, "embedding", err)
		return
	}

	if !c.setStatus(documentID, model.StatusReady) {
		return
	}

	doc.Status = model.StatusReady
	c.runLLMStage(doc)
}

// runLLMStage runs concept extraction and flashcard generation. Both are
// best-effort per chunk: failures are logged and skipped, an unavailable
// completion service stops the loops early, and the document still advances
// to concepts_ready.
func (c *Controller) runLLMStage(doc *model.Document) {
	if !c.setStatus(doc.ID, model.StatusExtractingConcepts) {
		return
	}

	if c.pipeline.ConceptExtractor != nil {
		c.extractConcepts(doc)
	}
	if c.pipeline.CardGenerator != nil {
		c.generateCards(doc)
	}

	c.setStatus(doc.ID, model.StatusConceptsReady)
}

func (c *Controller) extractConcepts(doc *model.Document) {
	chunks, err := c.chunks.SelectEmbeddedChunksByDocument(doc.ID, pipeline.MaxConceptChunks)
	if err != nil {
		c.logger.Error("Chunk lookup for concept extraction failed", slog.String("documentId", doc.ID.String()), slog.Any("error", err))
		return
	}

	totalConcepts := 0
	for _, chunk := range chunks {
		if len(chunk.Content) < pipeline.MinChunkChars {
			continue
		}

		concepts, relationships, err := c.pipeline.ConceptExtractor(c.ctx, chunk.Content, doc.Title)
		if errors.Is(err, model.ErrLLMUnavailable) {
			c.logger.Warn("Completion service unavailable, stopping concept extraction", slog.String("documentId", doc.ID.String()))
			break
		}
		if err != nil {
			c.logger.Warn("Concept extraction failed for chunk", slog.String("chunkId", chunk.ID.String()), slog.Any("error", err))
			continue
		}

		result, err := c.merger.MergeChunk(chunk.ID, concepts, relationships)
		if err != nil {
			c.logger.Warn("Chunk merge failed", slog.String("chunkId", chunk.ID.String()), slog.Any("error", err))
			continue
		}
		totalConcepts += result.ConceptsCreated + result.ConceptsReused
	}

	if totalConcepts > 0 {
		err = c.documents.UpdateDocumentConceptCount(doc.ID, totalConcepts)
		if err != nil {
			c.logger.Warn("Concept count update failed", slog.String("documentId", doc.ID.String()), slog.Any("error", err))
		}
	}
	c.logger.Info("Concept extraction finished", slog.String("documentId", doc.ID.String()), slog.Int("concepts", totalConcepts))
}

func (c *Controller) generateCards(doc *model.Document) {
	chunks, err := c.chunks.SelectEmbeddedChunksByDocument(doc.ID, pipeline.MaxCardChunks)
	if err != nil {
		c.logger.Error("Chunk lookup for card generation failed", slog.String("documentId", doc.ID.String()), slog.Any("error", err))
		return
	}

	totalCards := 0
	for _, chunk := range chunks {
		if len(chunk.Content) < pipeline.MinChunkChars {
			continue
		}

		cards, err := c.pipeline.CardGenerator(c.ctx, chunk.Content)
		if errors.Is(err, model.ErrLLMUnavailable) {
			c.logger.Warn("Completion service unavailable, stopping card generation", slog.String("documentId", doc.ID.String()))
			break
		}
		if err != nil {
			c.logger.Warn("Card generation failed for chunk", slog.String("chunkId", chunk.ID.String()), slog.Any("error", err))
			continue
		}

		for _, card := range cards {
			card.ID = uuid.New()
			card.DocumentID = doc.ID
			chunkID := chunk.ID
			card.ChunkID = &chunkID
			card.EaseFactor = model.DefaultEaseFactor
			if err := c.cards.InsertFlashcard(card); err != nil {
				c.logger.Warn("Flashcard insert failed", slog.String("chunkId", chunk.ID.String()), slog.Any("error", err))
				continue
			}
			totalCards++
		}
	}
	c.logger.Info("Card generation finished", slog.String("documentId", doc.ID.String()), slog.Int("cards", totalCards))
}
