package recall

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/recall/core/graph"
	"github.com/siherrmann/recall/core/ingest"
	"github.com/siherrmann/recall/core/llm"
	"github.com/siherrmann/recall/core/pipeline"
	"github.com/siherrmann/recall/core/review"
	"github.com/siherrmann/recall/database"
	"github.com/siherrmann/recall/helper"
	"github.com/siherrmann/recall/model"
	loadSql "github.com/siherrmann/recall/sql"
)

// Recall wires the database handlers, the ingestion pipeline, the concept
// graph and the review scheduler into one instance.
type Recall struct {
	DB         *helper.Database
	Documents  *database.DocumentsDBHandler
	Chunks     *database.ChunksDBHandler
	Concepts   *database.ConceptsDBHandler
	Edges      *database.EdgesDBHandler
	Flashcards *database.FlashcardsDBHandler
	Merger     *graph.Merger
	Scheduler  *review.Scheduler
	// Optional ingestion pipeline, set via SetPipeline or UseDefaultPipeline
	Pipeline   *pipeline.Pipeline
	Controller *ingest.Controller
	// Logging
	log *slog.Logger
}

// New creates a Recall instance with all handlers initialized against the
// configured database.
func New(config *helper.DatabaseConfiguration, embeddingDim int) (*Recall, error) {
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	db := helper.NewDatabase("recall", config, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Handlers in dependency order, force=false to keep loaded functions
	documents, err := database.NewDocumentsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create documents handler", err)
	}

	chunks, err := database.NewChunksDBHandler(db, embeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create chunks handler", err)
	}

	concepts, err := database.NewConceptsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create concepts handler", err)
	}

	edges, err := database.NewEdgesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create edges handler", err)
	}

	flashcards, err := database.NewFlashcardsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create flashcards handler", err)
	}

	merger, err := graph.NewMerger(concepts, edges, logger)
	if err != nil {
		return nil, helper.NewError("create merger", err)
	}

	scheduler, err := review.NewScheduler(flashcards, concepts, logger)
	if err != nil {
		return nil, helper.NewError("create scheduler", err)
	}

	return &Recall{
		DB:         db,
		Documents:  documents,
		Chunks:     chunks,
		Concepts:   concepts,
		Edges:      edges,
		Flashcards: flashcards,
		Merger:     merger,
		Scheduler:  scheduler,
		log:        logger,
	}, nil
}

// Close stops the ingestion controller and closes the database connection.
func (r *Recall) Close() error {
	if r.Controller != nil {
		r.Controller.Close()
	}
	if r.DB != nil && r.DB.Instance != nil {
		return r.DB.Instance.Close()
	}
	return nil
}

// SetPipeline sets the ingestion pipeline and creates the controller
// driving it.
func (r *Recall) SetPipeline(pipe *pipeline.Pipeline, workers int) error {
	controller, err := ingest.NewController(r.Documents, r.Chunks, r.Flashcards, r.Merger, pipe, workers, r.log)
	if err != nil {
		return helper.NewError("create controller", err)
	}

	r.Pipeline = pipe
	r.Controller = controller
	return nil
}

// UseDefaultPipeline sets up the full default pipeline: pdfcpu/plain-text
// extraction, sentence-bounded chunking, the local all-MiniLM-L6-v2
// embedder and the Anthropic-backed concept and flashcard stages behind a
// completion queue of the given size.
func (r *Recall) UseDefaultPipeline(llmModel string, queueSize int, workers int) error {
	embedder, err := pipeline.DefaultEmbedder()
	if err != nil {
		return helper.NewError("create default embedder", err)
	}

	pipe := pipeline.NewPipeline(
		pipeline.DefaultExtractor(),
		pipeline.DefaultChunker(pipeline.DefaultTargetChars, pipeline.DefaultOverlapChars),
		embedder,
	)

	queue, err := llm.NewQueue(llm.DefaultCompleter(llmModel, 2*time.Minute), queueSize)
	if err != nil {
		return helper.NewError("create completion queue", err)
	}
	pipe.SetConceptExtractor(pipeline.DefaultConceptExtractor(queue.Complete))
	pipe.SetCardGenerator(pipeline.DefaultCardGenerator(queue.Complete))

	return r.SetPipeline(pipe, workers)
}

// AddDocument registers a local file and submits it to the pipeline. A file
// whose content hash is already known returns ErrDuplicateDocument.
func (r *Recall) AddDocument(filePath string, metadata model.Metadata) (*model.Document, error) {
	if r.Controller == nil {
		return nil, helper.NewError("add document", fmt.Errorf("pipeline not set, use SetPipeline() first"))
	}

	doc, err := model.NewDocumentFromFile(filePath, metadata)
	if err != nil {
		return nil, helper.NewError("read document file", err)
	}
	doc.ID = uuid.New()

	err = r.Documents.InsertDocument(doc)
	if err != nil {
		return nil, err
	}
	r.log.Info("Inserted document", slog.String("documentId", doc.ID.String()), slog.String("title", doc.Title))

	r.Controller.Submit(doc.ID)
	return doc, nil
}

// Resubmit re-runs the pipeline for an existing document, for example after
// fixing an error or replacing a scanned file.
func (r *Recall) Resubmit(documentID uuid.UUID) (bool, error) {
	if r.Controller == nil {
		return false, helper.NewError("resubmit document", fmt.Errorf("pipeline not set, use SetPipeline() first"))
	}

	_, err := r.Documents.UpdateDocumentStatus(documentID, model.StatusPending, nil)
	if err != nil {
		return false, err
	}
	return r.Controller.Submit(documentID), nil
}

// Recover resubmits documents a previous process left mid-pipeline.
func (r *Recall) Recover() error {
	if r.Controller == nil {
		return nil
	}
	return r.Controller.Recover()
}

// SearchChunks embeds the query and returns the most similar chunks,
// optionally scoped to a single document.
func (r *Recall) SearchChunks(query string, limit int, threshold float64, documentID *uuid.UUID) ([]*model.Chunk, error) {
	if r.Pipeline == nil || r.Pipeline.Embedder == nil {
		return nil, helper.NewError("chunk search", fmt.Errorf("pipeline with embedder not set, use SetPipeline() first"))
	}

	embedding, err := r.Pipeline.Embedder(query)
	if err != nil {
		return nil, helper.NewError("generate query embedding", err)
	}

	return r.Chunks.SelectChunksBySimilarity(embedding, limit, threshold, documentID)
}
