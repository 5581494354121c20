package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/siherrmann/recall"
	"github.com/siherrmann/recall/core/pipeline"
	"github.com/siherrmann/recall/helper"
	"github.com/siherrmann/recall/model"
)

const sampleContent = `Spaced repetition is a learning technique based on reviewing material at increasing intervals.

Each successful recall pushes the next review further into the future, while a failed recall resets the schedule.
The SM-2 algorithm tracks an ease factor per card and adjusts it with every review grade.

Flashcards work best when they are generated from the learner's own reading material.
Extracting concepts from documents and linking them in a knowledge graph shows which ideas depend on each other.`

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
	}

	r, err := recall.New(dbConfig, pipeline.EmbeddingDim)
	if err != nil {
		log.Fatalf("Failed to create recall: %v", err)
	}
	defer r.Close()

	// Default pipeline: pdf/text extraction, sentence chunking, local
	// embeddings. Concept extraction and card generation additionally need
	// ANTHROPIC_API_KEY; without it the pipeline still embeds and indexes.
	if err := r.UseDefaultPipeline("", 1, 2); err != nil {
		log.Fatalf("Failed to set up pipeline: %v", err)
	}

	// Ingest a sample file
	path := filepath.Join(os.TempDir(), "spaced_repetition_notes.txt")
	if err := os.WriteFile(path, []byte(sampleContent), 0644); err != nil {
		log.Fatalf("Failed to write sample file: %v", err)
	}
	defer os.Remove(path)

	fmt.Println("Ingesting document...")
	doc, err := r.AddDocument(path, model.Metadata{"topic": "learning techniques"})
	if err != nil {
		log.Fatalf("Failed to add document: %v", err)
	}

	stored, err := r.Documents.SelectDocument(doc.ID)
	for err == nil && !stored.Status.Terminal() {
		time.Sleep(200 * time.Millisecond)
		stored, err = r.Documents.SelectDocument(doc.ID)
	}
	if err != nil {
		log.Fatalf("Failed to poll document: %v", err)
	}
	fmt.Printf("Document %s finished with status %q (%d pages)\n", doc.ID, stored.Status, stored.PageCount)

	// Semantic search over the embedded chunks
	query := "How does spaced repetition schedule reviews?"
	fmt.Printf("\nQuerying: %s\n", query)
	chunks, err := r.SearchChunks(query, 3, 0.0, nil)
	if err != nil {
		log.Fatalf("Failed to search: %v", err)
	}
	for i, chunk := range chunks {
		fmt.Printf("\n--- Result %d (score %.4f) ---\n%s\n", i+1, chunk.Similarity, chunk.Content)
	}

	// Review any generated flashcards
	cards, err := r.Scheduler.DueToday(&doc.ID, 10)
	if err != nil {
		log.Fatalf("Failed to load due cards: %v", err)
	}
	fmt.Printf("\n%d flashcards due\n", len(cards))
	for _, card := range cards {
		fmt.Printf("Q: %s\nA: %s\n", card.Question, card.Answer)
		reviewed, err := r.Scheduler.Review(context.Background(), card.ID, model.GradeGood)
		if err != nil {
			log.Fatalf("Failed to review card: %v", err)
		}
		fmt.Printf("Next review: %s\n\n", reviewed.NextReview.Format("2006-01-02"))
	}

	fmt.Println("Basic example completed successfully!")
}
