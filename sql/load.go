package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed documents.sql
var documentsSQL string

//go:embed chunks.sql
var chunksSQL string

//go:embed concepts.sql
var conceptsSQL string

//go:embed edges.sql
var edgesSQL string

//go:embed flashcards.sql
var flashcardsSQL string

// Function lists for verification
var DocumentsFunctions = []string{
	"init_documents",
	"insert_document",
	"select_document",
	"select_document_by_hash",
	"select_all_documents",
	"select_documents_by_status",
	"update_document_status",
	"update_document_extraction",
	"update_document_concept_count",
	"delete_document",
}

var ChunksFunctions = []string{
	"init_chunks",
	"insert_chunk",
	"select_chunk",
	"select_chunks_by_document",
	"select_embedded_chunks_by_document",
	"update_chunk_embedding",
	"select_chunks_by_similarity",
	"delete_chunk",
}

var ConceptsFunctions = []string{
	"init_concepts",
	"upsert_concept",
	"insert_concept",
	"select_concept",
	"select_concept_by_normalized_name",
	"select_all_concepts",
	"select_concepts_by_ids",
	"select_concepts_by_document",
	"update_concept_mastery_from_chunk",
	"delete_concept",
}

var EdgesFunctions = []string{
	"init_edges",
	"upsert_relationship",
	"insert_relationship",
	"select_relationship",
	"select_relationships_for_concept",
	"select_all_relationships",
	"delete_relationship",
	"upsert_extracted_from",
	"select_extracted_from_by_concept",
}

var FlashcardsFunctions = []string{
	"init_flashcards",
	"insert_flashcard",
	"select_flashcard",
	"select_due_flashcards",
	"select_flashcards_by_document",
	"update_flashcard_review",
	"update_flashcard_content",
	"delete_flashcard",
	"select_flashcard_stats_by_document",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadDocumentsSql loads document-related SQL functions
func LoadDocumentsSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, DocumentsFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing documents functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(documentsSQL)
	if err != nil {
		return fmt.Errorf("error executing documents SQL: %w", err)
	}

	exist, err := checkFunctions(db, DocumentsFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL documents functions loaded successfully")
	return nil
}

// LoadChunksSql loads chunk-related SQL functions
func LoadChunksSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, ChunksFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing chunks functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(chunksSQL)
	if err != nil {
		return fmt.Errorf("error executing chunks SQL: %w", err)
	}

	exist, err := checkFunctions(db, ChunksFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL chunks functions loaded successfully")
	return nil
}

// LoadConceptsSql loads concept-related SQL functions
func LoadConceptsSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, ConceptsFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing concepts functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(conceptsSQL)
	if err != nil {
		return fmt.Errorf("error executing concepts SQL: %w", err)
	}

	exist, err := checkFunctions(db, ConceptsFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL concepts functions loaded successfully")
	return nil
}

// LoadEdgesSql loads relationship-related SQL functions
func LoadEdgesSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, EdgesFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing edges functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(edgesSQL)
	if err != nil {
		return fmt.Errorf("error executing edges SQL: %w", err)
	}

	exist, err := checkFunctions(db, EdgesFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL edges functions loaded successfully")
	return nil
}

// LoadFlashcardsSql loads flashcard-related SQL functions
func LoadFlashcardsSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, FlashcardsFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing flashcards functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(flashcardsSQL)
	if err != nil {
		return fmt.Errorf("error executing flashcards SQL: %w", err)
	}

	exist, err := checkFunctions(db, FlashcardsFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL flashcards functions loaded successfully")
	return nil
}

// LoadAllSql loads all SQL functions
func LoadAllSql(db *sql.DB, force bool) error {
	if err := LoadDocumentsSql(db, force); err != nil {
		return err
	}

	if err := LoadChunksSql(db, force); err != nil {
		return err
	}

	if err := LoadConceptsSql(db, force); err != nil {
		return err
	}

	if err := LoadEdgesSql(db, force); err != nil {
		return err
	}

	if err := LoadFlashcardsSql(db, force); err != nil {
		return err
	}

	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
