package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/siherrmann/recall"
	"github.com/siherrmann/recall/core/ingest"
	"github.com/siherrmann/recall/core/llm"
	"github.com/siherrmann/recall/core/pipeline"
	"github.com/siherrmann/recall/helper"
	"github.com/siherrmann/recall/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	logger := slog.New(helper.NewPrettyHandler(os.Stdout, helper.PrettyHandlerOptions{}))

	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		logger.Error("invalid database configuration", slog.Any("error", err))
		os.Exit(1)
	}

	instance, err := recall.New(dbConfig, pipeline.EmbeddingDim)
	if err != nil {
		logger.Error("failed to initialize recall", slog.Any("error", err))
		os.Exit(1)
	}
	defer instance.Close()

	llmModel := envString("RECALL_LLM_MODEL", llm.DefaultModel)
	queueSize := envInt("RECALL_QUEUE_SIZE", llm.DefaultQueueSize)
	workers := envInt("RECALL_WORKERS", ingest.DefaultEmbeddingWorkers)
	if err := instance.UseDefaultPipeline(llmModel, queueSize, workers); err != nil {
		logger.Error("failed to set up pipeline", slog.Any("error", err))
		os.Exit(1)
	}

	// Restart documents that were mid-pipeline when the last process died.
	if err := instance.Recover(); err != nil {
		logger.Warn("recovery of in-flight documents failed", slog.Any("error", err))
	}

	router := server.NewRouter(instance)

	port := envString("RECALL_PORT", "8080")
	logger.Info("recalld listening", slog.String("port", port), slog.String("llm_model", llmModel))
	if err := router.Run(":" + port); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func envString(name string, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
