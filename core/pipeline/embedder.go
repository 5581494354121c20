package pipeline

import (
	"fmt"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/siherrmann/recall/helper"
)

// EmbeddingModel is the sentence transformer used for chunk embeddings.
const EmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"

// EmbeddingDim is the dimensionality of EmbeddingModel's output vectors.
const EmbeddingDim = 384

// DefaultEmbedder creates an embedder backed by a local sentence
// transformer. The model is downloaded on first use.
func DefaultEmbedder() (EmbedFunc, error) {
	modelPath, err := helper.PrepareModel(EmbeddingModel)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "chunk-embedder",
	}
	featurePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create feature pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create feature pipeline: %w", err)
	}

	return func(text string) ([]float32, error) {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("cannot embed empty text")
		}

		result, err := featurePipeline.RunPipeline([]string{text})
		if err != nil {
			return nil, fmt.Errorf("failed to generate embedding: %w", err)
		}
		if len(result.Embeddings) == 0 {
			return nil, fmt.Errorf("no embedding generated")
		}

		return result.Embeddings[0], nil
	}, nil
}
