package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/siherrmann/recall/core/llm"
	"github.com/siherrmann/recall/model"
)

// MaxConceptChunks bounds concept extraction per document.
const MaxConceptChunks = 20

// MinChunkChars skips chunks too short to carry extractable concepts.
const MinChunkChars = 100

// conceptPromptMaxChars truncates chunk content in the extraction prompt.
const conceptPromptMaxChars = 3000

// extractionConfidence is the provenance confidence recorded for every
// extracted concept.
const extractionConfidence = 0.8

// defaultRelationshipWeight is the initial weight of a freshly extracted
// relationship, before reinforcement from further chunks.
const defaultRelationshipWeight = 0.5

const conceptSystemPrompt = `You are a knowledge extraction engine. Given a text passage from a document, identify key concepts and their relationships. Respond ONLY with valid JSON in exactly this structure:
{"concepts": [{"name": "string", "category": "string", "description": "string"}], "relationships": [{"from": "concept name", "to": "concept name", "type": "relates_to"}]}
Rules:
- Extract at most 5 concepts per passage.
- Keep concept names concise (2-5 words).
- Categories must be one of: programming, mathematics, science, engineering, general.
- Relationship types must be: relates_to or prerequisite_of.
- 'from' and 'to' in relationships must exactly match names in the concepts list.
- If no clear concepts are found, return empty arrays.`

// conceptResponse is the JSON contract the extraction prompt demands.
type conceptResponse struct {
	Concepts []struct {
		Name        string `json:"name"`
		Category    string `json:"category"`
		Description string `json:"description"`
	} `json:"concepts"`
	Relationships []struct {
		From string `json:"from"`
		To   string `json:"to"`
		Type string `json:"type"`
	} `json:"relationships"`
}

// DefaultConceptExtractor creates a concept extractor on top of a completion
// function. The raw response is parsed defensively: empty names, unknown
// relationship types and relationships pointing outside the same response's
// concept list are dropped rather than failing the chunk.
func DefaultConceptExtractor(complete llm.CompleteFunc) ConceptExtractFunc {
	return func(ctx context.Context, chunkContent string, docTitle string) ([]*model.ConceptCandidate, []*model.RelationshipCandidate, error) {
		content := chunkContent
		if len(content) > conceptPromptMaxChars {
			content = content[:conceptPromptMaxChars]
		}
		userPrompt := fmt.Sprintf("Extract concepts from this passage from %q:\n\n%s", docTitle, content)

		response, err := complete(ctx, conceptSystemPrompt, userPrompt)
		if err != nil {
			return nil, nil, fmt.Errorf("concept extraction failed: %w", err)
		}

		parsed := &conceptResponse{}
		err = json.Unmarshal([]byte(llm.StripCodeFences(response)), parsed)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse concept extraction response: %w", err)
		}

		concepts := []*model.ConceptCandidate{}
		seen := map[string]bool{}
		for _, entry := range parsed.Concepts {
			name := strings.TrimSpace(entry.Name)
			if name == "" {
				continue
			}
			normalized := model.NormalizeConceptName(name)
			if seen[normalized] {
				continue
			}
			seen[normalized] = true

			concepts = append(concepts, &model.ConceptCandidate{
				Name:           name,
				NormalizedName: normalized,
				Category:       model.ParseCategory(entry.Category),
				Description:    strings.TrimSpace(entry.Description),
				Confidence:     extractionConfidence,
			})
		}

		relationships := []*model.RelationshipCandidate{}
		for _, entry := range parsed.Relationships {
			source := strings.TrimSpace(entry.From)
			target := strings.TrimSpace(entry.To)
			if source == "" || target == "" {
				continue
			}
			if !seen[model.NormalizeConceptName(source)] || !seen[model.NormalizeConceptName(target)] {
				continue
			}

			relType, ok := model.ParseRelType(entry.Type)
			if !ok {
				continue
			}

			relationships = append(relationships, &model.RelationshipCandidate{
				Source: source,
				Target: target,
				Type:   relType,
				Weight: defaultRelationshipWeight,
			})
		}

		return concepts, relationships, nil
	}
}
