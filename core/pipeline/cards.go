package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/siherrmann/recall/core/llm"
	"github.com/siherrmann/recall/model"
)

// MaxCardChunks bounds flashcard generation per document.
const MaxCardChunks = 10

// maxCardsPerChunk caps how many generated cards are kept per chunk.
const maxCardsPerChunk = 3

const cardsSystemPrompt = `You are a flashcard generator for active recall learning. Given a text passage, generate 2-3 question-answer pairs to test understanding. Respond ONLY with valid JSON in exactly this structure:
{"cards": [{"question": "string", "answer": "string", "difficulty": 0.3}]}
Rules:
- difficulty is a float from 0.1 (easy) to 0.9 (hard).
- Questions must be specific and directly answerable from the passage.
- Answers must be concise (1-3 sentences).
- Generate at most 3 cards per passage.
- If the passage has no meaningful content to test, return an empty cards array.`

// cardsResponse is the JSON contract the generation prompt demands.
type cardsResponse struct {
	Cards []struct {
		Question   string  `json:"question"`
		Answer     string  `json:"answer"`
		Difficulty float64 `json:"difficulty"`
	} `json:"cards"`
}

// DefaultCardGenerator creates a flashcard generator on top of a completion
// function. Returned cards carry only question and answer; scheduling state
// starts at the SM-2 defaults when the card is stored.
func DefaultCardGenerator(complete llm.CompleteFunc) CardGenerateFunc {
	return func(ctx context.Context, chunkContent string) ([]*model.Flashcard, error) {
		content := chunkContent
		if len(content) > conceptPromptMaxChars {
			content = content[:conceptPromptMaxChars]
		}
		userPrompt := fmt.Sprintf("Generate flashcards from this passage:\n\n%s", content)

		response, err := complete(ctx, cardsSystemPrompt, userPrompt)
		if err != nil {
			return nil, fmt.Errorf("flashcard generation failed: %w", err)
		}

		parsed := &cardsResponse{}
		err = json.Unmarshal([]byte(llm.StripCodeFences(response)), parsed)
		if err != nil {
			return nil, fmt.Errorf("failed to parse flashcard response: %w", err)
		}

		cards := []*model.Flashcard{}
		for _, entry := range parsed.Cards {
			question := strings.TrimSpace(entry.Question)
			answer := strings.TrimSpace(entry.Answer)
			if question == "" || answer == "" {
				continue
			}

			cards = append(cards, &model.Flashcard{
				Question: question,
				Answer:   answer,
			})
			if len(cards) == maxCardsPerChunk {
				break
			}
		}

		return cards, nil
	}
}
