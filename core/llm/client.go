package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/siherrmann/recall/helper"
	"github.com/siherrmann/recall/model"
)

// CompleteFunc is a function that runs one completion call: a fixed system
// prompt plus a user prompt, returning the raw text response.
type CompleteFunc func(ctx context.Context, system string, user string) (string, error)

// DefaultModel is the Claude model used when none is configured.
const DefaultModel = "claude-sonnet-4-20250514"

// defaultMaxTokens bounds a single completion response.
const defaultMaxTokens = 4096

// DefaultCompleter creates a completer backed by the Anthropic API. The API
// key comes from ANTHROPIC_API_KEY; an empty model falls back to
// DefaultModel. A missing key returns ErrLLMUnavailable at call time, not at
// construction, so the ingestion pipeline can still run its non-LLM stages.
func DefaultCompleter(modelName string, timeout time.Duration) CompleteFunc {
	if modelName == "" {
		modelName = DefaultModel
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	return func(ctx context.Context, system string, user string) (string, error) {
		if apiKey == "" {
			return "", model.ErrLLMUnavailable
		}
		if strings.TrimSpace(user) == "" {
			return "", helper.NewError("prompt validation", fmt.Errorf("user prompt is empty"))
		}

		timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(modelName),
			MaxTokens: int64(defaultMaxTokens),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
			},
		}
		if system != "" {
			params.System = []anthropic.TextBlockParam{
				{Text: system},
			}
		}

		resp, err := client.Messages.New(timeoutCtx, params)
		if err != nil {
			return "", helper.NewError("completion call", err)
		}

		var response strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				response.WriteString(block.Text)
			}
		}

		if response.Len() == 0 {
			return "", helper.NewError("completion call", fmt.Errorf("empty response"))
		}

		return response.String(), nil
	}
}

// StripCodeFences removes a surrounding markdown code fence from a
// completion response, so JSON contracts survive models that wrap their
// output in ```json blocks.
func StripCodeFences(response string) string {
	trimmed := strings.TrimSpace(response)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if newline := strings.Index(trimmed, "\n"); newline >= 0 {
		// Drop the language tag line (```json)
		trimmed = trimmed[newline+1:]
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")

	return strings.TrimSpace(trimmed)
}
