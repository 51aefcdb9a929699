// Package ai wraps the OpenAI API for the two model-assisted features:
// expense categorization and receipt scanning. Both go through the narrow
// chatCompleter interface so tests can substitute a canned model.
package ai

import (
	"context"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const requestTimeout = 8 * time.Second

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// stripFences removes a Markdown code fence the model sometimes wraps JSON
// answers in, despite being told not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
