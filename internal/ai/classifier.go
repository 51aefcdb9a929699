package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Amansingh0807/OptExAI/internal/core"
)

// Classifier suggests a category for a transaction description. It is a
// best-effort helper: every failure mode, from a dead network to a model
// answering outside the known category set, collapses to the empty string so
// callers can fall back to their own default.
type Classifier struct {
	client chatCompleter
	model  string
}

func NewClassifier(apiKey, model string) *Classifier {
	return &Classifier{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Classify returns a category from the closed set for the transaction type,
// or "" when no confident suggestion is available. Descriptions shorter than
// three characters are not worth a model round trip.
func (c *Classifier) Classify(ctx context.Context, typ core.TransactionType, description string) string {
	description = strings.TrimSpace(description)
	if len(description) < 3 {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	categories := core.Categories(typ)
	prompt := fmt.Sprintf(
		"Categorize this %s transaction description into exactly one of these categories: %s.\n"+
			"Description: %q\n"+
			"Respond with only the category name, nothing else.",
		strings.ToLower(string(typ)), strings.Join(categories, ", "), description)

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0,
		MaxTokens:   20,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		slog.DebugContext(ctx, "category classification failed", "error", err)
		return ""
	}
	if len(resp.Choices) == 0 {
		return ""
	}

	label := strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content))
	label = strings.Trim(label, `"'.`)
	if !core.ValidCategory(typ, label) {
		slog.DebugContext(ctx, "classifier answered outside category set", "label", label)
		return ""
	}
	return label
}
