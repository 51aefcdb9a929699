package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"

	"github.com/Amansingh0807/OptExAI/internal/core"
)

// ErrNotReceipt is returned when the model finds no receipt in the image.
var ErrNotReceipt = errors.New("image does not look like a receipt")

// ReceiptScan is the structured result of reading a receipt image.
type ReceiptScan struct {
	Amount       decimal.Decimal
	Date         time.Time
	Description  string
	MerchantName string
	Category     string
}

// ReceiptScanner extracts transaction data from receipt photos using a
// vision-capable model.
type ReceiptScanner struct {
	client chatCompleter
	model  string
}

func NewReceiptScanner(apiKey, model string) *ReceiptScanner {
	return &ReceiptScanner{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

const scanPrompt = `Analyze this receipt image and extract the following information in JSON format:
- amount: total amount as a decimal string
- date: purchase date in YYYY-MM-DD format
- description: brief description of the purchase
- merchantName: name of the merchant
- category: one of %s

Respond with only valid JSON, no code fences. If the image is not a receipt, respond with an empty JSON object {}.`

// Scan reads a receipt image and returns the extracted transaction fields.
// The image is inlined as a data URL; mimeType must match its encoding.
func (s *ReceiptScanner) Scan(ctx context.Context, image []byte, mimeType string) (ReceiptScan, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))
	prompt := fmt.Sprintf(scanPrompt, strings.Join(core.Categories(core.Expense), ", "))

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0,
		MaxTokens:   300,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
				},
			},
		},
	})
	if err != nil {
		return ReceiptScan{}, fmt.Errorf("scan receipt: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ReceiptScan{}, fmt.Errorf("scan receipt: empty model response")
	}

	var raw struct {
		Amount       string `json:"amount"`
		Date         string `json:"date"`
		Description  string `json:"description"`
		MerchantName string `json:"merchantName"`
		Category     string `json:"category"`
	}
	body := stripFences(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return ReceiptScan{}, fmt.Errorf("scan receipt: parse model answer: %w", err)
	}
	if raw.Amount == "" {
		return ReceiptScan{}, ErrNotReceipt
	}

	amount, err := decimal.NewFromString(raw.Amount)
	if err != nil || !amount.IsPositive() {
		return ReceiptScan{}, fmt.Errorf("scan receipt: bad amount %q", raw.Amount)
	}

	scan := ReceiptScan{
		Amount:       amount,
		Description:  strings.TrimSpace(raw.Description),
		MerchantName: strings.TrimSpace(raw.MerchantName),
		Category:     strings.ToLower(strings.TrimSpace(raw.Category)),
	}
	if !core.ValidCategory(core.Expense, scan.Category) {
		scan.Category = core.OtherCategory(core.Expense)
	}
	if raw.Date != "" {
		if d, err := time.Parse("2006-01-02", raw.Date); err == nil {
			scan.Date = d
		}
	}
	if scan.Date.IsZero() {
		scan.Date = time.Now().UTC()
	}
	return scan, nil
}
