package classifier

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const openAISystemPrompt = "You score the sentiment of text. Reply with a single number between -1 " +
	"(very negative) and 1 (very positive), 0 meaning neutral. Reply with the number only."

// OpenAI asks a chat model for a polarity score.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates a chat-completions classifier. baseURL may point at any
// OpenAI-compatible endpoint; empty means the public API.
func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Score(ctx context.Context, text string) (float64, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: openAISystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		MaxTokens:   8,
		Temperature: 0,
	})
	if err != nil {
		return 0, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return 0, errors.New("openai chat completion: no choices")
	}
	return parseScore(resp.Choices[0].Message.Content)
}

func parseScore(content string) (float64, error) {
	s := strings.TrimSpace(content)
	s = strings.Trim(s, "`\"'. ")
	if fields := strings.Fields(s); len(fields) > 0 {
		s = fields[0]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("openai: reply %q is not a score", content)
	}
	return clamp(v), nil
}
