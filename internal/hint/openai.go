package hint

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAISuggester asks an OpenAI chat model for an annotation in JSON mode.
type OpenAISuggester struct {
	client *openai.Client
	model  string
}

// OpenAIOptions configures NewOpenAISuggester.
type OpenAIOptions struct {
	APIKey string
	Model  string

	// BaseURL overrides the API endpoint, for compatible servers and tests.
	BaseURL string
}

// NewOpenAISuggester creates an OpenAI-backed suggester.
func NewOpenAISuggester(opts OpenAIOptions) (*OpenAISuggester, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if opts.Model == "" {
		opts.Model = DefaultOpenAIModel
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	return &OpenAISuggester{
		client: openai.NewClientWithConfig(cfg),
		model:  opts.Model,
	}, nil
}

func (o *OpenAISuggester) Suggest(ctx context.Context, p Prompt) (Annotation, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.System},
			{Role: openai.ChatMessageRoleUser, Content: p.User},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return Annotation{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Annotation{}, fmt.Errorf("openai returned no choices")
	}
	return ParseAnnotation(resp.Choices[0].Message.Content)
}

func (o *OpenAISuggester) Name() string {
	return "openai:" + o.model
}
