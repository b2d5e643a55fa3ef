package hint

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiSuggester asks a Gemini model for an annotation in JSON mode.
type GeminiSuggester struct {
	client *genai.Client
	model  string
}

// GeminiOptions configures NewGeminiSuggester.
type GeminiOptions struct {
	APIKey string
	Model  string

	// BaseURL overrides the API endpoint. Tests point it at a local server.
	BaseURL string
}

// NewGeminiSuggester creates a Gemini-backed suggester.
func NewGeminiSuggester(ctx context.Context, opts GeminiOptions) (*GeminiSuggester, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if opts.Model == "" {
		opts.Model = DefaultGeminiModel
	}

	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiSuggester{client: client, model: opts.Model}, nil
}

func (g *GeminiSuggester) Suggest(ctx context.Context, p Prompt) (Annotation, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		genai.Text(p.User),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(p.System, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			Temperature:       genai.Ptr[float32](0),
		})
	if err != nil {
		return Annotation{}, fmt.Errorf("gemini generate: %w", err)
	}
	return ParseAnnotation(resp.Text())
}

func (g *GeminiSuggester) Name() string {
	return "gemini:" + g.model
}
