package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.5-flash"

type GeminiClient struct {
	model  string
	client *genai.Client
	log    *zap.Logger

	maxOutputTokens int32
}

func NewGeminiClient(ctx context.Context, apiKey, model string, log *zap.Logger) (*GeminiClient, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	if log == nil {
		log = zap.NewNop()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiClient{
		model:           model,
		client:          client,
		log:             log,
		maxOutputTokens: 8192,
	}, nil
}

func (c *GeminiClient) Model() string { return c.model }

func (c *GeminiClient) Generate(ctx context.Context, prompt string, opts *GenOptions) (string, error) {
	currentModel := c.model
	cfg := &genai.GenerateContentConfig{MaxOutputTokens: c.maxOutputTokens}

	if opts != nil {
		if opts.Model != "" {
			currentModel = opts.Model
		}
		if opts.Temperature != nil {
			t := float32(*opts.Temperature)
			cfg.Temperature = &t
		}
		if opts.MaxTokens > 0 {
			cfg.MaxOutputTokens = int32(opts.MaxTokens)
		}
		if opts.System != "" {
			cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: opts.System}}}
		}
		if opts.Schema != nil {
			cfg.ResponseMIMEType = "application/json"
			cfg.ResponseSchema = geminiSchema(opts.Schema)
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, currentModel, genai.Text(prompt), cfg)
	if err != nil {
		return "", geminiError(err)
	}

	if resp.UsageMetadata != nil {
		c.log.Debug("gemini usage",
			zap.String("model", currentModel),
			zap.Int32("prompt_tokens", resp.UsageMetadata.PromptTokenCount),
			zap.Int32("candidate_tokens", resp.UsageMetadata.CandidatesTokenCount),
			zap.Int32("total_tokens", resp.UsageMetadata.TotalTokenCount),
		)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Provider: "gemini", Code: apiErr.Code, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &StatusError{Provider: "gemini", Code: apiErrPtr.Code, Message: apiErrPtr.Message}
	}
	return fmt.Errorf("gemini request: %w", err)
}

func geminiSchema(s *Schema) *genai.Schema {
	out := &genai.Schema{
		Description: s.Description,
		Enum:        s.Enum,
		Required:    s.Required,
	}
	switch s.Type {
	case TypeObject:
		out.Type = genai.TypeObject
	case TypeArray:
		out.Type = genai.TypeArray
	default:
		out.Type = genai.TypeString
	}
	if s.Items != nil {
		out.Items = geminiSchema(s.Items)
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = geminiSchema(p)
		}
	}
	return out
}
