package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultOpenAIModel   = "gpt-4.1-mini"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
)

type OpenAIClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewOpenAIClient(apiKey, model, baseURL string) *OpenAIClient {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return &OpenAIClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *OpenAIClient) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type jsonSchemaFormat struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

type responseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *jsonSchemaFormat `json:"json_schema,omitempty"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string, opts *GenOptions) (string, error) {
	req := chatRequest{Model: c.model}
	if opts != nil {
		if opts.Model != "" {
			req.Model = opts.Model
		}
		if opts.Temperature != nil {
			t := *opts.Temperature
			req.Temperature = &t
		}
		req.MaxTokens = opts.MaxTokens
		if opts.System != "" {
			req.Messages = append(req.Messages, chatMessage{Role: "system", Content: opts.System})
		}
		if opts.Schema != nil {
			req.ResponseFormat = &responseFormat{
				Type: "json_schema",
				JSONSchema: &jsonSchemaFormat{
					Name:   opts.SchemaName,
					Schema: openAISchema(opts.Schema),
					Strict: allRequired(opts.Schema),
				},
			}
		}
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: prompt})
	return c.callChat(ctx, req)
}

func (c *OpenAIClient) callChat(ctx context.Context, cr chatRequest) (string, error) {
	body, err := json.Marshal(cr)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai read body: %w", err)
	}

	var out chatResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if out.Error != nil {
			msg = out.Error.Message
		}
		return "", &StatusError{Provider: "openai", Code: resp.StatusCode, Message: msg}
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return out.Choices[0].Message.Content, nil
}

// openAISchema renders s as JSON Schema with additionalProperties disabled on
// every object, which structured outputs require.
func openAISchema(s *Schema) map[string]any {
	out := map[string]any{"type": s.Type}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	if s.Items != nil {
		out["items"] = openAISchema(s.Items)
	}
	if s.Type == TypeObject {
		props := make(map[string]any, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = openAISchema(p)
		}
		out["properties"] = props
		out["required"] = append([]string{}, s.Required...)
		out["additionalProperties"] = false
	}
	return out
}

// allRequired reports whether every object in s requires all its properties,
// the precondition for strict structured output.
func allRequired(s *Schema) bool {
	if s == nil {
		return true
	}
	if s.Type == TypeObject {
		if len(s.Required) != len(s.Properties) {
			return false
		}
		for _, p := range s.Properties {
			if !allRequired(p) {
				return false
			}
		}
	}
	return allRequired(s.Items)
}
