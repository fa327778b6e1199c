package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"deepdive/internal/metrics"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Settings struct {
	Provider      string
	Model         string
	OpenAIKey     string
	OpenAIBaseURL string
	GeminiKey     string
}

// New builds the configured provider wrapped with latency metrics. It returns
// a nil Client and no error when the provider has no credential; callers
// treat that as "no model configured" and serve fallbacks.
func New(ctx context.Context, s Settings, m *metrics.Metrics, log *zap.Logger) (Client, error) {
	switch s.Provider {
	case ProviderOpenAI, "":
		if s.OpenAIKey == "" {
			return nil, nil
		}
		return Instrument(NewOpenAIClient(s.OpenAIKey, s.Model, s.OpenAIBaseURL), ProviderOpenAI, m), nil
	case ProviderGemini:
		if s.GeminiKey == "" {
			return nil, nil
		}
		c, err := NewGeminiClient(ctx, s.GeminiKey, s.Model, log)
		if err != nil {
			return nil, err
		}
		return Instrument(c, ProviderGemini, m), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", s.Provider)
	}
}

type instrumented struct {
	next     Client
	provider string
	metrics  *metrics.Metrics
}

// Instrument records the latency and outcome of every call made through c.
func Instrument(c Client, provider string, m *metrics.Metrics) Client {
	return &instrumented{next: c, provider: provider, metrics: m}
}

func (i *instrumented) Model() string { return i.next.Model() }

func (i *instrumented) Generate(ctx context.Context, prompt string, opts *GenOptions) (string, error) {
	start := time.Now()
	out, err := i.next.Generate(ctx, prompt, opts)
	status := "ok"
	if err != nil {
		status = "error"
	}
	i.metrics.ObserveLLM(i.provider, status, time.Since(start))
	return out, err
}
