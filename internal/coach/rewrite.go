package coach

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"deepdive/internal/llm"
	"deepdive/internal/metrics"
)

type Tone string

const (
	ToneShort  Tone = "short"
	TonePolite Tone = "polite"
	ToneDirect Tone = "direct"
)

func (t Tone) Valid() bool {
	return t == ToneShort || t == TonePolite || t == ToneDirect
}

const (
	rewriteSystem      = "あなたは日本語のビジネス文面リライターです。意味は変えず、指定トーンに変換してください。出力は文面のみ。"
	rewriteTemperature = 0.4
	shortFallbackRunes = 90
	rewriteFlow        = "rewrite"

	DefaultRewriteCacheSize = 256
)

var toneInstructions = map[Tone]string{
	ToneShort:  "短く。120文字以内。",
	TonePolite: "ていねい。柔らかい依頼表現。",
	ToneDirect: "率直。結論先行。",
}

var (
	ErrInvalidTone  = errors.New("coach: tone must be short, polite or direct")
	ErrEmptyMessage = errors.New("coach: message is empty")
)

// Rewriter converts a draft message into another tone. Model results are
// cached by tone and message.
type Rewriter struct {
	client  llm.Client
	cache   *lru.Cache[string, string]
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewRewriter(client llm.Client, cacheSize int, log *zap.Logger, m *metrics.Metrics) (*Rewriter, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultRewriteCacheSize
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create rewrite cache: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Rewriter{client: client, cache: cache, log: log.Named("rewrite"), metrics: m}, nil
}

func (r *Rewriter) Rewrite(ctx context.Context, message string, tone Tone) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}
	if !tone.Valid() {
		return "", ErrInvalidTone
	}
	if r.client == nil {
		r.metrics.Fallback(rewriteFlow, "no_model")
		return fallbackRewrite(message, tone), nil
	}

	key := string(tone) + "\x00" + message
	if cached, ok := r.cache.Get(key); ok {
		return cached, nil
	}

	out, err := r.client.Generate(ctx, "変換条件: "+toneInstructions[tone]+"\n原文: "+message, &llm.GenOptions{
		System:      rewriteSystem,
		Temperature: llm.Temp(rewriteTemperature),
	})
	if err != nil {
		r.log.Warn("model call failed", zap.String("tone", string(tone)), zap.Error(err))
		r.metrics.Attempt(rewriteFlow, "call_error")
		r.metrics.Fallback(rewriteFlow, "exhausted")
		return fallbackRewrite(message, tone), nil
	}
	out = strings.TrimSpace(out)
	if out == "" {
		r.metrics.Attempt(rewriteFlow, "empty")
		r.metrics.Fallback(rewriteFlow, "exhausted")
		return fallbackRewrite(message, tone), nil
	}
	r.metrics.Attempt(rewriteFlow, "accepted")
	r.cache.Add(key, out)
	return out, nil
}

func fallbackRewrite(message string, tone Tone) string {
	compact := strings.Join(strings.Fields(message), " ")
	switch tone {
	case ToneShort:
		if rs := []rune(compact); len(rs) > shortFallbackRunes {
			return string(rs[:shortFallbackRunes]) + "..."
		}
		return compact
	case TonePolite:
		return "お疲れさまです。" + compact + " ご確認いただけると助かります。"
	default:
		return "結論です。" + compact
	}
}
