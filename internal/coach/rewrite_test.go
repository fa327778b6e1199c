package coach

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewriteValidation(t *testing.T) {
	r, err := NewRewriter(nil, 0, nil, nil)
	require.NoError(t, err)

	_, err = r.Rewrite(context.Background(), "こんにちは", "casual")
	require.ErrorIs(t, err, ErrInvalidTone)
	_, err = r.Rewrite(context.Background(), "   ", ToneShort)
	require.ErrorIs(t, err, ErrEmptyMessage)
}

func TestFallbackRewrite(t *testing.T) {
	tests := []struct {
		name    string
		message string
		tone    Tone
		want    string
	}{
		{"short keeps compact text", "結論  から\n言います", ToneShort, "結論 から 言います"},
		{"short truncates", strings.Repeat("あ", 95), ToneShort, strings.Repeat("あ", 90) + "..."},
		{"polite wraps", "確認お願いします。", TonePolite, "お疲れさまです。確認お願いします。 ご確認いただけると助かります。"},
		{"direct prefixes", "A案で進めます。", ToneDirect, "結論です。A案で進めます。"},
	}
	r, err := NewRewriter(nil, 0, nil, nil)
	require.NoError(t, err)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Rewrite(context.Background(), tt.message, tt.tone)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRewriteUsesModelAndCache(t *testing.T) {
	client := &scriptedClient{model: "m", replies: []string{"  短くしました。 "}}
	r, err := NewRewriter(client, 8, nil, nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got, err := r.Rewrite(context.Background(), "長い文面です", ToneShort)
		require.NoError(t, err)
		assert.Equal(t, "短くしました。", got)
	}
	require.Len(t, client.calls, 1, "second call served from cache")
	assert.Equal(t, "変換条件: 短く。120文字以内。\n原文: 長い文面です", client.calls[0].prompt)
	assert.Equal(t, rewriteSystem, client.calls[0].opts.System)
}

func TestRewriteFallsBackOnModelFailure(t *testing.T) {
	client := &scriptedClient{model: "m", replies: []string{"   "}, errs: []error{errors.New("503")}}
	r, err := NewRewriter(client, 8, nil, nil)
	require.NoError(t, err)

	got, err := r.Rewrite(context.Background(), "A案です", ToneDirect)
	require.NoError(t, err)
	assert.Equal(t, "結論です。A案です", got)

	got, err = r.Rewrite(context.Background(), "A案です", ToneDirect)
	require.NoError(t, err)
	assert.Equal(t, "結論です。A案です", got, "blank output falls back too")
	assert.Len(t, client.calls, 2)
}
