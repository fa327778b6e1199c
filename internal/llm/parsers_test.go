package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: `{"a":1}`, want: `{"a":1}`},
		{name: "prose around", in: "結果です: {\"a\":1} 以上", want: `{"a":1}`},
		{name: "fenced", in: "```json\n{\"a\":{\"b\":2}}\n```\n{\"x\":0}", want: `{"a":{"b":2}}`},
		{name: "none", in: "no json here", wantErr: true},
		{name: "reversed braces", in: "} {", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoJSONObject)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeObjectRepairsTrailingComma(t *testing.T) {
	var out struct {
		Items []string `json:"items"`
	}
	require.NoError(t, DecodeObject(`{"items": ["a", "b",],}`, &out))
	assert.Equal(t, []string{"a", "b"}, out.Items)
}

func TestDecodeObjectNoObject(t *testing.T) {
	var out map[string]any
	assert.Error(t, DecodeObject("plain text", &out))
}
