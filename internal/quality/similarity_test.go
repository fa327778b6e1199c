package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "abc判断", Normalize(" A「b」、C。 判断！"))
	assert.Equal(t, "", Normalize(" \t\n（）"))
}

func TestBigrams(t *testing.T) {
	got := Bigrams("結論先に")
	assert.Len(t, got, 3)
	assert.Contains(t, got, "結論")
	assert.Contains(t, got, "先に")
	assert.Empty(t, Bigrams("a"))
}

func TestOverlapRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "identical", a: "結論から話します", b: "結論から話します", want: 1},
		{name: "single rune", a: "a", b: "abc", want: 0},
		{name: "empty", a: "", b: "abc", want: 0},
		{name: "disjoint", a: "abcd", b: "wxyz", want: 0},
		{name: "subset", a: "abc", b: "xabcx", want: 1},
		{name: "punctuation ignored", a: "A-B-C", b: "abc", want: 1},
		{name: "partial", a: "abcd", b: "abxy", want: 1.0 / 3.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, OverlapRatio(tt.a, tt.b), 1e-9)
		})
	}
}

func TestOverlapRatioSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"来週のリリースを延期したい", "リリース延期の理由を教えて"},
		{"abc", "bcdefg"},
		{"不安です", "安心してください"},
	}
	for _, p := range pairs {
		assert.InDelta(t, OverlapRatio(p[0], p[1]), OverlapRatio(p[1], p[0]), 1e-12)
	}
}
