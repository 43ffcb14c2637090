package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsensus(t *testing.T) {
	tests := []struct {
		name  string
		texts []string
		want  float64
	}{
		{"no responses", nil, 1.0},
		{"single response", []string{"anything at all"}, 1.0},
		{"identical", []string{"same words here", "same words here"}, 1.0},
		{"case and spacing insensitive", []string{"Hello   World", "hello world"}, 1.0},
		{"partial overlap", []string{"a b", "b c"}, 1.0 / 3.0},
		{"disjoint", []string{"a b", "c d"}, 0},
		{"both empty", []string{"", "  "}, 1.0},
		{"one empty", []string{"", "word"}, 0},
		{"three texts mean", []string{"a b", "a b", "c d"}, 1.0 / 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Consensus(tt.texts), 1e-9)
		})
	}
}

func TestSimilarity_Symmetric(t *testing.T) {
	a := "the quick brown fox"
	b := "the lazy brown dog"
	assert.Equal(t, Similarity(a, b), Similarity(b, a))
	assert.InDelta(t, 2.0/6.0, Similarity(a, b), 1e-9)
}

func TestCombine_StableOnEqualConfidence(t *testing.T) {
	result := combine([]Response{
		{Model: "m1", Text: "x", Confidence: 0.8, Tokens: 1},
		{Model: "m2", Text: "x", Confidence: 0.8, Tokens: 2},
		{Model: "m3", Text: "x", Confidence: 0.85, Tokens: 3},
	})

	assert.Equal(t, "m3", result.Model)
	assert.Equal(t, "m1", result.Alternatives[0].Model)
	assert.Equal(t, "m2", result.Alternatives[1].Model)
	assert.Equal(t, 6, result.Tokens)
	assert.Equal(t, 1.0, result.Consensus)
}
