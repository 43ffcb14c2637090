package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrompt(t *testing.T) {
	r, err := DefaultRegistry()
	require.NoError(t, err)

	tests := []struct {
		name string
		opts RunOptions
		want string
	}{
		{
			name: "no context",
			opts: RunOptions{},
			want: "Analyze the following unknown code:\n\nx := 1\n\n\n\nPlease provide a thorough analysis following the specified format.",
		},
		{
			name: "language and context",
			opts: RunOptions{Language: "go", Context: "part of a CLI"},
			want: "Analyze the following go code:\n\nx := 1\n\nAdditional context:\npart of a CLI\n\n\nPlease provide a thorough analysis following the specified format.",
		},
		{
			name: "issues",
			opts: RunOptions{Language: "go", Issues: []Finding{{Severity: "high", Message: "unused"}}},
			want: "Analyze the following go code:\n\nx := 1\n\nKnown issues:\n[\n  {\n    \"severity\": \"high\",\n    \"message\": \"unused\"\n  }\n]\n\n\nPlease provide a thorough analysis following the specified format.",
		},
		{
			name: "empty issues are omitted",
			opts: RunOptions{Issues: []Finding{}},
			want: "Analyze the following unknown code:\n\nx := 1\n\n\n\nPlease provide a thorough analysis following the specified format.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Prompt("syntax-analyzer", "x := 1", tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
