package gemini

import (
	"testing"

	"github.com/biodoia/goleapcode/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestConvertRequest(t *testing.T) {
	temp := 0.2
	maxTokens := 512

	contents, config := convertRequest(&providers.ChatRequest{
		Messages: []providers.Message{
			{Role: providers.RoleSystem, Content: "sys"},
			{Role: providers.RoleSystem, Content: "Context: ctx"},
			{Role: providers.RoleUser, Content: "question"},
			{Role: providers.RoleAssistant, Content: "answer"},
		},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})

	require.Len(t, contents, 2)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, "question", contents[0].Parts[0].Text)
	assert.Equal(t, genai.RoleModel, contents[1].Role)

	require.NotNil(t, config.SystemInstruction)
	assert.Equal(t, "sys\n\nContext: ctx", config.SystemInstruction.Parts[0].Text)
	require.NotNil(t, config.Temperature)
	assert.InDelta(t, 0.2, float64(*config.Temperature), 1e-6)
	assert.Equal(t, int32(512), config.MaxOutputTokens)
}

func TestBuild_RequiresAPIKey(t *testing.T) {
	_, err := Build(providers.Spec{ModelID: "gemini-pro", Model: "gemini-1.5-pro", Kind: providers.KindGemini}, providers.Config{})
	assert.Error(t, err)
}
