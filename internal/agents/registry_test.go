package agents

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/biodoia/goleapcode/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r, err := DefaultRegistry()
	require.NoError(t, err)

	var ids []string
	for _, info := range r.List() {
		ids = append(ids, info.ID)
		assert.NotEmpty(t, info.Name)
		assert.NotEmpty(t, info.Description)
	}
	assert.Equal(t, []string{
		"syntax-analyzer",
		"performance-analyzer",
		"security-analyzer",
		"code-improver",
		"architecture-analyzer",
		"documentation-agent",
	}, ids)

	bindings := map[string]struct {
		model       string
		temperature float64
		maxTokens   int
		kind        Kind
	}{
		"syntax-analyzer":       {"openai-gpt4", 0.1, 2000, KindSyntax},
		"performance-analyzer":  {"claude-3-opus", 0.2, 2500, KindPerformance},
		"security-analyzer":     {"openai-gpt4", 0.1, 2000, KindSecurity},
		"code-improver":         {"claude-3-opus", 0.3, 3000, KindImprovement},
		"architecture-analyzer": {"claude-3-opus", 0.2, 2500, KindArchitecture},
		"documentation-agent":   {"openai-gpt4", 0.3, 3000, KindDocumentation},
	}
	for id, want := range bindings {
		a, err := r.Get(id)
		require.NoError(t, err, id)
		assert.Equal(t, want.model, a.Model, id)
		assert.InDelta(t, want.temperature, a.Temperature, 1e-9, id)
		assert.Equal(t, want.maxTokens, a.MaxTokens, id)
		assert.Equal(t, want.kind, a.Kind, id)
		assert.Equal(t, registry.CapabilityCode, a.Capability, id)
		assert.Contains(t, a.SystemPrompt, "JSON format", id)
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(Agent{ID: "reviewer", Name: "Reviewer", Model: "m1"}))
	assert.ErrorIs(t, r.Register(Agent{ID: "reviewer", Name: "Other"}), ErrDuplicateAgent)

	a, err := r.Get("reviewer")
	require.NoError(t, err)
	assert.Equal(t, "Reviewer", a.Name)

	assert.ErrorIs(t, r.Register(Agent{}), ErrInvalidAgent)
	assert.ErrorIs(t, r.Register(Agent{ID: "bad", PromptTemplate: "{{.Input"}), ErrInvalidAgent)

	_, err = r.Get("ghost")
	assert.ErrorIs(t, err, ErrAgentNotFound)
	_, err = r.Prompt("ghost", "x", RunOptions{})
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestRegistry_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agents:
  - id: test-writer
    name: Test Writer
    description: Writes unit tests
    model: local-codellama
    temperature: 0.2
    max_tokens: 1024
    capability: completion
    system_prompt: You write tests.
    prompt_template: "Write tests in {{.Language}} for:\n{{.Input}}"
`), 0o600))

	r, err := DefaultRegistry()
	require.NoError(t, err)
	require.NoError(t, r.LoadFile(path))

	a, err := r.Get("test-writer")
	require.NoError(t, err)
	assert.Equal(t, registry.CapabilityCompletion, a.Capability)
	assert.Len(t, r.List(), 7)

	prompt, err := r.Prompt("test-writer", "func f() {}", RunOptions{Language: "go"})
	require.NoError(t, err)
	assert.Equal(t, "Write tests in go for:\nfunc f() {}", prompt)

	// ricaricare lo stesso file sostituisce senza duplicare
	require.NoError(t, r.LoadFile(path))
	assert.Len(t, r.List(), 7)
	assert.Error(t, r.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestRegistry_LoadFileOverridesBuiltin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agents:
  - id: syntax-analyzer
    name: Strict Syntax Analyzer
    model: local-mistral
    prompt_template: "Lint:\n{{.Input}}"
`), 0o600))

	r, err := DefaultRegistry()
	require.NoError(t, err)
	before := r.List()
	require.NoError(t, r.LoadFile(path))
	after := r.List()

	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
	}

	a, err := r.Get("syntax-analyzer")
	require.NoError(t, err)
	assert.Equal(t, "Strict Syntax Analyzer", a.Name)
	assert.Equal(t, "local-mistral", a.Model)

	prompt, err := r.Prompt("syntax-analyzer", "x := 1", RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Lint:\nx := 1", prompt)

	// Register resta rigoroso
	assert.ErrorIs(t, r.Register(Agent{ID: "syntax-analyzer", Name: "Again"}), ErrDuplicateAgent)
}

func TestBuiltinAgents(t *testing.T) {
	agents, err := BuiltinAgents()
	require.NoError(t, err)
	assert.Len(t, agents, 6)
}
