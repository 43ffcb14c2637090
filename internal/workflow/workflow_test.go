package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r, err := DefaultRegistry()
	require.NoError(t, err)

	type shape struct {
		mode   Mode
		agents []string
	}
	want := map[string]shape{
		"code-review":              {ModeSequential, []string{"syntax-analyzer", "security-analyzer", "performance-analyzer", "architecture-analyzer", "code-improver"}},
		"quick-analysis":           {ModeParallel, []string{"syntax-analyzer", "security-analyzer"}},
		"documentation":            {ModeSequential, []string{"architecture-analyzer", "documentation-agent"}},
		"performance-optimization": {ModeSequential, []string{"performance-analyzer", "code-improver"}},
	}

	list := r.List()
	require.Len(t, list, 4)
	assert.Equal(t, "code-review", list[0].ID)

	for _, w := range list {
		exp, ok := want[w.ID]
		require.True(t, ok, w.ID)
		assert.Equal(t, exp.mode, w.Mode, w.ID)

		var ids []string
		for _, s := range w.Steps {
			ids = append(ids, s.Agent)
			assert.NotEmpty(t, s.Name)
			assert.Equal(t, s.Agent == "syntax-analyzer", s.Critical, "%s/%s", w.ID, s.Agent)
		}
		assert.Equal(t, exp.agents, ids, w.ID)
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(Workflow{ID: "lint", Steps: []Step{{Agent: "syntax-analyzer"}}}))
	w, err := r.Get("lint")
	require.NoError(t, err)
	assert.Equal(t, ModeSequential, w.Mode)
	assert.Equal(t, "lint", w.Name)
	assert.Equal(t, "syntax-analyzer", w.Steps[0].Name)

	// la copia restituita non modifica il catalogo
	w.Steps[0].Agent = "changed"
	again, _ := r.Get("lint")
	assert.Equal(t, "syntax-analyzer", again.Steps[0].Agent)

	assert.ErrorIs(t, r.Register(Workflow{ID: "lint", Steps: []Step{{Agent: "x"}}}), ErrDuplicateWorkflow)

	invalid := []Workflow{
		{},
		{ID: "empty"},
		{ID: "no-agent", Steps: []Step{{Name: "step"}}},
		{ID: "bad-mode", Mode: "random", Steps: []Step{{Agent: "a"}}},
	}
	for _, w := range invalid {
		assert.ErrorIs(t, r.Register(w), ErrInvalidWorkflow, w.ID)
	}

	_, err = r.Get("ghost")
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestRegistry_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflows.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workflows:
  - id: security-sweep
    name: Security Sweep
    description: Security and syntax in parallel
    mode: parallel
    steps:
      - agent: security-analyzer
      - agent: syntax-analyzer
        name: Syntax
`), 0o600))

	r, err := DefaultRegistry()
	require.NoError(t, err)
	require.NoError(t, r.LoadFile(path))

	w, err := r.Get("security-sweep")
	require.NoError(t, err)
	assert.True(t, w.Parallel())
	assert.Equal(t, []Step{{Agent: "security-analyzer", Name: "security-analyzer"}, {Agent: "syntax-analyzer", Name: "Syntax"}}, w.Steps)
	assert.Len(t, r.List(), 5)
}

func TestWorkflow_Validate(t *testing.T) {
	w := Workflow{ID: "w", Steps: []Step{{Agent: "known", Name: "a"}, {Agent: "ghost", Name: "b"}}}
	known := func(id string) bool { return id == "known" }

	err := w.Validate(known)
	assert.ErrorIs(t, err, ErrInvalidWorkflow)
	assert.Contains(t, err.Error(), "ghost")

	w.Steps = w.Steps[:1]
	assert.NoError(t, w.Validate(known))
}
