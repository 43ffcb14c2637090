// Package workflow esegue sequenze di agenti, in ordine o in parallelo,
// e combina i loro risultati.
package workflow

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Mode è la modalità di esecuzione degli step
type Mode string

const (
	ModeSequential Mode = "sequential"
	ModeParallel   Mode = "parallel"
)

var (
	ErrWorkflowNotFound  = errors.New("workflow not found")
	ErrDuplicateWorkflow = errors.New("workflow already registered")
	ErrInvalidWorkflow   = errors.New("invalid workflow definition")
)

// Step è l'invocazione di un agente all'interno di un workflow.
// Il fallimento di uno step critico interrompe un workflow sequenziale.
type Step struct {
	Agent    string `json:"agent" yaml:"agent"`
	Name     string `json:"name" yaml:"name"`
	Critical bool   `json:"critical,omitempty" yaml:"critical"`
}

// Workflow è una sequenza di step sullo stesso input
type Workflow struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Mode        Mode   `json:"mode" yaml:"mode"`
	Steps       []Step `json:"steps" yaml:"steps"`
}

// Parallel indica se gli step vengono eseguiti in parallelo
func (w Workflow) Parallel() bool {
	return w.Mode == ModeParallel
}

func (w Workflow) normalize() (Workflow, error) {
	if w.ID == "" {
		return w, fmt.Errorf("%w: missing id", ErrInvalidWorkflow)
	}
	if len(w.Steps) == 0 {
		return w, fmt.Errorf("%w: %s has no steps", ErrInvalidWorkflow, w.ID)
	}
	switch w.Mode {
	case "":
		w.Mode = ModeSequential
	case ModeSequential, ModeParallel:
	default:
		return w, fmt.Errorf("%w: %s has unknown mode %q", ErrInvalidWorkflow, w.ID, w.Mode)
	}
	if w.Name == "" {
		w.Name = w.ID
	}

	steps := make([]Step, len(w.Steps))
	for i, s := range w.Steps {
		if s.Agent == "" {
			return w, fmt.Errorf("%w: %s step %d has no agent", ErrInvalidWorkflow, w.ID, i+1)
		}
		if s.Name == "" {
			s.Name = s.Agent
		}
		steps[i] = s
	}
	w.Steps = steps
	return w, nil
}

//go:embed workflows.yaml
var builtinWorkflows []byte

type workflowFile struct {
	Workflows []Workflow `yaml:"workflows"`
}

// Registry è il catalogo dei workflow, in ordine di registrazione
type Registry struct {
	mu        sync.RWMutex
	workflows map[string]Workflow
	order     []string
}

// NewRegistry crea un catalogo vuoto
func NewRegistry() *Registry {
	return &Registry{workflows: make(map[string]Workflow)}
}

// DefaultRegistry crea un catalogo con i quattro workflow predefiniti
func DefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	if err := r.load(builtinWorkflows, "builtin"); err != nil {
		return nil, err
	}
	return r, nil
}

// Register aggiunge un workflow senza sovrascrivere quelli esistenti
func (r *Registry) Register(w Workflow) error {
	w, err := w.normalize()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.workflows[w.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateWorkflow, w.ID)
	}
	r.workflows[w.ID] = w
	r.order = append(r.order, w.ID)
	return nil
}

// LoadFile registra i workflow definiti in un file YAML
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read workflows file: %w", err)
	}
	return r.load(data, path)
}

func (r *Registry) load(data []byte, source string) error {
	var file workflowFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse workflows from %s: %w", source, err)
	}
	for _, w := range file.Workflows {
		if err := r.Register(w); err != nil {
			return err
		}
	}

	log.Debug().
		Str("source", source).
		Int("workflows", len(file.Workflows)).
		Msg("Workflows loaded")
	return nil
}

// Get restituisce una copia del workflow
func (r *Registry) Get(id string) (Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w, ok := r.workflows[id]
	if !ok {
		return Workflow{}, fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
	}
	w.Steps = append([]Step(nil), w.Steps...)
	return w, nil
}

// List restituisce i workflow registrati con i loro step
func (r *Registry) List() []Workflow {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Workflow, 0, len(r.order))
	for _, id := range r.order {
		w := r.workflows[id]
		w.Steps = append([]Step(nil), w.Steps...)
		out = append(out, w)
	}
	return out
}

// Validate verifica che ogni step usi un agente noto
func (w Workflow) Validate(known func(agentID string) bool) error {
	for _, s := range w.Steps {
		if !known(s.Agent) {
			return fmt.Errorf("%w: %s step %q uses unknown agent %s", ErrInvalidWorkflow, w.ID, s.Name, s.Agent)
		}
	}
	return nil
}
