package agents

import (
	_ "embed"
	"fmt"
	"os"
	"sync"
	"text/template"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var builtinCatalog []byte

type catalogFile struct {
	Agents []Agent `yaml:"agents"`
}

type entry struct {
	agent Agent
	tmpl  *template.Template
}

// Registry è il catalogo degli agenti, in ordine di registrazione
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*entry
	order  []string
}

// NewRegistry crea un catalogo vuoto
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]*entry)}
}

// DefaultRegistry crea un catalogo con i sei agenti predefiniti
func DefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	if err := r.load(builtinCatalog, "builtin", false); err != nil {
		return nil, err
	}
	return r, nil
}

// BuiltinAgents restituisce le definizioni degli agenti predefiniti
func BuiltinAgents() ([]Agent, error) {
	var file catalogFile
	if err := yaml.Unmarshal(builtinCatalog, &file); err != nil {
		return nil, fmt.Errorf("parse builtin agents: %w", err)
	}
	return file.Agents, nil
}

// Register aggiunge un agente. Un id già presente non viene sovrascritto.
func (r *Registry) Register(a Agent) error {
	return r.put(a, false)
}

// Replace aggiunge un agente o sostituisce quello con lo stesso id,
// mantenendone la posizione nel catalogo
func (r *Registry) Replace(a Agent) error {
	return r.put(a, true)
}

func (r *Registry) put(a Agent, replace bool) error {
	a, err := a.normalize()
	if err != nil {
		return err
	}
	tmpl, err := parseTemplate(a)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[a.ID]; exists {
		if !replace {
			return fmt.Errorf("%w: %s", ErrDuplicateAgent, a.ID)
		}
		r.agents[a.ID] = &entry{agent: a, tmpl: tmpl}
		log.Info().Str("agent", a.ID).Msg("Agent definition overridden")
		return nil
	}
	r.agents[a.ID] = &entry{agent: a, tmpl: tmpl}
	r.order = append(r.order, a.ID)
	return nil
}

// LoadFile registra gli agenti definiti in un file YAML. Un agente con lo
// stesso id di uno già presente lo sostituisce.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read agents file: %w", err)
	}
	return r.load(data, path, true)
}

func (r *Registry) load(data []byte, source string, replace bool) error {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse agents from %s: %w", source, err)
	}
	for _, a := range file.Agents {
		if err := r.put(a, replace); err != nil {
			return err
		}
	}

	log.Debug().
		Str("source", source).
		Int("agents", len(file.Agents)).
		Msg("Agents loaded")
	return nil
}

// Get restituisce la definizione dell'agente
func (r *Registry) Get(id string) (Agent, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Agent{}, err
	}
	return e.agent, nil
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.agents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return e, nil
}

// List restituisce id, nome e descrizione di ogni agente
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Info, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id].agent.info())
	}
	return out
}

// Prompt costruisce il prompt utente dell'agente
func (r *Registry) Prompt(id, input string, opts RunOptions) (string, error) {
	e, err := r.lookup(id)
	if err != nil {
		return "", err
	}
	return e.prompt(input, opts)
}

func (e *entry) prompt(input string, opts RunOptions) (string, error) {
	data, err := newPromptData(input, opts)
	if err != nil {
		return "", err
	}
	return render(e.tmpl, data)
}
