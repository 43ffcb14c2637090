package agents

import (
	"errors"
	"fmt"

	"github.com/biodoia/goleapcode/internal/registry"
)

// Kind identifica la forma del risultato prodotto dall'agente
type Kind string

const (
	KindSyntax        Kind = "syntax"
	KindPerformance   Kind = "performance"
	KindSecurity      Kind = "security"
	KindImprovement   Kind = "improvement"
	KindArchitecture  Kind = "architecture"
	KindDocumentation Kind = "documentation"
)

var (
	ErrAgentNotFound  = errors.New("agent not found")
	ErrDuplicateAgent = errors.New("agent already registered")
	ErrInvalidAgent   = errors.New("invalid agent definition")
)

// Agent è la definizione di un agente specializzato.
// Non viene modificata dopo la registrazione.
type Agent struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Kind        Kind   `json:"kind" yaml:"kind"`

	SystemPrompt string `json:"systemPrompt" yaml:"system_prompt"`

	// PromptTemplate è un text/template con i campi .Language, .Input,
	// .Context e .Issues; vuoto usa il template predefinito
	PromptTemplate string `json:"promptTemplate,omitempty" yaml:"prompt_template"`

	Model       string              `json:"model" yaml:"model"`
	Temperature float64             `json:"temperature" yaml:"temperature"`
	MaxTokens   int                 `json:"maxTokens" yaml:"max_tokens"`
	Capability  registry.Capability `json:"capability" yaml:"capability"`
}

// Info è la vista del catalogo esposta ai client
type Info struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (a Agent) info() Info {
	return Info{ID: a.ID, Name: a.Name, Description: a.Description}
}

func (a Agent) normalize() (Agent, error) {
	if a.ID == "" {
		return a, fmt.Errorf("%w: missing id", ErrInvalidAgent)
	}
	if a.Name == "" {
		a.Name = a.ID
	}
	if a.Capability == "" {
		a.Capability = registry.CapabilityCode
	}
	if a.MaxTokens < 0 || a.Temperature < 0 {
		return a, fmt.Errorf("%w: %s has negative limits", ErrInvalidAgent, a.ID)
	}
	return a, nil
}
