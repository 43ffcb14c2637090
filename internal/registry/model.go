package registry

import (
	"time"

	"github.com/biodoia/goleapcode/internal/providers"
)

// Capability è una capacità dichiarata da un modello
type Capability string

const (
	CapabilityChat         Capability = "chat"
	CapabilityCode         Capability = "code"
	CapabilityAnalysis     Capability = "analysis"
	CapabilityCompletion   Capability = "completion"
	CapabilityLargeContext Capability = "large-context"
)

// Status è lo stato operativo di un modello
type Status string

const (
	StatusInactive Status = "inactive"
	StatusActive   Status = "active"
	StatusError    Status = "error"
)

// ModelConfig è la parte dichiarativa di un modello, caricabile da configurazione
type ModelConfig struct {
	ID            string         `json:"id" yaml:"id" mapstructure:"id"`
	Provider      providers.Kind `json:"provider" yaml:"provider" mapstructure:"provider"`
	Model         string         `json:"model" yaml:"model" mapstructure:"model"`
	MaxTokens     int            `json:"maxTokens" yaml:"max_tokens" mapstructure:"max_tokens"`
	ContextWindow int            `json:"contextWindow" yaml:"context_window" mapstructure:"context_window"`
	Capabilities  []Capability   `json:"capabilities" yaml:"capabilities" mapstructure:"capabilities"`
	Priority      int            `json:"priority" yaml:"priority" mapstructure:"priority"`
	Offline       bool           `json:"offline" yaml:"offline" mapstructure:"offline"`

	// RequestsPerMinute limita le chiamate verso il modello (0 = nessun limite)
	RequestsPerMinute int `json:"requestsPerMinute,omitempty" yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// IsLocal indica se il modello segue il percorso di caricamento locale
func (c ModelConfig) IsLocal() bool {
	return c.Provider == providers.KindLocal
}

// HasCapability verifica se il modello dichiara la capacità
func (c ModelConfig) HasCapability(capability Capability) bool {
	for _, have := range c.Capabilities {
		if have == capability {
			return true
		}
	}
	return false
}

// Spec restituisce la descrizione usata dalla factory dei provider
func (c ModelConfig) Spec() providers.Spec {
	return providers.Spec{
		ModelID:   c.ID,
		Model:     c.Model,
		Kind:      c.Provider,
		MaxTokens: c.MaxTokens,
	}
}

// Model è lo snapshot di un modello registrato
type Model struct {
	ModelConfig

	Status       Status    `json:"status"`
	SuccessCount int64     `json:"successCount"`
	ErrorCount   int64     `json:"errorCount"`
	LastUsed     time.Time `json:"lastUsed"`
	LastError    string    `json:"lastError,omitempty"`
}

// SuccessRate restituisce successi/(successi+errori), 0 se non ci sono chiamate
func (m Model) SuccessRate() float64 {
	total := m.SuccessCount + m.ErrorCount
	if total == 0 {
		return 0
	}
	return float64(m.SuccessCount) / float64(total)
}

// ModelStats è la vista esposta da GetModelStats
type ModelStats struct {
	ID           string       `json:"id"`
	Provider     string       `json:"provider"`
	Status       Status       `json:"status"`
	SuccessRate  float64      `json:"successRate"`
	SuccessCount int64        `json:"successCount"`
	ErrorCount   int64        `json:"errorCount"`
	LastUsed     time.Time    `json:"lastUsed"`
	LastError    string       `json:"lastError,omitempty"`
	Capabilities []Capability `json:"capabilities"`
}

// DefaultModels restituisce il catalogo di modelli predefinito
func DefaultModels() []ModelConfig {
	return []ModelConfig{
		{
			ID:            "openai-gpt4",
			Provider:      providers.KindOpenAI,
			Model:         "gpt-4",
			MaxTokens:     8192,
			ContextWindow: 8192,
			Capabilities:  []Capability{CapabilityChat, CapabilityCode, CapabilityAnalysis},
			Priority:      1,
		},
		{
			ID:            "openai-gpt4-turbo",
			Provider:      providers.KindOpenAI,
			Model:         "gpt-4-turbo-preview",
			MaxTokens:     4096,
			ContextWindow: 128000,
			Capabilities:  []Capability{CapabilityChat, CapabilityCode, CapabilityAnalysis, CapabilityLargeContext},
			Priority:      2,
		},
		{
			ID:            "claude-3-opus",
			Provider:      providers.KindAnthropic,
			Model:         "claude-3-opus-20240229",
			MaxTokens:     4096,
			ContextWindow: 200000,
			Capabilities:  []Capability{CapabilityChat, CapabilityCode, CapabilityAnalysis, CapabilityLargeContext},
			Priority:      3,
		},
		{
			ID:            "local-codellama",
			Provider:      providers.KindLocal,
			Model:         "codellama-7b",
			MaxTokens:     2048,
			ContextWindow: 4096,
			Capabilities:  []Capability{CapabilityCode, CapabilityCompletion},
			Priority:      4,
			Offline:       true,
		},
		{
			ID:            "local-mistral",
			Provider:      providers.KindLocal,
			Model:         "mistral-7b",
			MaxTokens:     2048,
			ContextWindow: 8192,
			Capabilities:  []Capability{CapabilityChat, CapabilityCode},
			Priority:      5,
			Offline:       true,
		},
	}
}
