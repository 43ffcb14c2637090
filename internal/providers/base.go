package providers

import (
	"context"
	"time"
)

// Provider è l'interfaccia comune a tutti gli adapter LLM (cloud e locali)
type Provider interface {
	// ChatCompletion esegue una richiesta di chat completion
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Name restituisce il nome del provider
	Name() string

	// HealthCheck verifica lo stato del provider. Per i modelli locali
	// corrisponde al caricamento del modello.
	HealthCheck(ctx context.Context) error
}

// Kind identifica la famiglia di un provider
type Kind string

const (
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
	KindGemini    Kind = "gemini"
	KindLocal     Kind = "local"
)

// Ruoli dei messaggi
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatRequest rappresenta una richiesta generica di chat completion
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Stop        []string  `json:"stop,omitempty"`
	User        string    `json:"user,omitempty"`
}

// ChatResponse rappresenta una risposta generica di chat completion
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`

	// Confidence è la confidenza dichiarata dall'adapter (0.0-1.0)
	Confidence float64 `json:"confidence,omitempty"`
}

// Message rappresenta un messaggio nella conversazione
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Choice rappresenta una scelta nella risposta
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage rappresenta le statistiche di utilizzo
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Text restituisce il contenuto della prima scelta
func (r *ChatResponse) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Config contiene i parametri di connessione di un provider
type Config struct {
	APIKey  string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// BaseProvider fornisce funzionalità comuni per gli adapter remoti
type BaseProvider struct {
	name    string
	baseURL string
	apiKey  string
	timeout time.Duration
}

// NewBaseProvider crea un nuovo BaseProvider
func NewBaseProvider(name string, cfg Config) *BaseProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &BaseProvider{
		name:    name,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		timeout: timeout,
	}
}

// Name restituisce il nome del provider
func (b *BaseProvider) Name() string {
	return b.name
}

// GetBaseURL restituisce la base URL
func (b *BaseProvider) GetBaseURL() string {
	return b.baseURL
}

// GetAPIKey restituisce la API key
func (b *BaseProvider) GetAPIKey() string {
	return b.apiKey
}

// GetTimeout restituisce il timeout
func (b *BaseProvider) GetTimeout() time.Duration {
	return b.timeout
}
