package generation

import (
	"time"

	"github.com/biodoia/goleapcode/internal/registry"
)

const (
	DefaultMaxRetries      = 3
	DefaultMultiModelCount = 3
	DefaultTemperature     = 0.7
	DefaultConfidence      = 0.8
)

// Config contiene i default del motore di generazione
type Config struct {
	MaxRetries      int           `yaml:"max_retries" mapstructure:"max_retries"`
	MultiModelCount int           `yaml:"multi_model_count" mapstructure:"multi_model_count"`
	Temperature     float64       `yaml:"temperature" mapstructure:"temperature"`
	CacheTTL        time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	CallTimeout     time.Duration `yaml:"call_timeout" mapstructure:"call_timeout"`
}

// DefaultConfig restituisce la configurazione di default
func DefaultConfig() Config {
	return Config{
		MaxRetries:      DefaultMaxRetries,
		MultiModelCount: DefaultMultiModelCount,
		Temperature:     DefaultTemperature,
		CacheTTL:        30 * time.Minute,
	}
}

// Options sono i parametri di una singola generazione
type Options struct {
	// Capability richiesta al modello (default chat)
	Capability registry.Capability

	// Context è il contesto grezzo, ridotto dal context manager
	Context string

	// PreferredModel viene messo in testa alla selezione se attivo e capace
	PreferredModel string

	// MultiModel interroga in parallelo i migliori modelli e ne combina le risposte
	MultiModel bool

	// MaxRetries: 0 usa il default, un valore negativo disabilita i retry
	MaxRetries int

	SystemPrompt string

	// Temperature nil usa il default del motore
	Temperature *float64

	// MaxTokens 0 usa il limite del modello
	MaxTokens int

	// OmitContext esclude il contesto dai messaggi
	OmitContext bool

	// UseCache abilita la cache delle risposte se configurata
	UseCache bool
}

func (o Options) withDefaults(cfg Config) Options {
	if o.Capability == "" {
		o.Capability = registry.CapabilityChat
	}
	switch {
	case o.MaxRetries == 0:
		o.MaxRetries = cfg.MaxRetries
	case o.MaxRetries < 0:
		o.MaxRetries = 0
	}
	if o.Temperature == nil {
		t := cfg.Temperature
		o.Temperature = &t
	}
	return o
}

// Float restituisce un puntatore a v, comodo per Options.Temperature
func Float(v float64) *float64 {
	return &v
}
