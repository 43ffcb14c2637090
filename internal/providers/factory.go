package providers

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	ErrProviderNotFound      = errors.New("provider kind not registered")
	ErrProviderAlreadyExists = errors.New("provider kind already registered")
)

// Spec descrive il modello per cui costruire un client
type Spec struct {
	ModelID   string
	Model     string // nome del modello lato vendor
	Kind      Kind
	MaxTokens int
}

// Builder costruisce un Provider per un modello a partire dalla sua configurazione
type Builder func(spec Spec, cfg Config) (Provider, error)

// Factory associa ogni Kind al builder del relativo adapter
type Factory struct {
	builders map[Kind]Builder
	mu       sync.RWMutex
}

// NewFactory crea una factory vuota
func NewFactory() *Factory {
	return &Factory{
		builders: make(map[Kind]Builder),
	}
}

// Register registra il builder per un Kind
func (f *Factory) Register(kind Kind, builder Builder) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.builders[kind]; exists {
		return fmt.Errorf("%w: %s", ErrProviderAlreadyExists, kind)
	}
	f.builders[kind] = builder

	log.Debug().Str("kind", string(kind)).Msg("Provider builder registered")
	return nil
}

// Build costruisce il client per il modello indicato
func (f *Factory) Build(spec Spec, cfg Config) (Provider, error) {
	f.mu.RLock()
	builder, ok := f.builders[spec.Kind]
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, spec.Kind)
	}
	return builder(spec, cfg)
}

// Kinds restituisce i Kind registrati
func (f *Factory) Kinds() []Kind {
	f.mu.RLock()
	defer f.mu.RUnlock()

	kinds := make([]Kind, 0, len(f.builders))
	for k := range f.builders {
		kinds = append(kinds, k)
	}
	return kinds
}
