// Package local gestisce i modelli eseguiti in locale: caricamento idempotente,
// cache degli handle caricati e rilascio delle risorse del runner.
package local

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/biodoia/goleapcode/internal/providers"
	"github.com/rs/zerolog/log"
)

// DefaultConfidence è la confidenza attribuita alle risposte dei modelli locali
const DefaultConfidence = 0.7

var ErrManagerClosed = errors.New("local model manager closed")

// Handle è un modello locale caricato e pronto a generare
type Handle interface {
	Generate(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error)
	Close() error
}

// Loader carica un modello locale
type Loader interface {
	Load(ctx context.Context, spec providers.Spec) (Handle, error)
}

// loadCall rappresenta un caricamento in corso condiviso tra chiamanti concorrenti
type loadCall struct {
	done   chan struct{}
	handle Handle
	err    error
}

// Manager mantiene la cache dei modelli locali caricati
type Manager struct {
	loader  Loader
	mu      sync.Mutex
	handles map[string]Handle
	loading map[string]*loadCall
	closed  bool
}

// NewManager crea un manager che usa il loader indicato
func NewManager(loader Loader) *Manager {
	if loader == nil {
		loader = StubLoader{}
	}
	return &Manager{
		loader:  loader,
		handles: make(map[string]Handle),
		loading: make(map[string]*loadCall),
	}
}

// LoadModel carica il modello se non è già in cache. Chiamate concorrenti
// per lo stesso modello condividono un unico caricamento.
func (m *Manager) LoadModel(ctx context.Context, spec providers.Spec) (Handle, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	if h, ok := m.handles[spec.ModelID]; ok {
		m.mu.Unlock()
		return h, nil
	}
	if call, ok := m.loading[spec.ModelID]; ok {
		m.mu.Unlock()
		select {
		case <-call.done:
			return call.handle, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	call := &loadCall{done: make(chan struct{})}
	m.loading[spec.ModelID] = call
	m.mu.Unlock()

	log.Info().Str("model", spec.ModelID).Msg("Loading local model")
	call.handle, call.err = m.loader.Load(ctx, spec)

	m.mu.Lock()
	delete(m.loading, spec.ModelID)
	if call.err == nil {
		if m.closed {
			_ = call.handle.Close()
			call.handle, call.err = nil, ErrManagerClosed
		} else {
			m.handles[spec.ModelID] = call.handle
		}
	}
	m.mu.Unlock()
	close(call.done)

	if call.err != nil {
		log.Error().Err(call.err).Str("model", spec.ModelID).Msg("Failed to load local model")
		return nil, fmt.Errorf("load local model %s: %w", spec.ModelID, call.err)
	}

	log.Info().Str("model", spec.ModelID).Msg("Local model loaded")
	return call.handle, nil
}

// Generate delega la generazione all'handle del modello, caricandolo se necessario
func (m *Manager) Generate(ctx context.Context, spec providers.Spec, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	h, err := m.LoadModel(ctx, spec)
	if err != nil {
		return nil, err
	}
	return h.Generate(ctx, req)
}

// UnloadModel rimuove il modello dalla cache e ne rilascia le risorse.
// Non fa nulla se il modello non è caricato.
func (m *Manager) UnloadModel(modelID string) error {
	m.mu.Lock()
	h, ok := m.handles[modelID]
	delete(m.handles, modelID)
	m.mu.Unlock()

	if !ok {
		return nil
	}

	log.Info().Str("model", modelID).Msg("Unloading local model")
	return h.Close()
}

// Loaded restituisce gli id dei modelli caricati, in ordine alfabetico
func (m *Manager) Loaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.handles))
	for id := range m.handles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close scarica tutti i modelli
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	handles := m.handles
	m.handles = make(map[string]Handle)
	m.mu.Unlock()

	var errs []error
	for id, h := range handles {
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("unload %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Builder restituisce il providers.Builder per i modelli locali
func (m *Manager) Builder() providers.Builder {
	return func(spec providers.Spec, _ providers.Config) (providers.Provider, error) {
		return &Provider{manager: m, spec: spec}, nil
	}
}

// Provider espone un modello locale come providers.Provider
type Provider struct {
	manager *Manager
	spec    providers.Spec
}

// Name restituisce l'id del modello
func (p *Provider) Name() string {
	return p.spec.ModelID
}

// ChatCompletion genera tramite il manager
func (p *Provider) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	return p.manager.Generate(ctx, p.spec, req)
}

// HealthCheck carica il modello
func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.manager.LoadModel(ctx, p.spec)
	return err
}
