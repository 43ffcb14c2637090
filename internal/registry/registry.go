// Package registry mantiene il catalogo dei modelli AI, il loro stato
// operativo e i contatori di utilizzo.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/biodoia/goleapcode/internal/providers"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var (
	ErrModelNotFound    = errors.New("model not found")
	ErrDuplicateModel   = errors.New("model already registered")
	ErrNoAvailableModel = errors.New("no available model")
	ErrProviderNotBound = errors.New("model has no provider bound")
	ErrInvalidModel     = errors.New("invalid model configuration")
)

// connectionTestPrompt è il prompt della chiamata di prova durante Initialize
const connectionTestPrompt = "Hello, this is a connection test."

// Connector costruisce il client di un modello (providers.Factory lo implementa)
type Connector interface {
	Build(spec providers.Spec, cfg providers.Config) (providers.Provider, error)
}

// entry contiene lo stato mutabile di un modello, protetto dal proprio mutex
type entry struct {
	mu       sync.Mutex
	model    Model
	provider providers.Provider
	config   providers.Config
	limiter  *rate.Limiter
}

func (e *entry) snapshot() Model {
	e.mu.Lock()
	defer e.mu.Unlock()

	m := e.model
	m.Capabilities = append([]Capability(nil), e.model.Capabilities...)
	return m
}

// Registry è il registro dei modelli
type Registry struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	order     []string
	connector Connector
}

// New crea un registro che costruisce i client tramite il connector
func New(connector Connector) *Registry {
	return &Registry{
		entries:   make(map[string]*entry),
		connector: connector,
	}
}

// Register aggiunge un modello in stato inactive con contatori a zero
func (r *Registry) Register(cfg ModelConfig) error {
	if cfg.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidModel)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[cfg.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateModel, cfg.ID)
	}

	e := &entry{
		model: Model{
			ModelConfig: cfg,
			Status:      StatusInactive,
		},
	}
	if cfg.RequestsPerMinute > 0 {
		e.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	r.entries[cfg.ID] = e
	r.order = append(r.order, cfg.ID)

	log.Debug().
		Str("model", cfg.ID).
		Str("provider", string(cfg.Provider)).
		Int("priority", cfg.Priority).
		Msg("Model registered")

	return nil
}

func (r *Registry) get(id string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, id)
	}
	return e, nil
}

// Initialize costruisce il client del modello e ne verifica il funzionamento.
// I modelli locali vengono caricati, quelli remoti eseguono una chiamata di prova.
func (r *Registry) Initialize(ctx context.Context, id string, cfg providers.Config) error {
	e, err := r.get(id)
	if err != nil {
		return err
	}

	model := e.snapshot()
	start := time.Now()

	p, err := r.connect(ctx, model.ModelConfig, cfg)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		e.model.Status = StatusError
		e.model.LastError = err.Error()

		log.Error().
			Err(err).
			Str("model", id).
			Msg("Model initialization failed")

		return fmt.Errorf("initialize model %s: %w", id, err)
	}

	e.provider = p
	e.config = cfg
	e.model.Status = StatusActive
	e.model.LastError = ""

	log.Info().
		Str("model", id).
		Str("provider", string(model.Provider)).
		Dur("duration", time.Since(start)).
		Msg("Model initialized")

	return nil
}

func (r *Registry) connect(ctx context.Context, mc ModelConfig, cfg providers.Config) (providers.Provider, error) {
	if r.connector == nil {
		return nil, fmt.Errorf("no connector configured for %s", mc.ID)
	}

	p, err := r.connector.Build(mc.Spec(), cfg)
	if err != nil {
		return nil, err
	}

	if mc.IsLocal() {
		return p, p.HealthCheck(ctx)
	}

	maxTokens := 10
	_, err = p.ChatCompletion(ctx, &providers.ChatRequest{
		Model:     mc.Model,
		Messages:  []providers.Message{{Role: providers.RoleUser, Content: connectionTestPrompt}},
		MaxTokens: &maxTokens,
	})
	return p, err
}

// Bind associa un client già costruito al modello senza chiamate di prova
func (r *Registry) Bind(id string, p providers.Provider) error {
	e, err := r.get(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.provider = p
	e.mu.Unlock()
	return nil
}

// Provider restituisce il client associato al modello
func (r *Registry) Provider(id string) (providers.Provider, error) {
	e, err := r.get(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.provider == nil {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotBound, id)
	}
	return e.provider, nil
}

// Wait attende il permesso del rate limiter del modello
func (r *Registry) Wait(ctx context.Context, id string) error {
	e, err := r.get(id)
	if err != nil {
		return err
	}
	if e.limiter == nil {
		return ctx.Err()
	}
	return e.limiter.Wait(ctx)
}

// SetStatus forza lo stato di un modello
func (r *Registry) SetStatus(id string, status Status) error {
	e, err := r.get(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.model.Status = status
	e.mu.Unlock()
	return nil
}

// Select restituisce fino a count modelli attivi che dichiarano la capacità,
// ordinati per priorità crescente. Il modello preferito, se idoneo, va in testa.
// count <= 0 restituisce tutti i candidati.
func (r *Registry) Select(capability Capability, preferredID string, count int) []Model {
	r.mu.RLock()
	candidates := make([]Model, 0, len(r.order))
	for _, id := range r.order {
		m := r.entries[id].snapshot()
		if m.Status == StatusActive && m.HasCapability(capability) {
			candidates = append(candidates, m)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority < candidates[j].Priority
	})

	if preferredID != "" {
		for i, m := range candidates {
			if m.ID == preferredID {
				copy(candidates[1:i+1], candidates[:i])
				candidates[0] = m
				break
			}
		}
	}

	if count > 0 && len(candidates) > count {
		candidates = candidates[:count]
	}
	return candidates
}

// RecordSuccess registra una chiamata riuscita
func (r *Registry) RecordSuccess(id string) {
	e, err := r.get(id)
	if err != nil {
		return
	}

	e.mu.Lock()
	e.model.SuccessCount++
	e.model.LastUsed = time.Now()
	e.model.Status = StatusActive
	e.mu.Unlock()
}

// RecordError registra una chiamata fallita. Lo stato non cambia: un singolo
// errore non esclude il modello dalla selezione.
func (r *Registry) RecordError(id string, callErr error) {
	e, err := r.get(id)
	if err != nil {
		return
	}

	e.mu.Lock()
	e.model.ErrorCount++
	if callErr != nil {
		e.model.LastError = callErr.Error()
	}
	e.mu.Unlock()
}

// Get restituisce lo snapshot di un modello
func (r *Registry) Get(id string) (Model, error) {
	e, err := r.get(id)
	if err != nil {
		return Model{}, err
	}
	return e.snapshot(), nil
}

// List restituisce tutti i modelli in ordine di registrazione
func (r *Registry) List() []Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]Model, 0, len(r.order))
	for _, id := range r.order {
		models = append(models, r.entries[id].snapshot())
	}
	return models
}

// Stats restituisce le statistiche di utilizzo di tutti i modelli
func (r *Registry) Stats() []ModelStats {
	models := r.List()
	stats := make([]ModelStats, len(models))
	for i, m := range models {
		stats[i] = ModelStats{
			ID:           m.ID,
			Provider:     string(m.Provider),
			Status:       m.Status,
			SuccessRate:  m.SuccessRate(),
			SuccessCount: m.SuccessCount,
			ErrorCount:   m.ErrorCount,
			LastUsed:     m.LastUsed,
			LastError:    m.LastError,
			Capabilities: m.Capabilities,
		}
	}
	return stats
}
