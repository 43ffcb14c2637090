// Package generation seleziona i modelli, invia le richieste ai provider,
// gestisce i retry e combina le risposte multi-modello.
package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/biodoia/goleapcode/internal/contextmgr"
	"github.com/biodoia/goleapcode/internal/providers"
	"github.com/biodoia/goleapcode/internal/registry"
	"github.com/biodoia/goleapcode/internal/stats"
	"github.com/biodoia/goleapcode/pkg/cache"
	"github.com/biodoia/goleapcode/pkg/resilience"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Engine è il motore di generazione
type Engine struct {
	config   Config
	models   *registry.Registry
	contexts *contextmgr.Manager
	policy   *resilience.Policy
	cache    cache.Cache
	metrics  *stats.Metrics
}

// Option configura l'Engine
type Option func(*Engine)

// WithPolicy sostituisce la policy di recovery
func WithPolicy(p *resilience.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithCache abilita la cache delle risposte
func WithCache(c cache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithMetrics registra le metriche delle chiamate
func WithMetrics(m *stats.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NonRetryable sono gli errori che la policy non deve ritentare
var NonRetryable = []error{
	registry.ErrNoAvailableModel,
	registry.ErrModelNotFound,
	registry.ErrProviderNotBound,
}

// New crea un Engine
func New(models *registry.Registry, contexts *contextmgr.Manager, cfg Config, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.MultiModelCount <= 0 {
		cfg.MultiModelCount = def.MultiModelCount
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = def.Temperature
	}
	if contexts == nil {
		contexts = contextmgr.New(contextmgr.Config{})
	}

	e := &Engine{
		config:   cfg,
		models:   models,
		contexts: contexts,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.policy == nil {
		e.policy = resilience.NewPolicy(resilience.DefaultConfig(), NonRetryable...)
	}
	return e
}

// Generate produce una risposta per il prompt
func (e *Engine) Generate(ctx context.Context, prompt string, opts Options) (*Result, error) {
	opts = opts.withDefaults(e.config)
	start := time.Now()

	var (
		result *Result
		err    error
	)
	if opts.MultiModel {
		result, err = e.generateMulti(ctx, prompt, opts)
	} else {
		result, err = e.generateSingle(ctx, prompt, opts)
	}
	if err != nil {
		log.Error().
			Err(err).
			Str("capability", string(opts.Capability)).
			Bool("multi_model", opts.MultiModel).
			Dur("duration", time.Since(start)).
			Msg("Generation failed")
		return nil, err
	}

	result.Latency = time.Since(start)

	log.Info().
		Str("model", result.Model).
		Int("tokens", result.Tokens).
		Int("attempts", result.Attempts).
		Int("alternatives", len(result.Alternatives)).
		Bool("cached", result.Cached).
		Dur("duration", result.Latency).
		Msg("Generation completed")

	return result, nil
}

// generateSingle esegue il ciclo di retry su un modello alla volta.
// Il ciclo è limitato da opts.MaxRetries; la policy decide solo come
// modificare il tentativo successivo.
func (e *Engine) generateSingle(ctx context.Context, prompt string, opts Options) (*Result, error) {
	limit := e.contexts.MaxContextSize()
	preferred := opts.PreferredModel
	remaining := opts.MaxRetries

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		models := e.models.Select(opts.Capability, preferred, 1)
		if len(models) == 0 {
			return nil, fmt.Errorf("%w: capability %s", registry.ErrNoAvailableModel, opts.Capability)
		}
		model := models[0]
		messages := e.buildMessages(prompt, opts, limit)

		key := e.cacheKey(opts, messages, model)
		if cached := e.lookup(ctx, key); cached != nil {
			cached.Attempts = attempt
			return cached, nil
		}

		resp, err := e.call(ctx, model, messages, opts)
		if err == nil {
			result := single(resp)
			result.Attempts = attempt
			e.store(ctx, key, result)
			return result, nil
		}

		decision, rerr := e.policy.Recover(ctx, err, attempt, remaining)
		if rerr != nil {
			return nil, rerr
		}
		e.metrics.ObserveRecovery(string(decision.Kind))

		remaining--
		if decision.ReduceContext {
			limit = contextmgr.Reduce(limit)
		}
		if decision.FallbackModel != "" {
			preferred = decision.FallbackModel
		}
	}
}

// generateMulti interroga in parallelo i migliori modelli. I fallimenti dei
// singoli modelli non interrompono gli altri e non vengono ritentati.
func (e *Engine) generateMulti(ctx context.Context, prompt string, opts Options) (*Result, error) {
	models := e.models.Select(opts.Capability, opts.PreferredModel, e.config.MultiModelCount)
	if len(models) == 0 {
		return nil, fmt.Errorf("%w: capability %s", registry.ErrNoAvailableModel, opts.Capability)
	}

	messages := e.buildMessages(prompt, opts, e.contexts.MaxContextSize())

	key := e.cacheKey(opts, messages, models...)
	if cached := e.lookup(ctx, key); cached != nil {
		cached.Attempts = 1
		return cached, nil
	}

	responses := make([]Response, len(models))
	errs := make([]error, len(models))

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range models {
		g.Go(func() error {
			responses[i], errs[i] = e.call(gctx, m, messages, opts)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		succeeded []Response
		failed    []ModelError
	)
	for i, m := range models {
		if errs[i] != nil {
			failed = append(failed, ModelError{Model: m.ID, Err: errs[i]})
			continue
		}
		succeeded = append(succeeded, responses[i])
	}

	if len(succeeded) == 0 {
		return nil, &AllModelsFailedError{Errors: failed}
	}
	for _, f := range failed {
		log.Warn().Err(f.Err).Str("model", f.Model).Msg("Model failed in multi-model generation")
	}

	result := combine(succeeded)
	result.Attempts = 1
	e.metrics.ObserveConsensus(result.Consensus)
	e.store(ctx, key, result)
	return result, nil
}

// call esegue una singola chiamata al provider del modello e aggiorna i contatori
func (e *Engine) call(ctx context.Context, model registry.Model, messages []providers.Message, opts Options) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	if err := e.models.Wait(ctx, model.ID); err != nil {
		return Response{}, err
	}

	p, err := e.models.Provider(model.ID)
	if err != nil {
		return Response{}, err
	}

	req := &providers.ChatRequest{
		Model:       model.Model,
		Messages:    messages,
		Temperature: opts.Temperature,
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = model.MaxTokens
	}
	if maxTokens > 0 {
		req.MaxTokens = &maxTokens
	}

	callCtx := ctx
	if e.config.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.config.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := p.ChatCompletion(callCtx, req)
	latency := time.Since(start)

	if err == nil && len(resp.Choices) == 0 {
		err = &providers.ProviderError{
			Provider: p.Name(),
			Model:    model.Model,
			Kind:     providers.ErrorKindAPI,
			Message:  "empty response",
		}
	}
	if err != nil {
		// una cancellazione del chiamante non è un errore del modello
		if !errors.Is(err, context.Canceled) || ctx.Err() == nil {
			e.models.RecordError(model.ID, err)
		}
		e.metrics.ObserveGeneration(model.ID, string(model.Provider), latency, 0, err)

		log.Warn().
			Err(err).
			Str("model", model.ID).
			Str("provider", string(model.Provider)).
			Dur("latency", latency).
			Msg("Provider call failed")

		return Response{}, err
	}

	e.models.RecordSuccess(model.ID)
	e.metrics.ObserveGeneration(model.ID, string(model.Provider), latency, resp.Usage.TotalTokens, nil)

	confidence := resp.Confidence
	if confidence <= 0 {
		confidence = DefaultConfidence
	}

	return Response{
		Model:      model.ID,
		Text:       resp.Text(),
		Tokens:     resp.Usage.TotalTokens,
		Confidence: confidence,
		Latency:    latency,
	}, nil
}

// buildMessages compone system prompt, contesto ridotto e prompt utente
func (e *Engine) buildMessages(prompt string, opts Options, limit int) []providers.Message {
	messages := make([]providers.Message, 0, 3)

	if opts.SystemPrompt != "" {
		messages = append(messages, providers.Message{Role: providers.RoleSystem, Content: opts.SystemPrompt})
	}

	if !opts.OmitContext && opts.Context != "" {
		reduced := e.contexts.ProcessWithLimit(opts.Context, prompt, limit)
		messages = append(messages, providers.Message{Role: providers.RoleSystem, Content: "Context: " + reduced})
	}

	return append(messages, providers.Message{Role: providers.RoleUser, Content: prompt})
}

func (e *Engine) cacheKey(opts Options, messages []providers.Message, models ...registry.Model) string {
	if e.cache == nil || !opts.UseCache {
		return ""
	}
	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = m.ID
	}
	return cache.HashKey(ids, messages, *opts.Temperature, opts.MaxTokens, opts.MultiModel)
}

func (e *Engine) lookup(ctx context.Context, key string) *Result {
	if key == "" {
		return nil
	}

	var result Result
	if err := cache.GetJSON(ctx, e.cache, key, &result); err != nil {
		e.metrics.ObserveCache(false)
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Warn().Err(err).Msg("Response cache read failed")
		}
		return nil
	}

	e.metrics.ObserveCache(true)
	result.Cached = true
	return &result
}

func (e *Engine) store(ctx context.Context, key string, result *Result) {
	if key == "" {
		return
	}
	if err := cache.SetJSON(ctx, e.cache, key, result, e.config.CacheTTL); err != nil {
		log.Warn().Err(err).Msg("Response cache write failed")
	}
}
