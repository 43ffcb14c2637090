package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultFallbackModel è il modello offline usato dopo un rate limit
const DefaultFallbackModel = "local-mistral"

// Config contiene ritardi e fallback delle strategie di recovery
type Config struct {
	RateLimitDelay     time.Duration `yaml:"rate_limit_delay" mapstructure:"rate_limit_delay"`
	APIErrorDelay      time.Duration `yaml:"api_error_delay" mapstructure:"api_error_delay"`
	ContextDelay       time.Duration `yaml:"context_delay" mapstructure:"context_delay"`
	FallbackModel      string        `yaml:"fallback_model" mapstructure:"fallback_model"`
	ExponentialBackoff bool          `yaml:"exponential_backoff" mapstructure:"exponential_backoff"`
	MaxBackoff         time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
}

// DefaultConfig restituisce la configurazione di default
func DefaultConfig() Config {
	return Config{
		RateLimitDelay: 60 * time.Second,
		APIErrorDelay:  5 * time.Second,
		ContextDelay:   0,
		FallbackModel:  DefaultFallbackModel,
		MaxBackoff:     2 * time.Minute,
	}
}

// Decision descrive come il chiamante deve modificare il prossimo tentativo
type Decision struct {
	Kind          Kind
	ReduceContext bool
	FallbackModel string
	Delay         time.Duration
}

// Policy decide la strategia di recovery. Non riesegue mai la generazione:
// il ciclo di retry appartiene al chiamante.
type Policy struct {
	config       Config
	nonRetryable []error
	sleep        func(ctx context.Context, d time.Duration) error
}

// NewPolicy crea una Policy. Gli errori in nonRetryable, insieme alla
// cancellazione del context, vengono sempre restituiti senza attesa.
func NewPolicy(cfg Config, nonRetryable ...error) *Policy {
	if cfg.FallbackModel == "" {
		cfg.FallbackModel = DefaultFallbackModel
	}
	return &Policy{
		config:       cfg,
		nonRetryable: append([]error{context.Canceled, context.DeadlineExceeded}, nonRetryable...),
		sleep:        Sleep,
	}
}

// Config restituisce la configurazione della policy
func (p *Policy) Config() Config {
	return p.config
}

// Retryable indica se l'errore può essere gestito con un nuovo tentativo
func (p *Policy) Retryable(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range p.nonRetryable {
		if errors.Is(err, target) {
			return false
		}
	}
	return true
}

// Delay restituisce l'attesa prima del tentativo attempt (a partire da 1)
func (p *Policy) Delay(kind Kind, attempt int) time.Duration {
	switch kind {
	case KindRateLimit:
		return p.config.RateLimitDelay
	case KindContextTooLarge:
		return p.config.ContextDelay
	default:
		if !p.config.ExponentialBackoff {
			return p.config.APIErrorDelay
		}
		return Backoff{
			Initial:    p.config.APIErrorDelay,
			Max:        p.config.MaxBackoff,
			Multiplier: 2.0,
		}.Duration(attempt)
	}
}

// Recover classifica err e restituisce la decisione per il prossimo
// tentativo dopo aver atteso il ritardo previsto. Con remaining <= 0 o con
// un errore non ritentabile restituisce err invariato.
func (p *Policy) Recover(ctx context.Context, err error, attempt, remaining int) (Decision, error) {
	kind := Classify(err)
	decision := Decision{Kind: kind}

	if !p.Retryable(err) {
		return decision, err
	}
	if remaining <= 0 {
		log.Warn().
			Err(err).
			Str("kind", string(kind)).
			Int("attempts", attempt).
			Msg("Retries exhausted")
		return decision, err
	}

	switch kind {
	case KindContextTooLarge:
		decision.ReduceContext = true
	case KindRateLimit:
		decision.FallbackModel = p.config.FallbackModel
	}
	decision.Delay = p.Delay(kind, attempt)

	log.Warn().
		Err(err).
		Str("kind", string(kind)).
		Int("attempt", attempt).
		Int("remaining", remaining).
		Dur("delay", decision.Delay).
		Bool("reduce_context", decision.ReduceContext).
		Str("fallback_model", decision.FallbackModel).
		Msg("Recovering from generation error")

	if err := p.sleep(ctx, decision.Delay); err != nil {
		return decision, err
	}
	return decision, nil
}
