package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/biodoia/goleapcode/internal/contextmgr"
	"github.com/biodoia/goleapcode/internal/execlog"
	"github.com/biodoia/goleapcode/internal/generation"
	"github.com/biodoia/goleapcode/internal/stats"
	"github.com/rs/zerolog/log"
)

const logInputLimit = 200

// Generator è la parte del motore di generazione usata dagli agenti
type Generator interface {
	Generate(ctx context.Context, prompt string, opts generation.Options) (*generation.Result, error)
}

// RunOptions sono i parametri forniti dal chiamante. Non possono cambiare
// il modello legato all'agente.
type RunOptions struct {
	Language string `json:"language,omitempty"`
	Context  string `json:"context,omitempty"`

	// Issues vengono serializzati in JSON e aggiunti al prompt
	Issues interface{} `json:"issues,omitempty"`

	UseCache bool `json:"useCache,omitempty"`
}

// ExecutionResult è il risultato di RunAgent
type ExecutionResult struct {
	ExecutionID   string        `json:"executionId"`
	Agent         string        `json:"agent"`
	AgentName     string        `json:"agentName"`
	Result        Result        `json:"result"`
	Confidence    float64       `json:"confidence"`
	Model         string        `json:"model"`
	Timestamp     time.Time     `json:"timestamp"`
	ExecutionTime time.Duration `json:"executionTime"`
}

// Runner esegue gli agenti del catalogo
type Runner struct {
	agents    *Registry
	generator Generator
	log       *execlog.Log
	metrics   *stats.Metrics
	history   *contextmgr.Manager
}

// RunnerOption configura il Runner
type RunnerOption func(*Runner)

// WithLog registra le esecuzioni nel log indicato
func WithLog(l *execlog.Log) RunnerOption {
	return func(r *Runner) { r.log = l }
}

// WithMetrics registra durata ed esito delle esecuzioni
func WithMetrics(m *stats.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithHistory registra ogni esecuzione nella cronologia dei task
func WithHistory(m *contextmgr.Manager) RunnerOption {
	return func(r *Runner) { r.history = m }
}

// NewRunner crea un Runner; senza WithLog usa un log privato
func NewRunner(agents *Registry, generator Generator, opts ...RunnerOption) *Runner {
	r := &Runner{agents: agents, generator: generator}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = execlog.New()
	}
	return r
}

// Agents restituisce il catalogo usato dal Runner
func (r *Runner) Agents() *Registry {
	return r.agents
}

// RunAgent esegue l'agente sull'input. Una risposta non interpretabile non è
// un errore: il risultato riporta ParseError e il punteggio di default.
func (r *Runner) RunAgent(ctx context.Context, agentID, input string, opts RunOptions) (*ExecutionResult, error) {
	e, err := r.agents.lookup(agentID)
	if err != nil {
		return nil, err
	}
	agent := e.agent

	start := time.Now()
	execID := r.log.Start(execlog.KindAgent, agentID, map[string]interface{}{
		"input": truncate(input, logInputLimit),
	})

	gen, err := r.execute(ctx, e, input, opts)
	elapsed := time.Since(start)
	r.metrics.ObserveAgent(agentID, elapsed, err)

	if err != nil {
		_ = r.log.Fail(execID, err, map[string]interface{}{
			"executionTime": elapsed.Milliseconds(),
		})
		r.record(agentID, contextmgr.TaskRecord{Subject: execID, Duration: elapsed})

		log.Error().
			Err(err).
			Str("agent", agentID).
			Str("execution_id", execID).
			Dur("duration", elapsed).
			Msg("Agent execution failed")
		return nil, fmt.Errorf("agent %s execution failed: %w", agentID, err)
	}

	result := ParseResult(agent.Kind, gen.Response)
	confidence := confidenceOf(result, gen)

	_ = r.log.Complete(execID, map[string]interface{}{
		"executionTime": elapsed.Milliseconds(),
		"result":        result.SummaryOrDefault(),
		"model":         gen.Model,
	})
	r.record(agentID, contextmgr.TaskRecord{
		Subject:    execID,
		Score:      result.Score,
		Confidence: confidence,
		Duration:   elapsed,
		Success:    true,
	})

	ev := log.Info()
	if result.ParseError != "" {
		ev = log.Warn().Str("parse_error", result.ParseError)
	}
	ev.Str("agent", agentID).
		Str("execution_id", execID).
		Str("model", gen.Model).
		Float64("confidence", confidence).
		Dur("duration", elapsed).
		Msg("Agent execution completed")

	return &ExecutionResult{
		ExecutionID:   execID,
		Agent:         agentID,
		AgentName:     agent.Name,
		Result:        result,
		Confidence:    confidence,
		Model:         gen.Model,
		Timestamp:     time.Now(),
		ExecutionTime: elapsed,
	}, nil
}

func (r *Runner) execute(ctx context.Context, e *entry, input string, opts RunOptions) (*generation.Result, error) {
	prompt, err := e.prompt(input, opts)
	if err != nil {
		return nil, err
	}

	agent := e.agent
	return r.generator.Generate(ctx, prompt, generation.Options{
		Capability:     agent.Capability,
		PreferredModel: agent.Model,
		SystemPrompt:   agent.SystemPrompt,
		Temperature:    generation.Float(agent.Temperature),
		MaxTokens:      agent.MaxTokens,
		OmitContext:    true,
		UseCache:       opts.UseCache,
	})
}

func (r *Runner) record(agentID string, rec contextmgr.TaskRecord) {
	if r.history != nil {
		r.history.Record(agentID, rec)
	}
}

// confidenceOf usa il punteggio dichiarato nella risposta (0-100), altrimenti
// la confidenza del provider
func confidenceOf(result Result, gen *generation.Result) float64 {
	if result.Score != nil {
		return *result.Score / 100
	}
	if gen.Confidence > 0 {
		return gen.Confidence
	}
	return generation.DefaultConfidence
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
