package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/biodoia/goleapcode/internal/agents"
	"github.com/biodoia/goleapcode/internal/execlog"
	"github.com/biodoia/goleapcode/internal/stats"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// AgentRunner esegue un singolo agente
type AgentRunner interface {
	RunAgent(ctx context.Context, agentID, input string, opts agents.RunOptions) (*agents.ExecutionResult, error)
}

// StepError è il fallimento di uno step
type StepError struct {
	Step  string `json:"step"`
	Agent string `json:"agent"`
	Error string `json:"error"`
}

// ExecutionResult è il risultato di un workflow. Results contiene solo gli
// step riusciti, nell'ordine dichiarato.
type ExecutionResult struct {
	ExecutionID   string                    `json:"executionId"`
	Workflow      string                    `json:"workflow"`
	WorkflowName  string                    `json:"workflowName"`
	Results       []*agents.ExecutionResult `json:"results"`
	Combined      Combined                  `json:"combined"`
	Errors        []StepError               `json:"errors"`
	Timestamp     time.Time                 `json:"timestamp"`
	ExecutionTime time.Duration             `json:"executionTime"`
}

// Engine esegue i workflow del catalogo
type Engine struct {
	workflows   *Registry
	runner      AgentRunner
	log         *execlog.Log
	metrics     *stats.Metrics
	maxParallel int
}

// Option configura l'Engine
type Option func(*Engine)

// WithLog registra le esecuzioni nel log indicato
func WithLog(l *execlog.Log) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics registra durata ed esito dei workflow
func WithMetrics(m *stats.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithMaxParallel limita gli step concorrenti dei workflow paralleli (0 = nessun limite)
func WithMaxParallel(n int) Option {
	return func(e *Engine) { e.maxParallel = n }
}

// NewEngine crea un Engine
func NewEngine(workflows *Registry, runner AgentRunner, opts ...Option) *Engine {
	e := &Engine{workflows: workflows, runner: runner}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = execlog.New()
	}
	return e
}

// Workflows restituisce il catalogo usato dall'Engine
func (e *Engine) Workflows() *Registry {
	return e.workflows
}

// RunWorkflow esegue un workflow registrato
func (e *Engine) RunWorkflow(ctx context.Context, workflowID, input string, opts agents.RunOptions) (*ExecutionResult, error) {
	w, err := e.workflows.Get(workflowID)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, w, input, opts)
}

// RunCustom esegue un workflow non registrato
func (e *Engine) RunCustom(ctx context.Context, w Workflow, input string, opts agents.RunOptions) (*ExecutionResult, error) {
	w, err := w.normalize()
	if err != nil {
		return nil, err
	}
	return e.run(ctx, w, input, opts)
}

// run esegue gli step. Se uno step critico fallisce restituisce il risultato
// parziale insieme all'errore.
func (e *Engine) run(ctx context.Context, w Workflow, input string, opts agents.RunOptions) (*ExecutionResult, error) {
	start := time.Now()
	execID := e.log.Start(execlog.KindWorkflow, w.ID, map[string]interface{}{
		"workflow": w.Name,
		"steps":    len(w.Steps),
		"mode":     string(w.Mode),
	})

	log.Info().
		Str("workflow", w.ID).
		Str("execution_id", execID).
		Str("mode", string(w.Mode)).
		Int("steps", len(w.Steps)).
		Msg("Workflow started")

	var (
		results []*agents.ExecutionResult
		errs    []StepError
		err     error
	)
	if w.Parallel() {
		results, errs, err = e.runParallel(ctx, execID, w, input, opts)
	} else {
		results, errs, err = e.runSequential(ctx, execID, w, input, opts)
	}

	elapsed := time.Since(start)
	res := &ExecutionResult{
		ExecutionID:   execID,
		Workflow:      w.ID,
		WorkflowName:  w.Name,
		Results:       results,
		Combined:      Combine(w, results),
		Errors:        errs,
		Timestamp:     time.Now(),
		ExecutionTime: elapsed,
	}
	if res.Results == nil {
		res.Results = []*agents.ExecutionResult{}
	}
	if res.Errors == nil {
		res.Errors = []StepError{}
	}

	e.metrics.ObserveWorkflow(w.ID, elapsed, err)

	if err != nil {
		_ = e.log.Fail(execID, err, map[string]interface{}{
			"executionTime":   elapsed.Milliseconds(),
			"successfulSteps": len(results),
			"failedSteps":     len(errs),
		})
		log.Error().
			Err(err).
			Str("workflow", w.ID).
			Str("execution_id", execID).
			Int("completed_steps", len(results)).
			Int("failed_steps", len(errs)).
			Dur("duration", elapsed).
			Msg("Workflow failed")
		return res, fmt.Errorf("workflow %s execution failed: %w", w.ID, err)
	}

	_ = e.log.Complete(execID, map[string]interface{}{
		"executionTime":   elapsed.Milliseconds(),
		"successfulSteps": len(results),
		"failedSteps":     len(errs),
	})
	log.Info().
		Str("workflow", w.ID).
		Str("execution_id", execID).
		Int("completed_steps", len(results)).
		Int("failed_steps", len(errs)).
		Dur("duration", elapsed).
		Msg("Workflow completed")

	return res, nil
}

func (e *Engine) runSequential(ctx context.Context, execID string, w Workflow, input string, opts agents.RunOptions) ([]*agents.ExecutionResult, []StepError, error) {
	var (
		results []*agents.ExecutionResult
		errs    []StepError
	)
	for _, step := range w.Steps {
		if err := ctx.Err(); err != nil {
			return results, errs, err
		}

		res, err := e.runner.RunAgent(ctx, step.Agent, input, opts)
		if err != nil {
			errs = append(errs, e.stepFailed(execID, w, step, err))
			if step.Critical {
				return results, errs, err
			}
			continue
		}
		results = append(results, res)
		e.stepCompleted(execID, step, res)
	}
	return results, errs, nil
}

// runParallel esegue tutti gli step; i fallimenti vengono raccolti senza
// interrompere gli altri
func (e *Engine) runParallel(ctx context.Context, execID string, w Workflow, input string, opts agents.RunOptions) ([]*agents.ExecutionResult, []StepError, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	outcomes := make([]*agents.ExecutionResult, len(w.Steps))
	failures := make([]error, len(w.Steps))

	var g errgroup.Group
	if e.maxParallel > 0 {
		g.SetLimit(e.maxParallel)
	}
	for i, step := range w.Steps {
		g.Go(func() error {
			outcomes[i], failures[i] = e.runner.RunAgent(ctx, step.Agent, input, opts)
			return nil
		})
	}
	_ = g.Wait()

	var (
		results []*agents.ExecutionResult
		errs    []StepError
	)
	for i, step := range w.Steps {
		if failures[i] != nil {
			errs = append(errs, e.stepFailed(execID, w, step, failures[i]))
			continue
		}
		results = append(results, outcomes[i])
		e.stepCompleted(execID, step, outcomes[i])
	}

	if err := ctx.Err(); err != nil {
		return results, errs, err
	}
	return results, errs, nil
}

func (e *Engine) stepCompleted(execID string, step Step, res *agents.ExecutionResult) {
	_ = e.log.Append(execID, execlog.StatusStepCompleted, map[string]interface{}{
		"step":        step.Name,
		"agent":       step.Agent,
		"executionId": res.ExecutionID,
	})
}

func (e *Engine) stepFailed(execID string, w Workflow, step Step, err error) StepError {
	e.metrics.ObserveStepError(w.ID, step.Agent)
	_ = e.log.Append(execID, execlog.StatusStepFailed, map[string]interface{}{
		"step":     step.Name,
		"agent":    step.Agent,
		"critical": step.Critical,
		"error":    err.Error(),
	})

	log.Warn().
		Err(err).
		Str("workflow", w.ID).
		Str("step", step.Name).
		Bool("critical", step.Critical).
		Msg("Workflow step failed")

	return StepError{Step: step.Name, Agent: step.Agent, Error: err.Error()}
}
