// Package orchestrator costruisce e collega i componenti a partire dalla
// configurazione ed espone le operazioni usate dai client.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/biodoia/goleapcode/internal/agents"
	"github.com/biodoia/goleapcode/internal/contextmgr"
	"github.com/biodoia/goleapcode/internal/execlog"
	"github.com/biodoia/goleapcode/internal/generation"
	"github.com/biodoia/goleapcode/internal/providers"
	"github.com/biodoia/goleapcode/internal/providers/anthropic"
	"github.com/biodoia/goleapcode/internal/providers/gemini"
	"github.com/biodoia/goleapcode/internal/providers/local"
	"github.com/biodoia/goleapcode/internal/providers/openai"
	"github.com/biodoia/goleapcode/internal/registry"
	"github.com/biodoia/goleapcode/internal/stats"
	"github.com/biodoia/goleapcode/internal/workflow"
	"github.com/biodoia/goleapcode/pkg/cache"
	"github.com/biodoia/goleapcode/pkg/config"
	"github.com/biodoia/goleapcode/pkg/database"
	"github.com/biodoia/goleapcode/pkg/models"
	"github.com/biodoia/goleapcode/pkg/resilience"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Workflow usati dalle operazioni di convenienza
const (
	CodeReviewWorkflow  = "code-review"
	ImprovementWorkflow = "performance-optimization"
)

// ErrMissingCredentials indica un modello remoto senza chiave API
var ErrMissingCredentials = errors.New("missing provider credentials")

// Service è la facciata dell'orchestratore
type Service struct {
	config *config.Config

	models   *registry.Registry
	local    *local.Manager
	contexts *contextmgr.Manager
	cache    cache.Cache
	metrics  *stats.Metrics
	engine   *generation.Engine

	agents    *agents.Registry
	runner    *agents.Runner
	workflows *workflow.Engine

	execLog *execlog.Log
	db      *database.DB

	closeOnce sync.Once
}

type options struct {
	connector registry.Connector
	loader    local.Loader
	db        *database.DB
	metrics   *stats.Metrics
}

// Option personalizza la costruzione del Service
type Option func(*options)

// WithConnector sostituisce la factory dei provider
func WithConnector(c registry.Connector) Option {
	return func(o *options) { o.connector = c }
}

// WithLocalLoader sostituisce il loader dei modelli locali
func WithLocalLoader(l local.Loader) Option {
	return func(o *options) { o.loader = l }
}

// WithDatabase usa una connessione già aperta per la cronologia
func WithDatabase(db *database.DB) Option {
	return func(o *options) { o.db = db }
}

// WithMetrics usa metriche già create
func WithMetrics(m *stats.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New costruisce il Service. Con providers.initialize_on_start tutti i
// modelli vengono inizializzati; i fallimenti vengono solo registrati.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	s := &Service{config: cfg, db: o.db, metrics: o.metrics}
	if s.metrics == nil {
		s.metrics = stats.New(cfg.Monitoring.Prometheus.Namespace)
	}

	loader := o.loader
	if loader == nil {
		loader = newLocalLoader(cfg.Providers.Local)
	}
	s.local = local.NewManager(loader)

	connector := o.connector
	if connector == nil {
		factory, err := newFactory(s.local)
		if err != nil {
			return nil, err
		}
		connector = factory
	}

	s.models = registry.New(connector)
	for _, m := range cfg.Models {
		if err := s.models.Register(m); err != nil {
			return nil, err
		}
	}

	s.contexts = contextmgr.New(cfg.Context)

	genOpts := []generation.Option{
		generation.WithPolicy(resilience.NewPolicy(cfg.Recovery, generation.NonRetryable...)),
		generation.WithMetrics(s.metrics),
	}
	if cfg.Cache.Enabled {
		c, err := cache.New(ctx, cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("create cache: %w", err)
		}
		s.cache = c
		genOpts = append(genOpts, generation.WithCache(c))
	}
	s.engine = generation.New(s.models, s.contexts, cfg.Generation, genOpts...)

	if err := s.openDatabase(ctx); err != nil {
		s.closeResources()
		return nil, err
	}

	logOpts := []execlog.Option{}
	if s.db != nil {
		logOpts = append(logOpts, execlog.WithSink(dbSink{db: s.db}))
	}
	s.execLog = execlog.New(logOpts...)

	if err := s.loadCatalogs(); err != nil {
		s.closeResources()
		return nil, err
	}

	if cfg.Providers.InitializeOnStart {
		s.InitializeAll(ctx)
	}

	log.Info().
		Int("models", len(cfg.Models)).
		Int("agents", len(s.agents.List())).
		Int("workflows", len(s.workflows.Workflows().List())).
		Bool("cache", s.cache != nil).
		Bool("database", s.db != nil).
		Msg("Orchestrator ready")

	return s, nil
}

func newLocalLoader(cfg local.ProcessConfig) local.Loader {
	if cfg.Command == "" {
		return local.StubLoader{}
	}
	return local.NewProcessLoader(cfg)
}

func newFactory(lm *local.Manager) (*providers.Factory, error) {
	f := providers.NewFactory()
	builders := map[providers.Kind]providers.Builder{
		providers.KindOpenAI:    openai.Build,
		providers.KindAnthropic: anthropic.Build,
		providers.KindGemini:    gemini.Build,
		providers.KindLocal:     lm.Builder(),
	}
	for kind, b := range builders {
		if err := f.Register(kind, b); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (s *Service) openDatabase(ctx context.Context) error {
	if s.db == nil && s.config.Database.Enabled {
		db, err := database.New(&s.config.Database)
		if err != nil {
			return err
		}
		s.db = db
	}
	if s.db == nil {
		return nil
	}

	if err := s.db.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	if retention := s.config.Database.Retention; retention > 0 {
		n, err := s.db.PurgeEvents(ctx, time.Now().Add(-retention))
		if err != nil {
			log.Warn().Err(err).Msg("Failed to purge old execution events")
		} else if n > 0 {
			log.Info().Int64("events", n).Dur("retention", retention).Msg("Old execution events purged")
		}
	}
	return nil
}

func (s *Service) loadCatalogs() error {
	agentRegistry, err := agents.DefaultRegistry()
	if err != nil {
		return err
	}
	if path := s.config.Workflows.AgentsFile; path != "" {
		if err := agentRegistry.LoadFile(path); err != nil {
			return err
		}
	}
	s.agents = agentRegistry

	workflowRegistry, err := workflow.DefaultRegistry()
	if err != nil {
		return err
	}
	if path := s.config.Workflows.WorkflowsFile; path != "" {
		if err := workflowRegistry.LoadFile(path); err != nil {
			return err
		}
	}
	known := func(id string) bool {
		_, err := agentRegistry.Get(id)
		return err == nil
	}
	for _, w := range workflowRegistry.List() {
		if err := w.Validate(known); err != nil {
			return err
		}
	}

	s.runner = agents.NewRunner(agentRegistry, s.engine,
		agents.WithLog(s.execLog),
		agents.WithMetrics(s.metrics),
		agents.WithHistory(s.contexts),
	)
	s.workflows = workflow.NewEngine(workflowRegistry, s.runner,
		workflow.WithLog(s.execLog),
		workflow.WithMetrics(s.metrics),
		workflow.WithMaxParallel(s.config.Workflows.MaxParallel),
	)
	return nil
}

// RunWorkflow esegue un workflow del catalogo
func (s *Service) RunWorkflow(ctx context.Context, workflowID, input string, opts agents.RunOptions) (*workflow.ExecutionResult, error) {
	return s.workflows.RunWorkflow(ctx, workflowID, input, opts)
}

// RunCustomWorkflow esegue un workflow non registrato
func (s *Service) RunCustomWorkflow(ctx context.Context, w workflow.Workflow, input string, opts agents.RunOptions) (*workflow.ExecutionResult, error) {
	return s.workflows.RunCustom(ctx, w, input, opts)
}

// RunAgent esegue un singolo agente
func (s *Service) RunAgent(ctx context.Context, agentID, input string, opts agents.RunOptions) (*agents.ExecutionResult, error) {
	return s.runner.RunAgent(ctx, agentID, input, opts)
}

// Generate invoca direttamente il motore di generazione
func (s *Service) Generate(ctx context.Context, prompt string, opts generation.Options) (*generation.Result, error) {
	return s.engine.Generate(ctx, prompt, opts)
}

// AnalyzeCode esegue il workflow di code review
func (s *Service) AnalyzeCode(ctx context.Context, code, language string, opts agents.RunOptions) (*workflow.ExecutionResult, error) {
	opts.Language = language
	return s.RunWorkflow(ctx, CodeReviewWorkflow, code, opts)
}

// ImproveCode esegue il workflow di ottimizzazione passando i problemi noti
func (s *Service) ImproveCode(ctx context.Context, code, language string, issues interface{}, opts agents.RunOptions) (*workflow.ExecutionResult, error) {
	opts.Language = language
	opts.Issues = issues
	return s.RunWorkflow(ctx, ImprovementWorkflow, code, opts)
}

// InitializeModel inizializza un modello con le credenziali del suo provider
func (s *Service) InitializeModel(ctx context.Context, modelID string) error {
	m, err := s.models.Get(modelID)
	if err != nil {
		return err
	}
	return s.models.Initialize(ctx, modelID, s.config.Providers.For(m.Provider))
}

// InitializeAll inizializza tutti i modelli in parallelo e restituisce i
// fallimenti per id. I modelli remoti senza credenziali vengono saltati.
func (s *Service) InitializeAll(ctx context.Context) map[string]error {
	list := s.models.List()
	errs := make([]error, len(list))

	var g errgroup.Group
	for i, m := range list {
		g.Go(func() error {
			creds := s.config.Providers.For(m.Provider)
			if !m.IsLocal() && creds.APIKey == "" {
				errs[i] = fmt.Errorf("%w: %s", ErrMissingCredentials, m.Provider)
				return nil
			}
			errs[i] = s.models.Initialize(ctx, m.ID, creds)
			return nil
		})
	}
	_ = g.Wait()

	failures := make(map[string]error)
	for i, m := range list {
		if errs[i] != nil {
			failures[m.ID] = errs[i]
		}
	}

	log.Info().
		Int("models", len(list)).
		Int("failed", len(failures)).
		Msg("Models initialized")
	return failures
}

// GetAvailableWorkflows restituisce il catalogo dei workflow
func (s *Service) GetAvailableWorkflows() []workflow.Workflow {
	return s.workflows.Workflows().List()
}

// GetAvailableAgents restituisce il catalogo degli agenti
func (s *Service) GetAvailableAgents() []agents.Info {
	return s.agents.List()
}

// GetModelStats restituisce i contatori dei modelli
func (s *Service) GetModelStats() []registry.ModelStats {
	return s.models.Stats()
}

// GetExecutionHistory restituisce le entry di un'esecuzione di questo processo
func (s *Service) GetExecutionHistory(executionID string) []execlog.Entry {
	return s.execLog.History(executionID)
}

// RecentExecutions restituisce le ultime esecuzioni di questo processo
func (s *Service) RecentExecutions(n int) []execlog.Execution {
	return s.execLog.Recent(n)
}

// PersistedHistory legge le entry di un'esecuzione dal database, anche se
// prodotta da un altro processo
func (s *Service) PersistedHistory(ctx context.Context, executionID string) ([]execlog.Entry, error) {
	if s.db == nil {
		return s.execLog.History(executionID), nil
	}
	events, err := s.db.ExecutionEvents(ctx, executionID)
	if err != nil {
		return nil, err
	}
	out := make([]execlog.Entry, len(events))
	for i, e := range events {
		out[i] = entryFromEvent(e)
	}
	return out, nil
}

// TaskHistory restituisce la cronologia delle esecuzioni di un agente
func (s *Service) TaskHistory(agentID string) []contextmgr.TaskRecord {
	return s.contexts.History(agentID)
}

// LoadedLocalModels restituisce gli id dei modelli locali caricati
func (s *Service) LoadedLocalModels() []string {
	return s.local.Loaded()
}

// MetricsHandler espone le metriche Prometheus
func (s *Service) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

// CacheStats restituisce le statistiche della cache (zero se disabilitata)
func (s *Service) CacheStats() cache.CacheStats {
	if s.cache == nil {
		return cache.CacheStats{}
	}
	return s.cache.Stats()
}

// SnapshotModels salva i contatori correnti dei modelli su database
func (s *Service) SnapshotModels(ctx context.Context) error {
	if s.db == nil {
		return nil
	}

	now := time.Now()
	list := s.models.Stats()
	snapshots := make([]models.ModelSnapshot, 0, len(list))
	for _, m := range list {
		caps, err := json.Marshal(m.Capabilities)
		if err != nil {
			return err
		}
		snapshots = append(snapshots, models.ModelSnapshot{
			ModelID:      m.ID,
			Provider:     m.Provider,
			Status:       string(m.Status),
			SuccessCount: m.SuccessCount,
			ErrorCount:   m.ErrorCount,
			SuccessRate:  m.SuccessRate,
			LastError:    m.LastError,
			LastUsed:     m.LastUsed,
			Capabilities: caps,
			Timestamp:    now,
		})
	}
	return s.db.SaveModelSnapshots(ctx, snapshots)
}

// Close salva lo snapshot dei modelli e rilascia modelli locali, cache e database
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if serr := s.SnapshotModels(ctx); serr != nil {
			log.Warn().Err(serr).Msg("Failed to save model snapshots")
		}
		err = s.closeResources()
	})
	return err
}

func (s *Service) closeResources() error {
	var errs []error
	if s.local != nil {
		errs = append(errs, s.local.Close())
	}
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}

// Config restituisce la configurazione validata
func (s *Service) Config() *config.Config {
	return s.config
}

// Database restituisce la connessione alla cronologia, nil se disabilitata
func (s *Service) Database() *database.DB {
	return s.db
}
