// Package config carica la configurazione dell'orchestratore da file YAML
// e variabili d'ambiente.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/biodoia/goleapcode/internal/contextmgr"
	"github.com/biodoia/goleapcode/internal/generation"
	"github.com/biodoia/goleapcode/internal/providers"
	"github.com/biodoia/goleapcode/internal/providers/local"
	"github.com/biodoia/goleapcode/internal/registry"
	"github.com/biodoia/goleapcode/pkg/cache"
	"github.com/biodoia/goleapcode/pkg/database"
	"github.com/biodoia/goleapcode/pkg/resilience"
	"github.com/spf13/viper"
)

// EnvPrefix è il prefisso delle variabili d'ambiente
const EnvPrefix = "GOLEAPCODE"

// Config rappresenta la configurazione completa dell'applicazione
type Config struct {
	Models     []registry.ModelConfig `yaml:"models" mapstructure:"models"`
	Providers  ProvidersConfig        `yaml:"providers" mapstructure:"providers"`
	Context    contextmgr.Config      `yaml:"context" mapstructure:"context"`
	Generation generation.Config      `yaml:"generation" mapstructure:"generation"`
	Recovery   resilience.Config      `yaml:"recovery" mapstructure:"recovery"`
	Cache      cache.Config           `yaml:"cache" mapstructure:"cache"`
	Database   database.Config        `yaml:"database" mapstructure:"database"`
	Workflows  WorkflowsConfig        `yaml:"workflows" mapstructure:"workflows"`
	Monitoring MonitoringConfig       `yaml:"monitoring" mapstructure:"monitoring"`
}

// ProvidersConfig contiene le credenziali dei provider e il runner locale
type ProvidersConfig struct {
	OpenAI    providers.Config    `yaml:"openai" mapstructure:"openai"`
	Anthropic providers.Config    `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini    providers.Config    `yaml:"gemini" mapstructure:"gemini"`
	Local     local.ProcessConfig `yaml:"local" mapstructure:"local"`

	// InitializeOnStart inizializza tutti i modelli alla creazione del servizio
	InitializeOnStart bool `yaml:"initialize_on_start" mapstructure:"initialize_on_start"`
}

// For restituisce la configurazione di connessione del tipo di provider
func (p ProvidersConfig) For(kind providers.Kind) providers.Config {
	switch kind {
	case providers.KindOpenAI:
		return p.OpenAI
	case providers.KindAnthropic:
		return p.Anthropic
	case providers.KindGemini:
		return p.Gemini
	default:
		return providers.Config{}
	}
}

// WorkflowsConfig indica i file con agenti e workflow aggiuntivi
type WorkflowsConfig struct {
	AgentsFile    string `yaml:"agents_file" mapstructure:"agents_file"`
	WorkflowsFile string `yaml:"workflows_file" mapstructure:"workflows_file"`
	MaxParallel   int    `yaml:"max_parallel" mapstructure:"max_parallel"`
}

// MonitoringConfig configurazione monitoring
type MonitoringConfig struct {
	Prometheus struct {
		Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
		Port      int    `yaml:"port" mapstructure:"port"`
		Namespace string `yaml:"namespace" mapstructure:"namespace"`
	} `yaml:"prometheus" mapstructure:"prometheus"`
	Logging struct {
		Level  string `yaml:"level" mapstructure:"level"`
		Format string `yaml:"format" mapstructure:"format"`
	} `yaml:"logging" mapstructure:"logging"`
}

// Load carica la configurazione da file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindProviderEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Models) == 0 {
		cfg.Models = registry.DefaultModels()
	}

	return &cfg, nil
}

// Default restituisce la configurazione con i soli valori predefiniti
func Default() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Models = registry.DefaultModels()
	return &cfg, nil
}

// bindProviderEnv accetta anche le variabili standard dei provider
func bindProviderEnv(v *viper.Viper) {
	bindings := map[string]string{
		"providers.openai.api_key":    "OPENAI_API_KEY",
		"providers.anthropic.api_key": "ANTHROPIC_API_KEY",
		"providers.gemini.api_key":    "GEMINI_API_KEY",
	}
	for key, std := range bindings {
		env := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, env, std)
	}
}

// setDefaults imposta i valori di default
func setDefaults(v *viper.Viper) {
	// Providers defaults
	v.SetDefault("providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("providers.openai.timeout", "60s")
	v.SetDefault("providers.anthropic.base_url", "https://api.anthropic.com")
	v.SetDefault("providers.anthropic.timeout", "60s")
	v.SetDefault("providers.gemini.timeout", "60s")
	v.SetDefault("providers.local.command", "")
	v.SetDefault("providers.local.models_dir", "./models")
	v.SetDefault("providers.local.health_path", "/health")
	v.SetDefault("providers.local.startup_timeout", "2m")
	v.SetDefault("providers.initialize_on_start", false)

	// Context defaults
	v.SetDefault("context.max_context_size", contextmgr.DefaultMaxContextSize)
	v.SetDefault("context.chunk_size", contextmgr.DefaultChunkSize)
	v.SetDefault("context.history_size", 100)

	// Generation defaults
	gen := generation.DefaultConfig()
	v.SetDefault("generation.max_retries", gen.MaxRetries)
	v.SetDefault("generation.multi_model_count", gen.MultiModelCount)
	v.SetDefault("generation.temperature", gen.Temperature)
	v.SetDefault("generation.cache_ttl", gen.CacheTTL)
	v.SetDefault("generation.call_timeout", "2m")

	// Recovery defaults
	rec := resilience.DefaultConfig()
	v.SetDefault("recovery.rate_limit_delay", rec.RateLimitDelay)
	v.SetDefault("recovery.api_error_delay", rec.APIErrorDelay)
	v.SetDefault("recovery.context_delay", rec.ContextDelay)
	v.SetDefault("recovery.fallback_model", rec.FallbackModel)
	v.SetDefault("recovery.exponential_backoff", rec.ExponentialBackoff)
	v.SetDefault("recovery.max_backoff", rec.MaxBackoff)

	// Cache defaults
	cc := cache.DefaultConfig()
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.backend", cc.Backend)
	v.SetDefault("cache.max_entries", cc.MaxEntries)
	v.SetDefault("cache.ttl", cc.TTL)
	v.SetDefault("cache.redis.host", cc.Redis.Host)
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.key_prefix", cc.Redis.KeyPrefix)

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.type", database.TypeSQLite)
	v.SetDefault("database.connection", "./data/goleapcode.db")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.retention", "0s")

	// Workflows defaults
	v.SetDefault("workflows.agents_file", "")
	v.SetDefault("workflows.workflows_file", "")
	v.SetDefault("workflows.max_parallel", 0)

	// Monitoring defaults
	v.SetDefault("monitoring.prometheus.enabled", false)
	v.SetDefault("monitoring.prometheus.port", 9090)
	v.SetDefault("monitoring.prometheus.namespace", "goleapcode")
	v.SetDefault("monitoring.logging.level", "info")
	v.SetDefault("monitoring.logging.format", "json")
}

// Validate valida la configurazione
func (c *Config) Validate() error {
	if c.Context.MaxContextSize <= 0 || c.Context.ChunkSize <= 0 {
		return fmt.Errorf("invalid context limits: max %d, chunk %d", c.Context.MaxContextSize, c.Context.ChunkSize)
	}
	if c.Generation.MultiModelCount < 1 {
		return fmt.Errorf("invalid multi model count: %d", c.Generation.MultiModelCount)
	}
	if c.Generation.MaxRetries < 0 {
		return fmt.Errorf("invalid max retries: %d", c.Generation.MaxRetries)
	}

	seen := make(map[string]bool, len(c.Models))
	for _, m := range c.Models {
		if m.ID == "" {
			return errors.New("model without id")
		}
		if seen[m.ID] {
			return fmt.Errorf("duplicate model id: %s", m.ID)
		}
		seen[m.ID] = true

		switch m.Provider {
		case providers.KindOpenAI, providers.KindAnthropic, providers.KindGemini, providers.KindLocal:
		default:
			return fmt.Errorf("model %s: unknown provider %q", m.ID, m.Provider)
		}
	}

	if c.Recovery.FallbackModel != "" && !seen[c.Recovery.FallbackModel] {
		return fmt.Errorf("fallback model %s is not configured", c.Recovery.FallbackModel)
	}

	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case cache.BackendMemory, cache.BackendRedis, cache.BackendTiered:
		default:
			return fmt.Errorf("unsupported cache backend: %s", c.Cache.Backend)
		}
	}

	if c.Database.Enabled {
		switch c.Database.Type {
		case database.TypeSQLite, database.TypePostgres:
		default:
			return fmt.Errorf("unsupported database type: %s", c.Database.Type)
		}
	}

	if c.Monitoring.Prometheus.Enabled {
		if p := c.Monitoring.Prometheus.Port; p < 1 || p > 65535 {
			return fmt.Errorf("invalid prometheus port: %d", p)
		}
	}

	for _, path := range []string{c.Workflows.AgentsFile, c.Workflows.WorkflowsFile} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("definitions file not found: %s", path)
		}
	}

	return nil
}
