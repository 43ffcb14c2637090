package commands

import (
	"fmt"
	"os"

	"github.com/biodoia/goleapcode/pkg/cache"
	"github.com/biodoia/goleapcode/pkg/config"
	"github.com/biodoia/goleapcode/pkg/database"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ConfigCmd rappresenta il comando config
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage GoLeapCode configuration files.

Values are read from the config file, then overridden by GOLEAPCODE_*
environment variables (e.g. GOLEAPCODE_GENERATION_MAX_RETRIES).`,
	Example: `  # Show current configuration
  goleapcode config show

  # Validate configuration file
  goleapcode config validate -c config.yaml

  # Generate template configuration
  goleapcode config generate -o config.yaml`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the currently loaded configuration with all values. API keys are masked.`,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE:  runConfigValidate,
}

var configGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate template configuration",
	Example: `  # Generate to stdout
  goleapcode config generate

  # Generate production config
  goleapcode config generate --env production -o prod.yaml`,
	RunE: runConfigGenerate,
}

var (
	configOutput string
	configEnv    string
)

func init() {
	configGenerateCmd.Flags().StringVarP(&configOutput, "output", "o", "", "Output file path (stdout if not specified)")
	configGenerateCmd.Flags().StringVar(&configEnv, "env", "development", "Environment (development, production)")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configValidateCmd)
	ConfigCmd.AddCommand(configGenerateCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	masked := *cfg
	for _, key := range []*string{
		&masked.Providers.OpenAI.APIKey,
		&masked.Providers.Anthropic.APIKey,
		&masked.Providers.Gemini.APIKey,
		&masked.Cache.Redis.Password,
	} {
		if *key != "" {
			*key = "********"
		}
	}

	data, err := yaml.Marshal(&masked)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Println("# Current Configuration")
	fmt.Println("# =====================")
	fmt.Println()
	fmt.Print(string(data))

	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	fmt.Printf("Validating configuration: %s\n\n", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Println("✗ Failed to load configuration")
		return err
	}

	fmt.Println("✓ Configuration loaded successfully")

	if err := cfg.Validate(); err != nil {
		fmt.Println("✗ Configuration validation failed")
		return err
	}

	fmt.Println("✓ Configuration is valid")
	fmt.Println()
	fmt.Println("Configuration summary:")
	fmt.Printf("  Models:     %d\n", len(cfg.Models))
	fmt.Printf("  Fallback:   %s\n", cfg.Recovery.FallbackModel)
	fmt.Printf("  Cache:      %v (%s)\n", cfg.Cache.Enabled, cfg.Cache.Backend)
	fmt.Printf("  Database:   %v (%s)\n", cfg.Database.Enabled, cfg.Database.Type)
	fmt.Printf("  Prometheus: %v\n", cfg.Monitoring.Prometheus.Enabled)

	return nil
}

func runConfigGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := generateTemplateConfig(configEnv)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	output := `# GoLeapCode Configuration File
# =============================
#
# API keys are read from OPENAI_API_KEY, ANTHROPIC_API_KEY and
# GEMINI_API_KEY when not set here.
#
# Environment: ` + configEnv + `

`
	output += string(data)

	if configOutput != "" {
		if err := os.WriteFile(configOutput, []byte(output), 0644); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
		fmt.Printf("✓ Configuration template generated: %s\n", configOutput)
	} else {
		fmt.Print(output)
	}

	return nil
}

func generateTemplateConfig(env string) (*config.Config, error) {
	cfg, err := config.Default()
	if err != nil {
		return nil, err
	}

	cfg.Database.Enabled = true
	cfg.Monitoring.Prometheus.Enabled = true

	switch env {
	case "production":
		cfg.Cache.Enabled = true
		cfg.Cache.Backend = cache.BackendTiered
		cfg.Database.Type = database.TypePostgres
		cfg.Database.Connection = "host=localhost user=goleapcode password=changeme dbname=goleapcode sslmode=require"
		cfg.Database.MaxConns = 50
		cfg.Monitoring.Logging.Level = "info"
		cfg.Monitoring.Logging.Format = "json"
	case "development":
		cfg.Cache.Enabled = true
		cfg.Cache.Backend = cache.BackendMemory
		cfg.Monitoring.Logging.Level = "debug"
		cfg.Monitoring.Logging.Format = "console"
	default:
		return nil, fmt.Errorf("unknown environment: %s", env)
	}

	return cfg, nil
}
