package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/biodoia/goleapcode/internal/orchestrator"
	"github.com/biodoia/goleapcode/pkg/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// SetupLogger configura il logger globale
func SetupLogger(verbose, dev bool) {
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Pretty console output in development
	if dev {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
		log.Logger = log.Output(os.Stderr)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyLogging(cmd, cfg)
	return cfg, nil
}

// applyLogging applica monitoring.logging quando i flag non lo sovrascrivono
func applyLogging(cmd *cobra.Command, cfg *config.Config) {
	if verbose, _ := cmd.Flags().GetBool("verbose"); !verbose && cfg.Monitoring.Logging.Level != "" {
		level, err := zerolog.ParseLevel(cfg.Monitoring.Logging.Level)
		if err != nil {
			log.Warn().Str("level", cfg.Monitoring.Logging.Level).Msg("Unknown log level, keeping default")
		} else {
			zerolog.SetGlobalLevel(level)
		}
	}

	if dev, _ := cmd.Flags().GetBool("dev"); !dev && cfg.Monitoring.Logging.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// openService carica la configurazione e costruisce l'orchestratore.
// Con initialize inizializza anche tutti i modelli configurati.
func openService(cmd *cobra.Command, initialize bool) (*orchestrator.Service, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	svc, err := orchestrator.New(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}

	if initialize && !cfg.Providers.InitializeOnStart {
		for id, err := range svc.InitializeAll(cmd.Context()) {
			log.Debug().Err(err).Str("model", id).Msg("Model not available")
		}
	}
	return svc, nil
}

// readInput legge il codice da --file ("-" per stdin) o dal primo argomento utile
func readInput(path string, args []string) (string, error) {
	switch {
	case path == "-":
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read input: %w", err)
		}
		return string(data), nil
	case len(args) > 0:
		return args[0], nil
	default:
		return "", errors.New("no input: pass --file or the code as argument")
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func withTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(cmd.Context())
	}
	return context.WithTimeout(cmd.Context(), d)
}

func formatTimeSince(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
