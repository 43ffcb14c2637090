package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/biodoia/goleapcode/internal/orchestrator"
	"github.com/biodoia/goleapcode/internal/registry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// ServeCmd mantiene attivo l'orchestratore ed espone metriche e stato
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Keep models loaded and expose metrics",
	Long: `Start the orchestrator, initialize all models and expose the
Prometheus metrics and a health endpoint until interrupted.`,
	Example: `  # Serve on the configured prometheus port
  goleapcode serve

  # Custom address
  goleapcode serve --addr :9100`,
	RunE: runServe,
}

var serveAddr string

func init() {
	ServeCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: :<monitoring.prometheus.port>)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log.Info().Msg("🚀 Starting GoLeapCode")

	svc, err := openService(cmd, true)
	if err != nil {
		return err
	}
	defer svc.Close()

	addr := serveAddr
	if addr == "" {
		addr = fmt.Sprintf(":%d", svc.Config().Monitoring.Prometheus.Port)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", svc.MetricsHandler())
	mux.HandleFunc("/health", healthHandler(svc))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Metrics server failed")
		}
	}()

	log.Info().Msgf("📈 Metrics: http://localhost%s/metrics", addr)
	log.Info().Msgf("📊 Health check: http://localhost%s/health", addr)
	log.Info().Msg("Press Ctrl+C to stop")

	return waitForShutdown(srv)
}

func healthHandler(svc *orchestrator.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := svc.GetModelStats()
		active := 0
		for _, m := range stats {
			if m.Status == registry.StatusActive {
				active++
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if active == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintf(w, `{"models":%d,"active":%d,"cache":{"hitRate":%.3f}}`, len(stats), active, svc.CacheStats().HitRate())
	}
}

func waitForShutdown(srv *http.Server) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("⏳ Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
		return err
	}

	log.Info().Msg("✓ GoLeapCode stopped cleanly")
	return nil
}
