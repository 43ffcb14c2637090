package commands

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/biodoia/goleapcode/internal/registry"
	"github.com/biodoia/goleapcode/pkg/cache"
	"github.com/biodoia/goleapcode/pkg/config"
	"github.com/biodoia/goleapcode/pkg/database"
	"github.com/biodoia/goleapcode/pkg/models"
	"github.com/spf13/cobra"
)

// DoctorCmd rappresenta il comando doctor
var DoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health diagnostics",
	Long: `Run health checks on configuration, database, cache and models.

The models check initializes every configured model, so remote models
perform one test call against their provider.`,
	Example: `  # Run full diagnostic
  goleapcode doctor

  # Check only the models
  goleapcode doctor --check models`,
	RunE: runDoctor,
}

var (
	doctorCheck   string
	doctorTimeout time.Duration
)

func init() {
	DoctorCmd.Flags().StringVar(&doctorCheck, "check", "", "Run specific check (config, database, cache, models)")
	DoctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", 2*time.Minute, "Timeout of each check")
}

type doctorCheckFunc func(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("GoLeapCode System Health Check")
	fmt.Println("==============================")
	fmt.Println()

	checks := map[string]doctorCheckFunc{
		"config":   checkConfig,
		"database": checkDatabase,
		"cache":    checkCache,
		"models":   checkModels,
	}
	order := []string{"config", "database", "cache", "models"}

	if doctorCheck != "" {
		if _, ok := checks[doctorCheck]; !ok {
			return fmt.Errorf("unknown check: %s", doctorCheck)
		}
		order = []string{doctorCheck}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Printf("✗ Failed to load configuration: %v\n", err)
		return err
	}

	results := make(map[string]bool, len(order))
	for i, name := range order {
		fmt.Printf("[%d/%d] %s\n", i+1, len(order), name)
		fmt.Println("------------------------")

		ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
		err := checks[name](ctx, cmd, cfg)
		cancel()

		results[name] = err == nil
		fmt.Println()
	}

	fmt.Println("Summary")
	fmt.Println("-------")
	allPassed := true
	for _, name := range order {
		status := "✓ PASS"
		if !results[name] {
			status = "✗ FAIL"
			allPassed = false
		}
		fmt.Printf("%-15s %s\n", name+":", status)
	}

	fmt.Println()
	if !allPassed {
		fmt.Println("✗ Some checks failed - please review errors above")
		return fmt.Errorf("health check failed")
	}
	fmt.Println("✓ All checks passed - system is healthy")
	return nil
}

func checkConfig(_ context.Context, _ *cobra.Command, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		fmt.Printf("✗ Invalid configuration: %v\n", err)
		return err
	}
	fmt.Printf("✓ Configuration valid (%d models)\n", len(cfg.Models))

	for _, k := range []struct {
		name string
		key  string
	}{
		{"OpenAI", cfg.Providers.OpenAI.APIKey},
		{"Anthropic", cfg.Providers.Anthropic.APIKey},
		{"Gemini", cfg.Providers.Gemini.APIKey},
	} {
		if k.key == "" {
			fmt.Printf("⚠️  %s API key not set\n", k.name)
		} else {
			fmt.Printf("✓ %s API key set\n", k.name)
		}
	}
	return nil
}

func checkDatabase(ctx context.Context, _ *cobra.Command, cfg *config.Config) error {
	if !cfg.Database.Enabled {
		fmt.Println("⚠️  Database disabled (execution history is kept in memory)")
		return nil
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		fmt.Printf("✗ Failed to connect: %v\n", err)
		return err
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		fmt.Printf("✗ Ping failed: %v\n", err)
		return err
	}
	fmt.Println("✓ Database ping successful")

	for _, table := range []interface{}{&models.ExecutionEvent{}, &models.ModelSnapshot{}} {
		if !db.Migrator().HasTable(table) {
			fmt.Printf("✗ Missing table: %T\n", table)
			fmt.Println("   run 'goleapcode migrate up'")
			return fmt.Errorf("database schema incomplete")
		}
	}
	fmt.Println("✓ All required tables present")
	return nil
}

func checkCache(ctx context.Context, _ *cobra.Command, cfg *config.Config) error {
	if !cfg.Cache.Enabled {
		fmt.Println("⚠️  Response cache disabled")
		return nil
	}

	c, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		fmt.Printf("✗ Failed to create %s cache: %v\n", cfg.Cache.Backend, err)
		return err
	}
	defer c.Close()

	key := cache.HashKey("doctor", time.Now().UnixNano())
	value := []byte("ok")
	if err := c.Set(ctx, key, value, time.Minute); err != nil {
		fmt.Printf("✗ Write failed: %v\n", err)
		return err
	}
	got, err := c.Get(ctx, key)
	if err != nil || !bytes.Equal(got, value) {
		fmt.Printf("✗ Read back failed: %v\n", err)
		return fmt.Errorf("cache read back failed")
	}
	_ = c.Delete(ctx, key)

	fmt.Printf("✓ %s cache working\n", cfg.Cache.Backend)
	return nil
}

func checkModels(ctx context.Context, cmd *cobra.Command, _ *config.Config) error {
	svc, err := openService(cmd, false)
	if err != nil {
		fmt.Printf("✗ Failed to start orchestrator: %v\n", err)
		return err
	}
	defer svc.Close()

	failures := svc.InitializeAll(ctx)

	stats := svc.GetModelStats()
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].ID < stats[j].ID })

	active := 0
	for _, m := range stats {
		if m.Status == registry.StatusActive {
			active++
			fmt.Printf("✓ %-22s %s\n", m.ID, m.Provider)
			continue
		}
		fmt.Printf("✗ %-22s %v\n", m.ID, failures[m.ID])
	}

	fmt.Printf("Summary: %d/%d models active\n", active, len(stats))
	if active == 0 {
		return fmt.Errorf("no model available")
	}
	return nil
}
