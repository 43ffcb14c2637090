package commands

import (
	"fmt"
	"time"

	"github.com/biodoia/goleapcode/pkg/database"
	"github.com/biodoia/goleapcode/pkg/models"
	"github.com/spf13/cobra"
)

// MigrateCmd rappresenta il comando migrate
var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the execution history database",
	Long: `Manage the schema and the retention of the execution history database.

The database section of the configuration is used even when
database.enabled is false, so the schema can be prepared in advance.`,
	Example: `  # Create or update the schema
  goleapcode migrate up

  # Show tables and row counts
  goleapcode migrate status

  # Delete events older than 30 days
  goleapcode migrate purge --older-than 720h --confirm`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Run migrations",
	RunE:  runMigrateUp,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE:  runMigrateStatus,
}

var migratePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete old execution events",
	RunE:  runMigratePurge,
}

var (
	migrateOlderThan time.Duration
	migrateConfirm   bool
)

func init() {
	migratePurgeCmd.Flags().DurationVar(&migrateOlderThan, "older-than", 30*24*time.Hour, "Age of the events to delete")
	migratePurgeCmd.Flags().BoolVar(&migrateConfirm, "confirm", false, "Confirm deletion")

	MigrateCmd.AddCommand(migrateUpCmd)
	MigrateCmd.AddCommand(migrateStatusCmd)
	MigrateCmd.AddCommand(migratePurgeCmd)
}

func initDB(cmd *cobra.Command) (*database.DB, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return database.New(&cfg.Database)
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	db, err := initDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Running database migrations...")
	if err := db.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	fmt.Println("✓ Migrations completed successfully")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	db, err := initDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Migration Status")
	fmt.Println("================")
	fmt.Println()

	tables := []struct {
		name  string
		model interface{}
	}{
		{"execution_events", &models.ExecutionEvent{}},
		{"model_snapshots", &models.ModelSnapshot{}},
	}

	pending := false
	for _, t := range tables {
		if !db.Migrator().HasTable(t.model) {
			fmt.Printf("✗ %-18s missing\n", t.name)
			pending = true
			continue
		}

		var count int64
		if err := db.WithContext(cmd.Context()).Model(t.model).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count %s: %w", t.name, err)
		}
		fmt.Printf("✓ %-18s %d rows\n", t.name, count)
	}

	fmt.Println()
	if pending {
		fmt.Println("⚠️  Pending migrations - run 'goleapcode migrate up'")
	} else {
		fmt.Println("✓ Schema is up to date")
	}
	return nil
}

func runMigratePurge(cmd *cobra.Command, args []string) error {
	if !migrateConfirm {
		return fmt.Errorf("purge requires --confirm flag")
	}
	if migrateOlderThan <= 0 {
		return fmt.Errorf("--older-than must be positive")
	}

	db, err := initDB(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	before := time.Now().Add(-migrateOlderThan)
	n, err := db.PurgeEvents(cmd.Context(), before)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Deleted %d events older than %s\n", n, before.Format(time.RFC3339))
	return nil
}
