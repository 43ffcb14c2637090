package main

import (
	"fmt"
	"os"

	"github.com/biodoia/goleapcode/cmd/backend/commands"
	"github.com/spf13/cobra"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "goleapcode",
		Short: "GoLeapCode - Multi-agent code analysis orchestrator",
		Long: `GoLeapCode - Multi-agent code analysis orchestrator

Runs specialized LLM agents over source code, alone or composed in
workflows, across cloud and local models.

Features:
  • Model registry with capability and priority based selection
  • Automatic error recovery and model fallback
  • Multi-model generation with consensus scoring
  • Sequential and parallel workflows with combined reports
  • Offline operation with local models
  • Execution history and Prometheus metrics`,
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			dev, _ := cmd.Flags().GetBool("dev")
			commands.SetupLogger(verbose, dev)
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging (debug level)")
	rootCmd.PersistentFlags().Bool("dev", false, "Pretty console logging")

	rootCmd.AddCommand(commands.AgentsCmd)
	rootCmd.AddCommand(commands.WorkflowsCmd)
	rootCmd.AddCommand(commands.ModelsCmd)
	rootCmd.AddCommand(commands.RunAgentCmd)
	rootCmd.AddCommand(commands.RunWorkflowCmd)
	rootCmd.AddCommand(commands.GenerateCmd)
	rootCmd.AddCommand(commands.HistoryCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.MigrateCmd)
	rootCmd.AddCommand(commands.DoctorCmd)
	rootCmd.AddCommand(commands.ServeCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("GoLeapCode version %s\n", version)
			fmt.Printf("Commit: %s\n", commit)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
