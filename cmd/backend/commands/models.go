package commands

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// ModelsCmd gestisce i modelli configurati
var ModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage configured models",
	Long: `Inspect and initialize the models of the registry.

Remote models need the API key of their provider (OPENAI_API_KEY,
ANTHROPIC_API_KEY, GEMINI_API_KEY); local models are loaded through
the configured runner or the offline stub.`,
	Example: `  # Show model status
  goleapcode models list

  # Initialize all models and show the result
  goleapcode models init

  # Initialize a single model
  goleapcode models init claude-3-opus

  # Show the last persisted snapshots
  goleapcode models snapshots`,
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List models with status and counters",
	RunE:  runModelsList,
}

var modelsInitCmd = &cobra.Command{
	Use:   "init [model-id]",
	Short: "Initialize models",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runModelsInit,
}

var modelsSnapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Show the latest persisted model snapshots",
	RunE:  runModelsSnapshots,
}

var (
	modelsJSON    bool
	modelsTimeout time.Duration
)

func init() {
	ModelsCmd.PersistentFlags().BoolVar(&modelsJSON, "json", false, "Output in JSON format")
	modelsInitCmd.Flags().DurationVar(&modelsTimeout, "timeout", 2*time.Minute, "Initialization timeout")

	ModelsCmd.AddCommand(modelsListCmd)
	ModelsCmd.AddCommand(modelsInitCmd)
	ModelsCmd.AddCommand(modelsSnapshotsCmd)
}

func runModelsList(cmd *cobra.Command, args []string) error {
	svc, err := openService(cmd, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	stats := svc.GetModelStats()
	if modelsJSON {
		return printJSON(stats)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROVIDER\tSTATUS\tCAPABILITIES")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, m := range stats {
		caps := make([]string, len(m.Capabilities))
		for i, c := range m.Capabilities {
			caps[i] = string(c)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, m.Provider, m.Status, strings.Join(caps, ","))
	}
	w.Flush()
	return nil
}

func runModelsInit(cmd *cobra.Command, args []string) error {
	svc, err := openService(cmd, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := withTimeout(cmd, modelsTimeout)
	defer cancel()

	if len(args) == 1 {
		if err := svc.InitializeModel(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Model %s initialized\n", args[0])
		return nil
	}

	failures := svc.InitializeAll(ctx)
	if modelsJSON {
		out := make(map[string]string, len(failures))
		for id, err := range failures {
			out[id] = err.Error()
		}
		return printJSON(out)
	}

	for _, m := range svc.GetModelStats() {
		if err, failed := failures[m.ID]; failed {
			fmt.Printf("✗ %-22s %v\n", m.ID, err)
		} else {
			fmt.Printf("✓ %-22s %s\n", m.ID, m.Status)
		}
	}

	fmt.Printf("\n%d/%d models active\n", len(svc.GetModelStats())-len(failures), len(svc.GetModelStats()))
	return nil
}

func runModelsSnapshots(cmd *cobra.Command, args []string) error {
	svc, err := openService(cmd, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	db := svc.Database()
	if db == nil {
		return fmt.Errorf("database is disabled (set database.enabled)")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	snapshots, err := db.LatestModelSnapshots(ctx)
	if err != nil {
		return err
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].ModelID < snapshots[j].ModelID })

	if modelsJSON {
		return printJSON(snapshots)
	}

	if len(snapshots) == 0 {
		fmt.Println("No snapshots in the last 24 hours")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tSTATUS\tSUCCESS\tERRORS\tRATE\tLAST USED\tTAKEN")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, s := range snapshots {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.1f%%\t%s\t%s\n",
			s.ModelID, s.Status, s.SuccessCount, s.ErrorCount, s.SuccessRate*100,
			formatTimeSince(s.LastUsed), formatTimeSince(s.Timestamp))
	}
	w.Flush()
	return nil
}
