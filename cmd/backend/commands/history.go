package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// HistoryCmd mostra la cronologia delle esecuzioni salvata su database
var HistoryCmd = &cobra.Command{
	Use:   "history [execution-id]",
	Short: "Show execution history",
	Long: `Show the persisted execution history.

Without arguments lists the most recent events; with an execution id
prints all of its entries in order. Requires database.enabled.`,
	Example: `  # Last 20 events
  goleapcode history

  # Events of an agent or workflow
  goleapcode history --subject code-review

  # Entries of an execution
  goleapcode history exec_1712345678901_3 --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

var (
	historyLimit   int
	historySubject string
	historyJSON    bool
)

func init() {
	HistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of events")
	HistoryCmd.Flags().StringVar(&historySubject, "subject", "", "Filter by agent or workflow id")
	HistoryCmd.Flags().BoolVar(&historyJSON, "json", false, "Output in JSON format")
}

func runHistory(cmd *cobra.Command, args []string) error {
	svc, err := openService(cmd, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	db := svc.Database()
	if db == nil {
		return fmt.Errorf("database is disabled (set database.enabled)")
	}

	ctx := cmd.Context()

	if len(args) == 1 {
		entries, err := svc.PersistedHistory(ctx, args[0])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return fmt.Errorf("execution not found: %s", args[0])
		}
		if historyJSON {
			return printJSON(entries)
		}

		fmt.Printf("Execution %s (%s %s)\n", args[0], entries[0].Kind, entries[0].SubjectID)
		fmt.Println(strings.Repeat("=", 60))
		for _, e := range entries {
			fmt.Printf("%s  %-15s %v\n", e.Timestamp.Local().Format(time.TimeOnly), e.Status, e.Data)
		}
		return nil
	}

	events, err := db.RecentEvents(ctx, historyLimit)
	if historySubject != "" {
		events, err = db.SubjectEvents(ctx, historySubject, historyLimit)
	}
	if err != nil {
		return err
	}
	if historyJSON {
		return printJSON(events)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EXECUTION\tKIND\tSUBJECT\tSTATUS\tWHEN")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.ExecutionID, e.Kind, e.SubjectID, e.Status, formatTimeSince(e.Timestamp))
	}
	w.Flush()
	return nil
}
