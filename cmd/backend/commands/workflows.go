package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// WorkflowsCmd elenca i workflow disponibili
var WorkflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "List available workflows",
	Example: `  # List workflows
  goleapcode workflows

  # JSON output with steps
  goleapcode workflows --json`,
	RunE: runWorkflows,
}

var workflowsJSON bool

func init() {
	WorkflowsCmd.Flags().BoolVar(&workflowsJSON, "json", false, "Output in JSON format")
}

func runWorkflows(cmd *cobra.Command, args []string) error {
	svc, err := openService(cmd, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	list := svc.GetAvailableWorkflows()
	if workflowsJSON {
		return printJSON(list)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODE\tSTEPS\tDESCRIPTION")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, wf := range list {
		steps := make([]string, len(wf.Steps))
		for i, s := range wf.Steps {
			steps[i] = s.Agent
			if s.Critical {
				steps[i] += "*"
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", wf.ID, wf.Mode, strings.Join(steps, " → "), wf.Description)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d workflows (* = critical step)\n", len(list))
	return nil
}
