package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// AgentsCmd elenca gli agenti disponibili
var AgentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List available agents",
	Long:  `List the agents of the built-in catalog plus those loaded from workflows.agents_file.`,
	Example: `  # List agents
  goleapcode agents

  # JSON output
  goleapcode agents --json`,
	RunE: runAgents,
}

var agentsJSON bool

func init() {
	AgentsCmd.Flags().BoolVar(&agentsJSON, "json", false, "Output in JSON format")
}

func runAgents(cmd *cobra.Command, args []string) error {
	svc, err := openService(cmd, false)
	if err != nil {
		return err
	}
	defer svc.Close()

	list := svc.GetAvailableAgents()
	if agentsJSON {
		return printJSON(list)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, a := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.ID, a.Name, a.Description)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d agents\n", len(list))
	return nil
}
