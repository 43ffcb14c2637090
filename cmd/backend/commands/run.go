package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/biodoia/goleapcode/internal/agents"
	"github.com/biodoia/goleapcode/internal/generation"
	"github.com/biodoia/goleapcode/internal/registry"
	"github.com/biodoia/goleapcode/internal/workflow"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// RunAgentCmd esegue un singolo agente
var RunAgentCmd = &cobra.Command{
	Use:   "run-agent <agent-id> [code]",
	Short: "Run a single agent on some code",
	Example: `  # Analyze a file
  goleapcode run-agent security-analyzer --file main.go --language go

  # Read the code from stdin
  cat main.go | goleapcode run-agent syntax-analyzer --file -`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runAgentCommand,
}

// RunWorkflowCmd esegue un workflow
var RunWorkflowCmd = &cobra.Command{
	Use:   "run-workflow <workflow-id> [code]",
	Short: "Run a workflow on some code",
	Example: `  # Full code review
  goleapcode run-workflow code-review --file main.go --language go

  # Custom workflow from a YAML definition
  goleapcode run-workflow --definition review.yaml --file main.go

  # Pass known issues to the improvement workflow
  goleapcode run-workflow performance-optimization --file main.go --issues issues.json`,
	Args: cobra.MaximumNArgs(2),
	RunE: runWorkflowCommand,
}

// GenerateCmd invoca direttamente il motore di generazione
var GenerateCmd = &cobra.Command{
	Use:   "generate <prompt>",
	Short: "Generate a response with model selection and recovery",
	Example: `  # Single model
  goleapcode generate "Explain goroutines" --capability chat

  # Consensus across three models
  goleapcode generate "Review this design" --multi --capability analysis`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

var (
	runFile        string
	runLanguage    string
	runContextFile string
	runIssuesFile  string
	runDefinition  string
	runNoCache     bool
	runJSON        bool
	runTimeout     time.Duration

	genCapability string
	genModel      string
	genMulti      bool
	genSystem     string
	genMaxTokens  int
	genContext    string
)

func init() {
	for _, cmd := range []*cobra.Command{RunAgentCmd, RunWorkflowCmd} {
		cmd.Flags().StringVarP(&runFile, "file", "f", "", "Read code from file (- for stdin)")
		cmd.Flags().StringVar(&runLanguage, "language", "", "Language of the code")
		cmd.Flags().StringVar(&runContextFile, "context-file", "", "Additional context file")
		cmd.Flags().StringVar(&runIssuesFile, "issues", "", "JSON file with known issues")
	}
	RunWorkflowCmd.Flags().StringVar(&runDefinition, "definition", "", "YAML file with a custom workflow")

	for _, cmd := range []*cobra.Command{RunAgentCmd, RunWorkflowCmd, GenerateCmd} {
		cmd.Flags().BoolVar(&runJSON, "json", false, "Output in JSON format")
		cmd.Flags().BoolVar(&runNoCache, "no-cache", false, "Bypass the response cache")
		cmd.Flags().DurationVar(&runTimeout, "timeout", 10*time.Minute, "Execution timeout")
	}

	GenerateCmd.Flags().StringVar(&genCapability, "capability", string(registry.CapabilityChat), "Required model capability")
	GenerateCmd.Flags().StringVar(&genModel, "model", "", "Preferred model id")
	GenerateCmd.Flags().BoolVar(&genMulti, "multi", false, "Query several models and compute consensus")
	GenerateCmd.Flags().StringVar(&genSystem, "system", "", "System prompt")
	GenerateCmd.Flags().IntVar(&genMaxTokens, "max-tokens", 0, "Maximum output tokens")
	GenerateCmd.Flags().StringVar(&genContext, "context-file", "", "Context file to reduce and attach")
}

func runOptions() (agents.RunOptions, error) {
	opts := agents.RunOptions{Language: runLanguage, UseCache: !runNoCache}

	if runContextFile != "" {
		data, err := os.ReadFile(runContextFile)
		if err != nil {
			return opts, fmt.Errorf("failed to read context: %w", err)
		}
		opts.Context = string(data)
	}

	if runIssuesFile != "" {
		data, err := os.ReadFile(runIssuesFile)
		if err != nil {
			return opts, fmt.Errorf("failed to read issues: %w", err)
		}
		var issues interface{}
		if err := json.Unmarshal(data, &issues); err != nil {
			return opts, fmt.Errorf("invalid issues file: %w", err)
		}
		opts.Issues = issues
	}
	return opts, nil
}

func runAgentCommand(cmd *cobra.Command, args []string) error {
	code, err := readInput(runFile, args[1:])
	if err != nil {
		return err
	}
	opts, err := runOptions()
	if err != nil {
		return err
	}

	svc, err := openService(cmd, true)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := withTimeout(cmd, runTimeout)
	defer cancel()

	res, err := svc.RunAgent(ctx, args[0], code, opts)
	if err != nil {
		return err
	}
	if runJSON {
		return printJSON(res)
	}

	printAgentResult(res)
	return nil
}

func runWorkflowCommand(cmd *cobra.Command, args []string) error {
	var (
		custom     *workflow.Workflow
		workflowID string
	)
	switch {
	case runDefinition != "":
		data, err := os.ReadFile(runDefinition)
		if err != nil {
			return fmt.Errorf("failed to read workflow definition: %w", err)
		}
		custom = &workflow.Workflow{}
		if err := yaml.Unmarshal(data, custom); err != nil {
			return fmt.Errorf("invalid workflow definition: %w", err)
		}
	case len(args) == 0:
		return fmt.Errorf("workflow id or --definition required")
	default:
		workflowID, args = args[0], args[1:]
	}

	code, err := readInput(runFile, args)
	if err != nil {
		return err
	}
	opts, err := runOptions()
	if err != nil {
		return err
	}

	svc, err := openService(cmd, true)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := withTimeout(cmd, runTimeout)
	defer cancel()

	var res *workflow.ExecutionResult
	if custom != nil {
		res, err = svc.RunCustomWorkflow(ctx, *custom, code, opts)
	} else {
		res, err = svc.RunWorkflow(ctx, workflowID, code, opts)
	}
	if res == nil {
		return err
	}

	if runJSON {
		if jerr := printJSON(res); jerr != nil {
			return jerr
		}
		return err
	}

	printWorkflowResult(res)
	return err
}

func runGenerate(cmd *cobra.Command, args []string) error {
	opts := generation.Options{
		Capability:     registry.Capability(genCapability),
		PreferredModel: genModel,
		MultiModel:     genMulti,
		SystemPrompt:   genSystem,
		MaxTokens:      genMaxTokens,
		UseCache:       !runNoCache,
	}
	if genContext != "" {
		data, err := os.ReadFile(genContext)
		if err != nil {
			return fmt.Errorf("failed to read context: %w", err)
		}
		opts.Context = string(data)
	}

	svc, err := openService(cmd, true)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := withTimeout(cmd, runTimeout)
	defer cancel()

	res, err := svc.Generate(ctx, args[0], opts)
	if err != nil {
		return err
	}
	if runJSON {
		return printJSON(res)
	}

	fmt.Println(res.Response)
	fmt.Println()
	fmt.Printf("Model: %s  Tokens: %d  Confidence: %.2f  Latency: %s",
		res.Model, res.Tokens, res.Confidence, res.Latency.Round(time.Millisecond))
	if len(res.Alternatives) > 0 {
		fmt.Printf("  Consensus: %.2f (%d models)", res.Consensus, len(res.Alternatives)+1)
	}
	if res.Cached {
		fmt.Print("  (cached)")
	}
	fmt.Println()
	return nil
}

func printAgentResult(res *agents.ExecutionResult) {
	fmt.Printf("%s (%s)\n", res.AgentName, res.Agent)
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println(res.Result.SummaryOrDefault())
	fmt.Println()

	if res.Result.Payload != nil {
		for _, f := range res.Result.Payload.Findings() {
			fmt.Printf("  [%s] %s\n", orDash(f.Severity), f.Text())
		}
		for _, r := range res.Result.Payload.Recommendations() {
			fmt.Printf("  → %s\n", r.Text)
		}
	}

	if err := res.Result.Err(); err != nil {
		fmt.Printf("\n⚠️  %v\n", err)
	}

	fmt.Printf("\nModel: %s  Confidence: %.2f  Time: %s  Execution: %s\n",
		res.Model, res.Confidence, res.ExecutionTime.Round(time.Millisecond), res.ExecutionID)
}

func printWorkflowResult(res *workflow.ExecutionResult) {
	fmt.Printf("%s\n", res.WorkflowName)
	fmt.Println(strings.Repeat("=", 60))

	c := res.Combined
	fmt.Printf("Steps: %d/%d completed\n\n", c.CompletedSteps, c.TotalSteps)
	fmt.Println(c.Summary)

	if len(c.Priority) > 0 {
		fmt.Println("\nPriority issues")
		fmt.Println("---------------")
		for _, f := range c.Priority {
			fmt.Printf("  [%s] %s (%s)\n", orDash(f.Severity), f.Text(), f.Source)
		}
	}

	if len(c.Recommendations) > 0 {
		fmt.Println("\nRecommendations")
		fmt.Println("---------------")
		for _, r := range c.Recommendations {
			fmt.Printf("  → %s (%s)\n", r.Text, r.Source)
		}
	}

	for _, e := range res.Errors {
		fmt.Printf("\n✗ %s (%s): %s", e.Step, e.Agent, e.Error)
	}
	if len(res.Errors) > 0 {
		fmt.Println()
	}

	if c.OverallScore != nil {
		fmt.Printf("\nOverall score: %.1f\n", *c.OverallScore)
	}
	fmt.Printf("Time: %s  Execution: %s\n", res.ExecutionTime.Round(time.Millisecond), res.ExecutionID)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
