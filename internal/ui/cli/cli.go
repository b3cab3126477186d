package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "planboard.toml"

// exitError carries a process exit code through cobra's error return.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

func exitWith(code int, format string, args ...any) error {
	return &exitError{code: code, msg: fmt.Sprintf(format, args...)}
}

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "planboard",
		Short: "Validate, connect and analyze ring-structured plan graphs",
		Long: `Planboard reads plan snapshots (nodes on concentric rings plus the
edges between them), validates the ring hierarchy, proposes the structural
edges and intermediate parents that are missing, and analyzes the hard
dependencies for cycles and the critical path.

Snapshots are JSON or YAML files; configuration lives in planboard.toml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", defaultConfigPath, "Path to config file")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")

	validateCmd := &cobra.Command{
		Use:   "validate [snapshot...]",
		Short: "Check ring placement and hierarchy rules; exits 1 when invalid",
		RunE:  RunValidate,
	}
	validateCmd.Flags().Bool("json", false, "Print the validation result as JSON")

	foundationCmd := &cobra.Command{
		Use:   "foundation [snapshot...]",
		Short: "Propose missing hierarchy edges and intermediate nodes",
		RunE:  RunFoundation,
	}
	foundationCmd.Flags().String("apply", "", "Write the snapshot with the proposal merged in to this path")
	foundationCmd.Flags().Bool("json", false, "Print the proposal as JSON")

	depsCmd := &cobra.Command{
		Use:   "deps [snapshot...]",
		Short: "Analyze hard dependencies: cycles, critical path, suggestions",
		RunE:  RunDeps,
	}
	depsCmd.Flags().String("node", "", "Report dependencies, dependents and depth of one node")
	depsCmd.Flags().String("start", "", "Only consider critical paths starting at this node")
	depsCmd.Flags().String("would-cycle", "", "Check whether a proposed edge closes a cycle (<source>:<target>:<kind>)")

	dedupeCmd := &cobra.Command{
		Use:   "dedupe [snapshot...]",
		Short: "Look for existing nodes matching a node about to be created",
		RunE:  RunDedupe,
	}
	dedupeCmd.Flags().String("label", "", "Label of the candidate node")
	dedupeCmd.Flags().String("type", "", "Type of the candidate node")
	dedupeCmd.Flags().String("domain", "", "Domain of the candidate node")
	dedupeCmd.Flags().StringSlice("keyword", nil, "Keywords for fuzzy matching (repeatable)")

	queryCmd := &cobra.Command{
		Use:   "query <select> [snapshot...]",
		Short: "Select nodes, e.g. \"SELECT nodes WHERE ring >= 3 AND domain = 'tech'\"",
		Args:  cobra.MinimumNArgs(1),
		RunE:  RunQuery,
	}
	queryCmd.Flags().Int("limit", 0, "Maximum number of rows (0 = all)")

	exportCmd := &cobra.Command{
		Use:   "export [snapshot...]",
		Short: "Render the plan as Mermaid, DOT, Markdown or merged JSON",
		RunE:  RunExport,
	}
	exportCmd.Flags().String("format", "mermaid", "Output format: mermaid|dot|markdown|json")
	exportCmd.Flags().StringP("output", "o", "", "Write to this path instead of stdout")

	watchCmd := &cobra.Command{
		Use:   "watch [snapshot...]",
		Short: "Re-run the analysis whenever a snapshot changes",
		RunE:  RunWatch,
	}
	watchCmd.Flags().Bool("ui", false, "Enable terminal UI mode")
	watchCmd.Flags().Bool("once", false, "Run a single pass and exit")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Print the trend of recorded analysis runs",
		Args:  cobra.NoArgs,
		RunE:  RunHistory,
	}
	historyCmd.Flags().String("since", "", "Include runs at/after this timestamp (RFC3339 or YYYY-MM-DD)")
	historyCmd.Flags().String("window", "24h", "Moving-window duration for trend averages")
	historyCmd.Flags().String("tsv", "", "Write the trend report TSV to this path")
	historyCmd.Flags().String("json", "", "Write the trend report JSON to this path")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "planboard v%s\n", version)
		},
	}

	rootCmd.AddCommand(
		validateCmd,
		foundationCmd,
		depsCmd,
		dedupeCmd,
		queryCmd,
		exportCmd,
		watchCmd,
		historyCmd,
		versionCmd,
	)
	return rootCmd
}

// Run executes the command line and returns the process exit code.
func Run(version string, args []string) int {
	root := NewRootCommand(version)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			if exit.msg != "" {
				fmt.Fprintln(os.Stderr, exit.msg)
			}
			return exit.code
		}
		fmt.Fprintln(os.Stderr, err.Error())
		return 1
	}
	return 0
}
