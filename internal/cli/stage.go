package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/xform/internal/harness"
	"github.com/roach88/xform/internal/ir"
	"github.com/roach88/xform/internal/store"
)

// StageOptions holds flags for the stage command.
type StageOptions struct {
	*RootOptions
	JVP      bool   // stage the forward derivative
	Database string // store the staged graph here
}

// StageResult is the JSON payload of the stage command.
type StageResult struct {
	Scenario    string          `json:"scenario"`
	Fingerprint string          `json:"fingerprint"`
	Inserted    bool            `json:"inserted"`
	Text        string          `json:"text"`
	Graph       json.RawMessage `json:"graph"`
}

// NewStageCommand creates the stage command.
func NewStageCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StageOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stage <scenario>",
		Short: "Stage a scenario program into a graph",
		Long: `Build the graph of a scenario's program and print it.

With --jvp the graph computes the program and its derivative along a
tangent of ones. With --db the graph is stored by fingerprint.

Examples:
  xform stage foo.yaml
  xform stage foo.yaml --jvp
  xform stage foo.yaml --db ./xform.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.JVP, "jvp", false, "stage the forward derivative")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database to store the graph in")

	return cmd
}

func runStage(opts *StageOptions, path string, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	g, err := scenario.Stage(cmd.Context(), opts.JVP)
	if err != nil {
		if out.JSON() {
			_ = out.Fail(err)
		}
		return WrapExitError(ExitFailure, "staging failed", err)
	}
	out.VerboseLog("staged %s: %d equations", scenario.Name, len(g.Equations))

	result := StageResult{Scenario: scenario.Name, Text: g.String()}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
		result.Fingerprint, result.Inserted, err = st.PutGraph(cmd.Context(), g)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to store graph", err)
		}
	} else {
		result.Fingerprint, err = ir.Fingerprint(g)
		if err != nil {
			return err
		}
	}

	if !out.JSON() {
		return out.Success(nil, result.Text)
	}
	result.Graph, err = json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encoding graph: %w", err)
	}
	return out.Success(result, "")
}
