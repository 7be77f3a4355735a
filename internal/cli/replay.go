package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/xform/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Graph    string // optional - one fingerprint only
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-evaluate stored evaluations and verify determinism",
		Long: `Re-evaluate every evaluation recorded in the database against its
stored graph and compare the outputs bit for bit.

Each stored graph's fingerprint is recomputed first; a graph that no
longer matches its key fails every evaluation recorded against it.

Exit codes:
  0 - Every evaluation replayed identically
  1 - One or more mismatches
  2 - Command error (database not found, etc.)

Examples:
  xform replay --db ./xform.db
  xform replay --db ./xform.db --graph 3f2a...
  xform replay --db ./xform.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Graph, "graph", "", "replay evaluations of one graph fingerprint only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	// store.Open would create an empty database.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	result, err := st.Replay(ctx, opts.Graph)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result store.ReplayResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.OK() {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_REPLAY_MISMATCH",
			Message: fmt.Sprintf("%d evaluation(s) did not replay identically", len(result.Mismatches)),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.OK() {
		return NewExitError(ExitFailure, response.Error.Message)
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result store.ReplayResult) error {
	w := cmd.OutOrStdout()

	if result.Evaluations == 0 {
		fmt.Fprintln(w, "No evaluations found in database.")
		return nil
	}

	for _, m := range result.Mismatches {
		if m.Error != "" {
			fmt.Fprintf(w, "✗ %s (%s): %s\n", m.EvaluationID, m.Fingerprint, m.Error)
			continue
		}
		fmt.Fprintf(w, "✗ %s (%s): expected %v, got %v\n", m.EvaluationID, m.Fingerprint, m.Want, m.Got)
	}

	fmt.Fprintf(w, "Replay Summary: %d graph(s), %d evaluation(s), %d mismatch(es)\n",
		result.Graphs, result.Evaluations, len(result.Mismatches))

	if !result.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d evaluation(s) did not replay identically", len(result.Mismatches)))
	}

	fmt.Fprintln(w, "✓ All evaluations replayed identically")
	return nil
}
