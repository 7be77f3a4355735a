package cli

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
)

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

const fooGraph = "a ->\nb = add(a, 3.0)\nc = mul(a, b)\nc\n"
