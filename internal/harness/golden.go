package harness

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes a scenario and compares the text of every staged
// graph that names a golden file against testdata/golden/{golden}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario cannot run or any check fails.
// Test failure (via goldie) occurs if a graph doesn't match its golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return err
	}

	for _, sg := range result.Graphs {
		if sg.Golden != "" {
			AssertGolden(t, sg.Golden, sg.Text)
		}
	}

	if !result.Pass {
		return fmt.Errorf("scenario %s failed: %s", scenario.Name, strings.Join(result.Errors, "; "))
	}
	return nil
}

// AssertGolden compares graph text against testdata/golden/{name}.golden.
func AssertGolden(t *testing.T, name, text string) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(text))
}
