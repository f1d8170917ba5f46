package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/retroryan/shopledger/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // glob over scenario file names, without extension
}

// ScenarioResult is the verdict for one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult is the verdict for a whole run.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scenario files against a fresh in-memory engine",
		Long: `Run YAML scenarios, each against its own in-memory database, checking
step expectations, final state assertions and golden traces.

Golden traces live in a "golden" directory next to the scenarios
directory and are named after the scenario. Scenarios without a golden
file are checked by their assertions only.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  shopctl test ./testdata/scenarios
  shopctl test ./testdata/scenarios --filter "cart_*"
  shopctl test ./testdata/scenarios --update
  shopctl test ./testdata/scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scenariosDir); errors.Is(err, fs.ErrNotExist) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	files, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	run := scenarioRun{dir: scenariosDir, update: opts.Update}
	if opts.Format != "json" {
		run.text = cmd.OutOrStdout()
	}

	total := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, path := range files {
		res := run.check(path)
		total.Scenarios = append(total.Scenarios, res)
		if res.Pass {
			total.Passed++
		} else {
			total.Failed++
		}
	}

	if opts.Format == "json" {
		return writeTestJSON(cmd.OutOrStdout(), total)
	}
	return writeTestSummary(cmd.OutOrStdout(), total)
}

// findScenarioFiles lists .yaml/.yml files under dir in lexical order.
func findScenarioFiles(dir, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			if ok, _ := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext)); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// scenarioRun checks scenario files that share one golden directory. In
// text mode each verdict is printed as it is reached.
type scenarioRun struct {
	dir    string
	update bool
	text   io.Writer
}

func (r scenarioRun) check(path string) ScenarioResult {
	res, notes := r.evaluate(path)
	if r.text == nil {
		return res
	}
	if res.Pass {
		suffix := ""
		if len(notes) > 0 {
			suffix = " (" + strings.Join(notes, ", ") + ")"
		}
		fmt.Fprintf(r.text, "✓ %s%s\n", res.Name, suffix)
		return res
	}
	fmt.Fprintf(r.text, "✗ %s\n", res.Name)
	for _, line := range notes {
		fmt.Fprintf(r.text, "  %s\n", line)
	}
	return res
}

// evaluate returns the verdict plus the lines a human reader sees for it.
func (r scenarioRun) evaluate(path string) (ScenarioResult, []string) {
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return failed(filepath.Base(path), "failed to load scenario: "+err.Error()),
			[]string{"Load error: " + err.Error()}
	}

	out, err := harness.Run(scenario)
	if err != nil {
		return failed(scenario.Name, "execution failed: "+err.Error()),
			[]string{"Execution error: " + err.Error()}
	}

	trace := harness.FormatTrace(scenario.Name, out.Trace)
	goldenPath := goldenFilePath(r.dir, scenario.Name)

	if r.update {
		if err := writeGolden(goldenPath, trace); err != nil {
			return failed(scenario.Name, err.Error()), []string{"Golden update error: " + err.Error()}
		}
		return ScenarioResult{Name: scenario.Name, Pass: true}, []string{"golden updated"}
	}

	problems := append([]string(nil), out.Errors...)
	lines := append([]string(nil), out.Errors...)

	golden, err := os.ReadFile(goldenPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// assertions only
	case err != nil:
		problems = append(problems, "golden comparison failed: "+err.Error())
		lines = append(lines, "Golden comparison error: "+err.Error())
	case !bytes.Equal(golden, trace):
		problems = append(problems, "trace does not match golden file")
		lines = append(lines, "Golden file mismatch (run with --update to regenerate)")
	}

	if len(problems) > 0 || !out.Pass {
		return ScenarioResult{Name: scenario.Name, Errors: problems}, lines
	}
	return ScenarioResult{Name: scenario.Name, Pass: true}, nil
}

func failed(name, msg string) ScenarioResult {
	return ScenarioResult{Name: name, Errors: []string{msg}}
}

// goldenFilePath returns the golden file for a scenario: a "golden"
// directory beside the scenarios directory, keyed by scenario name.
func goldenFilePath(scenariosDir, name string) string {
	return filepath.Join(filepath.Dir(filepath.Clean(scenariosDir)), "golden", name+".golden")
}

func writeGolden(path string, trace []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, trace, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

func writeTestJSON(w io.Writer, total TestResult) error {
	resp := CLIResponse{Status: "ok", Data: total}
	if total.Failed > 0 {
		resp.Status = "error"
		resp.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", total.Failed),
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	return testExit(total)
}

func writeTestSummary(w io.Writer, total TestResult) error {
	if total.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", total.Passed, total.Failed, total.Total)
	return testExit(total)
}

func testExit(total TestResult) error {
	if total.Failed == 0 {
		return nil
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", total.Failed))
}
