package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Afifwhdi/KasirAdmin-sub000/internal/harness"
)

// Golden comparison outcomes.
const (
	goldenMatch    = "match"
	goldenMismatch = "mismatch"
	goldenMissing  = "missing"
	goldenUpdated  = "updated"
)

type scenarioOptions struct {
	goldenDir string
	update    bool
}

type scenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Steps  int      `json:"steps"`
	Golden string   `json:"golden,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

type scenarioReport []scenarioResult

func (r scenarioReport) RenderText(w io.Writer) {
	passed := 0
	for _, res := range r {
		mark := "PASS"
		if res.Pass {
			passed++
		} else {
			mark = "FAIL"
		}
		fmt.Fprintf(w, "%s %s (%d steps)", mark, res.Name, res.Steps)
		if res.Golden != "" {
			fmt.Fprintf(w, " golden: %s", res.Golden)
		}
		fmt.Fprintln(w)
		for _, e := range res.Errors {
			fmt.Fprintf(w, "    %s\n", e)
		}
	}
	fmt.Fprintf(w, "%d/%d scenarios passed\n", passed, len(r))
}

func (r scenarioReport) pass() bool {
	for _, res := range r {
		if !res.Pass {
			return false
		}
	}
	return true
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &scenarioOptions{}
	cmd := &cobra.Command{
		Use:   "scenario FILE...",
		Short: "Replay checkout scenarios against a fresh in-memory store",
		Long: `Replay checkout scenarios against a fresh in-memory store.

Each YAML file seeds products, runs a flow of cart, checkout and status
steps, then evaluates assertions. Runs are deterministic: the clock and
transaction numbers are fixed, so traces can be compared with golden
files in --golden DIR (<name>.golden). --update rewrites them.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			if opts.update && opts.goldenDir == "" {
				return usageError("--update needs --golden DIR")
			}

			report := make(scenarioReport, 0, len(args))
			for _, path := range args {
				res, err := runScenarioFile(rootOpts, opts, path)
				if err != nil {
					return f.Fail("scenario "+path, err)
				}
				f.VerboseLog("%s: pass=%t", res.Name, res.Pass)
				report = append(report, res)
			}

			if report.pass() {
				return f.Success(report)
			}
			var details any = report
			if f.Format != "json" {
				report.RenderText(f.Writer)
				details = nil
			}
			_ = f.Error(ErrCodeScenario, "one or more scenarios failed", details)
			e := NewExitError(ExitFailure, "scenarios failed")
			e.Reported = true
			return e
		},
	}
	cmd.Flags().StringVar(&opts.goldenDir, "golden", "", "directory of golden trace files")
	cmd.Flags().BoolVar(&opts.update, "update", false, "rewrite golden files from this run")
	return cmd
}

func runScenarioFile(rootOpts *RootOptions, opts *scenarioOptions, path string) (scenarioResult, error) {
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return scenarioResult{}, err
	}
	result, err := harness.Run(scenario, harness.WithLogger(rootOpts.Logger))
	if err != nil {
		return scenarioResult{}, err
	}

	res := scenarioResult{
		Name:   scenario.Name,
		File:   path,
		Pass:   result.Pass,
		Steps:  len(result.Trace),
		Errors: result.Errors,
	}
	if opts.goldenDir == "" {
		return res, nil
	}

	res.Golden, err = compareGolden(opts, scenario.Name, result)
	if err != nil {
		return scenarioResult{}, err
	}
	goldenPath := filepath.Join(opts.goldenDir, scenario.Name+".golden")
	switch res.Golden {
	case goldenMismatch:
		res.Pass = false
		res.Errors = append(res.Errors, "trace differs from "+goldenPath)
	case goldenMissing:
		res.Pass = false
		res.Errors = append(res.Errors, goldenPath+" does not exist (run with --update)")
	}
	return res, nil
}

// compareGolden checks the run's snapshot against, or writes it to,
// <dir>/<name>.golden.
func compareGolden(opts *scenarioOptions, name string, result *harness.Result) (string, error) {
	snapshot, err := harness.MarshalSnapshot(name, result)
	if err != nil {
		return "", err
	}
	path := filepath.Join(opts.goldenDir, name+".golden")

	if opts.update {
		if err := os.MkdirAll(opts.goldenDir, 0o755); err != nil {
			return "", err
		}
		if err := os.WriteFile(path, snapshot, 0o644); err != nil {
			return "", err
		}
		return goldenUpdated, nil
	}

	want, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return goldenMissing, nil
	}
	if err != nil {
		return "", err
	}
	if !bytes.Equal(want, snapshot) {
		return goldenMismatch, nil
	}
	return goldenMatch, nil
}
