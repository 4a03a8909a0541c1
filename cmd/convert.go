/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/valpere/playconv/internal"
	"github.com/valpere/playconv/internal/diag"
	"github.com/valpere/playconv/internal/dialect"
	"github.com/valpere/playconv/internal/orchestrator"
)

var (
	inputFile   string
	convertOpts runOptions
	analyzeOpts runOptions
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a Chef recipe or Puppet module into an Ansible playbook",
	Long: `Convert one source file into an Ansible playbook.

The dialect is detected from the file content. Files that look like neither
Chef nor Puppet are refused and the command exits with status 1.

Nested block: sections in the generated playbook are flattened into plain
task lists. When the output cannot be parsed as YAML it is written as-is
and a warning is reported.

Example:
  playconv convert --input-file recipes/web.rb --backend completion --stream`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSingle(internal.ModeConvert, convertOpts)
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Explain what a Chef recipe or Puppet module does",
	Long: `Ask the backend for a plain-language explanation of one source file.

The analysis is written as Markdown and HTML next to other artifacts. Set
--language (or analysis.language in config) to have it localized.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSingle(internal.ModeAnalyze, analyzeOpts)
	},
}

func runSingle(mode internal.Mode, opts runOptions) error {
	content, err := os.ReadFile(inputFile)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	unit := internal.NewSourceUnit(filepath.Base(inputFile), string(content))
	if unit.Dialect == dialect.Unknown {
		if d := dialect.FromExtension(filepath.Ext(inputFile)); d != dialect.Unknown {
			fmt.Fprintf(os.Stderr, "Content is ambiguous; extension suggests %s\n", d.Label())
		}
	}

	var extra []orchestrator.Option
	if opts.stream {
		extra = append(extra, orchestrator.WithChunkHandler(func(_, chunk string) {
			fmt.Fprint(os.Stderr, chunk)
		}))
	}

	p, err := buildPipeline(ctx, mode, opts, extra...)
	if err != nil {
		return err
	}
	defer p.Close()

	fmt.Fprintf(os.Stderr, "Detected dialect: %s (%s)\n", unit.Dialect, unit.Dialect.Label())

	r := p.orch.ConvertOne(ctx, unit)
	if opts.stream {
		fmt.Fprintln(os.Stderr)
	}
	printDiagnostics(r.Diagnostics)

	switch r.Status {
	case orchestrator.StatusFailed:
		return fmt.Errorf("%s failed for %s", mode, unit.ID)
	case orchestrator.StatusFallback:
		fmt.Printf("Wrote unflattened output for %s (%s)\n", unit.ID, p.kind)
	default:
		fmt.Printf("Successfully converted %s (%s)\n", unit.ID, p.kind)
	}
	if r.Cached {
		fmt.Println("Result served from conversion memory")
	}
	return nil
}

func printDiagnostics(ds []diag.Diagnostic) {
	for _, d := range ds {
		fmt.Fprintln(os.Stderr, d.String())
	}
}

func init() {
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(analyzeCmd)

	for _, c := range []*cobra.Command{convertCmd, analyzeCmd} {
		c.Flags().StringVarP(&inputFile, "input-file", "i", "", "Source file to process (required)")
		c.MarkFlagRequired("input-file")
	}
	addRunFlags(convertCmd, &convertOpts)
	addRunFlags(analyzeCmd, &analyzeOpts)
	analyzeCmd.Flags().StringVar(&analyzeOpts.language, "language", "", "Target language for the analysis, e.g. uk or de")
}
