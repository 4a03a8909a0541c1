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
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/valpere/playconv/internal"
	"github.com/valpere/playconv/internal/orchestrator"
)

var (
	batchDir     string
	batchMode    string
	batchWorkers int
	batchResume  string
	batchOpts    runOptions
)

// batchExtensions are the source files picked up from --dir.
var batchExtensions = map[string]bool{".pp": true, ".rb": true, ".yml": true}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Convert or analyze every source file in a directory",
	Long: `Process all .pp, .rb and .yml files in a directory with a bounded
number of concurrent workers. One file's failure never stops the others.

A batch ID is printed at the start of each run. If the run is interrupted,
use --resume with that ID to skip files that already finished.

Example:
  playconv batch --dir ./cookbooks --mode convert --workers 4
  playconv batch --dir ./cookbooks --resume 2f1c...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := internal.ParseMode(batchMode)
		if err != nil {
			return err
		}

		units, err := readUnits(batchDir)
		if err != nil {
			return err
		}
		if len(units) == 0 {
			return fmt.Errorf("no .pp, .rb or .yml files in %s", batchDir)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		batchOpts.workers = batchWorkers
		p, err := buildPipeline(ctx, mode, batchOpts, orchestrator.WithProgress(func(done, total int64, r *orchestrator.Result) {
			fmt.Fprintf(os.Stderr, "[%d/%d] %s: %s\n", done, total, r.ID, r.Status)
		}))
		if err != nil {
			return err
		}
		defer p.Close()

		batchID := batchResume
		if batchID == "" {
			batchID = uuid.NewString()
		}
		if p.db != nil {
			if batchResume != "" {
				if _, err := p.db.GetCheckpoint(ctx, batchResume); err != nil {
					return fmt.Errorf("failed to load checkpoint: %w", err)
				}
			} else if _, err := p.db.CreateCheckpoint(ctx, batchID, batchDir, string(mode)); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to create checkpoint: %v\n", err)
			}
		} else if batchResume != "" {
			return fmt.Errorf("--resume requires a database")
		}
		fmt.Fprintf(os.Stderr, "Batch ID: %s (use --resume %s to resume if interrupted)\n", batchID, batchID)

		br := p.orch.ConvertBatch(ctx, batchID, units)

		if p.db != nil && ctx.Err() == nil {
			_ = p.db.CompleteCheckpoint(ctx, batchID)
		}

		fmt.Println(renderSummary(br, p.orch))
		if br.Failed > 0 {
			cmd.SilenceUsage = true
			return fmt.Errorf("%d of %d items failed", br.Failed, len(br.Results))
		}
		return nil
	},
}

func readUnits(dir string) ([]internal.SourceUnit, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	var units []internal.SourceUnit
	for _, e := range entries {
		if e.IsDir() || !batchExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		units = append(units, internal.NewSourceUnit(e.Name(), string(content)))
	}
	return units, nil
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	summaryStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

func renderSummary(br *orchestrator.BatchResult, orch *orchestrator.Orchestrator) string {
	ids := make([]string, 0, len(br.Results))
	for id := range br.Results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Batch "+br.ID) + "\n\n")
	for _, id := range ids {
		r := br.Results[id]
		var status string
		switch r.Status {
		case orchestrator.StatusSuccess:
			status = okStyle.Render("ok      ")
		case orchestrator.StatusFallback:
			status = warnStyle.Render("fallback")
		default:
			status = failStyle.Render("failed  ")
		}
		fmt.Fprintf(&sb, "%s  %-32s %s\n", status, id, r.Dialect.Label())
		for _, d := range orch.Log().For(id) {
			fmt.Fprintf(&sb, "          %s\n", d.String())
		}
	}
	for _, id := range br.Skipped {
		fmt.Fprintf(&sb, "%s  %s\n", warnStyle.Render("skipped "), id)
	}
	fmt.Fprintf(&sb, "\n%s  %s  %s  %s",
		okStyle.Render(fmt.Sprintf("%d succeeded", br.Succeeded)),
		warnStyle.Render(fmt.Sprintf("%d fallback", br.Fallback)),
		failStyle.Render(fmt.Sprintf("%d failed", br.Failed)),
		fmt.Sprintf("%d skipped", len(br.Skipped)))
	return summaryStyle.Render(sb.String())
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVarP(&batchDir, "dir", "d", "", "Directory with source files (required)")
	batchCmd.Flags().StringVarP(&batchMode, "mode", "m", "convert", "Mode: convert or analyze")
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "Concurrent items (default from config)")
	batchCmd.Flags().StringVar(&batchResume, "resume", "", "Resume from batch ID (printed at start of original run)")
	batchCmd.Flags().StringVar(&batchOpts.language, "language", "", "Target language for analyses")
	addRunFlags(batchCmd, &batchOpts)

	batchCmd.MarkFlagRequired("dir")
}
