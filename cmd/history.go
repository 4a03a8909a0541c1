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
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect conversion history and memory",
	Long:  `List, inspect, and clear recorded conversion runs and the conversion memory.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded conversion runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(viper.GetString("db"))
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListRuns(context.Background(), historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}

		if len(runs) == 0 {
			fmt.Println("No recorded runs.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFILE\tDIALECT\tMODE\tBACKEND\tSTATUS\tMS\tWHEN")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				r.ID, r.Identifier, r.Dialect, r.Mode, r.Backend,
				r.Status, r.LatencyMs, r.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show run and memory statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(viper.GetString("db"))
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		runs, err := db.RunStats(ctx)
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}
		mem, err := db.MemoryStats(ctx)
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		fmt.Printf("Runs:            %d\n", runs.Total)
		fmt.Printf("  succeeded:     %d\n", runs.Succeeded)
		fmt.Printf("  fallback:      %d\n", runs.Fallback)
		fmt.Printf("  failed:        %d\n", runs.Failed)
		fmt.Printf("  avg latency:   %.0fms\n", runs.AvgMs)
		fmt.Printf("Memory entries:  %d (%d active, %d invalid)\n", mem.TotalEntries, mem.ActiveEntries, mem.InvalidEntries)
		fmt.Printf("Memory usage:    %d\n", mem.TotalUsage)
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a recorded run by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(viper.GetString("db"))
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DeleteRun(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to delete run: %w", err)
		}
		fmt.Printf("Deleted run: %s\n", args[0])
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all recorded runs and conversion memory",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(viper.GetString("db"))
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		runs, err := db.ClearRuns(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}
		mem, err := db.ClearMemory(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear memory: %w", err)
		}
		fmt.Printf("Cleared %d runs and %d memory entries.\n", runs, mem)
		return nil
	},
}

var historyMemoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "List conversion memory entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(viper.GetString("db"))
		if err != nil {
			return err
		}
		defer db.Close()

		entries, err := db.ListMemory(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("No entries in conversion memory.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tMODE\tBACKEND\tMODEL\tUSED\tLAST USED\tINVALID\tSOURCE")
		for _, e := range entries {
			snippet := e.SourceText
			if len(snippet) > 40 {
				snippet = snippet[:37] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%v\t%q\n",
				e.ID, e.Mode, e.Backend, e.Model,
				e.UsageCount, e.LastUsed.Format("2006-01-02 15:04"),
				e.Invalidated, snippet)
		}
		return w.Flush()
	},
}

var historyInvalidateCmd = &cobra.Command{
	Use:   "invalidate <id>",
	Short: "Mark a conversion memory entry as stale",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(viper.GetString("db"))
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.InvalidateMemory(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to invalidate entry: %w", err)
		}
		fmt.Printf("Invalidated entry: %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "Maximum runs to show (0 = all)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyStatsCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyMemoryCmd)
	historyCmd.AddCommand(historyInvalidateCmd)
}
