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

	"github.com/valpere/playconv/internal/dialect"
)

var hintsCmd = &cobra.Command{
	Use:   "hints",
	Short: "Manage module hints",
	Long: `Add, list, and delete module hints.

A hint tells the backend which Ansible module to use for a given Chef or
Puppet resource. Hints for the detected dialect are added to every convert
request.`,
}

var hintsListDialect string

var hintsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all module hints",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := ""
		if hintsListDialect != "" {
			d := dialect.Parse(hintsListDialect)
			if d == dialect.Unknown {
				return fmt.Errorf("unknown dialect %q (want A, B, chef or puppet)", hintsListDialect)
			}
			filter = d.String()
		}

		db, err := openStore(viper.GetString("db"))
		if err != nil {
			return err
		}
		defer db.Close()

		entries, err := db.ListHints(context.Background(), filter)
		if err != nil {
			return fmt.Errorf("failed to list hints: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("No hints defined.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDIALECT\tRESOURCE\tMODULE")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, e.Dialect, e.Resource, e.Module)
		}
		return w.Flush()
	},
}

var hintsAddCmd = &cobra.Command{
	Use:   "add <dialect> <resource> <module>",
	Short: "Add or update a module hint",
	Long: `Add a hint mapping a source resource to an Ansible module.

Example:
  playconv hints add A cookbook_file ansible.builtin.copy
  playconv hints add puppet package ansible.builtin.package`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		d := dialect.Parse(args[0])
		if d == dialect.Unknown {
			return fmt.Errorf("unknown dialect %q (want A, B, chef or puppet)", args[0])
		}

		db, err := openStore(viper.GetString("db"))
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.AddHint(context.Background(), d.String(), args[1], args[2]); err != nil {
			return fmt.Errorf("failed to add hint: %w", err)
		}
		fmt.Printf("Added: [%s] %s → %s\n", d, args[1], args[2])
		return nil
	},
}

var hintsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a module hint by ID",
	Long: `Delete a hint by its ID (shown in "playconv hints list").

Example:
  playconv hints delete hint_1234567890123456789`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore(viper.GetString("db"))
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DeleteHint(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to delete hint: %w", err)
		}
		fmt.Printf("Deleted hint: %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hintsCmd)

	hintsListCmd.Flags().StringVar(&hintsListDialect, "dialect", "", "Filter by dialect (A, B, chef, puppet)")

	hintsCmd.AddCommand(hintsListCmd)
	hintsCmd.AddCommand(hintsAddCmd)
	hintsCmd.AddCommand(hintsDeleteCmd)
}
