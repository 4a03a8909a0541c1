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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/valpere/playconv/internal/dialect"
)

var classifyFile string

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Print the detected dialect of a source file",
	Long: `Print A (Chef), B (Puppet) or unknown for one source file.

Exits with status 1 when the dialect is unknown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(classifyFile)
		if err != nil {
			return fmt.Errorf("failed to read input file: %w", err)
		}
		d := dialect.Classify(string(content))
		fmt.Println(d.String())
		if d == dialect.Unknown {
			cmd.SilenceUsage = true
			return dialect.ErrAmbiguous
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().StringVarP(&classifyFile, "input-file", "i", "", "Source file to classify (required)")
	classifyCmd.MarkFlagRequired("input-file")
}
