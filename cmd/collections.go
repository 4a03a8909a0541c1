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
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/playconv/internal/backend"
)

var collectionsRemote bool

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "Manage retrieval collections on the llama-stack server",
}

var collectionsBootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Register the retrieval collections and ingest guidance",
	Long: `Register one retrieval collection per dialect on the llama-stack
server and ingest a short guidance document into each. Collections that
already exist are left alone. Run once per server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		ep, err := s.endpoint("agent", collectionsRemote)
		if err != nil {
			return err
		}
		cfg := s.backendConfig(ep, false)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		created, err := backend.NewBootstrapper(nil).Bootstrap(ctx, cfg, backend.DefaultGuidance())
		if err != nil {
			return fmt.Errorf("bootstrap failed: %w", err)
		}
		if len(created) == 0 {
			fmt.Println("All collections already exist.")
			return nil
		}
		for _, c := range created {
			fmt.Printf("Created collection: %s\n", c)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(collectionsCmd)

	collectionsBootstrapCmd.Flags().BoolVar(&collectionsRemote, "remote", false, "Use the remote llama-stack server from config")
	collectionsCmd.AddCommand(collectionsBootstrapCmd)
}
