/*
Copyright 2025.

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

package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the root command for the modelsearch CLI.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modelsearch",
		Short: "Find a local LLM server's best configuration",
		Long: `modelsearch searches an inference server's configuration space —
batch size, concurrency or request rate, instance count, and per-variant
config overlays — for the configs that best satisfy your constraints and
objectives, the way NVIDIA's Model Analyzer does for Triton.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Check for updates on every command (uses cache to avoid slowdown)
			CheckForUpdate()
		},
	}

	cmd.AddCommand(NewSweepCommand())
	cmd.AddCommand(NewReportCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}
