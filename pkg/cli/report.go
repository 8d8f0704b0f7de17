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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/defilantech/modelsearch/internal/store"
	"github.com/defilantech/modelsearch/pkg/report"
)

// NewReportCommand builds the "report" command: it restores a Result
// Store checkpoint written by a previous "sweep --checkpoint" run and
// renders it to Markdown and/or JSON without re-running the sweep.
func NewReportCommand() *cobra.Command {
	var (
		checkpointPath string
		topN           int
		markdownPath   string
		jsonPath       string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a Markdown/JSON report from a saved sweep checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkpointPath == "" {
				return fmt.Errorf("report: --checkpoint is required")
			}
			if markdownPath == "" && jsonPath == "" {
				return fmt.Errorf("report: at least one of --markdown or --json is required")
			}

			st := store.New()
			if err := st.Restore(checkpointPath); err != nil {
				return fmt.Errorf("report: restoring checkpoint: %w", err)
			}

			w := report.New(st, topN)
			if markdownPath != "" {
				if err := w.WriteMarkdown(markdownPath); err != nil {
					return fmt.Errorf("report: writing markdown: %w", err)
				}
			}
			if jsonPath != "" {
				if err := w.WriteJSON(jsonPath); err != nil {
					return fmt.Errorf("report: writing json: %w", err)
				}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&checkpointPath, "checkpoint", "", "path to a Result Store checkpoint written by a previous sweep (required)")
	flags.IntVar(&topN, "top-n", 3, "number of top configs to retain per model")
	flags.StringVar(&markdownPath, "markdown", "", "path to write a Markdown summary report to")
	flags.StringVar(&jsonPath, "json", "", "path to write a JSON summary report to")

	return cmd
}
