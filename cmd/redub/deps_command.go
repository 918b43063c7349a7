package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"redub/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var checkLLM bool
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check external tools and directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			statuses = append(statuses, deps.CheckDirectories(cfg)...)

			rows := make([][]string, 0, len(statuses)+1)
			for _, status := range statuses {
				state := "ok"
				if !status.Available {
					state = "missing"
					if status.Optional {
						state = "optional"
					}
				}
				detail := status.Detail
				if detail == "" {
					detail = status.Description
				}
				rows = append(rows, []string{status.Name, state, status.Command, detail})
			}

			var llmErr error
			if checkLLM {
				client := newTranslator(cfg)
				state, detail := "ok", cfg.LLM.Model
				if llmErr = client.HealthCheck(cmd.Context()); llmErr != nil {
					state, detail = "failed", llmErr.Error()
				}
				rows = append(rows, []string{"llm", state, cfg.LLM.BaseURL, detail})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"Dependency", "Status", "Path", "Detail"}, rows, nil))

			if missing := deps.Missing(statuses); len(missing) > 0 {
				return fmt.Errorf("%d required dependencies missing", len(missing))
			}
			if llmErr != nil {
				return fmt.Errorf("llm health check: %w", llmErr)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&checkLLM, "check-llm", false, "Send a test request to the translation model")
	return cmd
}
