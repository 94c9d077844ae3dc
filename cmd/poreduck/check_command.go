package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexiswl/poreduck/internal/deps"
	"github.com/alexiswl/poreduck/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report missing binaries and unusable directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.requireRunConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			statuses := preflight.CheckSystemDeps(cfg)
			depRows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				kind := statusOK
				switch {
				case !status.Available && status.Optional:
					kind = statusWarn
				case !status.Available:
					kind = statusError
				}
				depRows = append(depRows, []string{
					status.Name,
					status.Command,
					colorizeText(statusKindLabel(kind), kind, colorize),
					firstNonEmpty(status.Detail, status.Description),
				})
			}

			results := preflight.RunAll(cfg)
			checkRows := make([][]string, 0, len(results))
			for _, result := range results {
				kind := statusOK
				switch {
				case !result.Passed && result.Advisory:
					kind = statusWarn
				case !result.Passed:
					kind = statusError
				}
				checkRows = append(checkRows, []string{
					result.Name,
					colorizeText(statusKindLabel(kind), kind, colorize),
					result.Detail,
				})
			}

			lines := renderSectionHeader("Dependencies", colorize)
			fmt.Fprintln(out, strings.Join(lines, "\n"))
			fmt.Fprintln(out, dependencyLayout.render(depRows))
			lines = renderSectionHeader("Directories", colorize)
			fmt.Fprintln(out, strings.Join(lines, "\n"))
			fmt.Fprintln(out, preflightLayout.render(checkRows))

			problems := len(deps.Missing(statuses)) + len(preflight.Failed(results))
			if problems > 0 {
				return fmt.Errorf("%d required checks failed", problems)
			}
			return nil
		},
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
