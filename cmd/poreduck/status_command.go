package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexiswl/poreduck/internal/config"
	"github.com/alexiswl/poreduck/internal/queue"
	"github.com/alexiswl/poreduck/internal/state"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var statusFile string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status table of a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, backend, err := resolveStatusFile(ctx, statusFile)
			if err != nil {
				return err
			}
			if err := state.RequireExisting(path); err != nil {
				return fmt.Errorf("no status table: %w", err)
			}
			store, err := state.Open(backend, path)
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderStatus(path, items, shouldColorize(out)))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFile, "status-file", "", "Status table to read (defaults to the configured run)")
	return cmd
}

// resolveStatusFile picks the table to read. An explicit path selects its
// backend from the extension.
func resolveStatusFile(ctx *commandContext, explicit string) (string, string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		path, err := config.ExpandPath(explicit)
		if err != nil {
			return "", "", err
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".db", ".sqlite", ".sqlite3":
			return path, config.StateBackendSQLite, nil
		default:
			return path, config.StateBackendCSV, nil
		}
	}
	cfg, err := ctx.requireRunConfig()
	if err != nil {
		return "", "", err
	}
	return cfg.StatusFile(), cfg.State.Backend, nil
}

func renderStatus(path string, items []*queue.Item, colorize bool) string {
	var b strings.Builder
	for _, line := range renderSectionHeader("Status "+path, colorize) {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if len(items) == 0 {
		b.WriteString("No items tracked\n")
		return b.String()
	}

	rows := make([][]string, 0, len(items))
	counts := make(map[queue.Phase]int)
	for _, item := range items {
		phase := item.Phase()
		counts[phase]++
		rows = append(rows, []string{
			item.Name,
			colorizeText(phaseLabel(phase), phaseKind(phase), colorize),
			jobLabel(item.Extraction),
			jobLabel(item.Basecall),
			strconv.Itoa(item.Extraction.Attempts) + "/" + strconv.Itoa(item.Basecall.Attempts),
			yesNo(item.FastqMoved),
			yesNo(item.OutputArchived),
			item.FailureReason,
		})
	}
	b.WriteString(statusLayout.render(rows))
	b.WriteByte('\n')

	var summary []string
	for _, phase := range queue.AllPhases() {
		if n := counts[phase]; n > 0 {
			summary = append(summary, fmt.Sprintf("%s %d", phaseLabel(phase), n))
		}
	}
	fmt.Fprintf(&b, "%d items: %s\n", len(items), strings.Join(summary, ", "))
	return b.String()
}
