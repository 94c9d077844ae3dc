package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexiswl/poreduck/internal/artifacts"
	"github.com/alexiswl/poreduck/internal/sentinel"
)

func newMergeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Merge per-archive fastq files into the run-level output",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.requireRunConfig()
			if err != nil {
				return err
			}
			// Holding the marker keeps a live run from moving files mid-merge.
			marker, err := sentinel.Acquire(cfg.ParentDir())
			if err != nil {
				return err
			}
			defer func() { _ = marker.Release() }()

			result, err := artifacts.MergeFastq(cfg.FastqDir(), cfg.Basecall.Barcoding)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(result.Outputs) == 0 {
				fmt.Fprintf(out, "No fastq files to merge in %s\n", cfg.FastqDir())
				return nil
			}
			fmt.Fprintf(out, "Merged %d files\n", result.Inputs)
			for _, output := range result.Outputs {
				fmt.Fprintf(out, "  %s\n", output)
			}
			return nil
		},
	}
}
