package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sarchlab/avalonbus/bus"
	"github.com/sarchlab/avalonbus/datarecording"
)

var reportCmd = &cobra.Command{
	Use:   "report <trace.sqlite3>",
	Short: "Summarize a trace recorded with --trace db.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reader, err := datarecording.OpenReader(args[0])
		if err != nil {
			return err
		}
		defer reader.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		report, err := bus.ReadReport(ctx, reader)
		if err != nil {
			return err
		}

		report.Write(cmd.OutOrStdout())

		return nil
	},
}
