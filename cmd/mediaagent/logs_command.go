package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mediaagent/internal/logging"
	"mediaagent/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var filter logs.Filter

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent agent log records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
			out := cmd.OutOrStdout()

			records, offset, err := logs.Last(path, lines, filter)
			if err != nil {
				return err
			}
			for _, rec := range records {
				fmt.Fprintln(out, rec.Format())
			}
			if !follow {
				return nil
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			err = logs.Follow(signalCtx, path, offset, 500*time.Millisecond, filter, func(rec logs.Record) {
				fmt.Fprintln(out, rec.Format())
			})
			if signalCtx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of records to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new records until interrupted")
	cmd.Flags().StringVar(&filter.Cycle, "cycle", "", "Only show records from the scan cycle with this id (prefix match)")
	cmd.Flags().StringVar(&filter.Component, "component", "", "Only show records from this component (agent, queue, dispatch, ...)")
	cmd.Flags().StringVar(&filter.MinLevel, "level", "", "Minimum level to show (debug, info, warn, error)")
	return cmd
}
