package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mediaagent/internal/agent"
	"mediaagent/internal/preflight"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the agent loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			cmd.SetContext(signalCtx)

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := preflight.FirstFailure(preflight.RunAll(signalCtx, cfg)); err != nil {
				return fmt.Errorf("preflight: %w", err)
			}
			return ctx.withAgent(cmd, false, func(runCtx context.Context, a *agent.Agent) error {
				return a.Run(runCtx)
			})
		},
	}
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one scan cycle and wait for its conversions",
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			cmd.SetContext(signalCtx)

			return ctx.withAgent(cmd, quiet, func(runCtx context.Context, a *agent.Agent) error {
				report, err := a.RunOnce(runCtx)
				printCycleReport(cmd.OutOrStdout(), report)
				return err
			})
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress agent logs and print only the summary")
	return cmd
}

func printCycleReport(out io.Writer, report agent.CycleReport) {
	if report.ID == "" {
		return
	}
	s := report.Scan
	fmt.Fprintf(out, "Cycle %s finished in %s\n", report.ID, report.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "  Files: %d  Catalogued: %d  Skipped: %d  Downloading: %d  Errors: %d\n",
		s.Files, s.Catalogued, s.Skipped, s.Downloading, s.Errors)
	fmt.Fprintf(out, "  Queued: %d  Shipped: %d  Adopted: %d  Images: %d  Thumbnails: %d\n",
		s.Queued, s.Shipped, s.Adopted, s.Images, s.Thumbnails)
	if report.Returned.Returned > 0 {
		fmt.Fprintf(out, "  Returned to control: %d\n", report.Returned.Returned)
	}
	q := report.Queue
	fmt.Fprintf(out, "  Converted: %d  Failed: %d  Publish failed: %d\n", q.Converted, q.Failed, q.PublishFailed)
}
