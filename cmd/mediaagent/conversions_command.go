package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mediaagent/internal/agent"
	"mediaagent/internal/catalog"
)

func newConversionsCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string
	var hostFlag string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "conversions",
		Aliases: []string{"ledger"},
		Short:   "List conversion ledger rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status catalog.ConversionStatus
			if value := strings.ToLower(strings.TrimSpace(statusFlag)); value != "" {
				parsed, ok := catalog.ParseConversionStatus(value)
				if !ok {
					return fmt.Errorf("unknown status %q (expected pending, converted, or failed)", statusFlag)
				}
				status = parsed
			}
			return ctx.withAgent(cmd, true, func(runCtx context.Context, a *agent.Agent) error {
				rows, err := a.Catalog().Conversions(runCtx, status, strings.TrimSpace(hostFlag))
				if err != nil {
					return fmt.Errorf("list conversions: %w", err)
				}
				if jsonOutput {
					return writeJSON(cmd, rows)
				}
				out := cmd.OutOrStdout()
				if len(rows) == 0 {
					fmt.Fprintln(out, "No conversions recorded")
					return nil
				}
				writeRows(out, conversionHeaders, conversionTableRows(rows), conversionAligns)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&statusFlag, "status", "s", "", "Only show rows in this status (pending, converted, failed)")
	cmd.Flags().StringVar(&hostFlag, "host", "", "Only show rows recorded by this agent host")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

var (
	conversionHeaders = []string{"ID", "Status", "Host", "Original", "Converted", "Updated", "Error"}
	conversionAligns  = []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft}
)

func conversionTableRows(rows []catalog.Conversion) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, []string{
			strconv.FormatInt(row.ID, 10),
			string(row.Status),
			row.Host,
			filepath.Base(row.OriginalFilename),
			filepath.Base(row.ConvertedFilename),
			formatUpdated(row.UpdatedAt),
			truncate(row.ErrorMessage, 60),
		})
	}
	return out
}

func formatUpdated(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(value string, limit int) string {
	value = strings.Join(strings.Fields(value), " ")
	if limit <= 3 || len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
