package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"mediaagent/internal/agent"
	"mediaagent/internal/catalog"
	"mediaagent/internal/deps"
	"mediaagent/internal/preflight"
)

var errUnhealthy = errors.New("agent is not healthy")

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show environment, store, and ledger health",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := isTerminal(out)
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			err = ctx.withAgent(cmd, true, func(runCtx context.Context, a *agent.Agent) error {
				h := a.Health(runCtx)
				writeLines(out, agentLines(h, ctx.configPath, colorize))
				writeLines(out, environmentLines(h.Environment, colorize))
				writeLines(out, storeLines(h, colorize))
				if !h.Healthy() {
					return errUnhealthy
				}
				return nil
			})
			if err != nil && !errors.Is(err, errUnhealthy) {
				// Bootstrap failed; the environment checks still explain most causes.
				writeLines(out, environmentLines(agent.CheckEnvironment(cmd.Context(), cfg), colorize))
			}
			return err
		},
	}
}

func writeLines(out io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out)
}

func agentLines(h agent.Health, configPath string, colorize bool) []string {
	lines := renderSectionHeader("Agent", colorize)
	role := "primary"
	if h.RemoteAgent {
		role = "remote converter"
	}
	lines = append(lines,
		renderStatusLine("Host", statusInfo, h.Host, colorize),
		renderStatusLine("Role", statusInfo, role, colorize),
	)
	if configPath != "" {
		lines = append(lines, renderStatusLine("Config", statusInfo, configPath, colorize))
	}
	return lines
}

func environmentLines(env agent.Environment, colorize bool) []string {
	lines := renderSectionHeader("Environment", colorize)
	lines = append(lines, preflightLines(env.Preflight, colorize)...)
	lines = append(lines, dependencyLines(env.Binaries, colorize)...)
	return lines
}

func preflightLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		kind := statusOK
		if !r.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	return lines
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses)+1)
	var missing []string
	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Path != "" {
				message = fmt.Sprintf("Ready (%s)", dep.Path)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		} else {
			missing = append(missing, dep.Name)
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusError, strings.Join(missing, ", "), colorize))
	}
	return lines
}

func storeLines(h agent.Health, colorize bool) []string {
	lines := renderSectionHeader("Catalog", colorize)
	if h.StoreErr != nil {
		lines = append(lines, renderStatusLine("Store", statusError, h.StoreErr.Error(), colorize))
	} else {
		lines = append(lines, renderStatusLine("Store", statusOK, fmt.Sprintf("%s (%s)", h.StoreDriver, h.StoreLocation), colorize))
	}
	if h.CacheErr != nil {
		lines = append(lines, renderStatusLine("Cache", statusError, h.CacheErr.Error(), colorize))
	} else {
		lines = append(lines, renderStatusLine("Cache", statusOK, h.CacheBackend, colorize))
	}
	lines = append(lines, renderStatusLine("Conversions", statusInfo, formatCounts(h.Conversions), colorize))
	if h.Conversions[catalog.ConversionFailed] > 0 {
		lines = append(lines, renderStatusLine("Failed conversions", statusWarn,
			fmt.Sprintf("%d (mediaagent conversions --status failed)", h.Conversions[catalog.ConversionFailed]), colorize))
	}
	return lines
}

func formatCounts(counts map[catalog.ConversionStatus]int) string {
	if len(counts) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(counts))
	for status := range counts {
		keys = append(keys, string(status))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s %d", key, counts[catalog.ConversionStatus(key)]))
	}
	return strings.Join(parts, ", ")
}
