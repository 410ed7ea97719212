package preflight

import (
	"context"
	"fmt"
	"strings"

	"mediaagent/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the filesystem checks that apply to the agent's role.
func RunAll(_ context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Media root (always checked)
	results = append(results, CheckDirectoryAccess("Media directory", cfg.Paths.MediaDir))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	// Thumbnails are only written on the primary host
	if cfg.Agent.Thumbnails && !cfg.Agent.RemoteAgent && strings.TrimSpace(cfg.Paths.ImagesDir) != "" {
		results = append(results, CheckDirectoryAccess("Images directory", cfg.Paths.ImagesDir))
	}

	if results[0].Passed && cfg.MinFreeBytes() > 0 {
		results = append(results, CheckFreeSpace("Media free space", cfg.Paths.MediaDir, cfg.MinFreeBytes()))
	}
	return results
}

// FirstFailure returns an error describing the first failed result, or nil.
func FirstFailure(results []Result) error {
	for _, r := range results {
		if !r.Passed {
			return fmt.Errorf("%s: %s", r.Name, r.Detail)
		}
	}
	return nil
}
