package deps_test

import (
	"os"
	"path/filepath"
	"testing"

	"mediaagent/internal/deps"
	"mediaagent/internal/testsupport"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []deps.Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := deps.CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Path != present {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary with detail, got %#v", results[1])
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected blank detail: %q", results[2].Detail)
	}
	if missing := deps.Missing(results); len(missing) != 2 {
		t.Fatalf("expected two missing requirements, got %#v", missing)
	}
}

func TestRequirementsFollowRole(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Transcode.LowPriority = true
	cfg.Transmission.Enabled = true

	reqs := deps.Requirements(cfg)
	names := map[string]bool{}
	for _, req := range reqs {
		names[req.Name] = true
	}
	for _, want := range []string{"FFmpeg", "FFprobe", "nice", "ionice", "transmission-remote"} {
		if !names[want] {
			t.Fatalf("expected requirement %s, got %#v", want, reqs)
		}
	}

	statuses := deps.CheckBinaries(reqs[:2])
	if len(deps.Missing(statuses)) != 0 {
		t.Fatalf("expected stubbed ffmpeg and ffprobe to resolve, got %#v", statuses)
	}

	cfg.Agent.RemoteAgent = true
	if got := len(deps.Requirements(cfg)); got != 2 {
		t.Fatalf("expected only ffmpeg and ffprobe on a remote agent, got %d", got)
	}
}
