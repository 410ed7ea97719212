package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"mediaagent/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.MediaDir = filepath.Join(base, "media")
	cfgVal.Paths.ImagesDir = filepath.Join(base, "media", "images")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Database.Driver = "sqlite"
	cfgVal.Database.Path = filepath.Join(base, "state", "catalog.db")
	cfgVal.Agent.ReturnBasePath = filepath.Join(base, "media", "torrents")
	cfgVal.Agent.RemoteHosts = nil
	cfgVal.Transcode.LowPriority = false
	cfgVal.Agent.DownloadCheckSeconds = 0

	if err := os.MkdirAll(cfgVal.Paths.MediaDir, 0o755); err != nil {
		t.Fatalf("mkdir media dir: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithRemoteHosts sets the remote agents eligible for dispatch.
func WithRemoteHosts(hosts ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Agent.RemoteHosts = hosts
	}
}

// WithRemoteAgent configures the agent as a remote converter reporting to control.
func WithRemoteAgent(control string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Agent.RemoteAgent = true
		b.cfg.Agent.ControlHost = control
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
