package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"mediaagent/internal/config"
	"mediaagent/internal/services"
)

// TorrentProbe reports whether the torrent client is still writing into dir.
type TorrentProbe interface {
	Downloading(ctx context.Context, dir string) (bool, error)
}

// OutputFunc runs a command and returns its stdout.
type OutputFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Transmission probes a local transmission daemon through transmission-remote.
type Transmission struct {
	binary string
	auth   string
	output OutputFunc
}

// NewTransmission returns a probe for cfg, or nil when the probe is disabled
// or the agent is a remote converter.
func NewTransmission(cfg *config.Config, output OutputFunc) *Transmission {
	if cfg == nil || !cfg.Transmission.Enabled || cfg.Agent.RemoteAgent {
		return nil
	}
	if output == nil {
		output = commandOutput
	}
	return &Transmission{binary: cfg.Transmission.Binary, auth: cfg.Transmission.Auth, output: output}
}

// Downloading reports whether any torrent whose location is dir is below 100%.
func (t *Transmission) Downloading(ctx context.Context, dir string) (bool, error) {
	list, err := t.output(ctx, t.binary, t.args("-l")...)
	if err != nil {
		return false, services.Wrap(services.ErrExternalTool, "ingest", "transmission list", "transmission-remote -l failed", err)
	}
	want := filepath.Clean(dir)
	for _, id := range parseTorrentIDs(list) {
		info, err := t.output(ctx, t.binary, t.args("-t", id, "-i")...)
		if err != nil {
			return false, services.Wrap(services.ErrExternalTool, "ingest", "transmission info", fmt.Sprintf("transmission-remote -t %s -i failed", id), err)
		}
		location, percent := parseTorrentInfo(info)
		if location == "" || filepath.Clean(location) != want {
			continue
		}
		if !strings.HasPrefix(percent, "100%") {
			return true, nil
		}
	}
	return false, nil
}

func (t *Transmission) args(rest ...string) []string {
	if t.auth == "" {
		return rest
	}
	return append([]string{"--auth", t.auth}, rest...)
}

// parseTorrentIDs reads the id column of `transmission-remote -l`. The header,
// the Sum line and short rows are skipped; the error marker on ids is dropped.
func parseTorrentIDs(data []byte) []string {
	var ids []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			first = false
			continue
		}
		if line == "" || strings.HasPrefix(line, "Sum:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 9 {
			continue
		}
		ids = append(ids, strings.TrimRight(fields[0], "*"))
	}
	return ids
}

// parseTorrentInfo extracts Location and Percent Done from `-t <id> -i`.
func parseTorrentInfo(data []byte) (location, percent string) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "Location":
			location = strings.TrimSpace(value)
		case "Percent Done":
			percent = strings.TrimSpace(value)
		}
	}
	return location, percent
}

func commandOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output() //nolint:gosec
}
